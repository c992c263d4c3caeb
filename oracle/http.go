package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	aesgo "github.com/mario-areias/padding-oracle/aes-go"
)

// AcceptedError is what the token service answers once a token got past
// decryption: the padding was fine and only the request body is missing.
const AcceptedError = "Missing code in request body"

// HTTP queries a remote token service. Tokens are base64(IV || ciphertext),
// URL-quoted, and submitted as the last path segment.
type HTTP struct {
	Origin string
	Client *http.Client

	// Accepted is the error message that means valid padding. Defaults to
	// AcceptedError.
	Accepted string
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

func NewHTTP(origin string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Origin: origin, Client: client, Accepted: AcceptedError}
}

// Token fetches a fresh token and splits it into IV and ciphertext.
func (h *HTTP) Token(ctx context.Context) (iv, ciphertext []byte, err error) {
	var body tokenResponse
	if err := h.do(ctx, http.MethodGet, h.Origin+"/api/token", &body); err != nil {
		return nil, nil, err
	}

	quoted, err := url.QueryUnescape(body.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: unquoting token: %w", err)
	}
	token, err := base64.StdEncoding.DecodeString(quoted)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: decoding token: %w", err)
	}
	if len(token) < 2*aesgo.BlockSize || len(token)%aesgo.BlockSize != 0 {
		return nil, nil, fmt.Errorf("oracle: token of %d bytes is not IV plus whole blocks", len(token))
	}

	return token[:aesgo.BlockSize], token[aesgo.BlockSize:], nil
}

func (h *HTTP) Check(ctx context.Context, preceding, target []byte) (bool, error) {
	token := make([]byte, 0, len(preceding)+len(target))
	token = append(token, preceding...)
	token = append(token, target...)

	var body tokenResponse
	if err := h.do(ctx, http.MethodPost, h.Origin+"/api/submit/"+EncodeToken(token), &body); err != nil {
		return false, err
	}

	accepted := h.Accepted
	if accepted == "" {
		accepted = AcceptedError
	}
	return body.Error == accepted, nil
}

func (h *HTTP) do(ctx context.Context, method, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("oracle: building request: %w", err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("oracle: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	// the service reports padding errors with non-2xx codes, so the status alone
	// says nothing; only a body that isn't JSON is a failure
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("oracle: reading response: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("oracle: unexpected response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// EncodeToken renders a token the way the service expects it in a path.
func EncodeToken(token []byte) string {
	return url.QueryEscape(base64.StdEncoding.EncodeToString(token))
}
