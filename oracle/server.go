package oracle

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"

	aesgo "github.com/mario-areias/padding-oracle/aes-go"
	"github.com/mario-areias/padding-oracle/key"
)

const (
	invalidTokenError = "Invalid token"
	wrongCodeError    = "Incorrect code"
)

// Server is a token service vulnerable to padding oracle attacks. It hands out
// the encrypted secret and accepts submissions carrying a token, and it answers
// differently depending on whether the token decrypted with valid padding.
type Server struct {
	aes    aesgo.AES
	secret []byte
	logger *log.Logger
	mux    *http.ServeMux
}

type submitRequest struct {
	Code string `json:"code"`
}

type submitResponse struct {
	Error string `json:"error,omitempty"`
	OK    bool   `json:"ok,omitempty"`
}

func NewServer(k key.Key, secret []byte, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		aes:    aesgo.New(k),
		secret: bytes.Clone(secret),
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/token", s.token)
	s.mux.HandleFunc("POST /api/submit/{token}", s.submit)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	encrypted, err := s.aes.Encrypt(aesgo.CBC, s.secret)
	if err != nil {
		s.logger.Printf("Encryption error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: EncodeToken(encrypted)})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	// PathValue has already undone the URL quoting
	token, err := base64.StdEncoding.DecodeString(r.PathValue("token"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: invalidTokenError})
		return
	}

	plaintext, err := s.aes.Decrypt(aesgo.CBC, token)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: invalidTokenError})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: AcceptedError})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Code), plaintext) != 1 {
		writeJSON(w, http.StatusForbidden, submitResponse{Error: wrongCodeError})
		return
	}

	s.logger.Printf("correct code submitted from %s", r.RemoteAddr)
	writeJSON(w, http.StatusOK, submitResponse{OK: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
