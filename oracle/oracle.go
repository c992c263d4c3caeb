// Package oracle defines the padding oracle contract and a few oracles: a local
// AES-CBC one, an HTTP client for a remote token service, and wrappers that
// bound or count queries.
package oracle

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// An Oracle reports whether target, decrypted with preceding as its previous
// block, has valid padding. It never reveals the plaintext. A non-nil error
// means the query itself failed and says nothing about the padding.
//
// Oracles are called from many goroutines at once and must be safe for that.
type Oracle interface {
	Check(ctx context.Context, preceding, target []byte) (bool, error)
}

type Func func(ctx context.Context, preceding, target []byte) (bool, error)

func (f Func) Check(ctx context.Context, preceding, target []byte) (bool, error) {
	return f(ctx, preceding, target)
}

// Sync adapts an in-process predicate that cannot block or fail.
func Sync(f func(preceding, target []byte) bool) Oracle {
	return Func(func(ctx context.Context, preceding, target []byte) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return f(preceding, target), nil
	})
}

type limited struct {
	sem    *semaphore.Weighted
	oracle Oracle
}

// Limit allows at most n queries to o in flight. Waiting for a slot respects
// ctx, so cancelled probes never reach o.
func Limit(o Oracle, n int) Oracle {
	if n <= 0 {
		return o
	}
	return &limited{sem: semaphore.NewWeighted(int64(n)), oracle: o}
}

func (l *limited) Check(ctx context.Context, preceding, target []byte) (bool, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer l.sem.Release(1)
	return l.oracle.Check(ctx, preceding, target)
}

// Counting counts the queries made through it.
type Counting struct {
	Oracle Oracle

	queries atomic.Int64
}

func (c *Counting) Check(ctx context.Context, preceding, target []byte) (bool, error) {
	c.queries.Add(1)
	return c.Oracle.Check(ctx, preceding, target)
}

func (c *Counting) Queries() int64 {
	return c.queries.Load()
}
