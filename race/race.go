// Package race runs independent operations concurrently and keeps the first
// result that satisfies a predicate, cancelling and discarding the rest.
package race

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsatisfied is the cause recorded for an operation that completed but was
// rejected by the predicate.
var ErrUnsatisfied = errors.New("race: outcome did not satisfy predicate")

// Op is one raced computation. It must return promptly once ctx is cancelled.
type Op[T any] func(ctx context.Context) (T, error)

// Outcome is a completed operation.
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

func (o Outcome[T]) Succeeded() bool { return o.Err == nil }

func (o Outcome[T]) Cancelled() bool {
	return errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded)
}

func (o Outcome[T]) Failed() bool { return o.Err != nil && !o.Cancelled() }

// ExhaustedError is returned when no operation satisfied the predicate. Errs
// holds one cause per operation, in submission order.
type ExhaustedError struct {
	Errs []error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("race: none of %d operations was satisfactory", len(e.Errs))
}

func (e *ExhaustedError) Unwrap() []error {
	return e.Errs
}

// Predicate starts every op and returns the value of the first one to complete
// whose outcome satisfies pred. Once a winner is found the remaining ops are
// cancelled, and Predicate returns only after all of them have returned.
// Errors and panics from losing ops are discarded.
func Predicate[T any](ctx context.Context, pred func(Outcome[T]) bool, ops []Op[T]) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan Outcome[T], len(ops))
	for i, op := range ops {
		go run(ctx, i, op, outcomes)
	}

	errs := make([]error, len(ops))
	pending := len(ops)
	for pending > 0 {
		o := <-outcomes
		pending--

		if !pred(o) {
			if o.Err != nil {
				errs[o.Index] = o.Err
			} else {
				errs[o.Index] = ErrUnsatisfied
			}
			continue
		}

		cancel()
		for ; pending > 0; pending-- {
			<-outcomes
		}
		return o.Value, nil
	}

	var zero T
	return zero, &ExhaustedError{Errs: errs}
}

// First returns whichever op completes first, successful or not.
func First[T any](ctx context.Context, ops []Op[T]) (T, error) {
	var (
		winner Outcome[T]
		won    bool
	)
	v, err := Predicate(ctx, func(o Outcome[T]) bool {
		if !won {
			winner, won = o, true
		}
		return true
	}, ops)
	if err != nil {
		return v, err
	}
	return v, winner.Err
}

// Success returns the value of the first op that completes without error.
func Success[T any](ctx context.Context, ops []Op[T]) (T, error) {
	return Predicate(ctx, Outcome[T].Succeeded, ops)
}

func run[T any](ctx context.Context, i int, op Op[T], outcomes chan<- Outcome[T]) {
	o := Outcome[T]{Index: i}
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("race: operation %d panicked: %v", i, r)
		}
		outcomes <- o
	}()
	o.Value, o.Err = op(ctx)
}
