// Package cascade runs a fixed list of strategies in order and keeps the
// first result that is accepted.
package cascade

import (
	"context"
	"fmt"
)

// Attempt is one named strategy in a cascade.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result reports which strategy produced Value. Strategy is empty when no
// attempt was accepted; Errors holds the failures seen along the way.
type Result[T any] struct {
	Value    T
	Strategy string
	Errors   []error
}

// Accepted reports whether any attempt produced an accepted value.
func (r Result[T]) Accepted() bool {
	return r.Strategy != ""
}

// First runs the attempts in order and stops at the first one that returns
// without error and whose value satisfies accept. A nil accept takes any
// error-free value. Panics inside an attempt are converted to errors.
// The context is checked before every attempt.
func First[T any](ctx context.Context, accept func(T) bool, attempts ...Attempt[T]) Result[T] {
	var res Result[T]
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err)
			return res
		}

		v, err := safeRun(ctx, a)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", a.Name, err))
			continue
		}
		if accept != nil && !accept(v) {
			continue
		}
		res.Value = v
		res.Strategy = a.Name
		return res
	}
	return res
}

// NonEmpty is an accept function for slice results.
func NonEmpty[E any](v []E) bool {
	return len(v) > 0
}

func safeRun[T any](ctx context.Context, a Attempt[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Run(ctx)
}
