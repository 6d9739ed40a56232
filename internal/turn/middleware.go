// ABOUTME: Onion middleware chain wrapping the bot's turn handler
// ABOUTME: Leading edges run in registration order, trailing edges unwind in reverse

package turn

import (
	"context"
	"errors"
)

// ErrNextCalledTwice is returned when a middleware invokes next more than once.
var ErrNextCalledTwice = errors.New("middleware called next more than once")

// Handler is the bot's turn logic.
type Handler func(ctx context.Context, tc *Context) error

// Next continues the chain from inside a middleware.
type Next func(ctx context.Context) error

// Middleware wraps every turn. Code before next is the leading edge, code
// after it the trailing edge. Returning without calling next short-circuits
// the rest of the chain, including the handler.
type Middleware interface {
	OnTurn(ctx context.Context, tc *Context, next Next) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, tc *Context, next Next) error

// OnTurn implements Middleware.
func (f MiddlewareFunc) OnTurn(ctx context.Context, tc *Context, next Next) error {
	return f(ctx, tc, next)
}

// MiddlewareSet is an ordered chain of middleware. It is itself a Middleware
// so sets can be nested.
type MiddlewareSet struct {
	middleware []Middleware
}

// NewMiddlewareSet returns a set containing m in order.
func NewMiddlewareSet(m ...Middleware) *MiddlewareSet {
	s := &MiddlewareSet{}
	return s.Use(m...)
}

// Use appends middleware to the chain and returns the set.
func (s *MiddlewareSet) Use(m ...Middleware) *MiddlewareSet {
	for _, mw := range m {
		if mw != nil {
			s.middleware = append(s.middleware, mw)
		}
	}
	return s
}

// Len returns the number of registered middleware.
func (s *MiddlewareSet) Len() int { return len(s.middleware) }

// OnTurn runs the set as a middleware of an outer chain.
func (s *MiddlewareSet) OnTurn(ctx context.Context, tc *Context, next Next) error {
	return s.run(ctx, tc, 0, func(ctx context.Context) error {
		return next(ctx)
	})
}

// Run executes the chain around handler. A nil handler runs only the middleware.
func (s *MiddlewareSet) Run(ctx context.Context, tc *Context, handler Handler) error {
	return s.run(ctx, tc, 0, func(ctx context.Context) error {
		if handler == nil {
			return nil
		}
		return handler(ctx, tc)
	})
}

func (s *MiddlewareSet) run(ctx context.Context, tc *Context, i int, last Next) error {
	if i >= len(s.middleware) {
		return last(ctx)
	}

	called := false
	next := func(ctx context.Context) error {
		if called {
			return ErrNextCalledTwice
		}
		called = true
		return s.run(ctx, tc, i+1, last)
	}
	return s.middleware[i].OnTurn(ctx, tc, next)
}
