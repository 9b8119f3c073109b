package dispatch

import (
	"context"
	"log/slog"

	"github.com/roach88/microact/internal/ir"
)

// DefaultMaxDepth bounds re-entrant dispatch through a middleware API.
const DefaultMaxDepth = 64

// Middleware intercepts actions before they reach the inner store.
//
// It receives the store API once, returns a function that receives the next
// link of the chain once, and that in turn returns the per-action handler.
// Calling api.Dispatch re-enters the whole chain; calling next continues
// toward the reducer.
type Middleware[S any] func(api API[S]) func(next DispatchFunc) DispatchFunc

// ApplyMiddleware returns an enhancer that runs every dispatch through mws,
// first to last. Re-entrant dispatch is limited to DefaultMaxDepth.
func ApplyMiddleware[S any](mws ...Middleware[S]) Enhancer[S] {
	return ApplyMiddlewareWithDepth(DefaultMaxDepth, mws...)
}

// ApplyMiddlewareWithDepth is ApplyMiddleware with an explicit re-entrance
// limit. maxDepth <= 0 uses DefaultMaxDepth; the limit cannot be disabled.
func ApplyMiddlewareWithDepth[S any](maxDepth int, mws ...Middleware[S]) Enhancer[S] {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return func(next StoreCreator[S]) StoreCreator[S] {
		return func(reducer Reducer[S], preloaded S) Store[S] {
			inner := next(reducer, preloaded)

			s := &chainStore[S]{Store: inner}
			s.dispatch = func(context.Context, *ir.Action) error {
				return ErrMiddlewareConstruction
			}

			api := middlewareAPI[S]{store: s, maxDepth: maxDepth}
			links := make([]func(DispatchFunc) DispatchFunc, len(mws))
			for i, mw := range mws {
				links[i] = mw(api)
			}

			d := DispatchFunc(inner.Dispatch)
			for i := len(links) - 1; i >= 0; i-- {
				d = links[i](d)
			}
			s.dispatch = d

			return s
		}
	}
}

// Compose combines enhancers right-to-left: Compose(f, g)(x) == f(g(x)).
func Compose[S any](enhancers ...Enhancer[S]) Enhancer[S] {
	return func(next StoreCreator[S]) StoreCreator[S] {
		for i := len(enhancers) - 1; i >= 0; i-- {
			next = enhancers[i](next)
		}
		return next
	}
}

// chainStore is the store returned by ApplyMiddleware. Everything except
// Dispatch is served by the inner store.
type chainStore[S any] struct {
	Store[S]
	dispatch DispatchFunc
}

func (s *chainStore[S]) Dispatch(ctx context.Context, a *ir.Action) error {
	return s.dispatch(ctx, a)
}

// middlewareAPI is what each middleware sees as its store.
type middlewareAPI[S any] struct {
	store    *chainStore[S]
	maxDepth int
}

// Dispatch re-enters the full chain one level deeper.
func (m middlewareAPI[S]) Dispatch(ctx context.Context, a *ir.Action) error {
	depth := Depth(ctx) + 1
	if depth > m.maxDepth {
		err := &DepthExceededError{
			FlowToken: FlowFrom(ctx),
			Depth:     depth,
			Limit:     m.maxDepth,
		}
		if a != nil {
			err.ActionType = a.Type
		}
		slog.Warn("re-entrant dispatch limit exceeded",
			"flow", err.FlowToken,
			"type", err.ActionType,
			"depth", depth,
			"limit", m.maxDepth,
		)
		return err
	}
	return m.store.dispatch(WithDepth(ctx, depth), a)
}

func (m middlewareAPI[S]) GetState() S {
	return m.store.GetState()
}
