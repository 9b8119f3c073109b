package dispatch

import (
	"context"
	"log/slog"

	"github.com/roach88/microact/internal/ir"
)

// ActionInit is dispatched once by the base store on creation so the reducer
// can seed its state.
const ActionInit = "@@microact/INIT"

// Dispatcher is anything actions can be dispatched to.
type Dispatcher interface {
	Dispatch(ctx context.Context, a *ir.Action) error
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, a *ir.Action) error

// Dispatch calls f(ctx, a).
func (f DispatchFunc) Dispatch(ctx context.Context, a *ir.Action) error {
	return f(ctx, a)
}

// API is the view of a store handed to middleware.
type API[S any] interface {
	Dispatcher
	GetState() S
}

// Store holds state and applies dispatched actions to it.
type Store[S any] interface {
	API[S]

	// Subscribe registers a listener called after every reduce.
	// The returned function removes it; calling it twice is a no-op.
	Subscribe(listener func()) (unsubscribe func())
}

// Reducer computes the next state. It must be pure and must not dispatch.
type Reducer[S any] func(state S, a *ir.Action) S

// StoreCreator builds a Store.
type StoreCreator[S any] func(reducer Reducer[S], preloaded S) Store[S]

// Enhancer wraps a StoreCreator.
type Enhancer[S any] func(next StoreCreator[S]) StoreCreator[S]

// CreateStore builds a store, applying enhancers right-to-left around the
// base store.
//
// Panics if reducer is nil.
func CreateStore[S any](reducer Reducer[S], preloaded S, enhancers ...Enhancer[S]) Store[S] {
	if reducer == nil {
		panic("dispatch: nil reducer")
	}
	create := StoreCreator[S](newBaseStore[S])
	if len(enhancers) > 0 {
		create = Compose(enhancers...)(create)
	}
	return create(reducer, preloaded)
}

type listener struct {
	id int
	fn func()
}

// baseStore is the innermost store: it owns state and runs the reducer.
type baseStore[S any] struct {
	reducer   Reducer[S]
	state     S
	reducing  bool
	listeners []listener
	nextID    int
}

func newBaseStore[S any](reducer Reducer[S], preloaded S) Store[S] {
	s := &baseStore[S]{reducer: reducer, state: preloaded}
	// Cannot fail: nothing is reducing yet and the action is non-nil.
	_ = s.Dispatch(context.Background(), &ir.Action{Type: ActionInit})
	return s
}

// Dispatch runs the reducer, then notifies listeners.
func (s *baseStore[S]) Dispatch(ctx context.Context, a *ir.Action) error {
	if a == nil {
		return ErrNilAction
	}
	if s.reducing {
		return ErrReducerDispatch
	}

	s.reduce(a)

	slog.Debug("action reduced",
		"type", a.Type,
		"marker", a.Micro.String(),
		"flow", FlowFrom(ctx),
		"depth", Depth(ctx),
	)

	// Snapshot so listeners may (un)subscribe while being notified.
	current := s.listeners
	for _, l := range current {
		l.fn()
	}
	return nil
}

func (s *baseStore[S]) reduce(a *ir.Action) {
	s.reducing = true
	defer func() { s.reducing = false }()
	s.state = s.reducer(s.state, a)
}

func (s *baseStore[S]) GetState() S {
	return s.state
}

func (s *baseStore[S]) Subscribe(fn func()) func() {
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners[:len(s.listeners):len(s.listeners)], listener{id: id, fn: fn})

	return func() {
		for i, l := range s.listeners {
			if l.id == id {
				next := make([]listener, 0, len(s.listeners)-1)
				next = append(next, s.listeners[:i]...)
				next = append(next, s.listeners[i+1:]...)
				s.listeners = next
				return
			}
		}
	}
}
