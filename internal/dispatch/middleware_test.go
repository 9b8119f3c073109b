package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/ir"
)

// recording returns a middleware that appends its name for every action it
// sees and then calls next.
func recording(name string, log *[]string) Middleware[int] {
	return func(api API[int]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				*log = append(*log, name+":"+a.Type)
				return next(ctx, a)
			}
		}
	}
}

func TestApplyMiddleware_Order(t *testing.T) {
	var log []string
	st := CreateStore(counter, 0, ApplyMiddleware(
		recording("first", &log),
		recording("second", &log),
	))

	require.NoError(t, st.Dispatch(context.Background(), &ir.Action{Type: "TEST"}))

	assert.Equal(t, []string{"first:TEST", "second:TEST"}, log)
	assert.Equal(t, 2, st.GetState())
}

func TestApplyMiddleware_InitBypassesChain(t *testing.T) {
	var log []string
	st := CreateStore(counter, 0, ApplyMiddleware(recording("mw", &log)))

	assert.Empty(t, log)
	assert.Equal(t, 1, st.GetState())
}

func TestApplyMiddleware_ReentrantDispatch(t *testing.T) {
	var log []string
	var depths []int

	pingPong := func(api API[int]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				depths = append(depths, Depth(ctx))
				if a.Type == "PING" {
					if err := api.Dispatch(ctx, &ir.Action{Type: "PONG"}); err != nil {
						return err
					}
				}
				return next(ctx, a)
			}
		}
	}

	st := CreateStore(counter, 0, ApplyMiddleware(
		recording("outer", &log),
		pingPong,
	))

	ctx := WithFlow(context.Background(), "flow-1")
	require.NoError(t, st.Dispatch(ctx, &ir.Action{Type: "PING"}))

	assert.Equal(t, []string{"outer:PING", "outer:PONG"}, log, "re-dispatch enters the chain from the top")
	assert.Equal(t, []int{0, 1}, depths)
	assert.Equal(t, 3, st.GetState())
}

func TestApplyMiddleware_FlowInherited(t *testing.T) {
	var flows []string

	mw := func(api API[int]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				flows = append(flows, FlowFrom(ctx))
				if a.Type == "OUTER" {
					if err := api.Dispatch(ctx, &ir.Action{Type: "INNER"}); err != nil {
						return err
					}
				}
				return next(ctx, a)
			}
		}
	}

	st := CreateStore(counter, 0, ApplyMiddleware(mw))
	require.NoError(t, st.Dispatch(WithFlow(context.Background(), "flow-7"), &ir.Action{Type: "OUTER"}))

	assert.Equal(t, []string{"flow-7", "flow-7"}, flows)
}

func TestApplyMiddleware_DepthLimit(t *testing.T) {
	loop := func(api API[int]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				if err := api.Dispatch(ctx, a); err != nil {
					return err
				}
				return next(ctx, a)
			}
		}
	}

	st := CreateStore(counter, 0, ApplyMiddlewareWithDepth(3, loop))
	err := st.Dispatch(WithFlow(context.Background(), "flow-loop"), &ir.Action{Type: "LOOP"})
	require.Error(t, err)
	assert.True(t, IsDepthError(err))

	var de *DepthExceededError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "LOOP", de.ActionType)
	assert.Equal(t, 4, de.Depth)
	assert.Equal(t, 3, de.Limit)
	assert.Equal(t, "flow-loop", de.FlowToken)
	assert.Equal(t, `dispatch of "LOOP" exceeded max depth: 4 > 3 (flow=flow-loop)`, de.Error())

	assert.Equal(t, 1, st.GetState(), "nothing reached the reducer")
}

func TestApplyMiddleware_NonPositiveDepthUsesDefault(t *testing.T) {
	loop := func(api API[int]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				return api.Dispatch(ctx, a)
			}
		}
	}

	for _, limit := range []int{0, -1} {
		st := CreateStore(counter, 0, ApplyMiddlewareWithDepth(limit, loop))
		err := st.Dispatch(context.Background(), &ir.Action{Type: "PING"})

		var de *DepthExceededError
		require.ErrorAs(t, err, &de, "limit %d", limit)
		assert.Equal(t, DefaultMaxDepth, de.Limit)
		assert.Equal(t, DefaultMaxDepth+1, de.Depth)
	}
}

func TestApplyMiddleware_DispatchDuringConstruction(t *testing.T) {
	var constructionErr error

	eager := func(api API[int]) func(DispatchFunc) DispatchFunc {
		constructionErr = api.Dispatch(context.Background(), &ir.Action{Type: "TOO_SOON"})
		return func(next DispatchFunc) DispatchFunc { return next }
	}

	st := CreateStore(counter, 0, ApplyMiddleware(eager))

	assert.ErrorIs(t, constructionErr, ErrMiddlewareConstruction)
	assert.Equal(t, 1, st.GetState())

	require.NoError(t, st.Dispatch(context.Background(), &ir.Action{Type: "LATER"}))
	assert.Equal(t, 2, st.GetState())
}

func TestApplyMiddleware_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	failing := func(api API[int]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				return boom
			}
		}
	}

	st := CreateStore(counter, 0, ApplyMiddleware(failing))
	err := st.Dispatch(context.Background(), &ir.Action{Type: "TEST"})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, st.GetState())
}

func TestApplyMiddleware_APIGetState(t *testing.T) {
	var seen []int
	peek := func(api API[int]) func(DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				seen = append(seen, api.GetState())
				return next(ctx, a)
			}
		}
	}

	st := CreateStore(counter, 0, ApplyMiddleware(peek))
	require.NoError(t, st.Dispatch(context.Background(), &ir.Action{Type: "A"}))
	require.NoError(t, st.Dispatch(context.Background(), &ir.Action{Type: "B"}))

	assert.Equal(t, []int{1, 2}, seen)
}

// loggingStore wraps a store and records its name on every dispatch.
type loggingStore struct {
	Store[int]
	name string
	log  *[]string
}

func (s *loggingStore) Dispatch(ctx context.Context, a *ir.Action) error {
	*s.log = append(*s.log, s.name)
	return s.Store.Dispatch(ctx, a)
}

func logging(name string, log *[]string) Enhancer[int] {
	return func(next StoreCreator[int]) StoreCreator[int] {
		return func(reducer Reducer[int], preloaded int) Store[int] {
			return &loggingStore{Store: next(reducer, preloaded), name: name, log: log}
		}
	}
}

func TestCompose_RightToLeft(t *testing.T) {
	var log []string
	st := CreateStore(counter, 0, Compose(logging("f", &log), logging("g", &log)))

	require.NoError(t, st.Dispatch(context.Background(), &ir.Action{Type: "TEST"}))
	assert.Equal(t, []string{"f", "g"}, log, "the first enhancer is outermost")
}

func TestCompose_MiddlewareOutsideEnhancer(t *testing.T) {
	var log []string
	st := CreateStore(counter, 0, Compose(
		ApplyMiddleware(recording("mw", &log)),
		logging("inner", &log),
	))

	require.NoError(t, st.Dispatch(context.Background(), &ir.Action{Type: "TEST"}))
	assert.Equal(t, []string{"mw:TEST", "inner"}, log)
}

func TestCompose_Empty(t *testing.T) {
	st := CreateStore(counter, 0, Compose[int]())
	assert.Equal(t, 1, st.GetState())
}
