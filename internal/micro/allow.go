package micro

import (
	"context"

	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/ir"
)

// AllowMicro authorises mw to consume micro actions.
//
// mw receives a store API whose Dispatch clears the micro marker before
// forwarding to the real API, so anything mw dispatches re-enters the store
// as an ordinary action. next and the incoming action reach mw unchanged;
// whatever mw passes to next keeps its marker.
func AllowMicro[S any](mw dispatch.Middleware[S]) dispatch.Middleware[S] {
	return func(api dispatch.API[S]) func(dispatch.DispatchFunc) dispatch.DispatchFunc {
		return mw(allowedAPI[S]{API: api})
	}
}

// allowedAPI is the store view handed to an authorised middleware.
type allowedAPI[S any] struct {
	dispatch.API[S]
}

func (a allowedAPI[S]) Dispatch(ctx context.Context, action *ir.Action) error {
	return a.API.Dispatch(ctx, Clear(action))
}
