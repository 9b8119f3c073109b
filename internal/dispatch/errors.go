package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrReducerDispatch is returned when a reducer dispatches.
	ErrReducerDispatch = errors.New("dispatch: reducers may not dispatch actions")

	// ErrMiddlewareConstruction is returned when a middleware dispatches
	// while the chain is still being built.
	ErrMiddlewareConstruction = errors.New("dispatch: dispatching while constructing middleware is not allowed")

	// ErrNilAction is returned when a nil action reaches the base store.
	ErrNilAction = errors.New("dispatch: nil action")
)

// DepthExceededError is returned when re-entrant dispatch goes deeper than
// the chain allows.
//
// Cycles (a middleware that re-dispatches what it receives) and long linear
// cascades both end here; the dispatch that crossed the limit never enters
// the chain.
type DepthExceededError struct {
	FlowToken  string // Flow of the offending dispatch, if any
	ActionType string // Type of the action that was refused
	Depth      int    // Depth it would have run at
	Limit      int    // Configured limit
}

func (e *DepthExceededError) Error() string {
	if e.FlowToken != "" {
		return fmt.Sprintf("dispatch of %q exceeded max depth: %d > %d (flow=%s)",
			e.ActionType, e.Depth, e.Limit, e.FlowToken)
	}
	return fmt.Sprintf("dispatch of %q exceeded max depth: %d > %d", e.ActionType, e.Depth, e.Limit)
}

// IsDepthError returns true if err is or wraps a DepthExceededError.
func IsDepthError(err error) bool {
	var de *DepthExceededError
	return errors.As(err, &de)
}
