package micro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/ir"
)

// Callback is invoked by the terminal guard for every micro action that
// reaches it. A non-nil error stops the dispatch and is returned to the
// caller; nil lets the still-marked action through to the reducer.
type Callback func(a *ir.Action) error

// DenyMicroError reports a micro action that reached the root of the store
// without being consumed by an authorised middleware.
type DenyMicroError struct {
	ActionType string
}

func (e *DenyMicroError) Error() string {
	return fmt.Sprintf("'%s' is a micro action.", e.ActionType)
}

// IsDenyMicroError returns true if err is or wraps a DenyMicroError.
func IsDenyMicroError(err error) bool {
	var de *DenyMicroError
	return errors.As(err, &de)
}

// DenyCallback is the default guard callback: it refuses every micro action.
func DenyCallback(a *ir.Action) error {
	return &DenyMicroError{ActionType: a.Type}
}

// LogCallback returns a callback that logs the escaped micro action and
// lets it through. Choosing it means micro actions can reach the reducer.
func LogCallback(logger *slog.Logger) Callback {
	if logger == nil {
		logger = slog.Default()
	}
	return func(a *ir.Action) error {
		logger.Warn("micro action reached the reducer", "type", a.Type)
		return nil
	}
}

type denyConfig struct {
	callback Callback
	logger   *slog.Logger
}

// DenyOption configures DenyMicro.
type DenyOption func(*denyConfig)

// WithCallback replaces DenyCallback. A nil callback keeps the default.
func WithCallback(cb Callback) DenyOption {
	return func(c *denyConfig) {
		if cb != nil {
			c.callback = cb
		}
	}
}

// WithLogger sets the logger used to report denied actions.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) DenyOption {
	return func(c *denyConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// DenyMicro returns an enhancer that guards the store's root dispatch.
//
// Every action reaching the guard is checked with IsMicro. For a micro
// action the callback runs first; if it returns an error the action is not
// forwarded and the error is returned, otherwise the action is forwarded
// as is. Non-micro actions are always forwarded.
//
// Place it innermost, after ApplyMiddleware, so it sees what the middleware
// chain lets through.
func DenyMicro[S any](opts ...DenyOption) dispatch.Enhancer[S] {
	cfg := denyConfig{callback: DenyCallback}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return func(next dispatch.StoreCreator[S]) dispatch.StoreCreator[S] {
		return func(reducer dispatch.Reducer[S], preloaded S) dispatch.Store[S] {
			return &guardedStore[S]{
				Store:    next(reducer, preloaded),
				callback: cfg.callback,
				logger:   cfg.logger,
			}
		}
	}
}

// guardedStore is the store returned by DenyMicro.
type guardedStore[S any] struct {
	dispatch.Store[S]
	callback Callback
	logger   *slog.Logger
}

func (s *guardedStore[S]) Dispatch(ctx context.Context, a *ir.Action) error {
	if IsMicro(a) {
		if err := s.callback(a); err != nil {
			s.logger.Debug("micro action denied",
				"type", a.Type,
				"flow", dispatch.FlowFrom(ctx),
				"depth", dispatch.Depth(ctx),
				"error", err,
			)
			return err
		}
	}
	return s.Store.Dispatch(ctx, a)
}
