package journal

import (
	"context"
	"log/slog"

	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/ir"
	"github.com/roach88/microact/internal/micro"
)

// Writer persists dispatch records. *store.Store satisfies it.
type Writer interface {
	WriteDispatch(ctx context.Context, rec ir.DispatchRecord) error
}

// Sequencer hands out logical sequence numbers.
// *dispatch.Clock and *testutil.DeterministicClock satisfy it.
type Sequencer interface {
	Next() int64
}

type config struct {
	clock  Sequencer
	flows  dispatch.FlowTokenGenerator
	logger *slog.Logger
}

// Option configures Middleware.
type Option func(*config)

// WithClock sets the sequencer used to stamp records.
// Defaults to a fresh dispatch.Clock.
func WithClock(c Sequencer) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithFlowGenerator sets the generator for root dispatch flow tokens.
// Defaults to dispatch.UUIDv7Generator.
func WithFlowGenerator(g dispatch.FlowTokenGenerator) Option {
	return func(cfg *config) {
		cfg.flows = g
	}
}

// WithLogger sets the logger for journal failures.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// Middleware returns a middleware that writes one ir.DispatchRecord to w
// per dispatch. Root dispatches without a flow token in their context get a
// new one; nested dispatches inherit it.
func Middleware[S any](w Writer, opts ...Option) dispatch.Middleware[S] {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = dispatch.NewClock()
	}
	if cfg.flows == nil {
		cfg.flows = dispatch.UUIDv7Generator{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return func(dispatch.API[S]) func(dispatch.DispatchFunc) dispatch.DispatchFunc {
		return func(next dispatch.DispatchFunc) dispatch.DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				if a == nil {
					return next(ctx, a)
				}

				flow := dispatch.FlowFrom(ctx)
				if flow == "" {
					flow = cfg.flows.Generate()
					ctx = dispatch.WithFlow(ctx, flow)
				}

				// Snapshot before next: the chain may clear the marker.
				rec := ir.DispatchRecord{
					FlowToken:     flow,
					Seq:           cfg.clock.Next(),
					Depth:         dispatch.Depth(ctx),
					ActionType:    a.Type,
					Marker:        a.Micro,
					Action:        a.Wire(),
					EngineVersion: ir.EngineVersion,
					IRVersion:     ir.IRVersion,
				}
				id, idErr := ir.DispatchID(rec.FlowToken, rec.Seq, a)

				err := next(ctx, a)

				rec.Outcome = Classify(err)
				if err != nil {
					rec.Error = err.Error()
				}

				if idErr != nil {
					cfg.logger.Warn("dispatch not journaled",
						"flow", flow,
						"seq", rec.Seq,
						"type", a.Type,
						"error", idErr,
					)
					return err
				}
				rec.ID = id

				if werr := w.WriteDispatch(ctx, rec); werr != nil {
					cfg.logger.Warn("journal write failed",
						"flow", flow,
						"seq", rec.Seq,
						"type", a.Type,
						"error", werr,
					)
				}
				return err
			}
		}
	}
}

// Classify maps a dispatch result to its journal outcome.
func Classify(err error) ir.Outcome {
	switch {
	case err == nil:
		return ir.OutcomeOK
	case micro.IsDenyMicroError(err):
		return ir.OutcomeDenied
	default:
		return ir.OutcomeFailed
	}
}
