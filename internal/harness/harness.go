package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/microact/internal/compiler"
	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/ir"
	"github.com/roach88/microact/internal/journal"
	"github.com/roach88/microact/internal/micro"
	"github.com/roach88/microact/internal/store"
	"github.com/roach88/microact/internal/testutil"
)

// Harness builds and drives the store a scenario describes.
type Harness struct {
	scenario *Scenario
	catalog  *compiler.Catalog
	logger   *slog.Logger
	maxDepth int
}

type runConfig struct {
	journal   *store.Store
	catalog   *compiler.Catalog
	logger    *slog.Logger
	flowToken string
	maxDepth  int
}

// Option configures Run and NewStore.
type Option func(*runConfig)

// WithJournal journals into st instead of a fresh in-memory store. The
// logical clock resumes after the last seq already in st.
func WithJournal(st *store.Store) Option {
	return func(c *runConfig) {
		c.journal = st
	}
}

// WithCatalog uses cat instead of loading the scenario's catalog directory.
func WithCatalog(cat *compiler.Catalog) Option {
	return func(c *runConfig) {
		c.catalog = cat
	}
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithMaxDepth sets the re-entrance limit for scenarios that do not set
// max_depth. Defaults to dispatch.DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(c *runConfig) {
		c.maxDepth = n
	}
}

// WithFlowToken overrides the scenario's flow token.
func WithFlowToken(token string) Option {
	return func(c *runConfig) {
		c.flowToken = token
	}
}

func newHarness(scenario *Scenario, cfg runConfig) (*Harness, error) {
	h := &Harness{
		scenario: scenario,
		catalog:  cfg.catalog,
		logger:   cfg.logger,
		maxDepth: cfg.maxDepth,
	}
	if h.maxDepth == 0 {
		h.maxDepth = dispatch.DefaultMaxDepth
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}

	if h.catalog == nil && scenario.CatalogDir() != "" {
		cat, errs := compiler.LoadCatalog(scenario.CatalogDir())
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load catalog %s: %w", scenario.CatalogDir(), errors.Join(errs...))
		}
		h.catalog = cat
	}

	if h.catalog != nil {
		if errs := compiler.ValidateReactions(scenario.Reactions(), h.catalog); len(errs) > 0 {
			return nil, fmt.Errorf("invalid reactions: %w", errs[0])
		}
	}

	return h, nil
}

func collect(opts []Option) runConfig {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewStore builds the scenario's store without running any step. It is not
// journaled unless WithJournal is given.
func NewStore(scenario *Scenario, opts ...Option) (dispatch.Store[int64], error) {
	cfg := collect(opts)
	h, err := newHarness(scenario, cfg)
	if err != nil {
		return nil, err
	}

	var jw journal.Writer
	var clock journal.Sequencer
	if cfg.journal != nil {
		last, err := cfg.journal.LastSeq(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to read journal position: %w", err)
		}
		jw = cfg.journal
		clock = dispatch.NewClockAt(last)
	}
	return h.newStore(jw, clock, testutil.NewFixedFlowGenerator(h.flowToken(cfg))), nil
}

// Run executes a test scenario and returns the result.
//
// Unless WithJournal is given, each scenario runs in a fresh in-memory
// database for isolation, with a deterministic clock and a fixed flow token
// so that the trace is reproducible.
//
// Execution flow:
// 1. Load the catalog and check reactions against it
// 2. Build the store: journal, scenario middleware, terminal guard
// 3. Dispatch every step and check its expectation
// 4. Read the trace back from the journal and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := collect(opts)
	h, err := newHarness(scenario, cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	st := cfg.journal
	var clock journal.Sequencer
	var start int64
	if st == nil {
		mem, err := store.Open(store.MemoryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer mem.Close()
		st = mem
		clock = testutil.NewDeterministicClock()
	} else {
		start, err = st.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal position: %w", err)
		}
		clock = dispatch.NewClockAt(start)
	}

	flowToken := h.flowToken(cfg)
	s := h.newStore(st, clock, testutil.NewFixedFlowGenerator(flowToken))

	result := NewResult()
	result.FlowToken = flowToken
	result.Warnings = compiler.AnalyzeCycles(scenario.Reactions())

	for i, step := range scenario.Steps {
		a, err := h.build(step.Dispatch, step.Payload, step.Micro)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		derr := s.Dispatch(ctx, a)
		h.checkStep(i, step, derr, s.GetState(), result)

		h.logger.Info("step dispatched",
			"step", i,
			"type", step.Dispatch,
			"outcome", journal.Classify(derr),
			"state", s.GetState(),
		)
	}
	result.State = s.GetState()

	records, err := st.ReadFlow(ctx, flowToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, rec := range records {
		if rec.Seq > start {
			result.Trace = append(result.Trace, traceEventFromRecord(rec))
		}
	}

	actx := &AssertionContext{
		Store:     st,
		FlowToken: flowToken,
		Ctx:       ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) flowToken(cfg runConfig) string {
	if cfg.flowToken != "" {
		return cfg.flowToken
	}
	return testutil.NewFixedFlowGenerator(h.scenario.FlowToken).Generate()
}

// newStore assembles Compose(ApplyMiddleware(journal, chain...), guard).
// A nil w leaves the chain unjournaled.
func (h *Harness) newStore(w journal.Writer, clock journal.Sequencer, flows dispatch.FlowTokenGenerator) dispatch.Store[int64] {
	var mws []dispatch.Middleware[int64]
	if w != nil {
		mws = append(mws, journal.Middleware[int64](w,
			journal.WithClock(clock),
			journal.WithFlowGenerator(flows),
			journal.WithLogger(h.logger),
		))
	}
	for _, spec := range h.scenario.Middleware {
		mw := h.reactor(spec)
		if spec.AllowMicro {
			mw = micro.AllowMicro(mw)
		}
		mws = append(mws, mw)
	}

	maxDepth := h.scenario.MaxDepth
	if maxDepth == 0 {
		maxDepth = h.maxDepth
	}

	enhancers := []dispatch.Enhancer[int64]{dispatch.ApplyMiddlewareWithDepth(maxDepth, mws...)}
	switch h.scenario.Guard {
	case "", GuardDeny:
		enhancers = append(enhancers, micro.DenyMicro[int64](micro.WithLogger(h.logger)))
	case GuardLog:
		enhancers = append(enhancers, micro.DenyMicro[int64](
			micro.WithCallback(micro.LogCallback(h.logger)),
			micro.WithLogger(h.logger),
		))
	}

	return dispatch.CreateStore(reducerFor(h.scenario.Reducer), h.scenario.Reducer.Initial, enhancers...)
}

// reactor turns a middleware description into a middleware. For each
// incoming action it runs the matching reactions in order through the store
// API, then continues down the chain unless a reaction consumed the action.
func (h *Harness) reactor(spec MiddlewareSpec) dispatch.Middleware[int64] {
	return func(api dispatch.API[int64]) func(dispatch.DispatchFunc) dispatch.DispatchFunc {
		return func(next dispatch.DispatchFunc) dispatch.DispatchFunc {
			return func(ctx context.Context, a *ir.Action) error {
				if a == nil {
					return next(ctx, a)
				}

				consumed := false
				for _, r := range spec.Reactions {
					if r.When != a.Type {
						continue
					}
					out, err := h.build(r.Emit, r.Payload, r.Micro)
					if err != nil {
						return fmt.Errorf("middleware %s: %w", spec.Name, err)
					}
					if err := api.Dispatch(ctx, out); err != nil {
						return err
					}
					consumed = consumed || r.Consume
				}

				if consumed {
					return nil
				}
				return next(ctx, a)
			}
		}
	}
}

// build creates a fresh action. With a catalog the type must be declared
// and the payload must match; micro types come back tagged either way.
func (h *Harness) build(actionType string, payload map[string]any, tag bool) (*ir.Action, error) {
	obj, err := convertPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", actionType, err)
	}

	var a *ir.Action
	if h.catalog != nil {
		a, err = h.catalog.Build(actionType, obj)
		if err != nil {
			return nil, err
		}
	} else {
		a = ir.NewAction(actionType, obj)
	}

	if tag {
		micro.Tag(a)
	}
	return a, nil
}

// checkStep compares a dispatch result against the step's expectation.
func (h *Harness) checkStep(i int, step Step, err error, state int64, result *Result) {
	var want Expect
	if step.Expect != nil {
		want = *step.Expect
	}

	switch {
	case err == nil && want.Error != "":
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %q, got none", i, step.Dispatch, want.Error))
	case err != nil && want.Error == "":
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Dispatch, err))
	case err != nil && err.Error() != want.Error:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %q, got %q", i, step.Dispatch, want.Error, err.Error()))
	}

	if want.Outcome != "" {
		if got := journal.Classify(err); got != ir.Outcome(want.Outcome) {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s", i, step.Dispatch, want.Outcome, got))
		}
	}

	if want.State != nil && state != *want.State {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected state %d, got %d", i, step.Dispatch, *want.State, state))
	}
}

// reducerFor returns the scenario reducer.
func reducerFor(spec ReducerSpec) dispatch.Reducer[int64] {
	if spec.Kind == ReducerSum {
		return func(state int64, a *ir.Action) int64 {
			if n, ok := a.Payload["n"].(ir.Int); ok {
				return state + int64(n)
			}
			return state + 1
		}
	}
	return func(state int64, _ *ir.Action) int64 {
		return state + 1
	}
}

// convertPayload converts YAML-decoded fields to an ir.Object. Nulls and
// floats are rejected here rather than when the dispatch is journaled.
func convertPayload(payload map[string]any) (ir.Object, error) {
	obj, err := ir.ObjectFromGo(payload)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	if _, err := ir.MarshalCanonical(obj); err != nil {
		return nil, err
	}
	return obj, nil
}
