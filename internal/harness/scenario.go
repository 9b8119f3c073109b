package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/microact/internal/compiler"
	"github.com/roach88/microact/internal/ir"
)

// Scenario defines a micro action test scenario.
// It describes a store (reducer, middleware chain, guard), a sequence of
// root dispatches with expectations, and assertions over the journal trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// FlowToken is the fixed flow token shared by every root dispatch.
	// Defaults to testutil.DefaultFlowToken.
	FlowToken string `yaml:"flow_token,omitempty"`

	// Catalog is an optional CUE catalog directory, relative to the
	// scenario file. When set, every dispatched and emitted type must be
	// declared there and payloads are checked against it.
	Catalog string `yaml:"catalog,omitempty"`

	// Reducer selects the state reducer. Defaults to a counter.
	Reducer ReducerSpec `yaml:"reducer,omitempty"`

	// MaxDepth limits re-entrant dispatch. 0 uses dispatch.DefaultMaxDepth;
	// negative values are rejected.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Guard selects the terminal guard: "deny" (default), "log" or "none".
	Guard string `yaml:"guard,omitempty"`

	// Middleware is the chain, outermost first.
	Middleware []MiddlewareSpec `yaml:"middleware"`

	// Steps are dispatched at the root of the store, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, outcome_count
	Assertions []Assertion `yaml:"assertions"`

	// baseDir is the directory of the scenario file.
	baseDir string
}

// ReducerSpec configures the scenario reducer.
type ReducerSpec struct {
	// Kind is "counter" (add 1 per reduced action) or "sum" (add the
	// integer payload field "n", or 1 when it is missing).
	Kind string `yaml:"kind,omitempty"`

	// Initial is the preloaded state.
	Initial int64 `yaml:"initial,omitempty"`
}

// MiddlewareSpec describes one middleware in the chain.
type MiddlewareSpec struct {
	// Name identifies the middleware in errors and cycle warnings.
	Name string `yaml:"name"`

	// AllowMicro wraps the middleware with micro.AllowMicro.
	AllowMicro bool `yaml:"allow_micro,omitempty"`

	// Reactions run in order for every matching action.
	Reactions []ReactionSpec `yaml:"reactions,omitempty"`
}

// ReactionSpec dispatches Emit through the store API when When passes by.
type ReactionSpec struct {
	// When is the triggering action type.
	When string `yaml:"when"`

	// Emit is the action type dispatched in response.
	Emit string `yaml:"emit"`

	// Micro tags the emitted action.
	Micro bool `yaml:"micro,omitempty"`

	// Payload holds the emitted action's fields.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Consume stops the trigger: next is not called after the reaction.
	Consume bool `yaml:"consume,omitempty"`
}

// Step is one root dispatch.
type Step struct {
	// Dispatch is the action type.
	Dispatch string `yaml:"dispatch"`

	// Payload holds the action's fields.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Micro tags the action before dispatch.
	Micro bool `yaml:"micro,omitempty"`

	// Expect validates the dispatch result. If nil, the dispatch must
	// succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected result of a step.
type Expect struct {
	// State is the expected state after the dispatch.
	State *int64 `yaml:"state,omitempty"`

	// Error is the expected error message. Empty means no error.
	Error string `yaml:"error,omitempty"`

	// Outcome is the expected journal outcome: ok, denied or failed.
	Outcome string `yaml:"outcome,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an entry matches action and the optional filters
	// - "trace_order": actions appear in the given order
	// - "trace_count": exactly Count entries match action and filters
	// - "final_state": the store state equals State
	// - "outcome_count": the journal holds exactly Count dispatches of the
	//   flow with Outcome
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Marker filters on the marker at entry: absent, active or cleared.
	Marker string `yaml:"marker,omitempty"`

	// Outcome filters on the journal outcome: ok, denied or failed.
	Outcome string `yaml:"outcome,omitempty"`

	// Depth filters on the re-entrance depth.
	Depth *int `yaml:"depth,omitempty"`

	// Count is the expected number of matches (trace_count, outcome_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// State is the expected final state (final_state).
	State *int64 `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertOutcomeCount  = "outcome_count"
)

// Guard modes.
const (
	GuardDeny = "deny"
	GuardLog  = "log"
	GuardNone = "none"
)

// Reducer kinds.
const (
	ReducerCounter = "counter"
	ReducerSum     = "sum"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. baseDir resolves a relative catalog
// path.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.baseDir = baseDir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// CatalogDir returns the catalog directory resolved against the scenario
// file, or "" if the scenario has none.
func (s *Scenario) CatalogDir() string {
	if s.Catalog == "" {
		return ""
	}
	if filepath.IsAbs(s.Catalog) || s.baseDir == "" {
		return s.Catalog
	}
	return filepath.Join(s.baseDir, s.Catalog)
}

// Reactions flattens the middleware reactions for static analysis.
func (s *Scenario) Reactions() []compiler.Reaction {
	var out []compiler.Reaction
	for _, mw := range s.Middleware {
		for _, r := range mw.Reactions {
			out = append(out, compiler.Reaction{Middleware: mw.Name, When: r.When, Emit: r.Emit})
		}
	}
	return out
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", s.MaxDepth)
	}

	switch s.Guard {
	case "", GuardDeny, GuardLog, GuardNone:
	default:
		return fmt.Errorf("unknown guard %q (want deny, log or none)", s.Guard)
	}

	switch s.Reducer.Kind {
	case "", ReducerCounter, ReducerSum:
	default:
		return fmt.Errorf("unknown reducer %q (want counter or sum)", s.Reducer.Kind)
	}

	seen := make(map[string]bool, len(s.Middleware))
	for i, mw := range s.Middleware {
		if mw.Name == "" {
			return fmt.Errorf("middleware[%d]: name is required", i)
		}
		if seen[mw.Name] {
			return fmt.Errorf("middleware[%d]: duplicate name %q", i, mw.Name)
		}
		seen[mw.Name] = true
		for j, r := range mw.Reactions {
			if err := checkPayloadKeys(r.Payload); err != nil {
				return fmt.Errorf("middleware.%s.reactions[%d]: %w", mw.Name, j, err)
			}
		}
	}
	if errs := compiler.ValidateReactions(s.Reactions(), nil); len(errs) > 0 {
		return errs[0]
	}

	for i, step := range s.Steps {
		if step.Dispatch == "" {
			return fmt.Errorf("steps[%d]: dispatch is required", i)
		}
		if err := checkPayloadKeys(step.Payload); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Outcome != "" {
			if err := checkOutcome(step.Expect.Outcome); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// checkPayloadKeys rejects fields that collide with the wire envelope.
func checkPayloadKeys(payload map[string]any) error {
	for _, reserved := range []string{"type", "meta"} {
		if _, ok := payload[reserved]; ok {
			return fmt.Errorf("payload field %q is reserved", reserved)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.State == nil {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Marker != "" {
		if _, err := ir.ParseMarker(a.Marker); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}
	if a.Outcome != "" {
		if err := checkOutcome(a.Outcome); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}

	return nil
}
