package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/microact/internal/ir"
	"github.com/roach88/microact/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s%s marker=%s outcome=%s\n",
				event.Seq, strings.Repeat("  ", event.Depth), event.Type, event.Marker, event.Outcome)
		}
	}

	return buf.String()
}

// matches reports whether event satisfies the assertion's action and filters.
func matches(event TraceEvent, assertion Assertion) bool {
	if event.Type != assertion.Action {
		return false
	}
	if assertion.Marker != "" && event.Marker.String() != assertion.Marker {
		return false
	}
	if assertion.Outcome != "" && string(event.Outcome) != assertion.Outcome {
		return false
	}
	if assertion.Depth != nil && event.Depth != *assertion.Depth {
		return false
	}
	return true
}

// describe renders the assertion's action and filters.
func describe(assertion Assertion) string {
	var parts []string
	parts = append(parts, "action "+assertion.Action)
	if assertion.Marker != "" {
		parts = append(parts, "marker="+assertion.Marker)
	}
	if assertion.Outcome != "" {
		parts = append(parts, "outcome="+assertion.Outcome)
	}
	if assertion.Depth != nil {
		parts = append(parts, fmt.Sprintf("depth=%d", *assertion.Depth))
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that at least one entry matches.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
// Only the first occurrence of each type counts.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		for _, expected := range assertion.Actions {
			if event.Type == expected && positions[expected] == 0 {
				positions[expected] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that exactly Count entries match.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describe(assertion)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState compares the store state.
func assertFinalState(state int64, assertion Assertion) error {
	if state != *assertion.State {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("state %d", *assertion.State),
			Actual:   fmt.Sprintf("state %d", state),
		}
	}
	return nil
}

// assertOutcomeCount counts journaled outcomes for the flow in the store.
func assertOutcomeCount(ctx context.Context, st *store.Store, flowToken string, assertion Assertion) error {
	counts, err := st.CountOutcomes(ctx, flowToken)
	if err != nil {
		return fmt.Errorf("count outcomes: %w", err)
	}

	got := counts[ir.Outcome(assertion.Outcome)]
	if got != assertion.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d dispatches with outcome %s", assertion.Count, assertion.Outcome),
			Actual:   fmt.Sprintf("%d dispatches", got),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store     *store.Store
	FlowToken string
	Ctx       context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for outcome_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertOutcomeCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: outcome_count requires journal context", i)
			} else {
				err = assertOutcomeCount(actx.Ctx, actx.Store, actx.FlowToken, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
