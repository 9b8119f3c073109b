package harness

import (
	"fmt"

	"github.com/roach88/microact/internal/compiler"
	"github.com/roach88/microact/internal/ir"
)

// TraceEvent is one journaled dispatch, as seen by assertions and golden
// files.
type TraceEvent struct {
	Seq     int64      `json:"seq"`
	Depth   int        `json:"depth"`
	Type    string     `json:"type"`
	Marker  ir.Marker  `json:"marker"`
	Outcome ir.Outcome `json:"outcome"`
	Error   string     `json:"error,omitempty"`
}

// traceEventFromRecord projects a journal record onto a TraceEvent.
func traceEventFromRecord(rec ir.DispatchRecord) TraceEvent {
	return TraceEvent{
		Seq:     rec.Seq,
		Depth:   rec.Depth,
		Type:    rec.ActionType,
		Marker:  rec.Marker,
		Outcome: rec.Outcome,
		Error:   rec.Error,
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every journaled dispatch in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final store state.
	State int64 `json:"state"`

	// FlowToken is the flow every root dispatch ran under.
	FlowToken string `json:"flow_token"`

	// Warnings lists potential dispatch cycles among the reactions.
	// They do not fail the scenario.
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Warnings: []compiler.CycleWarning{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func checkOutcome(s string) error {
	switch ir.Outcome(s) {
	case ir.OutcomeOK, ir.OutcomeDenied, ir.OutcomeFailed:
		return nil
	}
	return fmt.Errorf("unknown outcome %q (want ok, denied or failed)", s)
}
