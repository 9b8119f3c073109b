package journal

import (
	"context"
	"fmt"

	"github.com/roach88/microact/internal/dispatch"
	"github.com/roach88/microact/internal/ir"
)

// RootReader reads the root dispatches of a recorded flow.
// *store.Store satisfies it.
type RootReader interface {
	ReadRoots(ctx context.Context, flowToken string) ([]ir.DispatchRecord, error)
}

// Mismatch is a replayed root whose outcome differs from the recording.
type Mismatch struct {
	Seq        int64      `json:"seq"`
	ActionType string     `json:"action_type"`
	Recorded   ir.Outcome `json:"recorded"`
	Replayed   ir.Outcome `json:"replayed"`
	Error      string     `json:"error,omitempty"`
}

// ReplayResult summarises a replay.
type ReplayResult struct {
	FlowToken  string     `json:"flow_token"`
	Replayed   int        `json:"replayed"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Deterministic reports whether every root reproduced its recorded outcome.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay re-dispatches the root actions of flowToken, in seq order, into d.
// Nested dispatches are not replayed: the middleware chain behind d
// re-creates them. Each root's outcome is compared with the recording.
// Give ctx a flow token (dispatch.WithFlow) to keep the replayed roots in a
// single flow.
//
// A dispatch error is not a replay error; it is compared like any other
// outcome. Replay only fails if the journal cannot be read or decoded.
func Replay(ctx context.Context, r RootReader, flowToken string, d dispatch.Dispatcher) (ReplayResult, error) {
	roots, err := r.ReadRoots(ctx, flowToken)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", flowToken, err)
	}
	if len(roots) == 0 {
		return ReplayResult{}, fmt.Errorf("replay %s: flow not found", flowToken)
	}

	result := ReplayResult{FlowToken: flowToken, Mismatches: []Mismatch{}}
	for _, rec := range roots {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		a, err := ir.ActionFromWire(rec.Action)
		if err != nil {
			return result, fmt.Errorf("replay %s seq %d: %w", flowToken, rec.Seq, err)
		}

		derr := d.Dispatch(ctx, a)
		result.Replayed++

		if got := Classify(derr); got != rec.Outcome {
			m := Mismatch{
				Seq:        rec.Seq,
				ActionType: rec.ActionType,
				Recorded:   rec.Outcome,
				Replayed:   got,
			}
			if derr != nil {
				m.Error = derr.Error()
			}
			result.Mismatches = append(result.Mismatches, m)
		}
	}
	return result, nil
}
