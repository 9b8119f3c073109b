package store

import (
	"context"
	"fmt"

	"github.com/roach88/microact/internal/ir"
)

// WriteDispatch inserts a dispatch record into the journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// Other constraint violations (e.g., an unknown outcome) still return errors.
//
// The record's Action is serialized to canonical JSON per RFC 8785.
func (s *Store) WriteDispatch(ctx context.Context, rec ir.DispatchRecord) error {
	actionJSON, err := marshalAction(rec.Action)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(id, flow_token, seq, depth, action_type, marker, action, outcome, error, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.FlowToken,
		rec.Seq,
		rec.Depth,
		rec.ActionType,
		rec.Marker.String(),
		actionJSON,
		string(rec.Outcome),
		rec.Error,
		rec.EngineVersion,
		rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	return nil
}
