package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/microact/internal/ir"
)

const dispatchColumns = `id, flow_token, seq, depth, action_type, marker, action, outcome, error, engine_version, ir_version`

// Filter narrows ReadDispatches. Zero fields match everything.
type Filter struct {
	FlowToken  string
	ActionType string
	Outcome    ir.Outcome
	// RootsOnly keeps depth-0 dispatches only.
	RootsOnly bool
}

// ReadFlow returns all dispatch records for a flow token.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if no records exist for the flow token,
// including for an empty token.
func (s *Store) ReadFlow(ctx context.Context, flowToken string) ([]ir.DispatchRecord, error) {
	if flowToken == "" {
		return []ir.DispatchRecord{}, nil
	}
	return s.ReadDispatches(ctx, Filter{FlowToken: flowToken})
}

// ReadRoots returns the depth-0 dispatches of a flow in seq order.
// Re-dispatching them into a fresh store reproduces the flow.
func (s *Store) ReadRoots(ctx context.Context, flowToken string) ([]ir.DispatchRecord, error) {
	if flowToken == "" {
		return []ir.DispatchRecord{}, nil
	}
	return s.ReadDispatches(ctx, Filter{FlowToken: flowToken, RootsOnly: true})
}

// ReadDispatches returns dispatch records matching f with deterministic ordering.
func (s *Store) ReadDispatches(ctx context.Context, f Filter) ([]ir.DispatchRecord, error) {
	var where []string
	var args []any
	if f.FlowToken != "" {
		where = append(where, "flow_token = ?")
		args = append(args, f.FlowToken)
	}
	if f.ActionType != "" {
		where = append(where, "action_type = ?")
		args = append(args, f.ActionType)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if f.RootsOnly {
		where = append(where, "depth = 0")
	}

	query := "SELECT " + dispatchColumns + " FROM dispatches"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	records := []ir.DispatchRecord{}
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}

	return records, nil
}

// ReadDispatch retrieves a single dispatch record by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadDispatch(ctx context.Context, id string) (ir.DispatchRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+dispatchColumns+" FROM dispatches WHERE id = ?", id)
	return scanDispatch(row)
}

// FlowSummary describes one flow in the journal.
type FlowSummary struct {
	FlowToken  string `json:"flow_token"`
	FirstSeq   int64  `json:"first_seq"`
	LastSeq    int64  `json:"last_seq"`
	Dispatches int    `json:"dispatches"`
	Denied     int    `json:"denied"`
}

// ListFlows returns one summary per flow token, ordered by first seq.
func (s *Store) ListFlows(ctx context.Context) ([]FlowSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_token,
		       MIN(seq),
		       MAX(seq),
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'denied' THEN 1 ELSE 0 END)
		FROM dispatches
		GROUP BY flow_token
		ORDER BY MIN(seq) ASC, flow_token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	flows := []FlowSummary{}
	for rows.Next() {
		var f FlowSummary
		if err := rows.Scan(&f.FlowToken, &f.FirstSeq, &f.LastSeq, &f.Dispatches, &f.Denied); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		flows = append(flows, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}

	return flows, nil
}

// CountOutcomes returns the number of dispatches per outcome for a flow.
// An empty flow token counts the whole journal. Outcomes with no rows are
// absent from the map.
func (s *Store) CountOutcomes(ctx context.Context, flowToken string) (map[ir.Outcome]int, error) {
	query := "SELECT outcome, COUNT(*) FROM dispatches"
	var args []any
	if flowToken != "" {
		query += " WHERE flow_token = ?"
		args = append(args, flowToken)
	}
	query += " GROUP BY outcome"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[ir.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		counts[ir.Outcome(outcome)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return counts, nil
}

// LastSeq returns the highest seq number in the journal, or 0 when empty.
// Used to resume the logical clock when appending to an existing journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM dispatches`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDispatch(row scanner) (ir.DispatchRecord, error) {
	var rec ir.DispatchRecord
	var marker, actionJSON, outcome string

	err := row.Scan(
		&rec.ID,
		&rec.FlowToken,
		&rec.Seq,
		&rec.Depth,
		&rec.ActionType,
		&marker,
		&actionJSON,
		&outcome,
		&rec.Error,
		&rec.EngineVersion,
		&rec.IRVersion,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return ir.DispatchRecord{}, err
		}
		return ir.DispatchRecord{}, fmt.Errorf("scan dispatch: %w", err)
	}

	rec.Marker, err = ir.ParseMarker(marker)
	if err != nil {
		return ir.DispatchRecord{}, fmt.Errorf("scan dispatch %s: %w", rec.ID, err)
	}
	rec.Outcome = ir.Outcome(outcome)

	rec.Action, err = unmarshalAction(actionJSON)
	if err != nil {
		return ir.DispatchRecord{}, fmt.Errorf("scan dispatch %s: %w", rec.ID, err)
	}

	return rec, nil
}
