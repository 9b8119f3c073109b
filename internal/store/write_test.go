package store

import (
	"context"
	"testing"

	"github.com/roach88/microact/internal/ir"
)

func TestWriteDispatch_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := ir.DispatchRecord{
		ID:         "d-1",
		FlowToken:  "flow-abc",
		Seq:        3,
		Depth:      1,
		ActionType: "TEST",
		Marker:     ir.MarkerActive,
		Action: ir.Object{
			"type": ir.String("TEST"),
			"meta": ir.Object{ir.MicroMetaKey: ir.Bool(true)},
		},
		Outcome:       ir.OutcomeDenied,
		Error:         "'TEST' is a micro action.",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}

	if err := s.WriteDispatch(ctx, rec); err != nil {
		t.Fatalf("WriteDispatch() failed: %v", err)
	}

	var marker, actionJSON, outcome, errText string
	var depth int
	err := s.db.QueryRow(`
		SELECT marker, action, outcome, error, depth
		FROM dispatches
		WHERE id = ?
	`, rec.ID).Scan(&marker, &actionJSON, &outcome, &errText, &depth)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if marker != "active" {
		t.Errorf("marker = %q, want %q", marker, "active")
	}
	if outcome != "denied" {
		t.Errorf("outcome = %q, want %q", outcome, "denied")
	}
	if errText != rec.Error {
		t.Errorf("error = %q, want %q", errText, rec.Error)
	}
	if depth != 1 {
		t.Errorf("depth = %d, want 1", depth)
	}

	want := `{"meta":{"@@redux-micro-actions/micro":true},"type":"TEST"}`
	if actionJSON != want {
		t.Errorf("action = %s, want %s", actionJSON, want)
	}
}

func TestWriteDispatch_CanonicalJSON(t *testing.T) {
	s := createTestStore(t)

	rec := createTestRecord("d-1", "flow-abc", "ADD", 1)
	rec.Action = ir.Object{
		"zebra": ir.String("last"),
		"apple": ir.Int(1),
		"type":  ir.String("ADD"),
	}

	if err := s.WriteDispatch(context.Background(), rec); err != nil {
		t.Fatalf("WriteDispatch() failed: %v", err)
	}

	var actionJSON string
	if err := s.db.QueryRow("SELECT action FROM dispatches WHERE id = ?", rec.ID).Scan(&actionJSON); err != nil {
		t.Fatalf("query failed: %v", err)
	}

	want := `{"apple":1,"type":"ADD","zebra":"last"}`
	if actionJSON != want {
		t.Errorf("action = %s, want %s", actionJSON, want)
	}
}

func TestWriteDispatch_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord("d-1", "flow-abc", "TEST", 1)
	for i := 0; i < 3; i++ {
		if err := s.WriteDispatch(ctx, rec); err != nil {
			t.Fatalf("WriteDispatch() #%d failed: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM dispatches").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestWriteDispatch_RejectsUnknownOutcome(t *testing.T) {
	s := createTestStore(t)

	rec := createTestRecord("d-1", "flow-abc", "TEST", 1)
	rec.Outcome = ir.Outcome("exploded")

	if err := s.WriteDispatch(context.Background(), rec); err == nil {
		t.Error("expected CHECK constraint error for unknown outcome")
	}
}

func TestWriteDispatch_RejectsNull(t *testing.T) {
	s := createTestStore(t)

	rec := createTestRecord("d-1", "flow-abc", "TEST", 1)
	rec.Action["missing"] = ir.Null{}

	if err := s.WriteDispatch(context.Background(), rec); err == nil {
		t.Error("expected canonical JSON error for null value")
	}
}
