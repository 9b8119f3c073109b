package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/microact/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a dispatch record with minimal required fields.
func createTestRecord(id, flowToken, actionType string, seq int64) ir.DispatchRecord {
	return ir.DispatchRecord{
		ID:            id,
		FlowToken:     flowToken,
		Seq:           seq,
		ActionType:    actionType,
		Marker:        ir.MarkerAbsent,
		Action:        ir.Object{"type": ir.String(actionType)},
		Outcome:       ir.OutcomeOK,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}
