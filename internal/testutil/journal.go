package testutil

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/roach88/microact/internal/ir"
)

// RecordingWriter is an in-memory journal.Writer.
//
// Records are kept in write order, which is post-order: a nested dispatch
// is written before the dispatch that triggered it. Use Ordered for seq
// order.
type RecordingWriter struct {
	mu      sync.Mutex
	records []ir.DispatchRecord
	// Err, when set, is returned from every write and nothing is recorded.
	Err error
}

// WriteDispatch records rec.
func (w *RecordingWriter) WriteDispatch(_ context.Context, rec ir.DispatchRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.records = append(w.records, rec)
	return nil
}

// Written returns a copy of the records in write order.
func (w *RecordingWriter) Written() []ir.DispatchRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.records)
}

// Ordered returns a copy of the records sorted by seq, then id.
func (w *RecordingWriter) Ordered() []ir.DispatchRecord {
	out := w.Written()
	slices.SortFunc(out, func(a, b ir.DispatchRecord) int {
		if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Types returns the action types of the records in seq order.
func (w *RecordingWriter) Types() []string {
	recs := w.Ordered()
	types := make([]string, len(recs))
	for i, r := range recs {
		types[i] = r.ActionType
	}
	return types
}
