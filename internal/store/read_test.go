package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/microact/internal/ir"
)

func seedJournal(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	records := []ir.DispatchRecord{
		createTestRecord("b", "flow-1", "ROOT", 1),
		createTestRecord("a", "flow-1", "TEST", 2),
		createTestRecord("c", "flow-2", "ROOT", 3),
		createTestRecord("d", "flow-2", "TEST", 4),
	}
	records[1].Depth = 1
	records[3].Depth = 1
	records[3].Marker = ir.MarkerActive
	records[3].Outcome = ir.OutcomeDenied
	records[3].Error = "'TEST' is a micro action."
	records[2].Outcome = ir.OutcomeDenied
	records[2].Error = "'TEST' is a micro action."

	// Insert out of order; reads must not depend on insertion order.
	for _, i := range []int{3, 1, 0, 2} {
		require.NoError(t, s.WriteDispatch(ctx, records[i]))
	}
}

func TestReadFlow_Ordered(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	recs, err := s.ReadFlow(context.Background(), "flow-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, int64(1), recs[0].Seq)
	assert.Equal(t, "ROOT", recs[0].ActionType)
	assert.Equal(t, int64(2), recs[1].Seq)
	assert.Equal(t, 1, recs[1].Depth)
	assert.Equal(t, ir.Object{"type": ir.String("TEST")}, recs[1].Action)
}

func TestReadFlow_SameSeqOrdersByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDispatch(ctx, createTestRecord("zz", "flow-1", "B", 5)))
	require.NoError(t, s.WriteDispatch(ctx, createTestRecord("aa", "flow-1", "A", 5)))

	recs, err := s.ReadFlow(ctx, "flow-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "aa", recs[0].ID)
	assert.Equal(t, "zz", recs[1].ID)
}

func TestReadFlow_Empty(t *testing.T) {
	s := createTestStore(t)

	recs, err := s.ReadFlow(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestReadFlow_EmptyTokenMatchesNothing(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	recs, err := s.ReadFlow(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	roots, err := s.ReadRoots(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func TestReadFlow_RoundTripsMarkerAndOutcome(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	recs, err := s.ReadFlow(context.Background(), "flow-2")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, ir.MarkerActive, recs[1].Marker)
	assert.Equal(t, ir.OutcomeDenied, recs[1].Outcome)
	assert.Equal(t, "'TEST' is a micro action.", recs[1].Error)
}

func TestReadRoots(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	recs, err := s.ReadRoots(context.Background(), "flow-2")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ROOT", recs[0].ActionType)
}

func TestReadDispatches_Filters(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	byType, err := s.ReadDispatches(ctx, Filter{ActionType: "TEST"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	denied, err := s.ReadDispatches(ctx, Filter{Outcome: ir.OutcomeDenied})
	require.NoError(t, err)
	require.Len(t, denied, 2)
	assert.Equal(t, "c", denied[0].ID)

	all, err := s.ReadDispatches(ctx, Filter{})
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
}

func TestReadDispatch(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	rec, err := s.ReadDispatch(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "flow-2", rec.FlowToken)

	_, err = s.ReadDispatch(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestListFlows(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	flows, err := s.ListFlows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []FlowSummary{
		{FlowToken: "flow-1", FirstSeq: 1, LastSeq: 2, Dispatches: 2, Denied: 0},
		{FlowToken: "flow-2", FirstSeq: 3, LastSeq: 4, Dispatches: 2, Denied: 2},
	}, flows)
}

func TestListFlows_Empty(t *testing.T) {
	s := createTestStore(t)

	flows, err := s.ListFlows(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, flows)
	assert.Empty(t, flows)
}

func TestCountOutcomes(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	all, err := s.CountOutcomes(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[ir.Outcome]int{ir.OutcomeOK: 2, ir.OutcomeDenied: 2}, all)

	one, err := s.CountOutcomes(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, map[ir.Outcome]int{ir.OutcomeOK: 2}, one)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	seedJournal(t, s)
	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)
}
