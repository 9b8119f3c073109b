package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Zero(t, clock.Current())

	got := []int64{clock.Next(), clock.Next(), clock.Next()}
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Equal(t, int64(3), clock.Current())
}

func TestDeterministicClock_Rewind(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Rewind(8)
	assert.Equal(t, int64(9), clock.Next())

	clock.Reset()
	assert.Zero(t, clock.Current())
	assert.Equal(t, int64(1), clock.Next(), "a rewound run repeats the same seqs")
}

func TestDeterministicClock_ConcurrentNextIsUnique(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, calls = 16, 250

	results := make([][]int64, workers)
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for range calls {
				results[w] = append(results[w], clock.Next())
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int64]bool, workers*calls)
	for _, seqs := range results {
		for _, s := range seqs {
			seen[s] = true
		}
	}
	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), clock.Current())
}
