package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSeatLabels(t *testing.T) {
	t.Run("capacity 25 spreads three per row", func(t *testing.T) {
		labels := GenerateSeatLabels(25)
		require.Len(t, labels, 25)
		assert.Equal(t, []string{"A1", "A2", "A3", "B1"}, labels[:4])
		assert.Equal(t, "I1", labels[24])
	})

	t.Run("capacity 100 fills ten rows of ten", func(t *testing.T) {
		labels := GenerateSeatLabels(100)
		require.Len(t, labels, 100)
		assert.Equal(t, "A10", labels[9])
		assert.Equal(t, "J10", labels[99])
	})

	t.Run("small capacity uses one seat per row", func(t *testing.T) {
		assert.Equal(t, []string{"A1", "B1", "C1"}, GenerateSeatLabels(3))
	})

	t.Run("non-positive capacity has no seats", func(t *testing.T) {
		assert.Empty(t, GenerateSeatLabels(0))
		assert.Empty(t, GenerateSeatLabels(-4))
	})

	t.Run("labels are unique and deterministic", func(t *testing.T) {
		first := GenerateSeatLabels(57)
		second := GenerateSeatLabels(57)
		assert.Equal(t, first, second)

		seen := make(map[string]bool, len(first))
		for _, label := range first {
			assert.False(t, seen[label], "duplicate label %s", label)
			seen[label] = true
		}
	})
}

func TestRowSize(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 10: 1, 11: 2, 25: 3, 100: 10, 101: 11}
	for capacity, want := range cases {
		assert.Equal(t, want, RowSize(capacity), "capacity %d", capacity)
	}
}

func TestGridRows(t *testing.T) {
	rows := GridRows(25)
	require.Len(t, rows, 9)
	assert.Equal(t, []string{"A1", "A2", "A3"}, rows[0])
	assert.Equal(t, []string{"I1"}, rows[8])
}
