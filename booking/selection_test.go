package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showtimedb-cli/model"
)

func testShow(capacity int, price float64) model.ShowWithVenue {
	return model.ShowWithVenue{
		Show:    model.Show{ID: "show-1", MovieID: "movie-1", ScreenID: "screen-1", Price: price},
		Screen:  model.Screen{ID: "screen-1", Name: "Screen 1", Capacity: capacity},
		Theater: model.Theater{ID: "theater-1", Name: "Downtown"},
	}
}

func TestSelectionStatus(t *testing.T) {
	sel := NewSelection(testShow(25, 10), []string{"A1", "B2", "Z9"})

	assert.Equal(t, SeatBooked, sel.Status("A1"))
	assert.Equal(t, SeatBooked, sel.Status("B2"))
	assert.Equal(t, SeatAvailable, sel.Status("A2"))
	assert.Equal(t, SeatUnavailable, sel.Status("Z9"))
	assert.Equal(t, []string{"Z9"}, sel.Unplaced())
	assert.Equal(t, 2, sel.BookedCount())
	assert.Equal(t, 23, sel.AvailableCount())
}

func TestSelectionToggle(t *testing.T) {
	t.Run("booked seats cannot be selected", func(t *testing.T) {
		sel := NewSelection(testShow(25, 10), []string{"A1"})
		assert.False(t, sel.Toggle("A1"))
		assert.Equal(t, SeatBooked, sel.Status("A1"))
		assert.Zero(t, sel.Count())
	})

	t.Run("labels outside the layout are ignored", func(t *testing.T) {
		sel := NewSelection(testShow(25, 10), nil)
		assert.False(t, sel.Toggle("K1"))
		assert.Zero(t, sel.Count())
	})

	t.Run("toggling twice restores the selection", func(t *testing.T) {
		sel := NewSelection(testShow(25, 10), nil)
		require.True(t, sel.Toggle("A1"))
		require.True(t, sel.Toggle("C2"))
		before := sel.Selected()

		require.True(t, sel.Toggle("B3"))
		require.True(t, sel.Toggle("B3"))
		assert.ElementsMatch(t, before, sel.Selected())
		assert.Equal(t, SeatAvailable, sel.Status("B3"))
	})

	t.Run("selected keeps pick order", func(t *testing.T) {
		sel := NewSelection(testShow(25, 10), nil)
		sel.Toggle("C1")
		sel.Toggle("A1")
		sel.Toggle("B1")
		sel.Toggle("A1")
		assert.Equal(t, []string{"C1", "B1"}, sel.Selected())
	})
}

func TestSelectionTotal(t *testing.T) {
	sel := NewSelection(testShow(25, 12.50), nil)
	assert.False(t, sel.CanCheckout())
	assert.Zero(t, sel.Total())

	for _, label := range []string{"A1", "A2", "B1"} {
		assert.True(t, sel.Toggle(label), label)
	}
	assert.Equal(t, []string{"A1", "A2", "B1"}, sel.Selected())
	assert.True(t, sel.CanCheckout())
	assert.InDelta(t, 37.50, sel.Total(), 1e-9)

	sel.Clear()
	assert.Zero(t, sel.Count())
	assert.Equal(t, SeatAvailable, sel.Status("A1"))
}
