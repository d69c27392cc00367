package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showtimedb-cli/model"
)

var testMovie = model.Movie{ID: "movie-1", Title: "Arrival"}

func flowAtSeats(t *testing.T, booked ...string) *Flow {
	t.Helper()
	f := NewFlow()
	require.NoError(t, f.SelectMovie(testMovie))
	outcome, err := f.SelectShow(testShow(25, 12.50), true)
	require.NoError(t, err)
	require.Equal(t, Advanced, outcome)
	require.NoError(t, f.LoadSeats(booked))
	return f
}

func TestFlowHappyPath(t *testing.T) {
	f := flowAtSeats(t, "A1")
	assert.Equal(t, StepSeatSelect, f.Step())

	assert.True(t, f.Toggle("A2"))
	assert.True(t, f.Toggle("A3"))
	assert.True(t, f.Toggle("B1"))
	require.NoError(t, f.Checkout())
	assert.Equal(t, StepConfirmation, f.Step())

	conf := f.Confirmation()
	assert.Equal(t, []string{"A2", "A3", "B1"}, conf.Seats)
	assert.InDelta(t, 37.50, conf.Amount, 1e-9)
	assert.Equal(t, model.PaymentCard, conf.Method)

	require.NoError(t, f.SetPaymentMethod(model.PaymentUPI))
	req, err := f.BeginSubmit()
	require.NoError(t, err)
	assert.Equal(t, model.ID("show-1"), req.ShowID)
	assert.Equal(t, []string{"A2", "A3", "B1"}, req.SeatLabels)
	assert.Equal(t, model.PaymentUPI, req.Method)

	f.SubmitSucceeded(model.Booking{ID: "b-1"})
	assert.True(t, f.Completed())
	assert.Equal(t, model.ID("b-1"), f.Booking().ID)

	require.NoError(t, f.Complete())
	assert.Equal(t, StepCatalog, f.Step())
	assert.Nil(t, f.Selection())
	assert.False(t, f.Completed())
	assert.True(t, f.Movie().ID.IsZero())
}

func TestFlowEmptyCheckout(t *testing.T) {
	f := flowAtSeats(t)
	err := f.Checkout()
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Equal(t, StepSeatSelect, f.Step())
}

func TestFlowCheckoutBeforeSeatsLoad(t *testing.T) {
	f := NewFlow()
	require.NoError(t, f.SelectMovie(testMovie))
	_, err := f.SelectShow(testShow(25, 10), true)
	require.NoError(t, err)

	assert.ErrorIs(t, f.Checkout(), ErrSeatsNotLoaded)
	assert.False(t, f.Toggle("A1"))
}

func TestFlowAuthGate(t *testing.T) {
	f := NewFlow()
	require.NoError(t, f.SelectMovie(testMovie))

	outcome, err := f.SelectShow(testShow(25, 10), false)
	require.NoError(t, err)
	assert.Equal(t, NeedsAuth, outcome)
	assert.Equal(t, StepShowList, f.Step())

	pending, ok := f.Pending()
	require.True(t, ok)
	assert.Equal(t, model.ID("show-1"), pending.ID)

	t.Run("cancel keeps the show list", func(t *testing.T) {
		g := *f
		g.CancelAuth()
		_, ok := g.Pending()
		assert.False(t, ok)
		assert.Equal(t, StepShowList, g.Step())
	})

	show, resumed := f.ResumeAfterAuth()
	require.True(t, resumed)
	assert.Equal(t, model.ID("show-1"), show.ID)
	assert.Equal(t, StepSeatSelect, f.Step())
	assert.Equal(t, model.ID("show-1"), f.Show().ID)

	_, again := f.ResumeAfterAuth()
	assert.False(t, again)
}

func TestFlowSubmitFailureKeepsConfirmation(t *testing.T) {
	f := flowAtSeats(t)
	f.Toggle("C1")
	f.Toggle("C2")
	require.NoError(t, f.Checkout())

	_, err := f.BeginSubmit()
	require.NoError(t, err)

	_, err = f.BeginSubmit()
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.ErrorIs(t, f.Back(), ErrSubmitInFlight)

	f.SubmitFailed()
	assert.Equal(t, StepConfirmation, f.Step())
	assert.False(t, f.Submitting())
	assert.Equal(t, []string{"C1", "C2"}, f.Confirmation().Seats)
	assert.InDelta(t, 25.0, f.Confirmation().Amount, 1e-9)

	_, err = f.BeginSubmit()
	assert.NoError(t, err)
}

func TestFlowBack(t *testing.T) {
	t.Run("from confirmation keeps the selection", func(t *testing.T) {
		f := flowAtSeats(t)
		f.Toggle("A1")
		require.NoError(t, f.Checkout())

		require.NoError(t, f.Back())
		assert.Equal(t, StepSeatSelect, f.Step())
		assert.Empty(t, f.Confirmation().Seats)
		assert.Equal(t, []string{"A1"}, f.Selection().Selected())
	})

	t.Run("from seat selection drops show and seats", func(t *testing.T) {
		f := flowAtSeats(t)
		f.Toggle("A1")

		require.NoError(t, f.Back())
		assert.Equal(t, StepShowList, f.Step())
		assert.Nil(t, f.Selection())
		assert.True(t, f.Show().ID.IsZero())
		assert.Equal(t, testMovie.ID, f.Movie().ID)
	})

	t.Run("from show list drops the movie", func(t *testing.T) {
		f := NewFlow()
		require.NoError(t, f.SelectMovie(testMovie))
		_, err := f.SelectShow(testShow(25, 10), false)
		require.NoError(t, err)

		require.NoError(t, f.Back())
		assert.Equal(t, StepCatalog, f.Step())
		assert.True(t, f.Movie().ID.IsZero())
		_, ok := f.Pending()
		assert.False(t, ok)
	})

	t.Run("at catalog is a no-op", func(t *testing.T) {
		f := NewFlow()
		epoch := f.Epoch()
		require.NoError(t, f.Back())
		assert.Equal(t, StepCatalog, f.Step())
		assert.Equal(t, epoch, f.Epoch())
	})
}

func TestFlowEpoch(t *testing.T) {
	f := NewFlow()
	require.NoError(t, f.SelectMovie(testMovie))
	issued := f.Epoch()
	assert.True(t, f.IsCurrent(issued))

	require.NoError(t, f.Back())
	assert.False(t, f.IsCurrent(issued), "results for a left step must be dropped")

	require.NoError(t, f.SelectMovie(testMovie))
	assert.False(t, f.IsCurrent(issued))
}

func TestFlowReloadSeatsKeepsFreePicks(t *testing.T) {
	f := flowAtSeats(t)
	f.Toggle("A1")
	f.Toggle("A2")

	require.NoError(t, f.LoadSeats([]string{"A2"}))
	assert.Equal(t, []string{"A1"}, f.Selection().Selected())
	assert.Equal(t, SeatBooked, f.Selection().Status("A2"))
}

func TestFlowInvalidTransitions(t *testing.T) {
	f := NewFlow()
	_, err := f.SelectShow(testShow(25, 10), true)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, f.Checkout(), ErrInvalidTransition)
	assert.ErrorIs(t, f.LoadSeats(nil), ErrInvalidTransition)
	assert.ErrorIs(t, f.Complete(), ErrInvalidTransition)

	_, err = f.BeginSubmit()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.SelectMovie(testMovie))
	assert.ErrorIs(t, f.SelectMovie(testMovie), ErrInvalidTransition)
}
