package booking

import (
	"errors"
	"fmt"

	"showtimedb-cli/model"
)

type Step int

const (
	StepCatalog Step = iota
	StepShowList
	StepSeatSelect
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepCatalog:
		return "catalog"
	case StepShowList:
		return "show-list"
	case StepSeatSelect:
		return "seat-select"
	case StepConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrEmptySelection    = errors.New("select at least one seat")
	ErrSeatsNotLoaded    = errors.New("seat availability not loaded")
	ErrSubmitInFlight    = errors.New("booking submission already in progress")
)

// Outcome reports what SelectShow did.
type Outcome int

const (
	Advanced Outcome = iota
	NeedsAuth
)

// Confirmation is the data carried into the checkout step.
type Confirmation struct {
	Seats  []string
	Amount float64
	Method model.PaymentMethod
}

// Flow is the booking step machine: catalog, show list, seat selection and
// confirmation. Leaving a step discards everything gathered after it.
//
// Every step change bumps the epoch. Results of asynchronous fetches are
// tagged with the epoch they were issued under and callers drop them once
// IsCurrent reports false.
type Flow struct {
	step         Step
	movie        model.Movie
	show         model.ShowWithVenue
	selection    *Selection
	confirmation Confirmation
	pending      *model.ShowWithVenue
	epoch        uint64
	submitting   bool
	completed    bool
	booking      model.Booking
}

func NewFlow() *Flow {
	return &Flow{step: StepCatalog}
}

func (f *Flow) Step() Step { return f.step }
func (f *Flow) Movie() model.Movie { return f.movie }
func (f *Flow) Show() model.ShowWithVenue { return f.show }
func (f *Flow) Selection() *Selection { return f.selection }
func (f *Flow) Epoch() uint64 { return f.epoch }
func (f *Flow) Submitting() bool { return f.submitting }
func (f *Flow) Completed() bool { return f.completed }
func (f *Flow) Booking() model.Booking { return f.booking }
func (f *Flow) IsCurrent(epoch uint64) bool { return f.epoch == epoch }
func (f *Flow) Confirmation() Confirmation {
	c := f.confirmation
	c.Seats = append([]string(nil), c.Seats...)
	return c
}

// Pending returns the show waiting on authentication, if any.
func (f *Flow) Pending() (model.ShowWithVenue, bool) {
	if f.pending == nil {
		return model.ShowWithVenue{}, false
	}
	return *f.pending, true
}

// SelectMovie moves from the catalog to the show list for movie.
func (f *Flow) SelectMovie(movie model.Movie) error {
	if f.step != StepCatalog {
		return f.invalid("select movie")
	}
	f.clearFrom(StepShowList)
	f.movie = movie
	f.enter(StepShowList)
	return nil
}

// SelectShow advances to seat selection when the user is authenticated.
// Otherwise the show is parked as pending and NeedsAuth is returned; the flow
// stays on the show list until ResumeAfterAuth or CancelAuth.
func (f *Flow) SelectShow(show model.ShowWithVenue, authenticated bool) (Outcome, error) {
	if f.step != StepShowList {
		return Advanced, f.invalid("select show")
	}
	if !authenticated {
		parked := show
		f.pending = &parked
		return NeedsAuth, nil
	}
	f.pending = nil
	f.openShow(show)
	return Advanced, nil
}

// ResumeAfterAuth consumes the pending show, if any, and moves into its seat
// selection. It reports false when nothing was pending.
func (f *Flow) ResumeAfterAuth() (model.ShowWithVenue, bool) {
	if f.pending == nil {
		return model.ShowWithVenue{}, false
	}
	show := *f.pending
	f.pending = nil
	if f.step != StepShowList {
		return model.ShowWithVenue{}, false
	}
	f.openShow(show)
	return show, true
}

func (f *Flow) CancelAuth() {
	f.pending = nil
}

// LoadSeats installs the booked list for the current show. When seats are
// reloaded for the same show, picks that are still free are kept.
func (f *Flow) LoadSeats(booked []string) error {
	if f.step != StepSeatSelect {
		return f.invalid("load seats")
	}
	previous := f.selection
	f.selection = NewSelection(f.show, booked)
	if previous != nil && previous.Show().ID == f.show.ID {
		for _, label := range previous.Selected() {
			f.selection.Toggle(label)
		}
	}
	return nil
}

// Toggle flips a seat in the current selection.
func (f *Flow) Toggle(label string) bool {
	if f.step != StepSeatSelect || f.selection == nil {
		return false
	}
	return f.selection.Toggle(label)
}

// Checkout moves to confirmation carrying the selected seats and the amount.
// An empty selection leaves the flow where it is.
func (f *Flow) Checkout() error {
	if f.step != StepSeatSelect {
		return f.invalid("checkout")
	}
	if f.selection == nil {
		return ErrSeatsNotLoaded
	}
	if !f.selection.CanCheckout() {
		return ErrEmptySelection
	}
	f.confirmation = Confirmation{
		Seats:  f.selection.Selected(),
		Amount: f.selection.Total(),
		Method: model.PaymentCard,
	}
	f.enter(StepConfirmation)
	return nil
}

func (f *Flow) SetPaymentMethod(method model.PaymentMethod) error {
	if f.step != StepConfirmation || f.submitting || f.completed {
		return f.invalid("change payment method")
	}
	if !method.Valid() {
		return fmt.Errorf("unknown payment method %q", method)
	}
	f.confirmation.Method = method
	return nil
}

// BeginSubmit marks the confirmation as in flight and returns the request to
// send. Only one submission may be in flight at a time.
func (f *Flow) BeginSubmit() (model.BookingRequest, error) {
	if f.step != StepConfirmation || f.completed {
		return model.BookingRequest{}, f.invalid("submit booking")
	}
	if f.submitting {
		return model.BookingRequest{}, ErrSubmitInFlight
	}
	f.submitting = true
	return model.BookingRequest{
		ShowID:     f.show.ID,
		SeatLabels: append([]string(nil), f.confirmation.Seats...),
		Amount:     f.confirmation.Amount,
		Method:     f.confirmation.Method,
	}, nil
}

// SubmitFailed re-enables submission. Step, seats and amount are unchanged.
func (f *Flow) SubmitFailed() {
	f.submitting = false
}

func (f *Flow) SubmitSucceeded(b model.Booking) {
	f.submitting = false
	f.completed = true
	f.booking = b
}

// Complete finishes an acknowledged booking and returns to the catalog.
func (f *Flow) Complete() error {
	if f.step != StepConfirmation || !f.completed {
		return f.invalid("complete booking")
	}
	f.Reset()
	return nil
}

// Back returns to the previous step and drops what was gathered at the step
// being left. It never needs the network.
func (f *Flow) Back() error {
	if f.submitting {
		return ErrSubmitInFlight
	}
	switch f.step {
	case StepConfirmation:
		if f.completed {
			f.Reset()
			return nil
		}
		f.clearFrom(StepConfirmation)
		f.enter(StepSeatSelect)
	case StepSeatSelect:
		f.clearFrom(StepSeatSelect)
		f.enter(StepShowList)
	case StepShowList:
		f.clearFrom(StepShowList)
		f.enter(StepCatalog)
	}
	return nil
}

// Reset returns to the catalog with nothing selected.
func (f *Flow) Reset() {
	f.clearFrom(StepShowList)
	f.enter(StepCatalog)
}

func (f *Flow) openShow(show model.ShowWithVenue) {
	f.clearFrom(StepSeatSelect)
	f.show = show
	f.enter(StepSeatSelect)
}

func (f *Flow) enter(step Step) {
	f.step = step
	f.epoch++
}

// clearFrom drops the state owned by step and every later step.
func (f *Flow) clearFrom(step Step) {
	if step <= StepConfirmation {
		f.confirmation = Confirmation{}
		f.submitting = false
		f.completed = false
		f.booking = model.Booking{}
	}
	if step <= StepSeatSelect {
		f.show = model.ShowWithVenue{}
		f.selection = nil
	}
	if step <= StepShowList {
		f.movie = model.Movie{}
		f.pending = nil
	}
}

func (f *Flow) invalid(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, f.step)
}
