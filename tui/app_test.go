package tui

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"showtimedb-cli/booking"
	"showtimedb-cli/model"
	"showtimedb-cli/service"
	"showtimedb-cli/session"
)

type testItem struct {
	value string
}

func (t testItem) Title() string       { return t.value }
func (t testItem) Description() string { return "" }
func (t testItem) FilterValue() string { return strings.ToLower(t.value) }

type fakeBackend struct {
	mu        sync.Mutex
	movies    []model.Movie
	shows     []model.ShowWithVenue
	showsErr  error
	booked    []string
	authErr   error
	bookErr   error
	seatCalls int
	requests  []model.BookingRequest
}

func (f *fakeBackend) ListMovies(ctx context.Context) ([]model.Movie, error) {
	return f.movies, nil
}

func (f *fakeBackend) ListShows(ctx context.Context, movieID model.ID) ([]model.ShowWithVenue, error) {
	return f.shows, f.showsErr
}

func (f *fakeBackend) ListBookedSeats(ctx context.Context, showID model.ID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seatCalls++
	return f.booked, nil
}

func (f *fakeBackend) SubmitBooking(ctx context.Context, sess model.Session, req model.BookingRequest) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.bookErr != nil {
		return model.Booking{}, f.bookErr
	}
	return model.Booking{
		ID:            "501",
		ShowID:        req.ShowID,
		SeatLabels:    req.SeatLabels,
		TotalAmount:   req.Amount,
		PaymentStatus: model.PaymentCompleted,
		PaymentMethod: req.Method,
	}, nil
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	if f.authErr != nil {
		return model.AuthResult{}, f.authErr
	}
	return model.AuthResult{Token: "opaque-token", User: model.User{ID: "7", Email: email}}, nil
}

func (f *fakeBackend) Register(ctx context.Context, email, password string) (model.AuthResult, error) {
	return f.Login(ctx, email, password)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		movies: []model.Movie{
			{ID: "1", Title: "Inception", Genre: "Sci-Fi", Language: "English", DurationMinutes: 148, Rating: "PG-13"},
			{ID: "2", Title: "Interstellar", Genre: "Sci-Fi", Language: "English", DurationMinutes: 169},
		},
		shows: []model.ShowWithVenue{{
			Show: model.Show{
				ID:             "10",
				MovieID:        "1",
				ScreenID:       "1",
				StartsAt:       time.Now().Add(2 * time.Hour),
				Price:          12.5,
				AvailableSeats: 98,
			},
			Screen:  model.Screen{ID: "1", TheaterID: "1", Name: "Screen 1", Capacity: 100, Type: "IMAX"},
			Theater: model.Theater{ID: "1", Name: "Downtown", Location: "Main St"},
		}},
		booked: []string{"A3", "A4"},
	}
}

func setTestHome(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir+"/config")
	t.Setenv("XDG_CACHE_HOME", dir+"/cache")
}

func newTestApp(t *testing.T, backend *fakeBackend, signedIn bool) tea.Model {
	t.Helper()
	setTestHome(t)
	sess, err := session.Open(session.NewMemoryPersister(), nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if signedIn {
		if err := sess.Login(model.AuthResult{Token: "opaque-token", User: model.User{ID: "7", Email: "ana@example.com"}}); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	m := New(Deps{Backend: backend, Session: sess, ConfirmationDelay: time.Millisecond})
	return drain(m, m.Init())
}

// drain runs cmd and feeds every message it produces back into the model.
// Spinner ticks are dropped so the loop ends.
func drain(m tea.Model, cmd tea.Cmd) tea.Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			var follow tea.Cmd
			m, follow = m.Update(msg)
			queue = append(queue, follow)
		}
	}
	return m
}

func press(m tea.Model, keys ...tea.KeyMsg) tea.Model {
	for _, k := range keys {
		var cmd tea.Cmd
		m, cmd = m.Update(k)
		m = drain(m, cmd)
	}
	return m
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func app(t *testing.T, m tea.Model) appModel {
	t.Helper()
	a, ok := m.(appModel)
	if !ok {
		t.Fatalf("unexpected model type %T", m)
	}
	return a
}

func newFilterModel(items []list.Item) *appModel {
	model := New(Deps{}).(appModel)
	model.state = stateCatalog
	model.movieList = newList("Now Showing")
	model.movieList.SetItems(items)
	return &model
}

func TestHandleFilterInput_AppendsRunes(t *testing.T) {
	m := newFilterModel([]list.Item{
		testItem{value: "Inception"},
		testItem{value: "Interstellar"},
	})

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")}) {
		t.Fatal("expected filter input to be handled")
	}
	if got := m.movieList.FilterValue(); got != "i" {
		t.Fatalf("expected filter value to be %q, got %q", "i", got)
	}

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}) {
		t.Fatal("expected filter input to be handled")
	}
	if got := m.movieList.FilterValue(); got != "in" {
		t.Fatalf("expected filter value to be %q, got %q", "in", got)
	}
}

func TestHandleFilterInput_Backspace(t *testing.T) {
	m := newFilterModel([]list.Item{
		testItem{value: "Inception"},
		testItem{value: "Interstellar"},
	})

	_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyBackspace}) {
		t.Fatal("expected backspace to be handled")
	}
	if got := m.movieList.FilterValue(); got != "i" {
		t.Fatalf("expected filter value to be %q, got %q", "i", got)
	}
}

func TestHandleFilterInput_Space(t *testing.T) {
	m := newFilterModel([]list.Item{
		testItem{value: "The Dark Knight"},
	})

	_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("the")})

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeySpace}) {
		t.Fatal("expected space to be handled")
	}
	if got := m.movieList.FilterValue(); got != "the " {
		t.Fatalf("expected filter value to be %q, got %q", "the ", got)
	}
}

func TestHandleFilterInput_IgnoredOutsideLists(t *testing.T) {
	m := newFilterModel(nil)
	m.state = stateSeatSelect
	if m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}) {
		t.Fatal("seat keys must not reach the list filter")
	}
}

func TestCatalogLoadsMovies(t *testing.T) {
	m := app(t, newTestApp(t, newFakeBackend(), false))
	if m.state != stateCatalog {
		t.Fatalf("expected catalog, got state %d", m.state)
	}
	if got := len(m.movieList.Items()); got != 2 {
		t.Fatalf("expected 2 movies, got %d", got)
	}
}

func TestGuestIsAskedToSignInThenResumes(t *testing.T) {
	backend := newFakeBackend()
	m := newTestApp(t, backend, false)

	m = press(m, keyEnter)
	if got := app(t, m).state; got != stateShowList {
		t.Fatalf("expected show list, got state %d", got)
	}

	m = press(m, keyEnter)
	a := app(t, m)
	if a.state != stateAuth {
		t.Fatalf("expected auth prompt, got state %d", a.state)
	}
	if backend.seatCalls != 0 {
		t.Fatal("seats must not be fetched before sign-in")
	}

	m = press(m, runes("ana@example.com"), keyTab, runes("secret1"), keyEnter)
	a = app(t, m)
	if a.state != stateSeatSelect {
		t.Fatalf("expected seat selection after sign-in, got state %d", a.state)
	}
	if a.flow.Show().ID != "10" {
		t.Fatalf("expected the pending show to open, got %q", a.flow.Show().ID)
	}
	if !a.session.IsAuthenticated() {
		t.Fatal("expected an authenticated session")
	}
	if backend.seatCalls != 1 {
		t.Fatalf("expected one seat fetch, got %d", backend.seatCalls)
	}
}

func TestFailedSignInKeepsInput(t *testing.T) {
	backend := newFakeBackend()
	backend.authErr = &service.ServiceError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	m := newTestApp(t, backend, false)

	m = press(m, keyEnter, keyEnter, runes("ana@example.com"), keyTab, runes("wrong-pass"), keyEnter)
	a := app(t, m)
	if a.state != stateAuth {
		t.Fatalf("expected to stay on auth, got state %d", a.state)
	}
	if a.auth.err != "Invalid email or password" {
		t.Fatalf("unexpected auth error %q", a.auth.err)
	}
	if a.auth.email.Value() != "ana@example.com" || a.auth.password.Value() != "wrong-pass" {
		t.Fatal("expected input to survive a failed attempt")
	}

	m = press(m, keyEsc)
	a = app(t, m)
	if a.state != stateShowList {
		t.Fatalf("expected esc to return to shows, got state %d", a.state)
	}
	if _, pending := a.flow.Pending(); pending {
		t.Fatal("cancelling sign-in must drop the pending show")
	}
}

func TestEmptyCheckoutStaysOnSeats(t *testing.T) {
	backend := newFakeBackend()
	m := newTestApp(t, backend, true)

	m = press(m, keyEnter, keyEnter, keyEnter)
	a := app(t, m)
	if a.state != stateSeatSelect {
		t.Fatalf("expected seat selection, got state %d", a.state)
	}
	if a.seats.err != "Select at least one seat." {
		t.Fatalf("unexpected seat error %q", a.seats.err)
	}
	if len(backend.requests) != 0 {
		t.Fatal("no booking must be submitted")
	}
}

func TestBookedSeatCannotBeSelected(t *testing.T) {
	m := newTestApp(t, newFakeBackend(), true)
	m = press(m, keyEnter, keyEnter, runes("l"), runes("l"), runes("x"))
	a := app(t, m)
	if a.flow.Selection().Count() != 0 {
		t.Fatal("booked seat was selected")
	}
	if a.seats.err != "Seat A3 is already booked." {
		t.Fatalf("unexpected seat error %q", a.seats.err)
	}
}

func TestBookingSuccessReturnsToCatalog(t *testing.T) {
	backend := newFakeBackend()
	m := newTestApp(t, backend, true)

	m = press(m, keyEnter, keyEnter, runes("x"), runes("l"), runes("x"), keyEnter)
	a := app(t, m)
	if a.state != stateConfirmation {
		t.Fatalf("expected confirmation, got state %d", a.state)
	}
	if got := a.flow.Confirmation().Amount; got != 25 {
		t.Fatalf("expected amount 25, got %v", got)
	}

	m = press(m, runes("p"), keyEnter)
	a = app(t, m)
	if len(backend.requests) != 1 {
		t.Fatalf("expected one submission, got %d", len(backend.requests))
	}
	req := backend.requests[0]
	if strings.Join(req.SeatLabels, ",") != "A1,A2" || req.Method != model.PaymentUPI || req.ShowID != "10" {
		t.Fatalf("unexpected request %+v", req)
	}
	if a.state != stateCatalog || a.flow.Step() != booking.StepCatalog {
		t.Fatalf("expected catalog after confirmation, got state %d", a.state)
	}
	if !strings.Contains(a.notice, "501") {
		t.Fatalf("expected booking id in notice, got %q", a.notice)
	}
}

func TestBookingFailureKeepsConfirmation(t *testing.T) {
	backend := newFakeBackend()
	backend.bookErr = &service.ServiceError{Status: http.StatusConflict, Message: "Seat A1 is already booked"}
	m := newTestApp(t, backend, true)

	m = press(m, keyEnter, keyEnter, runes("x"), keyEnter, keyEnter)
	a := app(t, m)
	if a.state != stateConfirmation {
		t.Fatalf("expected confirmation, got state %d", a.state)
	}
	if !strings.HasPrefix(a.submitErr, "Payment failed. Please try again.") || !strings.Contains(a.submitErr, "Seat A1 is already booked") {
		t.Fatalf("unexpected failure text %q", a.submitErr)
	}
	if a.flow.Submitting() {
		t.Fatal("expected submission to be re-enabled")
	}
	if got := a.flow.Confirmation().Seats; len(got) != 1 || got[0] != "A1" {
		t.Fatalf("expected seats to be kept, got %v", got)
	}

	backend.bookErr = nil
	m = press(m, keyEnter)
	if got := app(t, m).state; got != stateCatalog {
		t.Fatalf("expected retry to succeed, got state %d", got)
	}
}

func TestBackIsRefusedWhileSubmitting(t *testing.T) {
	m := newTestApp(t, newFakeBackend(), true)
	m = press(m, keyEnter, keyEnter, runes("x"), keyEnter)

	m, cmd := m.Update(keyEnter)
	if cmd == nil {
		t.Fatal("expected a submit command")
	}
	m = press(m, keyEsc)
	a := app(t, m)
	if a.state != stateConfirmation || !a.flow.Submitting() {
		t.Fatalf("expected to stay on confirmation while submitting, got state %d", a.state)
	}
}

func TestBackFromConfirmationKeepsSelection(t *testing.T) {
	m := newTestApp(t, newFakeBackend(), true)
	m = press(m, keyEnter, keyEnter, runes("x"), keyEnter, keyEsc)
	a := app(t, m)
	if a.state != stateSeatSelect {
		t.Fatalf("expected seat selection, got state %d", a.state)
	}
	if got := a.flow.Selection().Selected(); len(got) != 1 || got[0] != "A1" {
		t.Fatalf("expected A1 to stay selected, got %v", got)
	}
}

func TestShowFetchFailureGoesBackToCatalog(t *testing.T) {
	backend := newFakeBackend()
	backend.showsErr = &service.NetworkError{Op: "list shows", Err: errors.New("connection refused")}
	m := newTestApp(t, backend, false)

	m = press(m, keyEnter)
	a := app(t, m)
	if a.state != stateError {
		t.Fatalf("expected error state, got %d", a.state)
	}
	if !strings.Contains(a.View(), "Could not reach the movie service") {
		t.Fatal("expected a network message in the error view")
	}
	if a.flow.Step() != booking.StepCatalog {
		t.Fatalf("expected flow back at catalog, got %s", a.flow.Step())
	}

	m = press(m, keyEsc)
	if got := app(t, m).state; got != stateCatalog {
		t.Fatalf("expected catalog after esc, got state %d", got)
	}
}

func TestStaleResultsAreDropped(t *testing.T) {
	m := newTestApp(t, newFakeBackend(), true)
	m, _ = m.Update(keyEnter)
	a := app(t, m)
	if a.state != stateLoadingShows {
		t.Fatalf("expected loading shows, got state %d", a.state)
	}

	m, _ = m.Update(showsMsg{epoch: a.flow.Epoch() - 1, shows: newFakeBackend().shows})
	if got := app(t, m).state; got != stateLoadingShows {
		t.Fatalf("stale shows changed state to %d", got)
	}

	m, _ = m.Update(seatsMsg{epoch: a.flow.Epoch(), showID: "99"})
	if got := app(t, m).state; got != stateLoadingShows {
		t.Fatalf("seats for another show changed state to %d", got)
	}
}

func TestSignOutFromCatalog(t *testing.T) {
	m := newTestApp(t, newFakeBackend(), true)
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlO})
	a := app(t, m)
	if a.session.IsAuthenticated() {
		t.Fatal("expected sign out")
	}
	if a.notice != "Signed out." {
		t.Fatalf("unexpected notice %q", a.notice)
	}
}

// deadlineBackend records whether each call arrived with a context deadline.
type deadlineBackend struct {
	*fakeBackend
	deadlines map[string]bool
}

func (d *deadlineBackend) record(name string, ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := ctx.Deadline()
	d.deadlines[name] = ok
}

func (d *deadlineBackend) ListMovies(ctx context.Context) ([]model.Movie, error) {
	d.record("movies", ctx)
	return d.fakeBackend.ListMovies(ctx)
}

func (d *deadlineBackend) ListShows(ctx context.Context, movieID model.ID) ([]model.ShowWithVenue, error) {
	d.record("shows", ctx)
	return d.fakeBackend.ListShows(ctx, movieID)
}

func (d *deadlineBackend) ListBookedSeats(ctx context.Context, showID model.ID) ([]string, error) {
	d.record("seats", ctx)
	return d.fakeBackend.ListBookedSeats(ctx, showID)
}

func (d *deadlineBackend) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	d.record("login", ctx)
	return d.fakeBackend.Login(ctx, email, password)
}

func (d *deadlineBackend) SubmitBooking(ctx context.Context, sess model.Session, req model.BookingRequest) (model.Booking, error) {
	d.record("booking", ctx)
	return d.fakeBackend.SubmitBooking(ctx, sess, req)
}

func TestCommandsCarryNoDeadline(t *testing.T) {
	setTestHome(t)
	backend := &deadlineBackend{fakeBackend: newFakeBackend(), deadlines: map[string]bool{}}
	sess, err := session.Open(session.NewMemoryPersister(), nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	m := app(t, New(Deps{Backend: backend, Session: sess}))

	m.fetchMoviesCmd(true)()
	m.fetchShowsCmd("1")()
	m.fetchSeatsCmd("10", false)()
	m.authCmd(false, "ana@example.com", "secret1")()
	m.submitBookingCmd(model.Session{Token: "t"}, model.BookingRequest{ShowID: "10", SeatLabels: []string{"A1"}})()

	for _, name := range []string{"movies", "shows", "seats", "login", "booking"} {
		set, called := backend.deadlines[name]
		if !called {
			t.Fatalf("%s was not called", name)
		}
		if set {
			t.Fatalf("%s ran with a deadline", name)
		}
	}
}

func TestBackFromSeatsIssuesNoFetch(t *testing.T) {
	m := newTestApp(t, newFakeBackend(), true)
	m = press(m, keyEnter, keyEnter)
	a := app(t, m)
	if a.state != stateSeatSelect {
		t.Fatalf("expected seat selection, got state %d", a.state)
	}
	a.shows = nil

	next, cmd := a.Update(keyEsc)
	if cmd != nil {
		t.Fatal("going back must not start a fetch")
	}
	if got := app(t, next).state; got != stateShowList {
		t.Fatalf("expected show list, got state %d", got)
	}
	if app(t, next).flow.Step() != booking.StepShowList {
		t.Fatalf("expected flow at show list, got %s", app(t, next).flow.Step())
	}
}
