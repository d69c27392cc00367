package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"showtimedb-cli/booking"
	"showtimedb-cli/logger"
	"showtimedb-cli/model"
	"showtimedb-cli/service"
	"showtimedb-cli/session"
	"showtimedb-cli/store"
)

type appState int

const (
	stateLoadingMovies appState = iota
	stateCatalog
	stateLoadingShows
	stateShowList
	stateLoadingSeats
	stateSeatSelect
	stateConfirmation
	stateAuth
	stateError
)

const defaultConfirmationDelay = 3 * time.Second

// Deps wires the TUI to its collaborators.
type Deps struct {
	Backend service.Backend
	Session *session.Store
	Logger  *slog.Logger

	// ConfirmationDelay is how long the success panel stays up before the
	// flow returns to the catalog.
	ConfirmationDelay time.Duration

	// CacheSource keys the on-disk catalog cache. Empty disables caching.
	CacheSource string
}

type appModel struct {
	backend      service.Backend
	session      *session.Store
	log          *slog.Logger
	keys         KeyMap
	cacheSource  string
	confirmDelay time.Duration
	now          func() time.Time

	flow *booking.Flow

	state     appState
	lastState appState
	err       error
	notice    string

	width  int
	height int

	movies []model.Movie
	shows  []model.ShowWithVenue

	movieList list.Model
	showList  list.Model

	seats seatGrid

	auth       authForm
	authReturn appState

	submitErr string

	spinner spinner.Model
}

type errMsg struct {
	err            error
	returnState    appState
	returnStateSet bool
}

type moviesMsg struct {
	movies []model.Movie
	cached bool
	stale  bool
	err    error
}

type showsMsg struct {
	epoch uint64
	shows []model.ShowWithVenue
	err   error
}

type seatsMsg struct {
	epoch   uint64
	showID  model.ID
	booked  []string
	refresh bool
	err     error
}

type authMsg struct {
	email  string
	result model.AuthResult
	err    error
}

type bookingMsg struct {
	epoch   uint64
	booking model.Booking
	err     error
}

type bookingDoneMsg struct {
	epoch uint64
}

func New(deps Deps) tea.Model {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	delay := deps.ConfirmationDelay
	if delay <= 0 {
		delay = defaultConfirmationDelay
	}
	m := appModel{
		backend:      deps.Backend,
		session:      deps.Session,
		log:          log,
		keys:         DefaultKeyMap,
		cacheSource:  deps.CacheSource,
		confirmDelay: delay,
		now:          time.Now,
		flow:         booking.NewFlow(),
		state:        stateLoadingMovies,
	}

	m.movieList = newList("Now Showing")
	m.showList = newList("Showtimes")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	m.spinner = sp

	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.fetchMoviesCmd(false), m.spinner.Tick)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		if m.handleFilterInput(msg) {
			return m, nil
		}
		var handled bool
		m, cmd, handled := m.handleKey(msg)
		if handled {
			return m, cmd
		}
		// fallthrough to component update
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isBusy() {
			return m, cmd
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		if msg.returnStateSet {
			m.lastState = msg.returnState
		} else {
			m.lastState = recoverStateFrom(m.state)
		}
		m.state = stateError
		return m, nil

	case moviesMsg:
		if msg.err != nil {
			return m, errCmd(msg.err)
		}
		m.movies = msg.movies
		m.movieList.SetItems(buildMovieItems(msg.movies))
		if msg.stale {
			m.notice = "Showing cached movies; the movie service is unreachable."
		}
		if m.state == stateLoadingMovies {
			m.state = stateCatalog
		}
		return m, nil

	case showsMsg:
		if !m.flow.IsCurrent(msg.epoch) {
			m.log.Debug("dropping stale shows", "epoch", msg.epoch)
			return m, nil
		}
		if msg.err != nil {
			_ = m.flow.Back()
			return m, errWithReturnCmd(msg.err, stateCatalog)
		}
		m.shows = msg.shows
		m.showList.Title = fmt.Sprintf("Showtimes • %s", m.flow.Movie().Title)
		m.showList.SetItems(buildShowItems(msg.shows, m.now()))
		m.showList.ResetFilter()
		m.showList.Select(0)
		m.state = stateShowList
		return m, nil

	case seatsMsg:
		return m.handleSeats(msg)

	case authMsg:
		return m.handleAuthResult(msg)

	case bookingMsg:
		return m.handleBookingResult(msg)

	case bookingDoneMsg:
		if !m.flow.IsCurrent(msg.epoch) || !m.flow.Completed() {
			return m, nil
		}
		return m.finishBooking()
	}

	var cmd tea.Cmd
	switch m.state {
	case stateCatalog:
		m.movieList, cmd = m.movieList.Update(msg)
	case stateShowList:
		m.showList, cmd = m.showList.Update(msg)
	case stateAuth:
		cmd = m.auth.update(msg)
	}
	return m, cmd
}

func (m appModel) View() string {
	header := m.headerView()
	switch m.state {
	case stateLoadingMovies, stateLoadingShows, stateLoadingSeats:
		return header + "\n\n" + m.loadingView()
	case stateCatalog:
		return header + "\n\n" + m.movieList.View()
	case stateShowList:
		body := m.showList.View()
		if len(m.shows) == 0 {
			body = hint("No upcoming shows for this movie.")
		}
		return header + "\n\n" + body
	case stateSeatSelect:
		return header + "\n\n" + m.seatView()
	case stateConfirmation:
		return header + "\n\n" + m.confirmationView()
	case stateAuth:
		return header + "\n\n" + m.auth.view()
	case stateError:
		return header + "\n\n" + m.errorView()
	default:
		return header
	}
}

func (m appModel) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Render("ShowtimeDB")
	sub := []string{}
	if sess, ok := m.session.Current(); ok {
		sub = append(sub, "Signed in as "+sess.User.Email)
	} else {
		sub = append(sub, "Guest")
	}
	if movie := m.flow.Movie(); movie.Title != "" {
		sub = append(sub, "Movie: "+movie.Title)
	}
	if m.flow.Step() >= booking.StepSeatSelect {
		show := m.flow.Show()
		sub = append(sub, fmt.Sprintf("Show: %s • %s", show.Theater.Name, show.StartsAt.Format("Mon Jan 2 15:04")))
	}
	meta := "\n" + lipgloss.NewStyle().Faint(true).Render(strings.Join(sub, " • "))

	filterLine := ""
	if listPtr := m.activeList(); listPtr != nil {
		if filter := listPtr.FilterValue(); filter != "" {
			filterLine = "\n" + hint(fmt.Sprintf("Filter: %s", filter))
		}
	}
	noticeLine := ""
	if m.notice != "" {
		noticeLine = "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Render(m.notice)
	}
	return title + meta + filterLine + noticeLine + "\n" + hint(m.hints())
}

func (m appModel) hints() string {
	k := m.keys
	switch m.state {
	case stateCatalog:
		session := k.SignIn
		if m.session.IsAuthenticated() {
			session = k.SignOut
		}
		return helpLine(k.Quit, k.Select) + " • type to filter • " + helpLine(session, k.Reload)
	case stateShowList:
		return helpLine(k.Quit, k.Back, k.Select) + " • type to filter"
	case stateSeatSelect:
		return helpLine(k.QuitSoft, k.Back, k.Toggle, k.Refresh) + " • enter checkout"
	case stateConfirmation:
		if m.flow.Completed() {
			return "enter continue"
		}
		return helpLine(k.Back, k.NextPayment) + " • enter pay"
	case stateAuth:
		return helpLine(k.Back, k.NextField, k.SwitchMode) + " • enter submit"
	case stateError:
		return helpLine(k.Quit, k.Back)
	default:
		return helpLine(k.Quit)
	}
}

func (m appModel) errorView() string {
	msg := service.UserMessage(m.err)
	if m.err == nil {
		msg = "Something went wrong."
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(msg) + "\n\n" + hint("Press esc to go back or ctrl+c to quit.")
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit, true
	}
	if m.state != stateError {
		m.notice = ""
	}

	switch m.state {
	case stateAuth:
		return m.handleAuthKey(msg)
	case stateSeatSelect:
		return m.handleSeatKey(msg)
	case stateConfirmation:
		return m.handleConfirmationKey(msg)
	}

	if key.Matches(msg, m.keys.Back) {
		if listPtr := m.activeList(); listPtr != nil {
			if listPtr.SettingFilter() || listPtr.IsFiltered() {
				listPtr.ResetFilter()
				return m, nil, true
			}
		}
		model, cmd := m.goBack()
		return model, cmd, true
	}

	switch m.state {
	case stateCatalog:
		switch {
		case key.Matches(msg, m.keys.SignIn):
			if m.session.IsAuthenticated() {
				return m, nil, true
			}
			cmd := m.openAuth(stateCatalog, "")
			return m, cmd, true
		case key.Matches(msg, m.keys.SignOut):
			if err := m.session.Logout(); err != nil {
				m.log.Warn("sign out", "error", err)
			}
			m.notice = "Signed out."
			return m, nil, true
		case key.Matches(msg, m.keys.Reload):
			m.state = stateLoadingMovies
			return m, tea.Batch(m.fetchMoviesCmd(true), m.spinner.Tick), true
		case key.Matches(msg, m.keys.Select):
			item, ok := m.movieList.SelectedItem().(movieItem)
			if !ok {
				return m, nil, true
			}
			if err := m.flow.SelectMovie(item.movie); err != nil {
				return m, errCmd(err), true
			}
			m.shows = nil
			m.state = stateLoadingShows
			return m, tea.Batch(m.fetchShowsCmd(item.movie.ID), m.spinner.Tick), true
		}
	case stateShowList:
		if key.Matches(msg, m.keys.Select) {
			item, ok := m.showList.SelectedItem().(showItem)
			if !ok {
				return m, nil, true
			}
			outcome, err := m.flow.SelectShow(item.show, m.session.IsAuthenticated())
			if err != nil {
				return m, errCmd(err), true
			}
			var cmd tea.Cmd
			if outcome == booking.NeedsAuth {
				cmd = m.openAuth(stateShowList, "Sign in to choose seats.")
			} else {
				cmd = m.startSeatLoad()
			}
			return m, cmd, true
		}
	case stateError:
		if key.Matches(msg, m.keys.QuitSoft) {
			return m, tea.Quit, true
		}
	}
	return m, nil, false
}

func (m appModel) goBack() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateShowList:
		if err := m.flow.Back(); err != nil {
			return m, nil
		}
		m.shows = nil
		m.state = stateCatalog
	case stateError:
		m.state = m.lastState
		m.err = nil
		if m.state == stateLoadingMovies {
			return m, tea.Batch(m.fetchMoviesCmd(true), m.spinner.Tick)
		}
	default:
		return m, nil
	}
	return m, nil
}

// stepBack moves the flow one step back and syncs the view state with it.
func (m appModel) stepBack() (tea.Model, tea.Cmd, bool) {
	if err := m.flow.Back(); err != nil {
		if errors.Is(err, booking.ErrSubmitInFlight) {
			m.notice = "Payment is being processed."
		}
		return m, nil, true
	}
	m.state = stateForStep(m.flow.Step())
	return m, nil, true
}

func (m *appModel) startSeatLoad() tea.Cmd {
	m.seats.reset()
	m.state = stateLoadingSeats
	return tea.Batch(m.fetchSeatsCmd(m.flow.Show().ID, false), m.spinner.Tick)
}

func (m appModel) handleSeats(msg seatsMsg) (tea.Model, tea.Cmd) {
	if !m.flow.IsCurrent(msg.epoch) || m.flow.Show().ID != msg.showID {
		m.log.Debug("dropping stale seats", "epoch", msg.epoch, "show_id", msg.showID.String())
		return m, nil
	}
	if msg.refresh {
		m.seats.refreshing = false
		if msg.err != nil {
			m.seats.err = "Could not refresh seats: " + service.UserMessage(msg.err)
			return m, nil
		}
	} else if msg.err != nil {
		_ = m.flow.Back()
		return m, errWithReturnCmd(msg.err, stateShowList)
	}
	if err := m.flow.LoadSeats(msg.booked); err != nil {
		return m, errCmd(err)
	}
	m.seats.err = ""
	m.seats.clamp(m.flow.Show().Screen.Capacity)
	m.state = stateSeatSelect
	return m, nil
}

func (m appModel) finishBooking() (tea.Model, tea.Cmd) {
	b := m.flow.Booking()
	if err := m.flow.Complete(); err != nil {
		return m, nil
	}
	m.submitErr = ""
	m.shows = nil
	m.seats.reset()
	m.notice = fmt.Sprintf("Booking %s confirmed.", b.ID)
	m.state = stateCatalog
	return m, nil
}

func stateForStep(step booking.Step) appState {
	switch step {
	case booking.StepShowList:
		return stateShowList
	case booking.StepSeatSelect:
		return stateSeatSelect
	case booking.StepConfirmation:
		return stateConfirmation
	default:
		return stateCatalog
	}
}

func (m *appModel) handleFilterInput(msg tea.KeyMsg) bool {
	listPtr := m.activeList()
	if listPtr == nil {
		return false
	}
	if !listPtr.FilteringEnabled() {
		return false
	}
	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) == 0 || msg.Alt {
			return false
		}
		m.appendFilter(listPtr, string(msg.Runes))
		return true
	case tea.KeySpace:
		m.appendFilter(listPtr, " ")
		return true
	case tea.KeyBackspace, tea.KeyDelete:
		if listPtr.FilterValue() == "" {
			return false
		}
		m.popFilter(listPtr)
		return true
	default:
		return false
	}
}

func (m *appModel) appendFilter(listPtr *list.Model, value string) {
	if value == "" {
		return
	}
	current := listPtr.FilterValue()
	listPtr.SetFilterText(current + value)
}

func (m *appModel) popFilter(listPtr *list.Model) {
	value := listPtr.FilterValue()
	if value == "" {
		return
	}
	value = trimLastRune(value)
	if value == "" {
		listPtr.ResetFilter()
		return
	}
	listPtr.SetFilterText(value)
}

func trimLastRune(value string) string {
	runes := []rune(value)
	if len(runes) <= 1 {
		return ""
	}
	return string(runes[:len(runes)-1])
}

func (m *appModel) activeList() *list.Model {
	switch m.state {
	case stateCatalog:
		return &m.movieList
	case stateShowList:
		return &m.showList
	default:
		return nil
	}
}

func (m appModel) isBusy() bool {
	return m.state == stateLoadingMovies ||
		m.state == stateLoadingShows ||
		m.state == stateLoadingSeats ||
		m.seats.refreshing ||
		m.auth.submitting ||
		m.flow.Submitting()
}

func (m appModel) loadingView() string {
	title := "Loading"
	switch m.state {
	case stateLoadingMovies:
		title = "Loading movies"
	case stateLoadingShows:
		title = "Loading showtimes"
	case stateLoadingSeats:
		title = "Loading seats"
	}

	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), title, hint("Fetching data..."))
}

func (m *appModel) resizeLists() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := m.height - 7
	if h < 6 {
		h = 6
	}
	m.movieList.SetSize(m.width, h)
	m.showList.SetSize(m.width, h)
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.Filter = caseInsensitiveFilter
	l.SetFilteringEnabled(true)
	l.SetShowFilter(true)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}

func joinDots(parts []string) string {
	return strings.Join(parts, " • ")
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: err}
	}
}

func errWithReturnCmd(err error, returnState appState) tea.Cmd {
	return func() tea.Msg {
		return errMsg{
			err:            err,
			returnState:    returnState,
			returnStateSet: true,
		}
	}
}

func recoverStateFrom(state appState) appState {
	switch state {
	case stateLoadingMovies:
		return stateLoadingMovies
	case stateLoadingShows:
		return stateCatalog
	case stateLoadingSeats:
		return stateShowList
	case stateError:
		return stateCatalog
	default:
		return state
	}
}

func caseInsensitiveFilter(term string, targets []string) []list.Rank {
	term = strings.ToLower(term)
	lower := make([]string, len(targets))
	for i, t := range targets {
		lower[i] = strings.ToLower(t)
	}
	return list.DefaultFilter(term, lower)
}

func formatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

func formatDuration(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// cacheMovies persists a fetched catalog. Failures only cost the next
// startup a round trip.
func cacheMovies(log *slog.Logger, source string, movies []model.Movie) {
	if source == "" {
		return
	}
	if err := store.SaveMovieCache(source, movies); err != nil {
		log.Warn("save movie cache", "error", err)
	}
}
