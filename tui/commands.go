package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"showtimedb-cli/model"
	"showtimedb-cli/service"
	"showtimedb-cli/store"
)

// fetchMoviesCmd loads the catalog, serving a fresh cache unless force is
// set. When the service is unreachable a stale cache is still shown.
//
// Commands carry no deadline of their own; the HTTP client timeout from
// api.timeout is the only bound.
func (m appModel) fetchMoviesCmd(force bool) tea.Cmd {
	backend := m.backend
	source := m.cacheSource
	log := m.log
	return func() tea.Msg {
		var cached []model.Movie
		if source != "" {
			movies, fresh, err := store.LoadMovieCache(source)
			if err != nil {
				log.Warn("load movie cache", "error", err)
			}
			if fresh && !force && len(movies) > 0 {
				return moviesMsg{movies: movies, cached: true}
			}
			cached = movies
		}

		movies, err := backend.ListMovies(context.Background())
		if err != nil {
			if service.IsNetwork(err) && len(cached) > 0 {
				log.Warn("list movies, using stale cache", "error", err)
				return moviesMsg{movies: cached, cached: true, stale: true}
			}
			return moviesMsg{err: err}
		}
		cacheMovies(log, source, movies)
		return moviesMsg{movies: movies}
	}
}

func (m appModel) fetchShowsCmd(movieID model.ID) tea.Cmd {
	backend := m.backend
	epoch := m.flow.Epoch()
	return func() tea.Msg {
		shows, err := backend.ListShows(context.Background(), movieID)
		return showsMsg{epoch: epoch, shows: shows, err: err}
	}
}

func (m appModel) fetchSeatsCmd(showID model.ID, refresh bool) tea.Cmd {
	backend := m.backend
	epoch := m.flow.Epoch()
	return func() tea.Msg {
		booked, err := backend.ListBookedSeats(context.Background(), showID)
		return seatsMsg{epoch: epoch, showID: showID, booked: booked, refresh: refresh, err: err}
	}
}

func (m appModel) authCmd(register bool, email, password string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx := context.Background()
		var (
			result model.AuthResult
			err    error
		)
		if register {
			result, err = backend.Register(ctx, email, password)
		} else {
			result, err = backend.Login(ctx, email, password)
		}
		return authMsg{email: email, result: result, err: err}
	}
}

func (m appModel) submitBookingCmd(sess model.Session, req model.BookingRequest) tea.Cmd {
	backend := m.backend
	epoch := m.flow.Epoch()
	return func() tea.Msg {
		b, err := backend.SubmitBooking(context.Background(), sess, req)
		return bookingMsg{epoch: epoch, booking: b, err: err}
	}
}

func (m appModel) bookingDoneCmd() tea.Cmd {
	epoch := m.flow.Epoch()
	return tea.Tick(m.confirmDelay, func(time.Time) tea.Msg {
		return bookingDoneMsg{epoch: epoch}
	})
}
