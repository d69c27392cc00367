// Package service talks to the remote movie data service. Two variants sit
// behind the Backend interface: a plain JSON REST API and a Supabase project
// (PostgREST tables plus GoTrue auth).
package service

import (
	"context"
	"log/slog"
	"net/http"

	"showtimedb-cli/logger"
	"showtimedb-cli/model"
)

const defaultUserAgent = "showtimedb-cli"

// Backend is the data client used by the booking flow.
type Backend interface {
	ListMovies(ctx context.Context) ([]model.Movie, error)
	// ListShows returns the showtimes for a movie ordered by start time.
	ListShows(ctx context.Context, movieID model.ID) ([]model.ShowWithVenue, error)
	// ListBookedSeats returns the labels already taken for a show.
	ListBookedSeats(ctx context.Context, showID model.ID) ([]string, error)
	SubmitBooking(ctx context.Context, sess model.Session, req model.BookingRequest) (model.Booking, error)
	Login(ctx context.Context, email, password string) (model.AuthResult, error)
	Register(ctx context.Context, email, password string) (model.AuthResult, error)
}

// Options configures either client. Zero values pick defaults: an
// http.Client with no timeout and a discarding logger.
type Options struct {
	HTTPClient *http.Client
	UserAgent  string
	Logger     *slog.Logger
}

func (o Options) requester() requester {
	r := requester{
		httpClient: o.HTTPClient,
		userAgent:  o.UserAgent,
		log:        o.Logger,
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{}
	}
	if r.userAgent == "" {
		r.userAgent = defaultUserAgent
	}
	if r.log == nil {
		r.log = logger.Discard()
	}
	return r
}
