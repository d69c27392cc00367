// Package devserver is a local implementation of the movie service's REST
// API, backed by memory or MySQL. It exists so the client can be run and
// tested end to end without a hosted backend.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
	ErrSeatTaken  = errors.New("seat already booked")
)

// SeatTakenError lists the requested seats that were already booked. Seats
// may be empty when the store could only tell that some seat collided.
type SeatTakenError struct {
	Seats []string
}

func (e *SeatTakenError) Error() string {
	if len(e.Seats) == 0 {
		return "one or more seats are already booked"
	}
	if len(e.Seats) == 1 {
		return fmt.Sprintf("seat %s is already booked", e.Seats[0])
	}
	return fmt.Sprintf("seats %s are already booked", strings.Join(e.Seats, ", "))
}

func (e *SeatTakenError) Is(target error) bool { return target == ErrSeatTaken }

type Theater struct {
	ID       int64
	Name     string
	Location string
}

type Screen struct {
	ID         int64
	TheaterID  int64
	Name       string
	TotalSeats int
	Type       string
}

type Movie struct {
	ID          int64
	Title       string
	Description string
	Genre       string
	Language    string
	Duration    int
	Rating      float64
	PosterURL   string
}

type Show struct {
	ID             int64
	MovieID        int64
	ScreenID       int64
	ShowTime       time.Time
	Price          float64
	AvailableSeats int
}

// ShowDetail is a show with the screen and theater it plays in.
type ShowDetail struct {
	Show
	Screen  Screen
	Theater Theater
}

type Seat struct {
	ID         int64
	ShowID     int64
	SeatNumber string
	IsBooked   bool
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Booking struct {
	ID            int64
	UserID        int64
	ShowID        int64
	SeatNumbers   []string
	TotalPrice    float64
	PaymentStatus string
	PaymentMethod string
	CreatedAt     time.Time
}

// NewBooking is a validated booking request. Seats have been checked against
// the show's layout; the repository only decides whether they are free.
type NewBooking struct {
	UserID        int64
	ShowID        int64
	SeatNumbers   []string
	TotalPrice    float64
	PaymentMethod string
}

// Repository is the storage behind the API.
type Repository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)

	ListMovies(ctx context.Context) ([]Movie, error)
	// ListShows returns the shows of a movie ordered by show time.
	ListShows(ctx context.Context, movieID int64) ([]ShowDetail, error)
	GetShow(ctx context.Context, showID int64) (ShowDetail, error)
	ListSeats(ctx context.Context, showID int64) ([]Seat, error)

	// CreateBooking marks the seats booked and records the booking in one
	// step. If any seat is already booked nothing changes and the error
	// matches ErrSeatTaken.
	CreateBooking(ctx context.Context, b NewBooking) (Booking, error)

	// Seed loads data into an empty store. It reports false when the store
	// already had movies.
	Seed(ctx context.Context, data SeedData) (bool, error)
}
