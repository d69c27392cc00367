package devserver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"showtimedb-cli/booking"
)

// MemoryRepository keeps everything in process. It is the default store and
// the one tests use.
type MemoryRepository struct {
	mu sync.Mutex

	users    []User
	theaters map[int64]Theater
	screens  map[int64]Screen
	movies   []Movie
	shows    map[int64]Show
	seats    map[int64][]Seat
	bookings []Booking

	nextUser    int64
	nextSeat    int64
	nextBooking int64
	now         func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		theaters: make(map[int64]Theater),
		screens:  make(map[int64]Screen),
		shows:    make(map[int64]Show),
		seats:    make(map[int64][]Seat),
		now:      time.Now,
	}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return User{}, ErrEmailTaken
		}
	}
	r.nextUser++
	u := User{ID: r.nextUser, Email: email, PasswordHash: passwordHash, CreatedAt: r.now()}
	r.users = append(r.users, u)
	return u, nil
}

func (r *MemoryRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepository) ListMovies(ctx context.Context) ([]Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Movie(nil), r.movies...), nil
}

func (r *MemoryRepository) ListShows(ctx context.Context, movieID int64) ([]ShowDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ShowDetail
	for _, show := range r.shows {
		if show.MovieID == movieID {
			out = append(out, r.detail(show))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShowTime.Equal(out[j].ShowTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].ShowTime.Before(out[j].ShowTime)
	})
	return out, nil
}

func (r *MemoryRepository) GetShow(ctx context.Context, showID int64) (ShowDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	show, ok := r.shows[showID]
	if !ok {
		return ShowDetail{}, ErrNotFound
	}
	return r.detail(show), nil
}

func (r *MemoryRepository) ListSeats(ctx context.Context, showID int64) ([]Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shows[showID]; !ok {
		return nil, ErrNotFound
	}
	return append([]Seat(nil), r.seats[showID]...), nil
}

func (r *MemoryRepository) CreateBooking(ctx context.Context, b NewBooking) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	show, ok := r.shows[b.ShowID]
	if !ok {
		return Booking{}, ErrNotFound
	}
	seats := r.seats[b.ShowID]
	index := make(map[string]int, len(seats))
	for i, seat := range seats {
		index[seat.SeatNumber] = i
	}

	var taken []string
	for _, label := range b.SeatNumbers {
		i, ok := index[label]
		if !ok {
			return Booking{}, ErrNotFound
		}
		if seats[i].IsBooked {
			taken = append(taken, label)
		}
	}
	if len(taken) > 0 {
		return Booking{}, &SeatTakenError{Seats: taken}
	}

	for _, label := range b.SeatNumbers {
		seats[index[label]].IsBooked = true
	}
	show.AvailableSeats -= len(b.SeatNumbers)
	r.shows[show.ID] = show

	r.nextBooking++
	rec := Booking{
		ID:            r.nextBooking,
		UserID:        b.UserID,
		ShowID:        b.ShowID,
		SeatNumbers:   append([]string(nil), b.SeatNumbers...),
		TotalPrice:    b.TotalPrice,
		PaymentStatus: "completed",
		PaymentMethod: b.PaymentMethod,
		CreatedAt:     r.now(),
	}
	r.bookings = append(r.bookings, rec)
	return rec, nil
}

func (r *MemoryRepository) Seed(ctx context.Context, data SeedData) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.movies) > 0 {
		return false, nil
	}
	for _, t := range data.Theaters {
		r.theaters[t.ID] = t
	}
	for _, s := range data.Screens {
		r.screens[s.ID] = s
	}
	r.movies = append(r.movies, data.Movies...)
	for _, show := range data.Shows {
		r.shows[show.ID] = show
		labels := booking.GenerateSeatLabels(r.screens[show.ScreenID].TotalSeats)
		seats := make([]Seat, 0, len(labels))
		for _, label := range labels {
			r.nextSeat++
			seats = append(seats, Seat{ID: r.nextSeat, ShowID: show.ID, SeatNumber: label})
		}
		r.seats[show.ID] = seats
	}
	return true, nil
}

func (r *MemoryRepository) detail(show Show) ShowDetail {
	screen := r.screens[show.ScreenID]
	return ShowDetail{Show: show, Screen: screen, Theater: r.theaters[screen.TheaterID]}
}
