package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"showtimedb-cli/model"
)

// RESTClient wraps HTTP access to the JSON REST variant of the service.
type RESTClient struct {
	baseURL string
	http    requester
}

// NewRESTClient creates a client for the API rooted at baseURL
// (for example http://localhost:5000/api).
func NewRESTClient(baseURL string, opts Options) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    opts.requester(),
	}
}

var _ Backend = (*RESTClient)(nil)

type restShow struct {
	ID             model.ID   `json:"id"`
	MovieID        model.ID   `json:"movie_id"`
	ScreenID       model.ID   `json:"screen_id"`
	ShowTime       string     `json:"show_time"`
	Price          float64    `json:"price"`
	AvailableSeats int        `json:"available_seats"`
	Screen         restScreen `json:"screen"`
}

type restScreen struct {
	ID         model.ID      `json:"id"`
	Name       string        `json:"name"`
	TotalSeats int           `json:"total_seats"`
	Type       string        `json:"screen_type"`
	Theater    model.Theater `json:"theater"`
}

type restSeat struct {
	ID         model.ID `json:"id"`
	ShowID     model.ID `json:"show_id"`
	SeatNumber string   `json:"seat_number"`
	IsBooked   flexBool `json:"is_booked"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// flexBool accepts JSON booleans as well as the 0/1 integers some SQL
// drivers emit for boolean columns.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// ListMovies returns the catalog.
func (c *RESTClient) ListMovies(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	if err := c.getJSON(ctx, c.baseURL+"/movies", &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// ListShows fetches showtimes for a movie joined with screen and theater.
func (c *RESTClient) ListShows(ctx context.Context, movieID model.ID) ([]model.ShowWithVenue, error) {
	if movieID.IsZero() {
		return nil, &ValidationError{Field: "movie_id", Message: "movie id is required"}
	}
	endpoint := fmt.Sprintf("%s/shows?movie_id=%s", c.baseURL, url.QueryEscape(movieID.String()))

	var rows []restShow
	if err := c.getJSON(ctx, endpoint, &rows); err != nil {
		return nil, err
	}

	shows := make([]model.ShowWithVenue, 0, len(rows))
	for _, row := range rows {
		startsAt, err := parseShowTime(row.ShowTime)
		if err != nil {
			return nil, &NetworkError{Op: "decode " + endpoint, Err: err}
		}
		screenID := row.Screen.ID
		if screenID.IsZero() {
			screenID = row.ScreenID
		}
		shows = append(shows, model.ShowWithVenue{
			Show: model.Show{
				ID:             row.ID,
				MovieID:        row.MovieID,
				ScreenID:       screenID,
				StartsAt:       startsAt,
				Price:          row.Price,
				AvailableSeats: row.AvailableSeats,
			},
			Screen: model.Screen{
				ID:        screenID,
				TheaterID: row.Screen.Theater.ID,
				Name:      row.Screen.Name,
				Capacity:  row.Screen.TotalSeats,
				Type:      row.Screen.Type,
			},
			Theater: row.Screen.Theater,
		})
	}
	sortShows(shows)
	return shows, nil
}

// ListBookedSeats returns the labels marked booked for a show.
func (c *RESTClient) ListBookedSeats(ctx context.Context, showID model.ID) ([]string, error) {
	if showID.IsZero() {
		return nil, &ValidationError{Field: "show_id", Message: "show id is required"}
	}
	endpoint := fmt.Sprintf("%s/seats/%s", c.baseURL, url.PathEscape(showID.String()))

	var seats []restSeat
	if err := c.getJSON(ctx, endpoint, &seats); err != nil {
		return nil, err
	}
	booked := make([]string, 0, len(seats))
	for _, seat := range seats {
		if seat.IsBooked {
			booked = append(booked, seat.SeatNumber)
		}
	}
	return booked, nil
}

// SubmitBooking books the requested seats for the signed-in user.
func (c *RESTClient) SubmitBooking(ctx context.Context, sess model.Session, req model.BookingRequest) (model.Booking, error) {
	if err := validateBooking(sess, req); err != nil {
		return model.Booking{}, err
	}
	var booking model.Booking
	err := c.http.do(ctx, http.MethodPost, c.baseURL+"/bookings", bearer(sess.Token), req, &booking, restMessage)
	if err != nil {
		return model.Booking{}, err
	}
	if booking.ShowID.IsZero() {
		booking.ShowID = req.ShowID
	}
	if len(booking.SeatLabels) == 0 {
		booking.SeatLabels = append([]string(nil), req.SeatLabels...)
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = model.PaymentCompleted
	}
	if booking.PaymentMethod == "" {
		booking.PaymentMethod = req.Method
	}
	return booking, nil
}

func (c *RESTClient) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", email, password, false)
}

func (c *RESTClient) Register(ctx context.Context, email, password string) (model.AuthResult, error) {
	return c.authenticate(ctx, "/auth/register", email, password, true)
}

func (c *RESTClient) authenticate(ctx context.Context, path, email, password string, register bool) (model.AuthResult, error) {
	if err := ValidateCredentials(email, password, register); err != nil {
		return model.AuthResult{}, err
	}
	endpoint := c.baseURL + path
	body := credentials{Email: strings.TrimSpace(email), Password: password}

	var result model.AuthResult
	if err := c.http.do(ctx, http.MethodPost, endpoint, nil, body, &result, restMessage); err != nil {
		return model.AuthResult{}, err
	}
	if result.Token == "" {
		return model.AuthResult{}, &NetworkError{Op: "decode " + endpoint, Err: fmt.Errorf("response has no token")}
	}
	return result, nil
}

func (c *RESTClient) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.http.do(ctx, http.MethodGet, endpoint, nil, nil, out, restMessage)
}

// restMessage reads the {"error": "..."} body the REST variant sends.
func restMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

var showTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// parseShowTime accepts RFC 3339 timestamps and the zone-less ISO forms SQL
// backends produce. Zone-less values are read in local time.
func parseShowTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range showTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized show time %q", raw)
}

func sortShows(shows []model.ShowWithVenue) {
	sort.SliceStable(shows, func(i, j int) bool {
		return shows[i].StartsAt.Before(shows[j].StartsAt)
	})
}
