package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"showtimedb-cli/model"
)

// SupabaseClient reads the catalog from PostgREST tables and authenticates
// against GoTrue. Every request carries the project's anon key; requests on
// behalf of a user carry the user's access token as the bearer.
type SupabaseClient struct {
	baseURL string
	anonKey string
	http    requester
	now     func() time.Time
}

func NewSupabaseClient(projectURL, anonKey string, opts Options) *SupabaseClient {
	return &SupabaseClient{
		baseURL: strings.TrimRight(projectURL, "/"),
		anonKey: anonKey,
		http:    opts.requester(),
		now:     time.Now,
	}
}

var _ Backend = (*SupabaseClient)(nil)

type sbShow struct {
	ID          model.ID `json:"id"`
	MovieID     model.ID `json:"movie_id"`
	ScreenID    model.ID `json:"screen_id"`
	ShowDate    string   `json:"show_date"`
	ShowTime    string   `json:"show_time"`
	TicketPrice float64  `json:"ticket_price"`
	Screen      sbScreen `json:"screen"`
}

type sbScreen struct {
	ID           model.ID      `json:"id"`
	TheaterID    model.ID      `json:"theater_id"`
	Capacity     int           `json:"capacity"`
	ScreenType   string        `json:"screen_type"`
	ScreenNumber string        `json:"screen_number"`
	Theater      model.Theater `json:"theater"`
}

type sbNewBooking struct {
	CustomerID    model.ID            `json:"customer_id"`
	ShowID        model.ID            `json:"show_id"`
	TotalAmount   float64             `json:"total_amount"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

type sbBooking struct {
	ID            model.ID            `json:"id"`
	ShowID        model.ID            `json:"show_id"`
	TotalAmount   float64             `json:"total_amount"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	CreatedAt     *time.Time          `json:"created_at"`
}

type sbBookingSeat struct {
	BookingID  model.ID `json:"booking_id"`
	SeatNumber string   `json:"seat_number"`
}

type sbPayment struct {
	BookingID     model.ID            `json:"booking_id"`
	Amount        float64             `json:"amount"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	TransactionID string              `json:"transaction_id"`
}

type sbAuth struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID    model.ID `json:"id"`
		Email string   `json:"email"`
	} `json:"user"`
}

func (c *SupabaseClient) ListMovies(ctx context.Context) ([]model.Movie, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "title.asc")

	var movies []model.Movie
	if err := c.get(ctx, c.table("movies", q), &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// ListShows returns today's and future showtimes for a movie.
func (c *SupabaseClient) ListShows(ctx context.Context, movieID model.ID) ([]model.ShowWithVenue, error) {
	if movieID.IsZero() {
		return nil, &ValidationError{Field: "movie_id", Message: "movie id is required"}
	}
	q := url.Values{}
	q.Set("select", "*,screen:screens(*,theater:theaters(*))")
	q.Set("movie_id", "eq."+movieID.String())
	q.Set("show_date", "gte."+c.now().Format(time.DateOnly))
	q.Set("order", "show_date.asc,show_time.asc")
	endpoint := c.table("shows", q)

	var rows []sbShow
	if err := c.get(ctx, endpoint, &rows); err != nil {
		return nil, err
	}

	shows := make([]model.ShowWithVenue, 0, len(rows))
	for _, row := range rows {
		startsAt, err := parseShowTime(row.ShowDate + "T" + normalizeClock(row.ShowTime))
		if err != nil {
			return nil, &NetworkError{Op: "decode " + endpoint, Err: err}
		}
		theater := row.Screen.Theater
		if theater.ID.IsZero() {
			theater.ID = row.Screen.TheaterID
		}
		shows = append(shows, model.ShowWithVenue{
			Show: model.Show{
				ID:       row.ID,
				MovieID:  row.MovieID,
				ScreenID: row.ScreenID,
				StartsAt: startsAt,
				Price:    row.TicketPrice,
			},
			Screen: model.Screen{
				ID:        row.Screen.ID,
				TheaterID: theater.ID,
				Name:      screenName(row.Screen.ScreenNumber),
				Capacity:  row.Screen.Capacity,
				Type:      row.Screen.ScreenType,
			},
			Theater: theater,
		})
	}
	sortShows(shows)
	return shows, nil
}

// ListBookedSeats returns the seat labels of every booking for the show that
// has not failed.
func (c *SupabaseClient) ListBookedSeats(ctx context.Context, showID model.ID) ([]string, error) {
	if showID.IsZero() {
		return nil, &ValidationError{Field: "show_id", Message: "show id is required"}
	}
	q := url.Values{}
	q.Set("select", "seat_number,bookings!inner(show_id,payment_status)")
	q.Set("bookings.show_id", "eq."+showID.String())
	q.Set("bookings.payment_status", "neq."+string(model.PaymentFailed))

	var rows []struct {
		SeatNumber string `json:"seat_number"`
	}
	if err := c.get(ctx, c.table("booking_seats", q), &rows); err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.SeatNumber)
	}
	return labels, nil
}

// SubmitBooking records a pending booking, its seats and the simulated
// payment, then marks the booking completed. If any later step fails the
// booking is marked failed so its seats are released.
func (c *SupabaseClient) SubmitBooking(ctx context.Context, sess model.Session, req model.BookingRequest) (model.Booking, error) {
	if err := validateBooking(sess, req); err != nil {
		return model.Booking{}, err
	}
	method := req.Method
	if method == "" {
		method = model.PaymentCard
	}

	var created []sbBooking
	err := c.post(ctx, "bookings", sess.Token, []sbNewBooking{{
		CustomerID:    sess.User.ID,
		ShowID:        req.ShowID,
		TotalAmount:   req.Amount,
		PaymentStatus: model.PaymentPending,
	}}, &created)
	if err != nil {
		return model.Booking{}, err
	}
	if len(created) == 0 || created[0].ID.IsZero() {
		return model.Booking{}, &NetworkError{Op: "decode bookings", Err: errors.New("insert returned no row")}
	}
	row := created[0]

	if err := c.finishBooking(ctx, sess.Token, row.ID, req, method); err != nil {
		c.markFailed(ctx, sess.Token, row.ID)
		return model.Booking{}, err
	}

	booking := model.Booking{
		ID:            row.ID,
		ShowID:        req.ShowID,
		SeatLabels:    append([]string(nil), req.SeatLabels...),
		TotalAmount:   req.Amount,
		PaymentStatus: model.PaymentCompleted,
		PaymentMethod: method,
	}
	if row.CreatedAt != nil {
		booking.CreatedAt = *row.CreatedAt
	}
	return booking, nil
}

func (c *SupabaseClient) finishBooking(ctx context.Context, token string, bookingID model.ID, req model.BookingRequest, method model.PaymentMethod) error {
	seats := make([]sbBookingSeat, 0, len(req.SeatLabels))
	for _, label := range req.SeatLabels {
		seats = append(seats, sbBookingSeat{BookingID: bookingID, SeatNumber: label})
	}
	if err := c.post(ctx, "booking_seats", token, seats, nil); err != nil {
		return err
	}

	payment := []sbPayment{{
		BookingID:     bookingID,
		Amount:        req.Amount,
		PaymentMethod: method,
		TransactionID: uuid.NewString(),
	}}
	if err := c.post(ctx, "payments", token, payment, nil); err != nil {
		return err
	}
	return c.setStatus(ctx, token, bookingID, model.PaymentCompleted)
}

func (c *SupabaseClient) markFailed(ctx context.Context, token string, bookingID model.ID) {
	if err := c.setStatus(ctx, token, bookingID, model.PaymentFailed); err != nil {
		c.http.log.Warn("mark booking failed", "booking_id", bookingID, "error", err)
	}
}

func (c *SupabaseClient) setStatus(ctx context.Context, token string, bookingID model.ID, status model.PaymentStatus) error {
	q := url.Values{}
	q.Set("id", "eq."+bookingID.String())
	body := map[string]model.PaymentStatus{"payment_status": status}
	header := c.headers(token)
	header.Set("Prefer", "return=minimal")
	return c.http.do(ctx, http.MethodPatch, c.table("bookings", q), header, body, nil, supabaseMessage)
}

func (c *SupabaseClient) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	if err := ValidateCredentials(email, password, false); err != nil {
		return model.AuthResult{}, err
	}
	return c.authenticate(ctx, c.baseURL+"/auth/v1/token?grant_type=password", email, password)
}

// Register signs up a new user. Projects that require email confirmation
// return no session; that case is reported as a ServiceError asking the user
// to confirm first.
func (c *SupabaseClient) Register(ctx context.Context, email, password string) (model.AuthResult, error) {
	if err := ValidateCredentials(email, password, true); err != nil {
		return model.AuthResult{}, err
	}
	return c.authenticate(ctx, c.baseURL+"/auth/v1/signup", email, password)
}

func (c *SupabaseClient) authenticate(ctx context.Context, endpoint, email, password string) (model.AuthResult, error) {
	body := credentials{Email: strings.TrimSpace(email), Password: password}

	var auth sbAuth
	if err := c.http.do(ctx, http.MethodPost, endpoint, c.headers(""), body, &auth, supabaseMessage); err != nil {
		return model.AuthResult{}, err
	}
	if auth.AccessToken == "" {
		return model.AuthResult{}, &ServiceError{
			Status:   http.StatusOK,
			Message:  "account created; confirm your email before signing in",
			Endpoint: endpoint,
		}
	}
	return model.AuthResult{
		Token: auth.AccessToken,
		User:  model.User{ID: auth.User.ID, Email: auth.User.Email},
	}, nil
}

func (c *SupabaseClient) table(name string, q url.Values) string {
	endpoint := c.baseURL + "/rest/v1/" + name
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	return endpoint
}

func (c *SupabaseClient) headers(token string) http.Header {
	if token == "" {
		token = c.anonKey
	}
	h := bearer(token)
	h.Set("apikey", c.anonKey)
	return h
}

func (c *SupabaseClient) get(ctx context.Context, endpoint string, out any) error {
	return c.http.do(ctx, http.MethodGet, endpoint, c.headers(""), nil, out, supabaseMessage)
}

func (c *SupabaseClient) post(ctx context.Context, table, token string, body, out any) error {
	header := c.headers(token)
	if out != nil {
		header.Set("Prefer", "return=representation")
	} else {
		header.Set("Prefer", "return=minimal")
	}
	return c.http.do(ctx, http.MethodPost, c.table(table, nil), header, body, out, supabaseMessage)
}

// supabaseMessage reads the error shapes used by PostgREST and GoTrue.
func supabaseMessage(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, candidate := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// normalizeClock pads "HH:MM" to "HH:MM:SS" so Postgres time values parse
// with the shared layouts.
func normalizeClock(clock string) string {
	clock = strings.TrimSpace(clock)
	if strings.Count(clock, ":") == 1 {
		return clock + ":00"
	}
	return clock
}

func screenName(number string) string {
	if number == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(number), "screen") {
		return number
	}
	return fmt.Sprintf("Screen %s", number)
}
