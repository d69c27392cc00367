package devserver

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"showtimedb-cli/booking"
	"showtimedb-cli/model"
)

const (
	showTimeLayout    = "2006-01-02T15:04:05"
	minPasswordLength = 6
)

type handler struct {
	repo Repository
	auth *Authenticator
	log  *slog.Logger
}

type userJSON struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type authJSON struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

type movieJSON struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Genre       string  `json:"genre"`
	Language    string  `json:"language"`
	Duration    int     `json:"duration"`
	Rating      float64 `json:"rating"`
	PosterURL   string  `json:"poster_url"`
}

type theaterJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type screenJSON struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	TotalSeats int         `json:"total_seats"`
	ScreenType string      `json:"screen_type"`
	Theater    theaterJSON `json:"theater"`
}

type showJSON struct {
	ID             int64      `json:"id"`
	MovieID        int64      `json:"movie_id"`
	ScreenID       int64      `json:"screen_id"`
	ShowTime       string     `json:"show_time"`
	Price          float64    `json:"price"`
	AvailableSeats int        `json:"available_seats"`
	Screen         screenJSON `json:"screen"`
}

type seatJSON struct {
	ID         int64  `json:"id"`
	ShowID     int64  `json:"show_id"`
	SeatNumber string `json:"seat_number"`
	IsBooked   bool   `json:"is_booked"`
}

type bookingJSON struct {
	ID            int64    `json:"id"`
	ShowID        int64    `json:"show_id"`
	SeatIDs       []string `json:"seat_ids"`
	TotalPrice    float64  `json:"total_price"`
	PaymentStatus string   `json:"payment_status"`
	PaymentMethod string   `json:"payment_method"`
	CreatedAt     string   `json:"created_at"`
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"error": message})
}

func (h *handler) internal(c echo.Context, op string, err error) error {
	h.log.Error(op, "error", err, "request_id", c.Response().Header().Get(echo.HeaderXRequestID))
	return errorJSON(c, http.StatusInternalServerError, "internal server error")
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) bindCredentials(c echo.Context) (string, string, error) {
	var body credentialsBody
	if err := c.Bind(&body); err != nil {
		return "", "", errors.New("Invalid request body")
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		return "", "", errors.New("Email and password required")
	}
	return email, body.Password, nil
}

func (h *handler) register(c echo.Context) error {
	email, password, err := h.bindCredentials(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid email address")
	}
	if len(password) < minPasswordLength {
		return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	hash, err := h.auth.HashPassword(password)
	if err != nil {
		return h.internal(c, "hash password", err)
	}
	ctx := c.Request().Context()
	user, err := h.repo.CreateUser(ctx, email, hash)
	if errors.Is(err, ErrEmailTaken) {
		return errorJSON(c, http.StatusConflict, "Email already registered")
	}
	if err != nil {
		return h.internal(c, "create user", err)
	}
	token, err := h.auth.IssueToken(user)
	if err != nil {
		return h.internal(c, "issue token", err)
	}
	h.log.Info("user registered", "user_id", user.ID)
	return c.JSON(http.StatusCreated, authJSON{Token: token, User: userJSON{ID: user.ID, Email: user.Email}})
}

func (h *handler) login(c echo.Context) error {
	email, password, err := h.bindCredentials(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	user, err := h.repo.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return h.internal(c, "find user", err)
	}
	if err != nil || !h.auth.CheckPassword(user.PasswordHash, password) {
		return errorJSON(c, http.StatusUnauthorized, "Invalid email or password")
	}
	token, err := h.auth.IssueToken(user)
	if err != nil {
		return h.internal(c, "issue token", err)
	}
	return c.JSON(http.StatusOK, authJSON{Token: token, User: userJSON{ID: user.ID, Email: user.Email}})
}

func (h *handler) listMovies(c echo.Context) error {
	movies, err := h.repo.ListMovies(c.Request().Context())
	if err != nil {
		return h.internal(c, "list movies", err)
	}
	out := make([]movieJSON, 0, len(movies))
	for _, m := range movies {
		out = append(out, movieJSON{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Genre:       m.Genre,
			Language:    m.Language,
			Duration:    m.Duration,
			Rating:      m.Rating,
			PosterURL:   m.PosterURL,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) listShows(c echo.Context) error {
	raw := c.QueryParam("movie_id")
	if raw == "" {
		return errorJSON(c, http.StatusBadRequest, "movie_id required")
	}
	movieID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || movieID <= 0 {
		return errorJSON(c, http.StatusBadRequest, "invalid movie_id")
	}
	shows, err := h.repo.ListShows(c.Request().Context(), movieID)
	if err != nil {
		return h.internal(c, "list shows", err)
	}
	out := make([]showJSON, 0, len(shows))
	for _, s := range shows {
		out = append(out, showJSON{
			ID:             s.ID,
			MovieID:        s.MovieID,
			ScreenID:       s.ScreenID,
			ShowTime:       s.ShowTime.Format(showTimeLayout),
			Price:          s.Price,
			AvailableSeats: s.AvailableSeats,
			Screen: screenJSON{
				ID:         s.Screen.ID,
				Name:       s.Screen.Name,
				TotalSeats: s.Screen.TotalSeats,
				ScreenType: s.Screen.Type,
				Theater:    theaterJSON{ID: s.Theater.ID, Name: s.Theater.Name, Location: s.Theater.Location},
			},
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) listSeats(c echo.Context) error {
	showID, err := strconv.ParseInt(c.Param("showId"), 10, 64)
	if err != nil || showID <= 0 {
		return errorJSON(c, http.StatusBadRequest, "invalid show id")
	}
	seats, err := h.repo.ListSeats(c.Request().Context(), showID)
	if errors.Is(err, ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Show not found")
	}
	if err != nil {
		return h.internal(c, "list seats", err)
	}
	out := make([]seatJSON, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatJSON{ID: s.ID, ShowID: s.ShowID, SeatNumber: s.SeatNumber, IsBooked: s.IsBooked})
	}
	return c.JSON(http.StatusOK, out)
}

type bookingBody struct {
	ShowID        model.ID `json:"show_id"`
	SeatIDs       []string `json:"seat_ids"`
	Amount        float64  `json:"amount"`
	PaymentMethod string   `json:"payment_method"`
}

func (h *handler) createBooking(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return errorJSON(c, http.StatusUnauthorized, "Missing token")
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if body.ShowID.IsZero() || len(body.SeatIDs) == 0 {
		return errorJSON(c, http.StatusBadRequest, "show_id and seat_ids required")
	}
	showID, err := strconv.ParseInt(body.ShowID.String(), 10, 64)
	if err != nil || showID <= 0 {
		return errorJSON(c, http.StatusBadRequest, "invalid show_id")
	}
	method := model.PaymentMethod(strings.ToLower(strings.TrimSpace(body.PaymentMethod)))
	if method == "" {
		method = model.PaymentCard
	}
	if !method.Valid() {
		return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("Unsupported payment method %q", body.PaymentMethod))
	}

	ctx := c.Request().Context()
	show, err := h.repo.GetShow(ctx, showID)
	if errors.Is(err, ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Show not found")
	}
	if err != nil {
		return h.internal(c, "get show", err)
	}

	onLayout := make(map[string]bool, show.Screen.TotalSeats)
	for _, label := range booking.GenerateSeatLabels(show.Screen.TotalSeats) {
		onLayout[label] = true
	}
	seen := make(map[string]bool, len(body.SeatIDs))
	labels := make([]string, 0, len(body.SeatIDs))
	for _, raw := range body.SeatIDs {
		label := strings.ToUpper(strings.TrimSpace(raw))
		if !onLayout[label] {
			return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("Unknown seat %q", raw))
		}
		if seen[label] {
			return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("Seat %s requested twice", label))
		}
		seen[label] = true
		labels = append(labels, label)
	}

	total := math.Round(show.Price*float64(len(labels))*100) / 100
	if body.Amount != 0 && math.Abs(body.Amount-total) > 0.005 {
		h.log.Warn("client amount differs from server total", "client", body.Amount, "server", total, "show_id", showID)
	}

	rec, err := h.repo.CreateBooking(ctx, NewBooking{
		UserID:        uid,
		ShowID:        showID,
		SeatNumbers:   labels,
		TotalPrice:    total,
		PaymentMethod: string(method),
	})
	var taken *SeatTakenError
	switch {
	case errors.As(err, &taken):
		msg := taken.Error()
		return errorJSON(c, http.StatusConflict, strings.ToUpper(msg[:1])+msg[1:])
	case errors.Is(err, ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "Show not found")
	case err != nil:
		return h.internal(c, "create booking", err)
	}

	h.log.Info("booking created", "booking_id", rec.ID, "user_id", uid, "show_id", showID, "seats", len(labels))
	return c.JSON(http.StatusCreated, bookingJSON{
		ID:            rec.ID,
		ShowID:        rec.ShowID,
		SeatIDs:       rec.SeatNumbers,
		TotalPrice:    rec.TotalPrice,
		PaymentStatus: rec.PaymentStatus,
		PaymentMethod: rec.PaymentMethod,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	})
}
