package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"showtimedb-cli/model"
)

const testAnonKey = "anon-key"

func newTestSupabase(t *testing.T, handler http.HandlerFunc) *SupabaseClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != testAnonKey {
			t.Fatalf("missing apikey header on %s", r.URL.Path)
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	client := NewSupabaseClient(server.URL, testAnonKey, Options{HTTPClient: server.Client()})
	client.now = func() time.Time { return time.Date(2026, 2, 3, 10, 0, 0, 0, time.Local) }
	return client
}

func TestSupabase_ListShows(t *testing.T) {
	client := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/shows" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("movie_id") != "eq.m-1" || q.Get("show_date") != "gte.2026-02-03" {
			t.Fatalf("unexpected filters: %s", r.URL.RawQuery)
		}
		if !strings.Contains(q.Get("select"), "theater:theaters(*)") {
			t.Fatalf("venue join missing: %s", q.Get("select"))
		}
		if r.Header.Get("Authorization") != "Bearer "+testAnonKey {
			t.Fatalf("anonymous reads should use the anon key as bearer")
		}
		_, _ = w.Write([]byte(`[
  {"id": "s-1", "movie_id": "m-1", "screen_id": "sc-1", "show_date": "2026-02-03", "show_time": "18:30:00", "ticket_price": 12.5,
   "screen": {"id": "sc-1", "theater_id": "t-1", "capacity": 100, "screen_type": "IMAX", "screen_number": "1",
              "theater": {"id": "t-1", "name": "Downtown", "location": "Main St"}}}
]`))
	})

	shows, err := client.ListShows(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(shows) != 1 {
		t.Fatalf("expected 1 show, got %d", len(shows))
	}
	s := shows[0]
	if s.StartsAt.Hour() != 18 || s.StartsAt.Minute() != 30 || s.Price != 12.5 {
		t.Fatalf("unexpected show: %+v", s.Show)
	}
	if s.Screen.Capacity != 100 || s.Screen.Name != "Screen 1" || s.Screen.Type != "IMAX" {
		t.Fatalf("unexpected screen: %+v", s.Screen)
	}
	if s.Theater.Name != "Downtown" {
		t.Fatalf("unexpected theater: %+v", s.Theater)
	}
}

func TestSupabase_ListBookedSeats(t *testing.T) {
	client := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/rest/v1/booking_seats" || q.Get("bookings.show_id") != "eq.s-1" {
			t.Fatalf("unexpected request: %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		if q.Get("bookings.payment_status") != "neq.failed" {
			t.Fatalf("failed bookings should be excluded: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"seat_number":"A1"},{"seat_number":"C4"}]`))
	})

	seats, err := client.ListBookedSeats(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if strings.Join(seats, ",") != "A1,C4" {
		t.Fatalf("unexpected seats: %v", seats)
	}
}

type recordedCall struct {
	method string
	path   string
	query  string
	body   string
}

func TestSupabase_SubmitBooking(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	client := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		mu.Lock()
		calls = append(calls, recordedCall{r.Method, r.URL.Path, r.URL.RawQuery, string(raw)})
		mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Fatalf("writes must carry the user token")
		}
		switch r.URL.Path {
		case "/rest/v1/bookings":
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`[{"id":"b-1","show_id":"s-1","total_amount":25,"payment_status":"pending","created_at":"2026-02-03T10:00:00Z"}]`))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	})

	sess := model.Session{Token: "user-token", User: model.User{ID: "u-1", Email: "ana@example.com"}}
	req := model.BookingRequest{ShowID: "s-1", SeatLabels: []string{"A1", "A2"}, Amount: 25, Method: model.PaymentWallet}
	booking, err := client.SubmitBooking(context.Background(), sess, req)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if booking.ID != "b-1" || booking.PaymentStatus != model.PaymentCompleted || booking.PaymentMethod != model.PaymentWallet {
		t.Fatalf("unexpected booking: %+v", booking)
	}
	if booking.CreatedAt.IsZero() {
		t.Fatalf("created_at not carried over")
	}

	if len(calls) != 4 {
		t.Fatalf("expected 4 calls, got %d: %+v", len(calls), calls)
	}
	if !strings.Contains(calls[0].body, `"customer_id":"u-1"`) || !strings.Contains(calls[0].body, `"payment_status":"pending"`) {
		t.Fatalf("unexpected booking insert: %s", calls[0].body)
	}
	if calls[1].path != "/rest/v1/booking_seats" || !strings.Contains(calls[1].body, `"seat_number":"A2"`) {
		t.Fatalf("unexpected seats insert: %+v", calls[1])
	}
	if calls[2].path != "/rest/v1/payments" || !strings.Contains(calls[2].body, `"payment_method":"wallet"`) {
		t.Fatalf("unexpected payment insert: %+v", calls[2])
	}
	if calls[3].method != http.MethodPatch || calls[3].query != "id=eq.b-1" || !strings.Contains(calls[3].body, "completed") {
		t.Fatalf("unexpected status update: %+v", calls[3])
	}
}

func TestSupabase_SubmitBookingMarksFailed(t *testing.T) {
	var patched string
	client := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/v1/bookings" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[{"id":"b-2"}]`))
		case r.URL.Path == "/rest/v1/booking_seats":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
		case r.Method == http.MethodPatch:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			patched = body["payment_status"]
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	sess := model.Session{Token: "user-token", User: model.User{ID: "u-1"}}
	req := model.BookingRequest{ShowID: "s-1", SeatLabels: []string{"A1"}, Amount: 12.5}
	_, err := client.SubmitBooking(context.Background(), sess, req)
	if StatusCode(err) != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if UserMessage(err) != "duplicate key value violates unique constraint" {
		t.Fatalf("unexpected message: %q", UserMessage(err))
	}
	if patched != "failed" {
		t.Fatalf("booking not marked failed, got %q", patched)
	}
}

func TestSupabase_Login(t *testing.T) {
	client := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Fatalf("unexpected request: %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		var body credentials
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"bearer","user":{"id":"u-1","email":"ana@example.com"}}`))
	})

	result, err := client.Login(context.Background(), "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Token != "at" || result.User.ID != "u-1" {
		t.Fatalf("unexpected result: %+v", result)
	}

	_, err = client.Login(context.Background(), "ana@example.com", "nope")
	if UserMessage(err) != "Invalid login credentials" {
		t.Fatalf("unexpected message: %q", UserMessage(err))
	}
}

func TestSupabase_RegisterNeedsConfirmation(t *testing.T) {
	client := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"u-2","email":"new@example.com","confirmation_sent_at":"2026-02-03T10:00:00Z"}`))
	})

	_, err := client.Register(context.Background(), "new@example.com", "secret1")
	if !IsService(err) || !strings.Contains(UserMessage(err), "confirm your email") {
		t.Fatalf("expected confirmation notice, got %v", err)
	}
}

func TestSupabaseMessage(t *testing.T) {
	cases := map[string]string{
		`{"msg":"User already registered"}`:              "User already registered",
		`{"message":"permission denied","code":"42501"}`: "permission denied",
		`{"error":"invalid_grant"}`:                      "invalid_grant",
		`not json`:                                       "",
	}
	for body, want := range cases {
		if got := supabaseMessage([]byte(body)); got != want {
			t.Fatalf("supabaseMessage(%s) = %q, want %q", body, got, want)
		}
	}
}
