package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"showtimedb-cli/booking"
)

const mysqlDuplicateEntry = 1062

// MySQLRepository stores the catalog and bookings in MySQL.
type MySQLRepository struct {
	db *sql.DB
}

var _ Repository = (*MySQLRepository)(nil)

// OpenMySQL connects with dsn, verifies the connection and creates missing
// tables. Times are always scanned into local time.
func OpenMySQL(ctx context.Context, dsn string) (*MySQLRepository, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.Local

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	r := &MySQLRepository{db: db}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INT PRIMARY KEY AUTO_INCREMENT,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS theaters (
		id INT PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(255) NOT NULL,
		location VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS screens (
		id INT PRIMARY KEY AUTO_INCREMENT,
		theater_id INT NOT NULL,
		name VARCHAR(255) NOT NULL,
		total_seats INT NOT NULL,
		screen_type VARCHAR(50) NOT NULL DEFAULT 'Standard',
		FOREIGN KEY (theater_id) REFERENCES theaters(id)
	)`,
	`CREATE TABLE IF NOT EXISTS movies (
		id INT PRIMARY KEY AUTO_INCREMENT,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		genre VARCHAR(100),
		language VARCHAR(100),
		duration INT,
		rating FLOAT,
		poster_url VARCHAR(255)
	)`,
	`CREATE TABLE IF NOT EXISTS shows (
		id INT PRIMARY KEY AUTO_INCREMENT,
		movie_id INT NOT NULL,
		screen_id INT NOT NULL,
		show_time DATETIME NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		available_seats INT NOT NULL,
		FOREIGN KEY (movie_id) REFERENCES movies(id),
		FOREIGN KEY (screen_id) REFERENCES screens(id)
	)`,
	`CREATE TABLE IF NOT EXISTS seats (
		id INT PRIMARY KEY AUTO_INCREMENT,
		show_id INT NOT NULL,
		seat_number VARCHAR(10) NOT NULL,
		is_booked BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE KEY uniq_show_seat (show_id, seat_number),
		FOREIGN KEY (show_id) REFERENCES shows(id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id INT PRIMARY KEY AUTO_INCREMENT,
		user_id INT NOT NULL,
		show_id INT NOT NULL,
		total_price DECIMAL(10, 2) NOT NULL,
		payment_status VARCHAR(20) NOT NULL,
		payment_method VARCHAR(20) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (show_id) REFERENCES shows(id)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		id INT PRIMARY KEY AUTO_INCREMENT,
		booking_id INT NOT NULL,
		show_id INT NOT NULL,
		seat_number VARCHAR(10) NOT NULL,
		UNIQUE KEY uniq_booked_seat (show_id, seat_number),
		FOREIGN KEY (booking_id) REFERENCES bookings(id)
	)`,
}

func (r *MySQLRepository) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func (r *MySQLRepository) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash) VALUES (?, ?)", email, passwordHash)
	if err != nil {
		if isDuplicate(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}, nil
}

func (r *MySQLRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *MySQLRepository) ListMovies(ctx context.Context) ([]Movie, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, COALESCE(description, ''), COALESCE(genre, ''),
		COALESCE(language, ''), COALESCE(duration, 0), COALESCE(rating, 0), COALESCE(poster_url, '')
		FROM movies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []Movie
	for rows.Next() {
		var m Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Genre, &m.Language, &m.Duration, &m.Rating, &m.PosterURL); err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

const showDetailQuery = `SELECT sh.id, sh.movie_id, sh.screen_id, sh.show_time, sh.price, sh.available_seats,
	sc.id, sc.theater_id, sc.name, sc.total_seats, sc.screen_type,
	t.id, t.name, t.location
	FROM shows sh
	JOIN screens sc ON sh.screen_id = sc.id
	JOIN theaters t ON sc.theater_id = t.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShowDetail(s rowScanner) (ShowDetail, error) {
	var d ShowDetail
	err := s.Scan(&d.ID, &d.MovieID, &d.ScreenID, &d.ShowTime, &d.Price, &d.AvailableSeats,
		&d.Screen.ID, &d.Screen.TheaterID, &d.Screen.Name, &d.Screen.TotalSeats, &d.Screen.Type,
		&d.Theater.ID, &d.Theater.Name, &d.Theater.Location)
	return d, err
}

func (r *MySQLRepository) ListShows(ctx context.Context, movieID int64) ([]ShowDetail, error) {
	rows, err := r.db.QueryContext(ctx, showDetailQuery+" WHERE sh.movie_id = ? ORDER BY sh.show_time, sh.id", movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shows []ShowDetail
	for rows.Next() {
		d, err := scanShowDetail(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, d)
	}
	return shows, rows.Err()
}

func (r *MySQLRepository) GetShow(ctx context.Context, showID int64) (ShowDetail, error) {
	d, err := scanShowDetail(r.db.QueryRowContext(ctx, showDetailQuery+" WHERE sh.id = ?", showID))
	if errors.Is(err, sql.ErrNoRows) {
		return ShowDetail{}, ErrNotFound
	}
	return d, err
}

func (r *MySQLRepository) ListSeats(ctx context.Context, showID int64) ([]Seat, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM shows WHERE id = ?", showID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, show_id, seat_number, is_booked FROM seats WHERE show_id = ? ORDER BY id", showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []Seat
	for rows.Next() {
		var s Seat
		if err := rows.Scan(&s.ID, &s.ShowID, &s.SeatNumber, &s.IsBooked); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// CreateBooking locks the requested seat rows, so two requests for the same
// seat serialize and the second sees it booked.
func (r *MySQLRepository) CreateBooking(ctx context.Context, b NewBooking) (Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Booking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(b.SeatNumbers)), ",")
	args := make([]any, 0, len(b.SeatNumbers)+1)
	args = append(args, b.ShowID)
	for _, label := range b.SeatNumbers {
		args = append(args, label)
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT seat_number, is_booked FROM seats WHERE show_id = ? AND seat_number IN ("+placeholders+") FOR UPDATE",
		args...)
	if err != nil {
		return Booking{}, err
	}
	found := 0
	var taken []string
	for rows.Next() {
		var (
			label  string
			booked bool
		)
		if err := rows.Scan(&label, &booked); err != nil {
			rows.Close()
			return Booking{}, err
		}
		found++
		if booked {
			taken = append(taken, label)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Booking{}, err
	}
	rows.Close()
	if len(taken) > 0 {
		return Booking{}, &SeatTakenError{Seats: taken}
	}
	if found != len(b.SeatNumbers) {
		return Booking{}, ErrNotFound
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO bookings (user_id, show_id, total_price, payment_status, payment_method) VALUES (?, ?, ?, 'completed', ?)",
		b.UserID, b.ShowID, b.TotalPrice, b.PaymentMethod)
	if err != nil {
		return Booking{}, err
	}
	bookingID, err := res.LastInsertId()
	if err != nil {
		return Booking{}, err
	}
	for _, label := range b.SeatNumbers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO booking_seats (booking_id, show_id, seat_number) VALUES (?, ?, ?)",
			bookingID, b.ShowID, label); err != nil {
			if isDuplicate(err) {
				return Booking{}, &SeatTakenError{Seats: []string{label}}
			}
			return Booking{}, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE seats SET is_booked = TRUE WHERE show_id = ? AND seat_number IN ("+placeholders+")",
		args...); err != nil {
		return Booking{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE shows SET available_seats = available_seats - ? WHERE id = ?",
		len(b.SeatNumbers), b.ShowID); err != nil {
		return Booking{}, err
	}

	if err := tx.Commit(); err != nil {
		if isDuplicate(err) {
			return Booking{}, &SeatTakenError{}
		}
		return Booking{}, err
	}
	committed = true
	return Booking{
		ID:            bookingID,
		UserID:        b.UserID,
		ShowID:        b.ShowID,
		SeatNumbers:   append([]string(nil), b.SeatNumbers...),
		TotalPrice:    b.TotalPrice,
		PaymentStatus: "completed",
		PaymentMethod: b.PaymentMethod,
		CreatedAt:     time.Now(),
	}, nil
}

// Seed inserts data with its given IDs inside one transaction.
func (r *MySQLRepository) Seed(ctx context.Context, data SeedData) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies").Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	exec := func(query string, args ...any) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}
	for _, t := range data.Theaters {
		if err := exec("INSERT INTO theaters (id, name, location) VALUES (?, ?, ?)", t.ID, t.Name, t.Location); err != nil {
			return false, fmt.Errorf("seed theater %d: %w", t.ID, err)
		}
	}
	capacity := make(map[int64]int, len(data.Screens))
	for _, s := range data.Screens {
		capacity[s.ID] = s.TotalSeats
		if err := exec("INSERT INTO screens (id, theater_id, name, total_seats, screen_type) VALUES (?, ?, ?, ?, ?)",
			s.ID, s.TheaterID, s.Name, s.TotalSeats, s.Type); err != nil {
			return false, fmt.Errorf("seed screen %d: %w", s.ID, err)
		}
	}
	for _, m := range data.Movies {
		if err := exec("INSERT INTO movies (id, title, description, genre, language, duration, rating, poster_url) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			m.ID, m.Title, m.Description, m.Genre, m.Language, m.Duration, m.Rating, m.PosterURL); err != nil {
			return false, fmt.Errorf("seed movie %d: %w", m.ID, err)
		}
	}
	for _, sh := range data.Shows {
		if err := exec("INSERT INTO shows (id, movie_id, screen_id, show_time, price, available_seats) VALUES (?, ?, ?, ?, ?, ?)",
			sh.ID, sh.MovieID, sh.ScreenID, sh.ShowTime, sh.Price, sh.AvailableSeats); err != nil {
			return false, fmt.Errorf("seed show %d: %w", sh.ID, err)
		}
		for _, label := range booking.GenerateSeatLabels(capacity[sh.ScreenID]) {
			if err := exec("INSERT INTO seats (show_id, seat_number) VALUES (?, ?)", sh.ID, label); err != nil {
				return false, fmt.Errorf("seed seats for show %d: %w", sh.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}
