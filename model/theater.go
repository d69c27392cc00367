package model

import "time"

type Theater struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type Screen struct {
	ID        ID     `json:"id"`
	TheaterID ID     `json:"theater_id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Type      string `json:"screen_type"`
}

type Show struct {
	ID             ID        `json:"id"`
	MovieID        ID        `json:"movie_id"`
	ScreenID       ID        `json:"screen_id"`
	StartsAt       time.Time `json:"starts_at"`
	Price          float64   `json:"price"`
	AvailableSeats int       `json:"available_seats"`
}

// ShowWithVenue is a show joined with the screen it plays on and the theater
// that owns the screen. Data clients assemble it once per fetched show.
type ShowWithVenue struct {
	Show
	Screen  Screen  `json:"screen"`
	Theater Theater `json:"theater"`
}
