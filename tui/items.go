package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"showtimedb-cli/booking"
	"showtimedb-cli/model"
)

type movieItem struct {
	movie model.Movie
}

func (m movieItem) Title() string {
	if d := formatDuration(m.movie.DurationMinutes); d != "" {
		return fmt.Sprintf("%s (%s)", m.movie.Title, d)
	}
	return m.movie.Title
}

func (m movieItem) Description() string {
	var parts []string
	for _, p := range []string{m.movie.Genre, m.movie.Language} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if m.movie.Rating != "" {
		parts = append(parts, "Rated "+string(m.movie.Rating))
	}
	return strings.Join(parts, " • ")
}

func (m movieItem) FilterValue() string {
	return strings.ToLower(strings.Join([]string{m.movie.Title, m.movie.Genre, m.movie.Language}, " "))
}

type showItem struct {
	show     model.ShowWithVenue
	dayLabel string
}

func (s showItem) Title() string {
	screen := strings.TrimSpace(s.show.Screen.Name)
	if screen == "" {
		screen = "Screen"
	}
	if t := strings.TrimSpace(s.show.Screen.Type); t != "" {
		screen += " (" + t + ")"
	}
	return fmt.Sprintf("%s %s • %s • %s", s.dayLabel, s.show.StartsAt.Format("15:04"), s.show.Theater.Name, screen)
}

func (s showItem) Description() string {
	parts := []string{}
	if s.show.Theater.Location != "" {
		parts = append(parts, s.show.Theater.Location)
	}
	parts = append(parts, formatPrice(s.show.Price))
	switch {
	case s.show.AvailableSeats <= 0:
		parts = append(parts, "sold out")
	case s.show.AvailableSeats == 1:
		parts = append(parts, "1 seat left")
	default:
		parts = append(parts, fmt.Sprintf("%d seats left", s.show.AvailableSeats))
	}
	return strings.Join(parts, " • ")
}

func (s showItem) FilterValue() string {
	return strings.ToLower(strings.Join([]string{s.dayLabel, s.show.Theater.Name, s.show.Theater.Location, s.show.Screen.Name, s.show.Screen.Type}, " "))
}

func buildMovieItems(movies []model.Movie) []list.Item {
	items := make([]list.Item, 0, len(movies))
	for _, movie := range movies {
		items = append(items, movieItem{movie: movie})
	}
	return items
}

// buildShowItems lists shows grouped by day, then by theater.
func buildShowItems(shows []model.ShowWithVenue, now time.Time) []list.Item {
	var items []list.Item
	for _, group := range booking.GroupShows(shows, now) {
		for _, theater := range group.Theaters {
			for _, show := range theater.Shows {
				items = append(items, showItem{show: show, dayLabel: group.Label})
			}
		}
	}
	return items
}
