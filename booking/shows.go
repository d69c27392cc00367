package booking

import (
	"sort"
	"time"

	"showtimedb-cli/model"
)

// ShowGroup is one day of showtimes, split by theater.
type ShowGroup struct {
	Date     time.Time
	Label    string
	Theaters []TheaterShows
}

type TheaterShows struct {
	Theater model.Theater
	Shows   []model.ShowWithVenue
}

// GroupShows orders shows by start time and groups them by calendar day and
// then by theater. Theaters keep the order of their first show that day.
func GroupShows(shows []model.ShowWithVenue, now time.Time) []ShowGroup {
	sorted := append([]model.ShowWithVenue(nil), shows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartsAt.Before(sorted[j].StartsAt)
	})

	var groups []ShowGroup
	for _, show := range sorted {
		day := truncateDay(show.StartsAt)
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, ShowGroup{Date: day, Label: DayLabel(day, now)})
		}
		group := &groups[len(groups)-1]
		index := -1
		for i, ts := range group.Theaters {
			if theaterKey(ts.Theater) == theaterKey(show.Theater) {
				index = i
				break
			}
		}
		if index < 0 {
			group.Theaters = append(group.Theaters, TheaterShows{Theater: show.Theater})
			index = len(group.Theaters) - 1
		}
		group.Theaters[index].Shows = append(group.Theaters[index].Shows, show)
	}
	return groups
}

// DayLabel names a day relative to now: "Today", "Tomorrow", or "Mon, Jan 2".
func DayLabel(day time.Time, now time.Time) string {
	d := truncateDay(day)
	today := truncateDay(now.In(day.Location()))
	switch {
	case d.Equal(today):
		return "Today"
	case d.Equal(today.AddDate(0, 0, 1)):
		return "Tomorrow"
	default:
		return d.Format("Mon, Jan 2")
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func theaterKey(t model.Theater) string {
	if t.ID != "" {
		return "id:" + string(t.ID)
	}
	return "name:" + t.Name
}
