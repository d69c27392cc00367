package devserver

import "time"

// SeedData is a catalog to load into an empty repository. IDs are assigned
// by the caller and referenced across the slices. Seats are generated from
// each screen's capacity when shows are inserted.
type SeedData struct {
	Theaters []Theater
	Screens  []Screen
	Movies   []Movie
	Shows    []Show
}

const placeholderPoster = "https://images.pexels.com/photos/7974/pexels-photo.jpg"

// DefaultSeed returns the demo catalog: two theaters with one screen each,
// five movies, and three days of shows for the first three movies on both
// screens.
func DefaultSeed(now time.Time) SeedData {
	data := SeedData{
		Theaters: []Theater{
			{ID: 1, Name: "Cinema Plaza", Location: "Downtown"},
			{ID: 2, Name: "Mega Screen", Location: "Mall Center"},
		},
		Screens: []Screen{
			{ID: 1, TheaterID: 1, Name: "Screen A", TotalSeats: 100, Type: "Standard"},
			{ID: 2, TheaterID: 2, Name: "Screen B", TotalSeats: 80, Type: "IMAX"},
		},
		Movies: []Movie{
			{ID: 1, Title: "The Matrix", Description: "A computer hacker learns about the true nature of reality.", Genre: "Sci-Fi", Language: "English", Duration: 136, Rating: 8.7, PosterURL: placeholderPoster},
			{ID: 2, Title: "Inception", Description: "A skilled thief leads a team to plant an idea in someone's mind.", Genre: "Sci-Fi", Language: "English", Duration: 148, Rating: 8.8, PosterURL: placeholderPoster},
			{ID: 3, Title: "The Dark Knight", Description: "When Batman faces a criminal mastermind, chaos ensues.", Genre: "Action", Language: "English", Duration: 152, Rating: 9.0, PosterURL: placeholderPoster},
			{ID: 4, Title: "Interstellar", Description: "A team of astronauts travel to a distant galaxy to ensure human survival.", Genre: "Sci-Fi", Language: "English", Duration: 169, Rating: 8.6, PosterURL: placeholderPoster},
			{ID: 5, Title: "Pulp Fiction", Description: "Multiple interconnected stories of Los Angeles mobsters.", Genre: "Drama", Language: "English", Duration: 154, Rating: 8.9, PosterURL: placeholderPoster},
		},
	}

	base := now.Truncate(time.Hour)
	var id int64
	for _, movie := range data.Movies[:3] {
		for day := 0; day < 3; day++ {
			at := base.AddDate(0, 0, day).Add(time.Duration(14+(day%2)*6) * time.Hour)
			for _, screen := range data.Screens {
				id++
				price := 12.50
				if screen.ID != 1 {
					price = 10.00
				}
				data.Shows = append(data.Shows, Show{
					ID:             id,
					MovieID:        movie.ID,
					ScreenID:       screen.ID,
					ShowTime:       at,
					Price:          price,
					AvailableSeats: screen.TotalSeats,
				})
			}
		}
	}
	return data
}
