package booking

import "showtimedb-cli/model"

type SeatStatus int

const (
	SeatUnavailable SeatStatus = iota
	SeatAvailable
	SeatBooked
	SeatSelected
)

func (s SeatStatus) String() string {
	switch s {
	case SeatAvailable:
		return "available"
	case SeatBooked:
		return "booked"
	case SeatSelected:
		return "selected"
	default:
		return "unavailable"
	}
}

// Selection reconciles a show's generated seat layout with the labels the
// service reports as booked. Every layout label is exactly one of available,
// booked or selected.
type Selection struct {
	show     model.ShowWithVenue
	labels   []string
	onLayout map[string]bool
	booked   map[string]bool
	chosen   map[string]bool
	order    []string
	unplaced []string
}

func NewSelection(show model.ShowWithVenue, booked []string) *Selection {
	labels := GenerateSeatLabels(show.Screen.Capacity)
	s := &Selection{
		show:     show,
		labels:   labels,
		onLayout: make(map[string]bool, len(labels)),
		booked:   make(map[string]bool, len(booked)),
		chosen:   make(map[string]bool),
	}
	for _, label := range labels {
		s.onLayout[label] = true
	}
	for _, label := range booked {
		if !s.onLayout[label] {
			s.unplaced = append(s.unplaced, label)
			continue
		}
		s.booked[label] = true
	}
	return s
}

func (s *Selection) Show() model.ShowWithVenue {
	return s.show
}

func (s *Selection) Labels() []string {
	return append([]string(nil), s.labels...)
}

func (s *Selection) Status(label string) SeatStatus {
	switch {
	case !s.onLayout[label]:
		return SeatUnavailable
	case s.booked[label]:
		return SeatBooked
	case s.chosen[label]:
		return SeatSelected
	default:
		return SeatAvailable
	}
}

// Toggle flips an available seat into the selection or a selected seat out of
// it. Booked seats and labels outside the layout are left alone and Toggle
// reports false.
func (s *Selection) Toggle(label string) bool {
	switch s.Status(label) {
	case SeatAvailable:
		s.chosen[label] = true
		s.order = append(s.order, label)
		return true
	case SeatSelected:
		delete(s.chosen, label)
		for i, l := range s.order {
			if l == label {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return true
	default:
		return false
	}
}

// Selected returns the chosen labels in the order they were picked.
func (s *Selection) Selected() []string {
	return append([]string(nil), s.order...)
}

func (s *Selection) Count() int {
	return len(s.order)
}

func (s *Selection) Total() float64 {
	return float64(len(s.order)) * s.show.Price
}

func (s *Selection) CanCheckout() bool {
	return len(s.order) > 0
}

func (s *Selection) Clear() {
	s.chosen = make(map[string]bool)
	s.order = nil
}

func (s *Selection) AvailableCount() int {
	return len(s.labels) - len(s.booked) - len(s.order)
}

func (s *Selection) BookedCount() int {
	return len(s.booked)
}

// Unplaced returns booked labels reported by the service that do not exist on
// the generated layout.
func (s *Selection) Unplaced() []string {
	return append([]string(nil), s.unplaced...)
}
