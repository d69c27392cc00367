// Package booking holds the booking flow: the seat layout derived from a
// screen's capacity, seat selection against the service's booked list, and
// the step machine that carries a user from the catalog to a confirmed
// booking. Nothing here performs I/O.
package booking

import "strconv"

// MaxRows is the number of rows a screen's seats are spread over.
const MaxRows = 10

// RowSize returns how many seats sit in each row for a screen of the given
// capacity.
func RowSize(capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return (capacity + MaxRows - 1) / MaxRows
}

// GenerateSeatLabels lays out capacity seats row-major, RowSize seats per row,
// and returns their labels ("A1", "A2", ...). The result depends only on
// capacity.
func GenerateSeatLabels(capacity int) []string {
	size := RowSize(capacity)
	if size == 0 {
		return nil
	}
	labels := make([]string, 0, capacity)
	for i := 0; i < capacity; i++ {
		labels = append(labels, SeatLabel(i/size, i%size+1))
	}
	return labels
}

// SeatLabel formats a zero-based row and a one-based column.
func SeatLabel(row int, column int) string {
	return string(rune('A'+row)) + strconv.Itoa(column)
}

// GridRows groups the generated labels by row. The last row may be short.
func GridRows(capacity int) [][]string {
	labels := GenerateSeatLabels(capacity)
	size := RowSize(capacity)
	if size == 0 {
		return nil
	}
	rows := make([][]string, 0, (len(labels)+size-1)/size)
	for start := 0; start < len(labels); start += size {
		end := min(start+size, len(labels))
		rows = append(rows, labels[start:end])
	}
	return rows
}
