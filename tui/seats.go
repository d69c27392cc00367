package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"showtimedb-cli/booking"
)

// seatGrid is the cursor and status line of the seat selection view.
type seatGrid struct {
	row        int
	col        int
	refreshing bool
	err        string
}

func (g *seatGrid) reset() {
	*g = seatGrid{}
}

// clamp keeps the cursor on a seat after the layout changed.
func (g *seatGrid) clamp(capacity int) {
	rows := booking.GridRows(capacity)
	if len(rows) == 0 {
		g.row, g.col = 0, 0
		return
	}
	g.row = max(0, min(g.row, len(rows)-1))
	g.col = max(0, min(g.col, len(rows[g.row])-1))
}

func (g *seatGrid) move(rows [][]string, dRow, dCol int) {
	if len(rows) == 0 {
		return
	}
	g.row = max(0, min(g.row+dRow, len(rows)-1))
	g.col = max(0, min(g.col+dCol, len(rows[g.row])-1))
}

func (g seatGrid) label(rows [][]string) string {
	if g.row >= len(rows) || g.col >= len(rows[g.row]) {
		return ""
	}
	return rows[g.row][g.col]
}

func (m appModel) handleSeatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	rows := booking.GridRows(m.flow.Show().Screen.Capacity)
	switch {
	case key.Matches(msg, m.keys.QuitSoft):
		return m, tea.Quit, true
	case key.Matches(msg, m.keys.Back):
		return m.stepBack()
	case key.Matches(msg, m.keys.Up):
		m.seats.move(rows, -1, 0)
	case key.Matches(msg, m.keys.Down):
		m.seats.move(rows, 1, 0)
	case key.Matches(msg, m.keys.Left):
		m.seats.move(rows, 0, -1)
	case key.Matches(msg, m.keys.Right):
		m.seats.move(rows, 0, 1)
	case key.Matches(msg, m.keys.Toggle):
		label := m.seats.label(rows)
		if label == "" {
			return m, nil, true
		}
		m.seats.err = ""
		if !m.flow.Toggle(label) {
			if sel := m.flow.Selection(); sel != nil && sel.Status(label) == booking.SeatBooked {
				m.seats.err = fmt.Sprintf("Seat %s is already booked.", label)
			}
		}
	case key.Matches(msg, m.keys.Refresh):
		if m.seats.refreshing {
			return m, nil, true
		}
		m.seats.refreshing = true
		m.seats.err = ""
		return m, tea.Batch(m.fetchSeatsCmd(m.flow.Show().ID, true), m.spinner.Tick), true
	case key.Matches(msg, m.keys.Select):
		err := m.flow.Checkout()
		switch {
		case err == nil:
			m.submitErr = ""
			m.seats.err = ""
			m.state = stateConfirmation
		case errors.Is(err, booking.ErrEmptySelection):
			m.seats.err = "Select at least one seat."
		default:
			m.seats.err = err.Error()
		}
	default:
		return m, nil, false
	}
	return m, nil, true
}

func (m appModel) seatView() string {
	sel := m.flow.Selection()
	show := m.flow.Show()
	if sel == nil {
		return "No seat data."
	}
	rows := booking.GridRows(show.Screen.Capacity)
	if len(rows) == 0 {
		return "This screen has no seats."
	}

	cellWidth := 3
	for _, row := range rows {
		for _, label := range row {
			cellWidth = max(cellWidth, len(label))
		}
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	rowWidth := 1

	seatStyleAvailable := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	seatStyleBooked := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Faint(true)
	seatStyleSelected := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("5"))
	cursorStyle := lipgloss.NewStyle().Reverse(true)

	var b strings.Builder

	gridWidth := cols*(cellWidth+1) - 1
	screenStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("214"))
	screenBorderStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Background(lipgloss.Color("236"))
	screenBar := screenBarBlock(gridWidth, "SCREEN")
	indent := strings.Repeat(" ", rowWidth+1)
	b.WriteString(indent + screenBorderStyle.Render(screenBar.top) + "\n")
	b.WriteString(indent + screenStyle.Render(screenBar.mid) + "\n")
	b.WriteString(indent + screenBorderStyle.Render(screenBar.bot) + "\n\n")

	for r, row := range rows {
		rowLabel := ""
		if len(row) > 0 {
			rowLabel = row[0][:1]
		}
		b.WriteString(fmt.Sprintf("%*s ", rowWidth, rowLabel))
		for c, label := range row {
			text := padCell(label, cellWidth)
			switch sel.Status(label) {
			case booking.SeatBooked:
				text = seatStyleBooked.Render(padCell("XX", cellWidth))
			case booking.SeatSelected:
				text = seatStyleSelected.Render(text)
			case booking.SeatAvailable:
				text = seatStyleAvailable.Render(text)
			}
			if r == m.seats.row && c == m.seats.col {
				text = cursorStyle.Render(text)
			}
			b.WriteString(text)
			if c < len(row)-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString(fmt.Sprintf(" %*s\n", rowWidth, rowLabel))
	}
	b.WriteString("\n")

	legend := "Legend: green available • XX booked • highlighted selected"
	counts := fmt.Sprintf("Available: %d • Booked: %d • Total: %d • %s each",
		sel.AvailableCount(), sel.BookedCount(), len(sel.Labels()), formatPrice(show.Price))
	b.WriteString(hint(legend) + "\n" + hint(counts) + "\n\n")

	if picked := sel.Selected(); len(picked) > 0 {
		b.WriteString(fmt.Sprintf("Selected: %s\n", strings.Join(picked, ", ")))
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(
			fmt.Sprintf("%d × %s = %s", sel.Count(), formatPrice(show.Price), formatPrice(sel.Total()))))
	} else {
		b.WriteString(hint("No seats selected."))
	}
	if unplaced := sel.Unplaced(); len(unplaced) > 0 {
		b.WriteString("\n" + hint("Also booked outside this layout: "+strings.Join(unplaced, ", ")))
	}
	if m.seats.refreshing {
		b.WriteString("\n" + m.spinner.View() + " Refreshing seats")
	}
	if m.seats.err != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.seats.err))
	}
	return b.String()
}

func padCell(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if text == "" {
		return strings.Repeat(" ", width)
	}
	if len(text) >= width {
		return text[:width]
	}
	padding := width - len(text)
	left := padding / 2
	right := padding - left
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
}

type screenBlock struct {
	top string
	mid string
	bot string
}

func screenBarBlock(width int, label string) screenBlock {
	if width < len(label)+4 {
		width = len(label) + 4
	}
	if width < 10 {
		width = 10
	}

	border := "╭" + strings.Repeat("─", width-2) + "╮"
	bottom := "╰" + strings.Repeat("─", width-2) + "╯"

	labelText := " " + label + " "
	padding := width - len(labelText) - 2
	left := padding / 2
	right := padding - left
	mid := "│" + strings.Repeat(" ", left) + labelText + strings.Repeat(" ", right) + "│"
	return screenBlock{top: border, mid: mid, bot: bottom}
}
