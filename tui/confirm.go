package tui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"showtimedb-cli/booking"
	"showtimedb-cli/model"
	"showtimedb-cli/service"
)

func (m appModel) handleConfirmationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if m.flow.Completed() {
		if key.Matches(msg, m.keys.Select) || key.Matches(msg, m.keys.Back) {
			next, cmd := m.finishBooking()
			return next, cmd, true
		}
		return m, nil, true
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		return m.stepBack()
	case key.Matches(msg, m.keys.NextPayment):
		m.cyclePayment(1)
	case key.Matches(msg, m.keys.PrevPayment):
		m.cyclePayment(-1)
	case key.Matches(msg, m.keys.Select):
		return m.submitBooking()
	default:
		return m, nil, false
	}
	return m, nil, true
}

func (m *appModel) cyclePayment(step int) {
	if m.flow.Submitting() {
		return
	}
	current := m.flow.Confirmation().Method
	idx := 0
	for i, method := range model.PaymentMethods {
		if method == current {
			idx = i
			break
		}
	}
	n := len(model.PaymentMethods)
	next := model.PaymentMethods[((idx+step)%n+n)%n]
	if err := m.flow.SetPaymentMethod(next); err != nil {
		m.log.Debug("set payment method", "error", err)
	}
}

func (m appModel) submitBooking() (tea.Model, tea.Cmd, bool) {
	req, err := m.flow.BeginSubmit()
	if errors.Is(err, booking.ErrSubmitInFlight) {
		return m, nil, true
	}
	if err != nil {
		m.submitErr = err.Error()
		return m, nil, true
	}
	sess, ok := m.session.Current()
	if !ok {
		m.flow.SubmitFailed()
		cmd := m.openAuth(stateConfirmation, "Your session expired. Sign in again to finish booking.")
		return m, cmd, true
	}
	m.submitErr = ""
	m.log.Info("submitting booking",
		"show_id", req.ShowID.String(),
		"seats", strings.Join(req.SeatLabels, ","),
		"amount", req.Amount,
		"method", string(req.Method),
	)
	return m, tea.Batch(m.submitBookingCmd(sess, req), m.spinner.Tick), true
}

func (m appModel) handleBookingResult(msg bookingMsg) (tea.Model, tea.Cmd) {
	if !m.flow.IsCurrent(msg.epoch) || !m.flow.Submitting() {
		m.log.Debug("dropping stale booking result", "epoch", msg.epoch)
		return m, nil
	}
	if msg.err != nil {
		m.flow.SubmitFailed()
		m.log.Warn("booking failed", "error", msg.err)
		text := "Payment failed. Please try again."
		if detail := service.UserMessage(msg.err); detail != "" {
			text += " " + detail
		}
		if service.StatusCode(msg.err) == http.StatusConflict {
			text += " Press esc to pick other seats."
		}
		m.submitErr = text
		return m, nil
	}
	m.flow.SubmitSucceeded(msg.booking)
	m.log.Info("booking confirmed", "booking_id", msg.booking.ID.String())
	return m, m.bookingDoneCmd()
}

func (m appModel) confirmationView() string {
	show := m.flow.Show()
	conf := m.flow.Confirmation()

	label := lipgloss.NewStyle().Faint(true).Width(10)
	row := func(name, value string) string {
		return label.Render(name) + value
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Booking Summary"),
		"",
		row("Movie", m.flow.Movie().Title),
		row("Theater", strings.TrimSpace(show.Theater.Name+" "+parenthesize(show.Theater.Location))),
		row("Screen", strings.TrimSpace(show.Screen.Name+" "+parenthesize(show.Screen.Type))),
		row("When", show.StartsAt.Format("Mon, Jan 2 2006 15:04")),
		row("Seats", strings.Join(conf.Seats, ", ")),
		row("Tickets", fmt.Sprintf("%d × %s", len(conf.Seats), formatPrice(show.Price))),
		row("Total", lipgloss.NewStyle().Bold(true).Render(formatPrice(conf.Amount))),
		"",
		"Payment method",
	}
	for _, method := range model.PaymentMethods {
		marker := "( )"
		style := lipgloss.NewStyle()
		if method == conf.Method {
			marker = "(•)"
			style = style.Bold(true).Foreground(lipgloss.Color("5"))
		}
		lines = append(lines, style.Render(fmt.Sprintf("  %s %s", marker, method.Label())))
	}
	lines = append(lines, "")

	switch {
	case m.flow.Completed():
		b := m.flow.Booking()
		lines = append(lines,
			lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")).Render("Booking confirmed!"),
			fmt.Sprintf("Booking ID: %s • %s paid", b.ID, formatPrice(b.TotalAmount)),
			hint("Returning to movies..."),
		)
	case m.flow.Submitting():
		lines = append(lines, m.spinner.View()+" Processing payment...")
	default:
		if m.submitErr != "" {
			lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.submitErr), "")
		}
		lines = append(lines, hint(fmt.Sprintf("Press enter to pay %s.", formatPrice(conf.Amount))))
	}

	panelStyle := lipgloss.NewStyle().
		Padding(1, 3).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("63"))
	if m.width > 56 {
		panelStyle = panelStyle.Width(min(m.width-8, 72))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func parenthesize(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
