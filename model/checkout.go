package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentWallet PaymentMethod = "wallet"
)

// PaymentMethods lists the methods offered at checkout, in display order.
var PaymentMethods = []PaymentMethod{PaymentCard, PaymentUPI, PaymentWallet}

func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCard:
		return "Credit/Debit Card"
	case PaymentUPI:
		return "UPI"
	case PaymentWallet:
		return "Digital Wallet"
	default:
		return string(p)
	}
}

func (p PaymentMethod) Valid() bool {
	for _, m := range PaymentMethods {
		if m == p {
			return true
		}
	}
	return false
}

// BookingRequest is what the checkout step submits. SeatLabels are the exact
// labels the user picked, in the order they were picked.
type BookingRequest struct {
	ShowID     ID            `json:"show_id"`
	SeatLabels []string      `json:"seat_ids"`
	Amount     float64       `json:"amount"`
	Method     PaymentMethod `json:"payment_method"`
}

type Booking struct {
	ID            ID            `json:"id"`
	ShowID        ID            `json:"show_id"`
	SeatLabels    []string      `json:"seat_ids"`
	TotalAmount   float64       `json:"total_price"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
}

type User struct {
	ID    ID     `json:"id"`
	Email string `json:"email"`
}

// AuthResult is returned by a successful login or registration.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Session is the authenticated identity held by the client.
type Session struct {
	Token   string    `json:"token"`
	User    User      `json:"user"`
	SavedAt time.Time `json:"saved_at"`
}
