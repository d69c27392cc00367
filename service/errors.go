package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"showtimedb-cli/model"
)

// NetworkError is a transport failure: the request never produced a usable
// response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError is returned when the service answers with a non-2xx status.
type ServiceError struct {
	Status   int
	Message  string
	Endpoint string
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "service error"
	}
	return fmt.Sprintf("service error: %d: %s", e.Status, e.Message)
}

// ValidationError reports input rejected before any request was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsService(err error) bool {
	var target *ServiceError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// StatusCode returns the HTTP status carried by a ServiceError, or 0.
func StatusCode(err error) int {
	var target *ServiceError
	if errors.As(err, &target) {
		return target.Status
	}
	return 0
}

// UserMessage renders err for display next to the control that triggered it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		svc *ServiceError
		val *ValidationError
	)
	switch {
	case errors.As(err, &val):
		return val.Message
	case errors.As(err, &svc):
		return svc.Message
	case IsNetwork(err):
		return "Could not reach the movie service. Check your connection."
	default:
		return err.Error()
	}
}

// ValidateCredentials checks sign-in input. Registration additionally
// requires a password of at least six characters.
func ValidateCredentials(email, password string, register bool) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return &ValidationError{Field: "email", Message: "enter a valid email address"}
	}
	if password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	if register && len(password) < 6 {
		return &ValidationError{Field: "password", Message: "password must be at least 6 characters"}
	}
	return nil
}

func validateBooking(sess model.Session, req model.BookingRequest) error {
	if sess.Token == "" {
		return &ValidationError{Field: "session", Message: "sign in to book seats"}
	}
	if req.ShowID.IsZero() {
		return &ValidationError{Field: "show_id", Message: "show is required"}
	}
	if len(req.SeatLabels) == 0 {
		return &ValidationError{Field: "seat_ids", Message: "select at least one seat"}
	}
	return nil
}
