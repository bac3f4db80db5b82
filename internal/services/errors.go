package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures for the HTTP layer
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindAccessDenied       ErrorKind = "ACCESS_DENIED"
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindTripUnavailable    ErrorKind = "TRIP_UNAVAILABLE"
	KindSeatsUnavailable   ErrorKind = "SEATS_UNAVAILABLE"
	KindSchedulingConflict ErrorKind = "SCHEDULING_CONFLICT"
	KindDriverInactive     ErrorKind = "DRIVER_INACTIVE"
	KindBusInactive        ErrorKind = "BUS_INACTIVE"
	KindAlreadyCancelled   ErrorKind = "ALREADY_CANCELLED"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindActiveBookings     ErrorKind = "ACTIVE_BOOKINGS"
	KindConflict           ErrorKind = "CONFLICT"
	KindStore              ErrorKind = "STORE_ERROR"
)

// Error is returned by every engine operation
type Error struct {
	Kind    ErrorKind
	Message string
	// Seats lists the offending seat numbers for KindSeatsUnavailable
	Seats []string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func storeError(message string, err error) *Error {
	return &Error{Kind: KindStore, Message: message, Err: err}
}

func validationError(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

// IsKind reports whether err is an engine error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var svcErr *Error
	return errors.As(err, &svcErr) && svcErr.Kind == kind
}
