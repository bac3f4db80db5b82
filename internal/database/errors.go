package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned on a unique constraint violation
	ErrDuplicate = errors.New("record already exists")

	// ErrDuplicateTicket is returned when a generated ticket number or QR code collides
	ErrDuplicateTicket = errors.New("ticket reference already issued")

	// ErrInvalidReference is returned on a foreign key violation
	ErrInvalidReference = errors.New("referenced record does not exist")

	// ErrSchedulingConflict is returned when the trips exclusion constraint rejects an assignment
	ErrSchedulingConflict = errors.New("bus or driver already assigned to an overlapping trip")

	// ErrAlreadyCancelled is returned when cancelling a cancelled booking
	ErrAlreadyCancelled = errors.New("booking already cancelled")

	// ErrStatusChanged is returned when a row no longer has the status it was read with
	ErrStatusChanged = errors.New("record was modified concurrently")

	// ErrSeatsOccupied is returned when regenerating the seats of a trip that has bookings
	ErrSeatsOccupied = errors.New("trip has occupied seats")
)

// SeatsUnavailableError lists the requested seats that are missing or taken
type SeatsUnavailableError struct {
	Seats []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ", "))
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqExclusionViolation  = "23P01"
)

// mapPQError translates driver errors into the package's sentinel errors
func mapPQError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pqUniqueViolation:
		if pqErr.Constraint == "bookings_ticket_number_key" || pqErr.Constraint == "bookings_qr_code_key" {
			return fmt.Errorf("%w: %s", ErrDuplicateTicket, pqErr.Constraint)
		}
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrInvalidReference, pqErr.Constraint)
	case pqExclusionViolation:
		return fmt.Errorf("%w: %s", ErrSchedulingConflict, pqErr.Constraint)
	}
	return err
}
