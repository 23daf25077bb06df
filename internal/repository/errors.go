package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by repositories so services can map them onto the
// domain error taxonomy without leaking driver types.
var (
	// ErrDuplicate reports a unique-constraint violation (pq 23505).
	ErrDuplicate = errors.New("duplicate row")
	// ErrNoSeats reports that a course has no available capacity left.
	ErrNoSeats = errors.New("no seats available")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
