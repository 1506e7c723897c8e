package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStaleRevision is returned when an optimistic update lost the race.
	ErrStaleRevision = errors.New("stale revision")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// validID reports whether id can be matched against a UUID column. Lookups
// with any other value are answered with sql.ErrNoRows without a query.
func validID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
