package sqlutil

import (
	"errors"

	"github.com/lib/pq"
)

// UniqueViolation is the Postgres SQLSTATE for a duplicate key.
const UniqueViolation = pq.ErrorCode("23505")

// IsUniqueViolation reports whether err wraps a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == UniqueViolation
	}
	return false
}
