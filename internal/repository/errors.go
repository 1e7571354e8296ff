package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyRegistered is returned when the identity already has a user row.
	ErrAlreadyRegistered = errors.New("repository: user already registered")
	// ErrDuplicateReading is returned when the serial already has a reading for the period.
	ErrDuplicateReading = errors.New("repository: reading already submitted for period")
)

// isUniqueViolation recognises unique/primary key violations from both supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// DeletionPolicy decides what happens to an apartment's meters and readings
// when a resident is deleted.
type DeletionPolicy string

const (
	// DeleteKeep removes only the user row; meters, serials and readings stay.
	DeleteKeep DeletionPolicy = "keep"
	// DeleteCascade also removes the apartment's meter data once no resident remains.
	DeleteCascade DeletionPolicy = "cascade"
)

// ParseDeletionPolicy validates a configured policy name; empty means keep.
func ParseDeletionPolicy(s string) (DeletionPolicy, error) {
	switch p := DeletionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DeleteKeep, nil
	case DeleteKeep, DeleteCascade:
		return p, nil
	}
	return "", fmt.Errorf("invalid deletion policy %q; allowed: keep, cascade", s)
}
