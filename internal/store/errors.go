package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when an entity, device or pairing code does not exist
	// in the caller's organization.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned for a pairing code whose validity window has passed.
	ErrExpired = errors.New("expired")
	// ErrConflict is returned when the request contradicts the current state.
	ErrConflict = errors.New("conflict")
	// ErrLimitReached is returned when a plan limit would be exceeded.
	ErrLimitReached = errors.New("plan limit reached")
	// ErrInvalid is returned for semantically invalid input.
	ErrInvalid = errors.New("invalid")
	// ErrCodeTaken is returned when another device already holds the
	// pairing code being written. It matches ErrConflict.
	ErrCodeTaken = fmt.Errorf("%w: pairing code taken", ErrConflict)
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
