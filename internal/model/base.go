package model

import "github.com/google/uuid"

// newID returns a fresh primary key for entities created without one.
func newID() string {
	return uuid.NewString()
}
