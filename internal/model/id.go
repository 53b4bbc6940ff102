package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseID accepts only the canonical lowercase 8-4-4-4-12 form.
func ParseID(s string) (uuid.UUID, error) {
	if len(s) != 36 || strings.ToLower(s) != s {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// NewID generates a random identifier.
func NewID() uuid.UUID {
	return uuid.New()
}
