// Package uuid generates time-ordered site identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator implements site.IDGenerator with UUIDv7 strings.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string. Successive IDs sort by creation time.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
