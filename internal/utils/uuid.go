package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID generates a UUID v4 string: 36 lowercase hex characters with
// dashes, version nibble 4 and variant bits 10.
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}
