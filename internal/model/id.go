package model

import "github.com/google/uuid"

// NewID generates a UUIDv7 string. The leading 48 bits carry a millisecond
// timestamp, so ids sort by generation time; ids minted within the same
// millisecond may tie.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does, fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}
