package table

import "github.com/google/uuid"

// IDGenerator produces listener IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 listener IDs.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. Panics if generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
