package storage

import (
	"time"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = domain.ErrNotFound

// SessionRecord is a persisted chat log header.
type SessionRecord struct {
	ID           string
	CreatedAt    time.Time
	MessageCount int
}
