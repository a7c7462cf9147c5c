package replication

import (
	"github.com/google/uuid"
)

// KeyGenerator produces remote document keys for entries that have no
// local id yet.
type KeyGenerator interface {
	NewKey() string
}

// UUIDv7Generator generates time-sortable UUIDv7 keys.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewKey returns a hyphenated UUIDv7. Panics if the random source fails.
func (UUIDv7Generator) NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}
