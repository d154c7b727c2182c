package storage

import (
	"errors"
	"time"

	"github.com/glaizaaaaaa2/scanner-bot/internal/registry"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the registry store.
//
// Driver values:
//   - "file": dependency-free JSON document
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Seed is written when the store has no persisted registry yet.
	// Ignored when its link has no extractable group id.
	Seed registry.GroupRecord
}
