package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/glaizaaaaaa2/scanner-bot/internal/registry"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

// Store persists the group registry.
//
// Load returns canonical records in stable order; legacy formats are
// migrated at load time. Save replaces the full set.
type Store interface {
	Load(ctx context.Context) ([]registry.GroupRecord, error)
	Save(ctx context.Context, groups []registry.GroupRecord) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// seedRecords returns the first-access registry contents.
func seedRecords(cfg Config) []registry.GroupRecord {
	rec, ok := registry.Canonical(cfg.Seed)
	if !ok {
		return nil
	}
	return []registry.GroupRecord{rec}
}
