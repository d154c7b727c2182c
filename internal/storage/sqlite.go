//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/glaizaaaaaa2/scanner-bot/internal/registry"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS groups (
	group_id  INTEGER PRIMARY KEY,
	name      TEXT NOT NULL,
	link      TEXT NOT NULL,
	wait_days INTEGER NOT NULL,
	position  INTEGER NOT NULL
);
`

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	seed []registry.GroupRecord
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, log: log, seed: seedRecords(cfg)}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Load(ctx context.Context) ([]registry.GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, link, wait_days FROM groups ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.GroupRecord
	for rows.Next() {
		var rec registry.GroupRecord
		if err := rows.Scan(&rec.Name, &rec.Link, &rec.WaitDays); err != nil {
			return nil, err
		}
		if rec, ok := registry.Canonical(rec); ok {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 && len(s.seed) > 0 {
		// First access: initialize with the seed registry.
		if err := s.Save(ctx, s.seed); err != nil {
			return nil, err
		}
		s.log.Info("registry initialized", logx.Int("groups", len(s.seed)))
		return append([]registry.GroupRecord(nil), s.seed...), nil
	}
	return out, nil
}

func (s *sqliteStore) Save(ctx context.Context, groups []registry.GroupRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM groups"); err != nil {
		return err
	}
	for i, g := range groups {
		id, ok := g.ID()
		if !ok {
			continue
		}
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO groups (group_id, name, link, wait_days, position) VALUES (?, ?, ?, ?, ?)",
			id, g.Name, g.Link, g.WaitDays, i,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
