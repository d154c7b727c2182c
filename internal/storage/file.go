package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glaizaaaaaa2/scanner-bot/internal/registry"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

// fileStore is a dependency-free persistence backend: a single JSON document
// holding the group registry. Writes go through a temp file + rename so a
// crash mid-save never leaves a torn document.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
	seed []registry.GroupRecord
}

// registryDoc is the on-disk shape. Groups entries may be legacy plain link
// strings or full records; registry.Normalize migrates both.
type registryDoc struct {
	Groups []json.RawMessage `json:"groups"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, seed: seedRecords(cfg)}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) ([]registry.GroupRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// First access: initialize with the seed registry.
		if err := s.writeLocked(s.seed); err != nil {
			return nil, err
		}
		s.log.Info("registry initialized", logx.String("path", s.path), logx.Int("groups", len(s.seed)))
		return append([]registry.GroupRecord(nil), s.seed...), nil
	}

	var doc registryDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return registry.Normalize(doc.Groups), nil
}

func (s *fileStore) Save(ctx context.Context, groups []registry.GroupRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(groups)
}

func (s *fileStore) writeLocked(groups []registry.GroupRecord) error {
	raw := make([]json.RawMessage, 0, len(groups))
	for _, g := range groups {
		b, err := json.Marshal(g)
		if err != nil {
			return err
		}
		raw = append(raw, b)
	}

	b, err := json.MarshalIndent(registryDoc{Groups: raw}, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
