package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks invariants that would otherwise surface as confusing
// runtime failures. It does not apply defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.ScanChatID == 0 {
		return errors.New("telegram.scan_chat_id is required")
	}

	for path, raw := range map[string]string{
		"telegram.poll_timeout":       c.Telegram.PollTimeout,
		"marketplace.request_timeout": c.Marketplace.RequestTimeout,
		"scan.cooldown":               c.Scan.Cooldown,
		"scan.quote_delay":            c.Scan.QuoteDelay,
		"storage.busy_timeout":        c.Storage.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	if c.Scan.ChunkBudget < 0 {
		return errors.New("scan.chunk_budget must be >= 0")
	}
	if c.Marketplace.ThrottleRetryMax < 0 {
		return errors.New("marketplace.throttle_retry_max must be >= 0")
	}

	switch d := strings.ToLower(strings.TrimSpace(c.Storage.Driver)); d {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", d)
	}
	return nil
}
