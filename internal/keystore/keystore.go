// Package keystore validates API keys against a JSON whitelist file.
//
// The file maps each key string to its metadata:
//
//	{
//	  "k-abc123": {"name": "airflow-loader", "active": true,
//	               "expires_at": "2026-01-01T00:00:00Z", "rate_limit": 100}
//	}
//
// The file's modification time is checked on every validation and the
// whitelist re-read when it changed, so revoking a key takes effect without
// restarting the service.
package keystore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// KeyInfo is the metadata attached to one whitelisted key.
type KeyInfo struct {
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	ExpiresAt string `json:"expires_at,omitempty"`
	RateLimit int    `json:"rate_limit,omitempty"`
}

// Store holds the whitelist and reloads it when the backing file changes.
type Store struct {
	path   string
	logger *slog.Logger
	clock  clockwork.Clock

	mu      sync.RWMutex
	keys    map[string]KeyInfo
	modTime time.Time
}

// Open loads the whitelist file. An unreadable or syntactically invalid file
// is a fatal configuration error; the service must not start with an unknown
// key set.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
	keys, modTime, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("load api key whitelist: %w", err)
	}
	s.keys = keys
	s.modTime = modTime
	logger.Info("api key whitelist loaded", "path", path, "keys", len(keys))
	return s, nil
}

// SetClock swaps the time source used for expiry checks.
func (s *Store) SetClock(c clockwork.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

// Validate reports whether the key is present, active, and unexpired. An
// unknown key is a negative result, never an error. A key whose expires_at
// cannot be parsed is treated as invalid.
func (s *Store) Validate(key string) bool {
	s.refresh()

	s.mu.RLock()
	info, ok := s.keys[key]
	now := s.clock.Now()
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("api key not found in whitelist")
		return false
	}
	if !info.Active {
		s.logger.Warn("inactive api key attempted", "key_name", info.Name)
		return false
	}
	if info.ExpiresAt != "" {
		expiry, err := parseExpiry(info.ExpiresAt)
		if err != nil {
			s.logger.Error("invalid expiry date format for key", "key_name", info.Name, "error", err)
			return false
		}
		if now.After(expiry) {
			s.logger.Warn("expired api key attempted", "key_name", info.Name)
			return false
		}
	}
	return true
}

// Info returns the metadata for a key, if present.
func (s *Store) Info(key string) (KeyInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.keys[key]
	return info, ok
}

// refresh re-reads the file when its mtime changed. A failed reload keeps the
// last good whitelist; losing auth entirely because of a half-written file
// would be worse than serving slightly stale keys.
func (s *Store) refresh() {
	fi, err := os.Stat(s.path)
	if err != nil {
		s.logger.Warn("stat api key whitelist failed, keeping last loaded set", "error", err)
		return
	}

	s.mu.RLock()
	unchanged := fi.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return
	}

	keys, modTime, err := readFile(s.path)
	if err != nil {
		s.logger.Warn("reload api key whitelist failed, keeping last loaded set", "error", err)
		return
	}

	s.mu.Lock()
	s.keys = keys
	s.modTime = modTime
	s.mu.Unlock()
	s.logger.Info("api key whitelist reloaded", "keys", len(keys))
}

func readFile(path string) (map[string]KeyInfo, time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var keys map[string]KeyInfo
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return keys, fi.ModTime(), nil
}

// parseExpiry accepts RFC 3339 stamps and zone-less ISO timestamps, which the
// whitelist has historically carried.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}
