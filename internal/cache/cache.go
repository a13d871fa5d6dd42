// Package cache is the SQLite-backed provider response cache. Entries are
// keyed by a SHA-256 digest of (ad id, config fingerprint, strategy) plus a
// field namespace suffix, so identical requests skip the backend entirely.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"copyforge/internal/config"
)

// Store is a persistent response cache. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness for the run summary.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Open creates (if needed) and opens the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS llm_cache (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the cached value for key, or ok=false on a miss.
func (s *Store) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM llm_cache WHERE key = ?`, key).Scan(&value)
	if err != nil {
		s.misses.Add(1)
		return "", false
	}
	s.hits.Add(1)
	return value, true
}

// Set stores (or overwrites) a cache entry.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO llm_cache (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Clear deletes all entries and returns how many were removed.
func (s *Store) Clear() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM llm_cache`)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats returns hit/miss counters for this process.
func (s *Store) Stats() Stats {
	h, m := s.hits.Load(), s.misses.Load()
	st := Stats{Hits: h, Misses: m}
	if total := h + m; total > 0 {
		st.HitRate = float64(h) / float64(total)
	}
	return st
}

// Key builds the cache key digest for one (ad, config, strategy) triple.
// Callers append a namespace suffix such as ":headlines" before use.
func Key(adID, fingerprint, hypothesis string) string {
	raw, _ := json.Marshal(map[string]string{
		"ad_id": adID,
		"cfg":   fingerprint,
		"hyp":   hypothesis,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Fingerprint is a stable digest input of every setting that changes the
// prompt/output space. Any change here is a deliberate cache miss.
func Fingerprint(gen config.GenerationConfig, prov config.ProviderConfig) string {
	raw, _ := json.Marshal(map[string]any{
		"num_headlines":         gen.NumHeadlines,
		"num_descriptions":      gen.NumDescriptions,
		"max_headline_chars":    gen.MaxHeadlineChars,
		"max_description_chars": gen.MaxDescriptionChars,
		"model":                 prov.Model,
		"temperature":           prov.Temperature,
	})
	return string(raw)
}
