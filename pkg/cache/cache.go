// Package cache provides a gzip-compressed, content-hashed file cache for
// evaluator outcomes, so an evaluator that wraps a billed network call can
// avoid repeating it across resumed runs.
package cache

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"batchrun/pkg/core"
)

const defaultTTL = 7 * 24 * time.Hour

// Cache is a directory of gzip-compressed JSON entries, one per cached
// evaluator call, keyed by a sha256 hash of the evaluator name and row.
type Cache struct {
	Dir string
	TTL time.Duration
}

// New builds a Cache rooted at dir (default ~/.batchrun/cache) with ttl
// (default 7 days).
func New(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cache: resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".batchrun", "cache")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache dir: %w", err)
	}
	return &Cache{Dir: dir, TTL: ttl}, nil
}

type cacheEntry struct {
	Outcome       core.EvaluatorOutcome `json:"outcome"`
	CachedAt      time.Time             `json:"cached_at"`
	EvaluatorName string                `json:"evaluator_name"`
}

func key(evaluatorName string, row core.Row) string {
	parts := []string{
		evaluatorName,
		row.CandidateText,
		row.Reference,
		row.Prompt,
		row.ContentType,
		row.Language,
	}
	if len(row.Fields) > 0 {
		keys := make([]string, 0, len(row.Fields))
		for k := range row.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k, row.Fields[k])
		}
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

func (c *Cache) path(k string) string {
	return filepath.Join(c.Dir, k+".json.gz")
}

// Get returns a cached outcome for (evaluatorName, row), if present and not
// expired.
func (c *Cache) Get(evaluatorName string, row core.Row) (core.EvaluatorOutcome, bool) {
	p := c.path(key(evaluatorName, row))
	f, err := os.Open(p)
	if err != nil {
		return core.EvaluatorOutcome{}, false
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return core.EvaluatorOutcome{}, false
	}
	defer gz.Close()

	var e cacheEntry
	if err := json.NewDecoder(gz).Decode(&e); err != nil {
		return core.EvaluatorOutcome{}, false
	}
	if c.TTL > 0 && time.Since(e.CachedAt) > c.TTL {
		_ = os.Remove(p)
		return core.EvaluatorOutcome{}, false
	}
	return e.Outcome, true
}

// Set writes outcome for (evaluatorName, row) via an atomic temp-file
// rename.
func (c *Cache) Set(evaluatorName string, row core.Row, outcome core.EvaluatorOutcome) error {
	p := c.path(key(evaluatorName, row))
	e := cacheEntry{Outcome: outcome, CachedAt: time.Now(), EvaluatorName: evaluatorName}

	f, err := os.CreateTemp(c.Dir, "tmp-*.json.gz")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(e); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("cache: close gzip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(f.Name(), p); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("cache: rename temp file: %w", err)
	}
	return nil
}
