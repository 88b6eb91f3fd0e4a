package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Stage stores raw model responses on disk keyed by a digest of model name and
// prompt, so re-running after a mid-run failure replays already-completed
// stages without spending tokens. Every I/O failure degrades to a cache miss;
// the cache must never abort a run.
type Stage struct {
	Dir string
}

// KeyFrom builds a stable cache key from model and prompt.
func KeyFrom(model, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *Stage) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the cached response for key, if present and readable.
func (c *Stage) Get(key string) ([]byte, bool) {
	if c == nil || c.Dir == "" {
		return nil, false
	}
	b, err := os.ReadFile(c.pathFor(key))
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

// Put writes a response to the cache. Failures are logged and swallowed.
func (c *Stage) Put(key string, data []byte) {
	if c == nil || c.Dir == "" {
		return
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		log.Warn().Err(err).Msg("stage cache dir unavailable; skipping write")
		return
	}
	if err := os.WriteFile(c.pathFor(key), data, 0o644); err != nil {
		log.Warn().Err(err).Msg("stage cache write failed; continuing")
	}
}
