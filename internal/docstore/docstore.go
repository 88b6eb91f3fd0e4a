package docstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Document is the content of one crawled page. It is produced once by a crawl
// and immutable thereafter; the store owns the durable copy.
type Document struct {
	URL   string
	Title string
	Text  string
}

// NormalizeURL canonicalizes a URL for cache keying: lower-cased and trimmed.
func NormalizeURL(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Key returns the stable cache key for a URL: hex sha256 of the normalized
// form. The same URL always maps to the same key across runs.
func Key(raw string) string {
	h := sha256.Sum256([]byte(NormalizeURL(raw)))
	return hex.EncodeToString(h[:])
}

// Store is a durable URL-keyed document cache backed by SQLite. It is the only
// state that outlives a single run. All read failures degrade to cache misses
// so a broken cache never aborts a run.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the document store at dbPath, creating parent
// directories and the schema as needed.
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("document store path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{conn: conn, path: dbPath}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    key        TEXT PRIMARY KEY,
    url        TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    text       TEXT NOT NULL DEFAULT '',
    fetched_at TIMESTAMP NOT NULL
)`

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Get returns the cached document for url. It is side-effect free. Any read
// error, including a corrupt record, is reported as a miss.
func (s *Store) Get(ctx context.Context, url string) (Document, bool) {
	if s == nil || s.conn == nil {
		return Document{}, false
	}
	row := s.conn.QueryRowContext(ctx,
		`SELECT url, title, text FROM documents WHERE key = ?`, Key(url))
	var d Document
	if err := row.Scan(&d.URL, &d.Title, &d.Text); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("url", url).Msg("document cache read failed; treating as miss")
		}
		return Document{}, false
	}
	return d, true
}

// Put stores a document, overwriting any earlier content for the same URL.
// Writing the same URL twice never creates a second record.
func (s *Store) Put(ctx context.Context, d Document) error {
	if s == nil || s.conn == nil {
		return errors.New("document store not open")
	}
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO documents (key, url, title, text, fetched_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    url = excluded.url, title = excluded.title,
    text = excluded.text, fetched_at = excluded.fetched_at`,
		Key(d.URL), d.URL, d.Title, d.Text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

// Partition splits urls into cached documents and the subset that still needs
// crawling. Hits keep the iteration order of urls.
func (s *Store) Partition(ctx context.Context, urls []string) (hits []Document, misses []string) {
	for _, u := range urls {
		if d, ok := s.Get(ctx, u); ok {
			hits = append(hits, d)
			continue
		}
		misses = append(misses, u)
	}
	return hits, misses
}

// Count returns the number of stored documents, for status output.
func (s *Store) Count(ctx context.Context) int {
	if s == nil || s.conn == nil {
		return 0
	}
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0
	}
	return n
}
