package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chunk_vectors (
	id TEXT PRIMARY KEY,
	ordinal INTEGER NOT NULL,
	text_chunk TEXT NOT NULL,
	embedding BLOB NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS index_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store manages the on-disk index layout. Each material lives in its own
// directory keyed by source type and id:
//
//	<base>/<type>/<id>/vectors.db
//	<base>/transcripts/<type>_<id>.txt
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir. The directory is created
// lazily on first write.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Exists reports whether a persisted index exists for the material.
func (s *Store) Exists(sourceType, sourceID string) bool {
	_, err := os.Stat(s.dbPath(sourceType, sourceID))
	return err == nil
}

// Load opens the persisted index for a material. Returns ErrNotFound when
// no index has been built for it.
func (s *Store) Load(sourceType, sourceID string) (*Index, error) {
	path := s.dbPath(sourceType, sourceID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sourceType, sourceID)
		}
		return nil, fmt.Errorf("checking index file: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("opening index for %s/%s: %w", sourceType, sourceID, err)
	}
	meta, err := readMeta(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading index meta for %s/%s: %w", sourceType, sourceID, err)
	}
	return &Index{db: db, meta: meta}, nil
}

// Remove deletes the persisted index and transcript for a material.
func (s *Store) Remove(sourceType, sourceID string) error {
	if err := os.RemoveAll(s.indexDir(sourceType, sourceID)); err != nil {
		return fmt.Errorf("removing index dir: %w", err)
	}
	if err := os.Remove(s.transcriptPath(sourceType, sourceID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing transcript: %w", err)
	}
	return nil
}

// WriteTranscript persists the full extracted text for a material so it can
// be reviewed without re-extraction.
func (s *Store) WriteTranscript(sourceType, sourceID, text string) error {
	path := s.transcriptPath(sourceType, sourceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating transcripts directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	return nil
}

// ReadTranscript returns the persisted transcript for a material, or
// ErrNotFound when none exists.
func (s *Store) ReadTranscript(sourceType, sourceID string) (string, error) {
	data, err := os.ReadFile(s.transcriptPath(sourceType, sourceID))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: transcript %s/%s", ErrNotFound, sourceType, sourceID)
	}
	if err != nil {
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	return string(data), nil
}

func (s *Store) indexDir(sourceType, sourceID string) string {
	return filepath.Join(s.baseDir, sanitize(sourceType), sanitize(sourceID))
}

func (s *Store) dbPath(sourceType, sourceID string) string {
	return filepath.Join(s.indexDir(sourceType, sourceID), "vectors.db")
}

func (s *Store) transcriptPath(sourceType, sourceID string) string {
	return filepath.Join(s.baseDir, "transcripts", sanitize(sourceType)+"_"+sanitize(sourceID)+".txt")
}

// create prepares a fresh database file for a material, replacing any
// existing index. The caller owns the returned handle.
func (s *Store) create(sourceType, sourceID string) (*sql.DB, error) {
	dir := s.indexDir(sourceType, sourceID)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing previous index: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := openDB(filepath.Join(dir, "vectors.db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	return db, nil
}

// sanitize maps a source id to a filesystem-safe path segment. Uploaded
// filenames can carry separators and other characters unfit for paths.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
