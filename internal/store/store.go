// Package store persists converted documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/bookgest/internal/doctree"
)

// ErrNotFound is returned when no document matches.
var ErrNotFound = errors.New("document not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	title         TEXT NOT NULL,
	language      TEXT NOT NULL,
	author        TEXT NOT NULL DEFAULT '',
	chapter_count INTEGER NOT NULL,
	block_count   INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	body          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`

// Record is the listing view of a stored document.
type Record struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	Title       string    `json:"title"`
	Language    string    `json:"language"`
	Author      string    `json:"author,omitempty"`
	Chapters    int       `json:"chapters"`
	Blocks      int       `json:"blocks"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store wraps the SQLite handle.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores doc under id, replacing any previous document with that id.
func (s *Store) Put(ctx context.Context, id, contentHash string, doc *doctree.Document) (Record, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf("marshal document: %w", err)
	}
	rec := Record{
		ID:          id,
		ContentHash: contentHash,
		Title:       doc.Metadata.Title,
		Language:    doc.Metadata.Language,
		Author:      doc.Metadata.Author,
		Chapters:    len(doc.Chapters),
		Blocks:      doc.BlockCount(),
		CreatedAt:   s.now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents
			(id, content_hash, title, language, author, chapter_count, block_count, created_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ContentHash, rec.Title, rec.Language, rec.Author,
		rec.Chapters, rec.Blocks, rec.CreatedAt.UnixNano(), string(body))
	if err != nil {
		return Record{}, fmt.Errorf("insert document %s: %w", id, err)
	}
	return rec, nil
}

const recordColumns = `id, content_hash, title, language, author, chapter_count, block_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, extra ...any) (Record, error) {
	var rec Record
	var created int64
	dest := append([]any{
		&rec.ID, &rec.ContentHash, &rec.Title, &rec.Language, &rec.Author,
		&rec.Chapters, &rec.Blocks, &created,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

// Get returns the stored document and its record.
func (s *Store) Get(ctx context.Context, id string) (*doctree.Document, Record, error) {
	var body string
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+`, body FROM documents WHERE id = ?`, id)
	rec, err := scanRecord(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Record{}, ErrNotFound
	}
	if err != nil {
		return nil, Record{}, fmt.Errorf("get document %s: %w", id, err)
	}
	var doc doctree.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, Record{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &doc, rec, nil
}

// GetByHash returns the most recent record with the given content hash.
func (s *Store) GetByHash(ctx context.Context, contentHash string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM documents
		WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1`, contentHash)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get by hash: %w", err)
	}
	return rec, nil
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a document. It returns ErrNotFound if id does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
