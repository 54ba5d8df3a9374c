// Package storage provides SQLite note storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteNotes implements NoteStore using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteNotes struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteNotes, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteNotes{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteNotes, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	store := &SqliteNotes{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteNotes) Close() error {
	return s.db.Close()
}

func (s *SqliteNotes) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			search_text TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_created
		ON notes(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return s.migrateSearchText()
}

// migrateSearchText adds and fills the search_text column in databases
// created before it existed. SQLite's lower() folds ASCII only, so the
// column holds text lower-cased in Go.
func (s *SqliteNotes) migrateSearchText() error {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('notes') WHERE name = 'search_text'",
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.db.Exec("ALTER TABLE notes ADD COLUMN search_text TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("failed to add search_text: %w", err)
	}
	rows, err := s.db.Query("SELECT id, content, context, created_at FROM notes")
	if err != nil {
		return fmt.Errorf("failed to read notes: %w", err)
	}
	notes, err := scanNotes(rows)
	rows.Close()
	if err != nil {
		return err
	}
	for _, note := range notes {
		if _, err := s.db.Exec("UPDATE notes SET search_text = ? WHERE id = ?", searchText(note), note.ID); err != nil {
			return fmt.Errorf("failed to fill search_text: %w", err)
		}
	}
	return nil
}

// AddNote stores a note.
func (s *SqliteNotes) AddNote(ctx context.Context, note Note) (Note, error) {
	if strings.TrimSpace(note.Content) == "" {
		return Note{}, ErrEmptyNote
	}
	if note.ID == "" {
		fresh := NewNote(note.Content, note.Context)
		note.ID, note.CreatedAt = fresh.ID, fresh.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notes (id, content, context, search_text, created_at) VALUES (?, ?, ?, ?, ?)",
		note.ID, note.Content, note.Context, searchText(note), note.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Note{}, fmt.Errorf("failed to store note: %w", err)
	}
	return note, nil
}

// SearchNotes returns notes matching any word of query, ignoring case.
// Candidates are selected with LIKE on search_text and ranked in Go.
func (s *SqliteNotes) SearchNotes(ctx context.Context, query string, limit int) ([]Note, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return s.ListNotes(ctx, limit)
	}

	var clauses []string
	var args []any
	for _, term := range terms {
		clauses = append(clauses, "search_text LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(term)+"%")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, context, created_at FROM notes WHERE "+strings.Join(clauses, " OR ")+
			" ORDER BY created_at DESC",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	defer rows.Close()

	candidates, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}
	return rank(candidates, terms, limit), nil
}

// ListNotes returns the most recent notes, newest first.
func (s *SqliteNotes) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, context, created_at FROM notes ORDER BY created_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	notes := []Note{} // Start with empty slice, not nil
	for rows.Next() {
		var n Note
		var created int64
		if err := rows.Scan(&n.ID, &n.Content, &n.Context, &created); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.CreatedAt = time.Unix(0, created).UTC()
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Verify SqliteNotes implements NoteStore
var _ NoteStore = (*SqliteNotes)(nil)
