// Package storage provides in-memory note storage.
//
// Information Hiding:
// - Slice storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions

package storage

import (
	"context"
	"strings"
	"sync"
)

// InMemoryNotes implements NoteStore using a slice.
// Data is lost when process terminates.
type InMemoryNotes struct {
	mu    sync.RWMutex
	notes []Note
}

// NewInMemoryNotes creates a new in-memory note store.
func NewInMemoryNotes() *InMemoryNotes {
	return &InMemoryNotes{}
}

// AddNote stores a note.
func (s *InMemoryNotes) AddNote(ctx context.Context, note Note) (Note, error) {
	if strings.TrimSpace(note.Content) == "" {
		return Note{}, ErrEmptyNote
	}
	if note.ID == "" {
		fresh := NewNote(note.Content, note.Context)
		note.ID, note.CreatedAt = fresh.ID, fresh.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = append(s.notes, note)
	return note, nil
}

// SearchNotes returns notes matching any word of query.
func (s *InMemoryNotes) SearchNotes(ctx context.Context, query string, limit int) ([]Note, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return s.ListNotes(ctx, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return rank(s.notes, terms, limit), nil
}

// ListNotes returns the most recent notes, newest first.
func (s *InMemoryNotes) ListNotes(ctx context.Context, limit int) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Note{}
	for i := len(s.notes) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.notes[i])
	}
	return out, nil
}

// Close is a no-op.
func (s *InMemoryNotes) Close() error {
	return nil
}

// Verify InMemoryNotes implements NoteStore
var _ NoteStore = (*InMemoryNotes)(nil)
