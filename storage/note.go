// Package storage provides persistence for the note tools.
//
// Notes are short pieces of information the assistant saves with add_note
// and later retrieves with search_notes. Conversation history is never
// stored here.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyNote is returned when a note has no content.
var ErrEmptyNote = errors.New("note content is empty")

// Note is a stored piece of information.
type Note struct {
	// ID is a unique identifier for this note.
	ID string `json:"id"`
	// Content is the information itself.
	Content string `json:"content"`
	// Context describes where the information came from or what it relates to.
	Context string `json:"context,omitempty"`
	// CreatedAt is when the note was saved.
	CreatedAt time.Time `json:"createdAt"`
}

// NewNote creates a note with a fresh ID and creation time.
func NewNote(content, noteContext string) Note {
	return Note{
		ID:        uuid.New().String(),
		Content:   content,
		Context:   noteContext,
		CreatedAt: time.Now().UTC(),
	}
}

// NoteStore is the storage interface behind the note tools.
type NoteStore interface {
	// AddNote stores a note and returns it as stored.
	AddNote(ctx context.Context, note Note) (Note, error)

	// SearchNotes returns notes matching any word of query, best matches first.
	// An empty query returns the most recent notes.
	SearchNotes(ctx context.Context, query string, limit int) ([]Note, error)

	// ListNotes returns the most recent notes.
	ListNotes(ctx context.Context, limit int) ([]Note, error)

	// Close releases the store's resources.
	Close() error
}

// searchTerms splits a query into lower-cased words.
func searchTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// searchText is the case-folded text that query terms are matched against.
func searchText(note Note) string {
	return strings.ToLower(note.Content + " " + note.Context)
}

// score counts how many terms appear in the note.
func score(note Note, terms []string) int {
	text := searchText(note)
	n := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			n++
		}
	}
	return n
}

// rank keeps notes matching at least one term, ordered by score and then
// recency, truncated to limit.
func rank(notes []Note, terms []string, limit int) []Note {
	type scored struct {
		note  Note
		score int
	}
	var matches []scored
	for _, n := range notes {
		if s := score(n, terms); s > 0 {
			matches = append(matches, scored{note: n, score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].note.CreatedAt.After(matches[j].note.CreatedAt)
	})

	out := []Note{}
	for _, m := range matches {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.note)
	}
	return out
}
