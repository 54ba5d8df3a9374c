// Note tools: save and recall information about the user.
//
// Information Hiding:
// - Storage backend hidden behind storage.NoteStore
// - Search ranking hidden in the store

package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/richinex/weaver/storage"
)

// AddNoteInput is the input of add_note.
type AddNoteInput struct {
	Content string `json:"content" jsonschema:"required" jsonschema_description:"The information to remember."`
	Context string `json:"context,omitempty" jsonschema_description:"Where the information came from or what it relates to."`
}

// SearchNotesInput is the input of search_notes.
type SearchNotesInput struct {
	Query string `json:"query" jsonschema:"required" jsonschema_description:"Words to look for in saved notes."`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of notes to return (default 5)."`
}

// ListNotesInput is the input of list_notes.
type ListNotesInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Maximum number of notes to return (default 5)."`
}

// NotesOutput wraps a list of notes.
type NotesOutput struct {
	Notes []storage.Note `json:"notes"`
}

// NewAddNoteTool creates the add_note tool.
func NewAddNoteTool(store storage.NoteStore) Tool {
	return NewFuncTool("add_note",
		"Save a piece of information about the user or the conversation so it can be found later with search_notes.",
		func(ctx context.Context, in AddNoteInput) (storage.Note, error) {
			note, err := store.AddNote(ctx, storage.NewNote(in.Content, in.Context))
			if err != nil {
				if errors.Is(err, storage.ErrEmptyNote) {
					return storage.Note{}, err
				}
				return storage.Note{}, fmt.Errorf("failed to create note: %w", err)
			}
			return note, nil
		})
}

// NewSearchNotesTool creates the search_notes tool.
func NewSearchNotesTool(store storage.NoteStore) Tool {
	return NewFuncTool("search_notes",
		"Search saved notes, including personal information about the user. Use this when a question is outside your training data.",
		func(ctx context.Context, in SearchNotesInput) (NotesOutput, error) {
			notes, err := store.SearchNotes(ctx, in.Query, limitOrDefault(in.Limit))
			if err != nil {
				return NotesOutput{}, fmt.Errorf("search failed: %w", err)
			}
			return NotesOutput{Notes: notes}, nil
		})
}

// NewListNotesTool creates the list_notes tool.
func NewListNotesTool(store storage.NoteStore) Tool {
	return NewFuncTool("list_notes",
		"List the most recently saved notes.",
		func(ctx context.Context, in ListNotesInput) (NotesOutput, error) {
			notes, err := store.ListNotes(ctx, limitOrDefault(in.Limit))
			if err != nil {
				return NotesOutput{}, fmt.Errorf("list failed: %w", err)
			}
			return NotesOutput{Notes: notes}, nil
		})
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}
