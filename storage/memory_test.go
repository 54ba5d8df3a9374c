package storage

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryNotesAddAndSearch(t *testing.T) {
	store := NewInMemoryNotes()
	ctx := context.Background()

	if _, err := store.AddNote(ctx, Note{Content: "The wifi password is hunter2", Context: "home"}); err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if _, err := store.AddNote(ctx, Note{Content: "Gym opens at 6am"}); err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}

	results, err := store.SearchNotes(ctx, "WIFI", 5)
	if err != nil {
		t.Fatalf("SearchNotes failed: %v", err)
	}
	if len(results) != 1 || results[0].Context != "home" {
		t.Errorf("unexpected results: %+v", results)
	}

	none, err := store.SearchNotes(ctx, "volcano", 5)
	if err != nil {
		t.Fatalf("SearchNotes failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestInMemoryNotesEmptyQueryListsRecent(t *testing.T) {
	store := NewInMemoryNotes()
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		if _, err := store.AddNote(ctx, Note{Content: c}); err != nil {
			t.Fatalf("AddNote failed: %v", err)
		}
	}

	results, err := store.SearchNotes(ctx, "  ", 2)
	if err != nil {
		t.Fatalf("SearchNotes failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(results))
	}
	if results[0].Content != "three" || results[1].Content != "two" {
		t.Errorf("expected newest first, got %q, %q", results[0].Content, results[1].Content)
	}
}

func TestInMemoryNotesRejectsEmpty(t *testing.T) {
	store := NewInMemoryNotes()
	if _, err := store.AddNote(context.Background(), Note{}); !errors.Is(err, ErrEmptyNote) {
		t.Errorf("expected ErrEmptyNote, got %v", err)
	}
}
