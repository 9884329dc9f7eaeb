package patients

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestInMemoryDirectoryRoundTrip(t *testing.T) {
	dir := NewInMemoryDirectory()
	id := uuid.New()
	dir.Put(&Patient{ID: id, DisplayName: "Sam Rivera", Email: "sam@example.com"})

	got, err := dir.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "sam@example.com" {
		t.Errorf("expected email sam@example.com, got %q", got.Email)
	}

	// Mutating the returned patient must not leak into the directory.
	got.Email = "changed@example.com"
	again, err := dir.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Email != "sam@example.com" {
		t.Errorf("directory entry mutated through returned clone")
	}
}

func TestInMemoryDirectoryUnknownID(t *testing.T) {
	dir := NewInMemoryDirectory()

	_, err := dir.Get(t.Context(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
