package therapists

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestInMemoryDirectoryGet(t *testing.T) {
	dir := NewInMemoryDirectory()
	id := uuid.New()
	dir.Put(&Therapist{ID: id, DisplayName: "Dr. Ada", Timezone: "America/New_York", Active: true})

	got, err := dir.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DisplayName != "Dr. Ada" {
		t.Errorf("expected display name Dr. Ada, got %q", got.DisplayName)
	}
}

func TestInMemoryDirectoryUnknownID(t *testing.T) {
	dir := NewInMemoryDirectory()

	_, err := dir.Get(t.Context(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryDirectoryInactiveHidden(t *testing.T) {
	dir := NewInMemoryDirectory()
	id := uuid.New()
	dir.Put(&Therapist{ID: id, DisplayName: "Dr. Ada", Timezone: "UTC", Active: false})

	_, err := dir.Get(t.Context(), id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive therapist, got %v", err)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	therapist := &Therapist{Timezone: "Not/AZone"}
	if loc := therapist.Location(); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}

	therapist.Timezone = "America/Denver"
	if loc := therapist.Location(); loc.String() != "America/Denver" {
		t.Fatalf("expected America/Denver, got %v", loc)
	}
}
