package memory

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/storage"
)

func TestMemoryStoreSaveLoadRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Load(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	buf := []byte("v1")
	if err := s.Save(ctx, "k", buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	buf[0] = 'x' // caller mutation must not leak in

	got, err := s.Load(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("unexpected load: %q err=%v", got, err)
	}

	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestMemoryStoreSaveErr(t *testing.T) {
	s := New()
	s.SaveErr = errors.New("disk full")
	if err := s.Save(context.Background(), "k", []byte("v")); err == nil {
		t.Fatalf("expected injected error")
	}
	s.Seed("k", []byte("seeded"))
	got, _ := s.Load(context.Background(), "k")
	if string(got) != "seeded" {
		t.Fatalf("seed should bypass SaveErr, got %q", got)
	}
}
