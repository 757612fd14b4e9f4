package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robalobadob/bullseye/internal/game"
)

func TestMemorySaveGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	s := game.New(game.StaticSource(10))

	if err := m.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := m.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != s {
		t.Error("expected the same session pointer back")
	}
	if err := m.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := m.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting unknown id: %v", err)
	}
}

func TestMemorySweepEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	stale := game.New(game.StaticSource(1), game.WithID("stale"))
	fresh := game.New(game.StaticSource(1), game.WithID("fresh"))
	_ = m.Save(ctx, stale)
	_ = m.Save(ctx, fresh)

	clock = clock.Add(45 * time.Minute)
	if _, err := m.Get(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(20 * time.Minute)

	if n := m.Sweep(time.Hour); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", m.Len())
	}
	if _, err := m.Get(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected stale session evicted, got %v", err)
	}
}
