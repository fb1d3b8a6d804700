package compile

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	t.Run("find missing", func(t *testing.T) {
		if _, err := repo.FindByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save and find returns a copy", func(t *testing.T) {
		comp := New("user-1", "conn-1")
		comp.SetPlan([]string{"a", "b"})
		if err := repo.Save(ctx, comp); err != nil {
			t.Fatalf("save: %v", err)
		}

		loaded, err := repo.FindByID(ctx, comp.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		loaded.PlanPublicIDs[0] = "mutated"

		again, err := repo.FindByID(ctx, comp.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if again.PlanPublicIDs[0] != "a" {
			t.Error("mutation of a loaded compilation leaked into the store")
		}
	})
}

func TestMemoryRecordStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*Record{
		{ID: "r1", UserID: "user-1", PublicID: "reels/r1", CreatedAt: base},
		{ID: "r2", UserID: "user-1", PublicID: "reels/r2", CreatedAt: base.Add(time.Hour)},
		{ID: "r3", UserID: "user-2", PublicID: "reels/r3", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, record := range records {
		if err := store.Save(ctx, record); err != nil {
			t.Fatalf("save %s: %v", record.ID, err)
		}
	}

	t.Run("find missing", func(t *testing.T) {
		if _, err := store.FindByID(ctx, "nope"); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("list by user newest first", func(t *testing.T) {
		got, err := store.ListByUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		if got[0].ID != "r2" || got[1].ID != "r1" {
			t.Errorf("expected [r2 r1], got [%s %s]", got[0].ID, got[1].ID)
		}
	})

	t.Run("list unknown user is empty", func(t *testing.T) {
		got, err := store.ListByUser(ctx, "ghost")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no records, got %d", len(got))
		}
	})
}
