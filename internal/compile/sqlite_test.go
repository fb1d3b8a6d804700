package compile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteRecordStore {
	t.Helper()
	store, err := OpenSQLiteRecordStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRecordStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := &Record{
		ID:              "rec-1",
		UserID:          "user-1",
		ConnectionID:    "conn-1",
		ConnectionName:  "primary",
		PublicID:        "reels/rec-1",
		URL:             "http://cdn.example/reels/rec-1.mp4",
		SecureURL:       "https://cdn.example/reels/rec-1.mp4",
		SourcePublicIDs: []string{"final", "a", "b"},
		ImageCount:      4,
		CreatedAt:       base,
	}

	t.Run("save and find round trip", func(t *testing.T) {
		if err := store.Save(ctx, record); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := store.FindByID(ctx, "rec-1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.PublicID != record.PublicID {
			t.Errorf("expected public id %q, got %q", record.PublicID, got.PublicID)
		}
		if got.ConnectionName != "primary" {
			t.Errorf("expected connection name primary, got %q", got.ConnectionName)
		}
		if len(got.SourcePublicIDs) != 3 || got.SourcePublicIDs[0] != "final" {
			t.Errorf("unexpected source ids: %v", got.SourcePublicIDs)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("expected created_at %v, got %v", base, got.CreatedAt)
		}
	})

	t.Run("find missing", func(t *testing.T) {
		if _, err := store.FindByID(ctx, "nope"); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("list by user newest first", func(t *testing.T) {
		newer := &Record{
			ID:              "rec-2",
			UserID:          "user-1",
			ConnectionID:    "conn-1",
			PublicID:        "reels/rec-2",
			SourcePublicIDs: []string{"final", "c"},
			ImageCount:      3,
			CreatedAt:       base.Add(time.Hour),
		}
		other := &Record{
			ID:              "rec-3",
			UserID:          "user-2",
			ConnectionID:    "conn-2",
			PublicID:        "reels/rec-3",
			SourcePublicIDs: []string{"final"},
			ImageCount:      2,
			CreatedAt:       base.Add(2 * time.Hour),
		}
		for _, r := range []*Record{newer, other} {
			if err := store.Save(ctx, r); err != nil {
				t.Fatalf("save %s: %v", r.ID, err)
			}
		}

		got, err := store.ListByUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		if got[0].ID != "rec-2" || got[1].ID != "rec-1" {
			t.Errorf("expected [rec-2 rec-1], got [%s %s]", got[0].ID, got[1].ID)
		}
	})
}
