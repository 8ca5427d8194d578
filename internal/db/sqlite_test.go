package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasew/offlinepages/internal/eviction"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pages.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accessed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	pages := []eviction.OfflinePageItem{
		{OfflineID: 1, Namespace: "bookmark", FilePath: "/a/1.mhtml", FileSize: 100, LastAccessTime: accessed},
		{OfflineID: 2, Namespace: "last_n", FilePath: "/a/2.mhtml", FileSize: 200, LastAccessTime: accessed.Add(time.Minute)},
		{OfflineID: 3, Namespace: "last_n", FilePath: "/a/3.mhtml", FileSize: 300, LastAccessTime: accessed.Add(2 * time.Minute)},
	}
	if err := db.Insert(ctx, pages...); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	t.Run("List", func(t *testing.T) {
		got, err := db.List(ctx)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 pages, got %d", len(got))
		}
		if got[1].Namespace != "last_n" || got[1].FileSize != 200 || got[1].FilePath != "/a/2.mhtml" {
			t.Errorf("unexpected page %+v", got[1])
		}
		if !got[0].LastAccessTime.Equal(accessed) {
			t.Errorf("expected last access %v, got %v", accessed, got[0].LastAccessTime)
		}
		if got[0].IsExpired() {
			t.Error("expected fresh page")
		}
	})

	t.Run("Touch", func(t *testing.T) {
		later := accessed.Add(time.Hour)
		found, err := db.Touch(ctx, 1, later)
		if err != nil {
			t.Fatalf("Touch() failed: %v", err)
		}
		if !found {
			t.Fatal("expected page 1 to exist")
		}
		page, _, err := db.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if !page.LastAccessTime.Equal(later) {
			t.Errorf("expected last access %v, got %v", later, page.LastAccessTime)
		}

		found, err = db.Touch(ctx, 99, later)
		if err != nil {
			t.Fatalf("Touch() failed: %v", err)
		}
		if found {
			t.Error("expected page 99 not to exist")
		}
	})

	t.Run("MarkExpired", func(t *testing.T) {
		expiredAt := accessed.Add(24 * time.Hour)
		if err := db.MarkExpired(ctx, []int64{2, 3}, expiredAt); err != nil {
			t.Fatalf("MarkExpired() failed: %v", err)
		}
		page, found, err := db.Get(ctx, 2)
		if err != nil || !found {
			t.Fatalf("Get() failed: found=%v err=%v", found, err)
		}
		if !page.ExpirationTime.Equal(expiredAt) {
			t.Errorf("expected expiration %v, got %v", expiredAt, page.ExpirationTime)
		}
		if err := db.MarkExpired(ctx, nil, expiredAt); err != nil {
			t.Errorf("MarkExpired() with no ids failed: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := db.Delete(ctx, []int64{2}); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		_, found, err := db.Get(ctx, 2)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if found {
			t.Error("expected page 2 to be deleted")
		}
		got, err := db.List(ctx)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 pages left, got %d", len(got))
		}
	})
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := db.Insert(ctx, eviction.OfflinePageItem{OfflineID: 7, Namespace: "download", LastAccessTime: time.Now()}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Migrations must be a no-op on an up to date schema.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	_, found, err := db.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !found {
		t.Error("expected page 7 to survive reopen")
	}
}

func TestLastClearTime(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.LastClearTime(ctx)
	if err != nil {
		t.Fatalf("LastClearTime() failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("expected zero time on a fresh database, got %v", got)
	}

	for _, want := range []time.Time{
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	} {
		if err := db.SetLastClearTime(ctx, want); err != nil {
			t.Fatalf("SetLastClearTime() failed: %v", err)
		}
		got, err := db.LastClearTime(ctx)
		if err != nil {
			t.Fatalf("LastClearTime() failed: %v", err)
		}
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}
