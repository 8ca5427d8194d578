package storagestats

import (
	"context"
	"errors"
	"testing"
)

type staticSizer struct {
	size int64
	err  error
}

func (s staticSizer) TotalSize(ctx context.Context) (int64, error) {
	return s.size, s.err
}

func TestProvider_GetStorageStats(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, staticSizer{size: 1234})

	stats, err := p.GetStorageStats(context.Background())
	if err != nil {
		t.Fatalf("GetStorageStats failed: %v", err)
	}
	if stats.TotalArchivesSize != 1234 {
		t.Errorf("expected archives size 1234, got %d", stats.TotalArchivesSize)
	}
	if stats.FreeDiskSpace <= 0 {
		t.Errorf("expected positive free space, got %d", stats.FreeDiskSpace)
	}
}

func TestProvider_Errors(t *testing.T) {
	t.Run("Missing Path", func(t *testing.T) {
		p := New("/nonexistent/offlinepages/path", staticSizer{})
		if _, err := p.GetStorageStats(context.Background()); err == nil {
			t.Error("expected error for missing path")
		}
	})

	t.Run("Sizer Error", func(t *testing.T) {
		sizeErr := errors.New("walk failed")
		p := New(t.TempDir(), staticSizer{err: sizeErr})
		_, err := p.GetStorageStats(context.Background())
		if !errors.Is(err, sizeErr) {
			t.Errorf("expected wrapped sizer error, got %v", err)
		}
	})
}
