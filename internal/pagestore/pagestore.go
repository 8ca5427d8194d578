// Package pagestore implements eviction.PageStore over the metadata database
// and the archive repository.
package pagestore

import (
	"context"
	"log/slog"
	"time"

	"github.com/lucasew/offlinepages/internal/errutil"
	"github.com/lucasew/offlinepages/internal/eviction"
	"github.com/lucasew/offlinepages/internal/repository"
)

// Metadata is the persistence of page metadata.
type Metadata interface {
	List(ctx context.Context) ([]eviction.OfflinePageItem, error)
	MarkExpired(ctx context.Context, ids []int64, at time.Time) error
	Delete(ctx context.Context, ids []int64) error
}

// Store keeps metadata and archives consistent: an expired page never has
// an archive left behind.
type Store struct {
	meta     Metadata
	archives repository.Repository
}

func New(meta Metadata, archives repository.Repository) *Store {
	return &Store{meta: meta, archives: archives}
}

func (s *Store) GetAllPages(ctx context.Context) ([]eviction.OfflinePageItem, error) {
	return s.meta.List(ctx)
}

// ExpirePages deletes the archives of ids and marks the pages whose archive
// is gone as expired.
func (s *Store) ExpirePages(ctx context.Context, ids []int64, at time.Time) bool {
	if len(ids) == 0 {
		return true
	}

	pages, err := s.pagesByID(ctx)
	if err != nil {
		errutil.ReportError(err, "Failed to load pages to expire", "count", len(ids))
		return false
	}

	ok := true
	deleted := make([]int64, 0, len(ids))
	for _, id := range ids {
		page, found := pages[id]
		if !found {
			continue
		}
		if err := s.archives.Delete(ctx, s.archivePath(page)); err != nil {
			errutil.ReportError(err, "Failed to delete archive", "offline_id", id)
			ok = false
			continue
		}
		deleted = append(deleted, id)
	}

	// Archives of deleted are gone, so their metadata is stamped even if ctx
	// was cancelled meanwhile.
	if err := s.meta.MarkExpired(context.WithoutCancel(ctx), deleted, at); err != nil {
		errutil.ReportError(err, "Failed to mark pages expired", "count", len(deleted))
		return false
	}

	slog.Info("Expired pages", "count", len(deleted), "requested", len(ids))
	return ok
}

// Remove deletes the metadata of ids and any archive still on disk.
func (s *Store) Remove(ctx context.Context, ids []int64) eviction.RemoveResult {
	if len(ids) == 0 {
		return eviction.RemoveSuccess
	}

	pages, err := s.pagesByID(ctx)
	if err != nil {
		errutil.ReportError(err, "Failed to load pages to remove", "count", len(ids))
		return eviction.RemoveStoreFailure
	}

	if err := s.meta.Delete(ctx, ids); err != nil {
		errutil.ReportError(err, "Failed to delete page metadata", "count", len(ids))
		return eviction.RemoveStoreFailure
	}

	result := eviction.RemoveSuccess
	for _, id := range ids {
		page, found := pages[id]
		if !found {
			page = eviction.OfflinePageItem{OfflineID: id}
		}
		if err := s.archives.Delete(ctx, s.archivePath(page)); err != nil {
			errutil.ReportError(err, "Failed to delete lingering archive", "offline_id", id)
			result = eviction.RemoveFileFailure
		}
	}

	slog.Info("Removed pages", "count", len(ids))
	return result
}

func (s *Store) pagesByID(ctx context.Context) (map[int64]eviction.OfflinePageItem, error) {
	list, err := s.meta.List(ctx)
	if err != nil {
		return nil, err
	}
	pages := make(map[int64]eviction.OfflinePageItem, len(list))
	for _, p := range list {
		pages[p.OfflineID] = p
	}
	return pages, nil
}

func (s *Store) archivePath(page eviction.OfflinePageItem) string {
	if page.FilePath != "" {
		return page.FilePath
	}
	return s.archives.Path(page.OfflineID)
}
