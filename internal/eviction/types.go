package eviction

import (
	"context"
	"time"
)

// UnlimitedPages is the LifetimePolicy.PageLimit value that disables the
// per-namespace page count limit.
const UnlimitedPages = 0

// OfflinePageItem holds the metadata of a saved offline page.
type OfflinePageItem struct {
	OfflineID      int64
	Namespace      string
	FilePath       string
	FileSize       int64
	LastAccessTime time.Time
	// ExpirationTime is zero for pages that still have an archive file.
	ExpirationTime time.Time
}

// IsExpired reports whether the page was already soft-deleted.
func (p OfflinePageItem) IsExpired() bool {
	return !p.ExpirationTime.IsZero()
}

// LifetimePolicy is the retention policy of a namespace.
type LifetimePolicy struct {
	// PageLimit is the maximum number of fresh pages kept in the namespace.
	// UnlimitedPages means no limit.
	PageLimit int
	// ExpirationPeriod is how long a page may go unaccessed before it is
	// expired. Zero means pages never expire by age.
	ExpirationPeriod time.Duration
}

// StorageStats is a point-in-time snapshot of the archive storage.
type StorageStats struct {
	FreeDiskSpace     int64
	TotalArchivesSize int64
}

// ClearDecision is the outcome of ShouldClearPages.
type ClearDecision int

const (
	NotNeeded ClearDecision = iota
	Default
)

func (d ClearDecision) String() string {
	switch d {
	case NotNeeded:
		return "not_needed"
	case Default:
		return "default"
	}
	return "unknown"
}

// ClearResult is reported once per finished cycle.
type ClearResult int

const (
	Success ClearResult = iota
	Unnecessary
	ExpireFailure
	DeleteFailure
	ExpireAndDeleteFailures
	// FetchFailure means storage stats or the page list could not be read.
	FetchFailure
)

func (r ClearResult) String() string {
	switch r {
	case Success:
		return "success"
	case Unnecessary:
		return "unnecessary"
	case ExpireFailure:
		return "expire_failure"
	case DeleteFailure:
		return "delete_failure"
	case ExpireAndDeleteFailures:
		return "expire_and_delete_failures"
	case FetchFailure:
		return "fetch_failure"
	}
	return "unknown"
}

// RemoveResult is returned by PageStore.Remove.
type RemoveResult int

const (
	RemoveSuccess RemoveResult = iota
	RemoveStoreFailure
	RemoveFileFailure
)

func (r RemoveResult) String() string {
	switch r {
	case RemoveSuccess:
		return "success"
	case RemoveStoreFailure:
		return "store_failure"
	case RemoveFileFailure:
		return "file_failure"
	}
	return "unknown"
}

// ClearCallback receives the number of expired pages and the cycle result.
type ClearCallback func(pagesCleared int, result ClearResult)

// StorageStatsProvider reports disk usage of the archive storage.
type StorageStatsProvider interface {
	GetStorageStats(ctx context.Context) (StorageStats, error)
}

// PolicyProvider maps a namespace to its lifetime policy.
type PolicyProvider interface {
	GetPolicy(namespace string) LifetimePolicy
}

// PageStore holds offline page metadata and their archives.
type PageStore interface {
	GetAllPages(ctx context.Context) ([]OfflinePageItem, error)
	// ExpirePages removes the archives of ids and stamps them as expired at
	// the given time. It returns false if any of it failed.
	ExpirePages(ctx context.Context, ids []int64, at time.Time) bool
	// Remove deletes the metadata of ids.
	Remove(ctx context.Context, ids []int64) RemoveResult
}

// CycleReport summarizes a finished clearing cycle.
type CycleReport struct {
	Result ClearResult
	// ClearTime is the reference time of the cycle.
	ClearTime time.Time
	// Completed is false when the cycle aborted and lastClearTime was left
	// unchanged.
	Completed bool
	Expired   int
	Removed   int
	Duration  time.Duration
}

// Observer is notified about storage snapshots and finished cycles.
type Observer interface {
	ObserveStats(stats StorageStats)
	ObserveCycle(report CycleReport)
}
