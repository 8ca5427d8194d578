package eviction

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Manager decides which offline pages are expired or removed to keep the
// archive storage within quota and within the namespace policies.
//
// A single cycle runs at a time. Calls to ClearIfNeeded made while a cycle is
// running are dropped without invoking their callback.
type Manager struct {
	store    PageStore
	policies PolicyProvider
	stats    StorageStatsProvider
	config   Config
	now      func() time.Time
	observer Observer
	logger   *slog.Logger

	inProgress atomic.Bool

	mu            sync.RWMutex
	clearTime     time.Time
	lastClearTime time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now as the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithObserver registers an observer for stats and cycle reports.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithLastClearTime seeds the completion time of the previous cycle, e.g.
// one persisted by an earlier process.
func WithLastClearTime(t time.Time) Option {
	return func(m *Manager) {
		m.lastClearTime = t
	}
}

// WithLogger sets the logger used by the manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager over the given collaborators.
func NewManager(store PageStore, policies PolicyProvider, stats StorageStatsProvider, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		policies: policies,
		stats:    stats,
		config:   cfg,
		now:      time.Now,
		logger:   slog.Default().With("component", "eviction"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LastClearTime returns when the previous cycle completed, zero if none did.
func (m *Manager) LastClearTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastClearTime
}

// InProgress reports whether a cycle is currently running.
func (m *Manager) InProgress() bool {
	return m.inProgress.Load()
}

// ClearIfNeeded runs a clearing cycle and reports it through callback.
//
// It returns false without calling callback if another cycle is running.
// Otherwise it blocks until the cycle finished and callback returned.
func (m *Manager) ClearIfNeeded(ctx context.Context, callback ClearCallback) bool {
	if !m.inProgress.CompareAndSwap(false, true) {
		m.logger.Debug("Clear already in progress, dropping request")
		return false
	}

	start := m.now()
	var report CycleReport
	func() {
		defer m.inProgress.Store(false)

		m.mu.Lock()
		m.clearTime = start
		m.mu.Unlock()

		report, report.Completed = m.runCycle(ctx)

		m.mu.Lock()
		if report.Completed {
			m.lastClearTime = m.clearTime
		}
		m.clearTime = time.Time{}
		m.mu.Unlock()
	}()
	report.ClearTime = start
	report.Duration = m.now().Sub(start)

	m.logger.Info("Clear cycle finished",
		"result", report.Result.String(),
		"expired", report.Expired,
		"removed", report.Removed,
		"duration", report.Duration,
	)
	if m.observer != nil {
		m.observer.ObserveCycle(report)
	}
	if callback != nil {
		callback(report.Expired, report.Result)
	}
	return true
}

// runCycle executes stats -> decide -> pages -> compute -> apply. The
// returned bool is false when the cycle aborted before completing.
func (m *Manager) runCycle(ctx context.Context) (CycleReport, bool) {
	stats, err := m.stats.GetStorageStats(ctx)
	if err != nil {
		m.logger.Error("Failed to get storage stats", "error", err)
		return CycleReport{Result: FetchFailure}, false
	}
	if m.observer != nil {
		m.observer.ObserveStats(stats)
	}

	if m.ShouldClearPages(stats) == NotNeeded {
		return CycleReport{Result: Unnecessary}, true
	}

	pages, err := m.store.GetAllPages(ctx)
	if err != nil {
		m.logger.Error("Failed to list offline pages", "error", err)
		return CycleReport{Result: FetchFailure}, false
	}

	toExpire, toRemove := m.GetPageIdsToClear(pages, stats)
	m.logger.Debug("Computed pages to clear",
		"pages", len(pages),
		"to_expire", len(toExpire),
		"to_remove", len(toRemove),
		"total_archives_size", stats.TotalArchivesSize,
		"free_disk_space", stats.FreeDiskSpace,
	)

	return CycleReport{
		Result:  m.apply(ctx, toExpire, toRemove),
		Expired: len(toExpire),
		Removed: len(toRemove),
	}, true
}

// cycleTime is the reference time of the running cycle, or now when called
// outside of one.
func (m *Manager) cycleTime() (now, last time.Time) {
	m.mu.RLock()
	now, last = m.clearTime, m.lastClearTime
	m.mu.RUnlock()
	if now.IsZero() {
		now = m.now()
	}
	return now, last
}

// ShouldClearPages decides whether stats warrant a clearing pass.
func (m *Manager) ShouldClearPages(stats StorageStats) ClearDecision {
	if stats.TotalArchivesSize == 0 {
		return NotNeeded
	}

	capacity := float64(stats.TotalArchivesSize + stats.FreeDiskSpace)
	if float64(stats.TotalArchivesSize) >= capacity*m.config.StorageLimitFraction {
		return Default
	}

	now, last := m.cycleTime()
	if !last.IsZero() && now.Sub(last) >= m.config.ClearInterval {
		return Default
	}
	return NotNeeded
}

// GetPageIdsToClear splits pages into ids to expire and ids to remove.
//
// Expired pages past the grace period are removed. Fresh pages are walked per
// namespace from most to least recently accessed and expired from the first
// one that breaks the page limit or the expiration period. If the pages kept
// still exceed the clear threshold, the least recently accessed ones across
// all namespaces are expired until it is met.
func (m *Manager) GetPageIdsToClear(pages []OfflinePageItem, stats StorageStats) (toExpire, toRemove []int64) {
	now, _ := m.cycleTime()

	var namespaces []string
	groups := make(map[string][]OfflinePageItem)
	for _, page := range pages {
		if page.IsExpired() {
			if now.Sub(page.ExpirationTime) >= m.config.RemoveGracePeriod {
				toRemove = append(toRemove, page.OfflineID)
			}
			continue
		}
		if _, ok := groups[page.Namespace]; !ok {
			namespaces = append(namespaces, page.Namespace)
		}
		groups[page.Namespace] = append(groups[page.Namespace], page)
	}

	var kept []OfflinePageItem
	var keptBytes int64
	for _, ns := range namespaces {
		group := groups[ns]
		policy := m.policies.GetPolicy(ns)
		slices.SortStableFunc(group, func(a, b OfflinePageItem) int {
			return b.LastAccessTime.Compare(a.LastAccessTime)
		})

		pos := 0
		for ; pos < len(group); pos++ {
			if !keepPage(policy, pos, group[pos], now) {
				break
			}
			keptBytes += group[pos].FileSize
		}
		kept = append(kept, group[:pos]...)
		for _, page := range group[pos:] {
			toExpire = append(toExpire, page.OfflineID)
		}
	}

	capacity := float64(stats.TotalArchivesSize + stats.FreeDiskSpace)
	spaceToRelease := float64(keptBytes) - capacity*m.config.ClearThresholdFraction
	if spaceToRelease > 0 {
		slices.SortStableFunc(kept, func(a, b OfflinePageItem) int {
			return a.LastAccessTime.Compare(b.LastAccessTime)
		})
		for _, page := range kept {
			if spaceToRelease <= 0 {
				break
			}
			toExpire = append(toExpire, page.OfflineID)
			spaceToRelease -= float64(page.FileSize)
		}
	}

	return toExpire, toRemove
}

// keepPage reports whether the page at position pos of its namespace, sorted
// by recency, is within policy.
func keepPage(policy LifetimePolicy, pos int, page OfflinePageItem, now time.Time) bool {
	if policy.PageLimit != UnlimitedPages && pos >= policy.PageLimit {
		return false
	}
	if policy.ExpirationPeriod > 0 && now.Sub(page.LastAccessTime) >= policy.ExpirationPeriod {
		return false
	}
	return true
}

// apply expires and removes pages. Both run even if the other fails.
func (m *Manager) apply(ctx context.Context, toExpire, toRemove []int64) ClearResult {
	at, _ := m.cycleTime()

	var expired bool
	var removed RemoveResult
	var g errgroup.Group
	g.Go(func() error {
		expired = m.store.ExpirePages(ctx, toExpire, at)
		return nil
	})
	g.Go(func() error {
		removed = m.store.Remove(ctx, toRemove)
		return nil
	})
	_ = g.Wait()

	if !expired {
		m.logger.Warn("Failed to expire pages", "count", len(toExpire))
	}
	if removed != RemoveSuccess {
		m.logger.Warn("Failed to remove pages", "count", len(toRemove), "result", removed.String())
	}

	switch {
	case expired && removed == RemoveSuccess:
		return Success
	case !expired && removed == RemoveSuccess:
		return ExpireFailure
	case expired:
		return DeleteFailure
	default:
		return ExpireAndDeleteFailures
	}
}
