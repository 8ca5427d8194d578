// Package storagestats reports free disk space and archive usage.
package storagestats

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/lucasew/offlinepages/internal/eviction"
)

// ArchiveSizer reports the total size of stored archives.
type ArchiveSizer interface {
	TotalSize(ctx context.Context) (int64, error)
}

// Provider implements eviction.StorageStatsProvider for archives kept on a
// local filesystem.
type Provider struct {
	// Path is any path on the filesystem holding the archives.
	Path     string
	Archives ArchiveSizer
}

// New creates a Provider.
func New(path string, archives ArchiveSizer) *Provider {
	return &Provider{Path: path, Archives: archives}
}

// GetStorageStats returns the free space of the filesystem holding Path and
// the total size of the archives.
func (p *Provider) GetStorageStats(ctx context.Context) (eviction.StorageStats, error) {
	free, err := FreeSpace(p.Path)
	if err != nil {
		return eviction.StorageStats{}, err
	}

	total, err := p.Archives.TotalSize(ctx)
	if err != nil {
		return eviction.StorageStats{}, fmt.Errorf("failed to size archives: %w", err)
	}

	slog.Debug("Storage stats", "path", p.Path, "free_bytes", free, "archives_bytes", total)
	return eviction.StorageStats{FreeDiskSpace: free, TotalArchivesSize: total}, nil
}

// FreeSpace returns the bytes available to unprivileged users on the
// filesystem holding path.
func FreeSpace(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to check disk space: %w", err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
