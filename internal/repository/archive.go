package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ArchiveExt is the extension of archive files.
const ArchiveExt = ".mhtml"

// ArchiveRepository keeps archives on the local filesystem as
// {Dir}/{offline_id}.mhtml.
type ArchiveRepository struct {
	Dir string
}

func NewArchiveRepository(dir string) *ArchiveRepository {
	return &ArchiveRepository{Dir: dir}
}

// Path returns where the archive of id is stored.
func (r *ArchiveRepository) Path(id int64) string {
	return filepath.Join(r.Dir, strconv.FormatInt(id, 10)+ArchiveExt)
}

func (r *ArchiveRepository) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := os.Stat(r.Path(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (r *ArchiveRepository) Open(ctx context.Context, id int64) (io.ReadCloser, int64, error) {
	f, err := os.Open(r.Path(id))
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Put writes the archive of id. Archiving pages happens outside this
// service; Put is how archives are seeded into the directory.
//
// Content goes to a temporary file first and is renamed into place, so a
// partially written archive is never visible under its final path.
func (r *ArchiveRepository) Put(ctx context.Context, id int64, src io.Reader) (int64, error) {
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create archive dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.Dir, "put-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmpFile.Name()) }()
	defer func() { _ = tmpFile.Close() }()

	written, err := io.Copy(tmpFile, src)
	if err != nil {
		return 0, fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), r.Path(id)); err != nil {
		return 0, fmt.Errorf("failed to rename to final path: %w", err)
	}

	slog.Debug("Stored archive", "offline_id", id, "size", written)
	return written, nil
}

// Delete removes the archive at path. A missing file is not an error.
func (r *ArchiveRepository) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove archive %s: %w", path, err)
	}
	return nil
}

// Walk calls fn for every archive in Dir.
func (r *ArchiveRepository) Walk(ctx context.Context, fn func(id int64, size int64) error) error {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read archive dir: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ArchiveExt) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ArchiveExt), 10, 64)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat archive %s: %w", name, err)
		}
		if err := fn(id, info.Size()); err != nil {
			return err
		}
	}
	return nil
}

// TotalSize returns the summed size of all archives.
func (r *ArchiveRepository) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := r.Walk(ctx, func(_ int64, size int64) error {
		total += size
		return nil
	})
	return total, err
}
