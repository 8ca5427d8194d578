package repository

import "context"

// Repository is the view of the archive files the page store needs to expire
// and remove pages.
type Repository interface {
	Path(id int64) string
	Delete(ctx context.Context, path string) error
	TotalSize(ctx context.Context) (int64, error)
}
