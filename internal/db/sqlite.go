package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lucasew/offlinepages/internal/eviction"
)

// DB holds offline page metadata.
type DB struct {
	db *sql.DB
}

// Open opens the database at path and migrates its schema.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert inserts or replaces pages in a single transaction. It seeds the
// metadata written alongside archives stored with ArchiveRepository.Put.
func (d *DB) Insert(ctx context.Context, pages ...eviction.OfflinePageItem) error {
	return d.inTx(ctx, `
		INSERT OR REPLACE INTO offline_pages
			(offline_id, namespace, file_path, file_size, last_access_time, expiration_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, p := range pages {
				if _, err := stmt.ExecContext(ctx,
					p.OfflineID, p.Namespace, p.FilePath, p.FileSize,
					p.LastAccessTime.UnixNano(), nullableTime(p.ExpirationTime),
				); err != nil {
					return fmt.Errorf("failed to insert page %d: %w", p.OfflineID, err)
				}
			}
			return nil
		})
}

// Get retrieves a single page.
func (d *DB) Get(ctx context.Context, id int64) (eviction.OfflinePageItem, bool, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT offline_id, namespace, file_path, file_size, last_access_time, expiration_time
		FROM offline_pages WHERE offline_id = ?`, id)
	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eviction.OfflinePageItem{}, false, nil
		}
		return eviction.OfflinePageItem{}, false, fmt.Errorf("failed to get page %d: %w", id, err)
	}
	return page, true, nil
}

// List returns every page ordered by id.
func (d *DB) List(ctx context.Context) ([]eviction.OfflinePageItem, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT offline_id, namespace, file_path, file_size, last_access_time, expiration_time
		FROM offline_pages ORDER BY offline_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []eviction.OfflinePageItem
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// Touch records an access to the page. It reports whether the page exists.
func (d *DB) Touch(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		"UPDATE offline_pages SET last_access_time = ? WHERE offline_id = ?", at.UnixNano(), id)
	if err != nil {
		return false, fmt.Errorf("failed to touch page %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to touch page %d: %w", id, err)
	}
	return n > 0, nil
}

// MarkExpired stamps ids with the expiration time at.
func (d *DB) MarkExpired(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return d.inTx(ctx, "UPDATE offline_pages SET expiration_time = ? WHERE offline_id = ?",
		func(stmt *sql.Stmt) error {
			for _, id := range ids {
				if _, err := stmt.ExecContext(ctx, at.UnixNano(), id); err != nil {
					return fmt.Errorf("failed to expire page %d: %w", id, err)
				}
			}
			return nil
		})
}

// Delete removes the metadata of ids.
func (d *DB) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return d.inTx(ctx, "DELETE FROM offline_pages WHERE offline_id = ?",
		func(stmt *sql.Stmt) error {
			for _, id := range ids {
				if _, err := stmt.ExecContext(ctx, id); err != nil {
					return fmt.Errorf("failed to delete page %d: %w", id, err)
				}
			}
			return nil
		})
}

// inTx prepares query inside a transaction and commits if fn succeeds.
func (d *DB) inTx(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, strings.TrimSpace(query))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	if err := fn(stmt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (eviction.OfflinePageItem, error) {
	var (
		page       eviction.OfflinePageItem
		lastAccess int64
		expiration sql.NullInt64
	)
	if err := s.Scan(&page.OfflineID, &page.Namespace, &page.FilePath, &page.FileSize, &lastAccess, &expiration); err != nil {
		return page, err
	}
	page.LastAccessTime = time.Unix(0, lastAccess)
	if expiration.Valid {
		page.ExpirationTime = time.Unix(0, expiration.Int64)
	}
	return page, nil
}

func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
