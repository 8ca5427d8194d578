package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const lastClearTimeKey = "last_clear_time"

// LastClearTime returns the persisted completion time of the last clearing
// cycle, zero if none was recorded.
func (d *DB) LastClearTime(ctx context.Context) (time.Time, error) {
	var value int64
	err := d.db.QueryRowContext(ctx,
		"SELECT value FROM eviction_state WHERE key = ?", lastClearTimeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last clear time: %w", err)
	}
	return time.Unix(0, value), nil
}

// SetLastClearTime persists the completion time of a clearing cycle.
func (d *DB) SetLastClearTime(ctx context.Context, t time.Time) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO eviction_state (key, value) VALUES (?, ?)", lastClearTimeKey, t.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write last clear time: %w", err)
	}
	return nil
}
