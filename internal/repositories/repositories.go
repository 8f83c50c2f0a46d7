package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

// Clock returns the current time. Repositories default to UTC wall time.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// unavailable wraps a driver error as a cache-store failure.
//
// Every store error goes through here so callers can tell a broken cache from a broken remote.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", shared.ErrCacheUnavailable, op, err)
}

// Stats counts rows across the SQLite cache tables.
func Stats(ctx context.Context, db *sql.DB) (*models.CacheStats, error) {
	var stats models.CacheStats

	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN uri IS NULL THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT key)
		FROM tracks
	`).Scan(&stats.Entries, &stats.Negative, &stats.DistinctKeys)
	if err != nil {
		return nil, unavailable("count tracks", err)
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM playlist_pages").Scan(&stats.Pages); err != nil {
		return nil, unavailable("count pages", err)
	}

	return &stats, nil
}
