package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

// TrackRepository implements [models.TrackCache] over the tracks table.
//
// Rows are append-only. Several rows may share a key (concurrent writers, re-resolution of negative
// entries); reads pick the newest and [TrackRepository.Compact] removes the rest.
type TrackRepository struct {
	db  *sql.DB
	now Clock
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db, now: utcNow}
}

// SetClock replaces the time source used for created and last-accessed timestamps.
func (r *TrackRepository) SetClock(now Clock) {
	r.now = now
}

// Get returns the newest row for key, or [shared.ErrCacheMiss].
func (r *TrackRepository) Get(ctx context.Context, key string) (*models.CachedTrack, error) {
	query := `
		SELECT id, key, uri, created_at, last_accessed
		FROM tracks
		WHERE key = ?
		ORDER BY created_at DESC, last_accessed DESC
		LIMIT 1
	`

	var (
		track models.CachedTrack
		uri   sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, key).Scan(&track.ID, &track.Key, &uri, &track.CreatedAt, &track.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, unavailable("get track", err)
	}

	track.URI = uri.String
	track.Resolved = uri.Valid && uri.String != ""
	return &track, nil
}

// Put inserts a new row for key. An empty uri is stored as NULL, a negative entry.
func (r *TrackRepository) Put(ctx context.Context, key, uri string) error {
	now := r.now()

	var value any
	if uri != "" {
		value = uri
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tracks (id, key, uri, created_at, last_accessed) VALUES (?, ?, ?, ?, ?)",
		shared.GenerateID(), key, value, now, now,
	)
	if err != nil {
		return unavailable("insert track", err)
	}
	return nil
}

// Touch sets the last-accessed time of the given row.
func (r *TrackRepository) Touch(ctx context.Context, entry *models.CachedTrack, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE tracks SET last_accessed = ? WHERE id = ?", at, entry.ID); err != nil {
		return unavailable("touch track", err)
	}
	entry.LastAccessed = at
	return nil
}

// Compact keeps the newest row per key and deletes the others, returning the number deleted.
func (r *TrackRepository) Compact(ctx context.Context) (int, error) {
	query := `
		DELETE FROM tracks
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY key
					ORDER BY created_at DESC, last_accessed DESC, id DESC
				) AS rank
				FROM tracks
			)
			WHERE rank > 1
		)
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, unavailable("compact tracks", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("compact tracks", err)
	}
	return int(rows), nil
}
