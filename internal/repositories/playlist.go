package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

// PageRepository implements [models.PageCache] over the playlist_pages table.
//
// URIs are stored as a JSON array; an empty next cursor is stored as NULL.
type PageRepository struct {
	db  *sql.DB
	now Clock
}

// NewPageRepository creates a new PageRepository with the given database connection
func NewPageRepository(db *sql.DB) *PageRepository {
	return &PageRepository{db: db, now: utcNow}
}

// Get returns the cached page for cursor, or [shared.ErrCacheMiss].
func (r *PageRepository) Get(ctx context.Context, cursor string) (*models.PlaylistPage, error) {
	row := r.db.QueryRowContext(ctx, "SELECT cursor, uris, next_cursor FROM playlist_pages WHERE cursor = ?", cursor)
	return r.scanOne(row)
}

// Put stores page under its cursor, replacing any previous entry.
func (r *PageRepository) Put(ctx context.Context, page models.PlaylistPage) error {
	if page.Cursor == "" {
		return fmt.Errorf("%w: page cursor is empty", shared.ErrCacheUnavailable)
	}

	uris := page.URIs
	if uris == nil {
		uris = []string{}
	}
	encoded, err := json.Marshal(uris)
	if err != nil {
		return fmt.Errorf("failed to encode page uris: %w", err)
	}

	var next any
	if page.Next != "" {
		next = page.Next
	}

	query := `
		INSERT INTO playlist_pages (cursor, playlist_id, uris, next_cursor, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cursor) DO UPDATE SET
			uris = excluded.uris,
			next_cursor = excluded.next_cursor,
			fetched_at = excluded.fetched_at
	`

	if _, err := r.db.ExecContext(ctx, query, page.Cursor, page.PlaylistID(), string(encoded), next, r.now()); err != nil {
		return unavailable("put page", err)
	}
	return nil
}

// Delete removes the page stored under cursor. Deleting a missing cursor is not an error.
func (r *PageRepository) Delete(ctx context.Context, cursor string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM playlist_pages WHERE cursor = ?", cursor); err != nil {
		return unavailable("delete page", err)
	}
	return nil
}

// LastPage returns the cached page of playlistID that has no next cursor.
//
// When several qualify, the one with the greatest cursor wins.
func (r *PageRepository) LastPage(ctx context.Context, playlistID string) (*models.PlaylistPage, error) {
	query := `
		SELECT cursor, uris, next_cursor
		FROM playlist_pages
		WHERE playlist_id = ? AND next_cursor IS NULL
		ORDER BY cursor DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, playlistID))
}

// Clear removes every cached page of playlistID and returns how many were removed.
func (r *PageRepository) Clear(ctx context.Context, playlistID string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM playlist_pages WHERE playlist_id = ?", playlistID)
	if err != nil {
		return 0, unavailable("clear pages", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("clear pages", err)
	}
	return int(rows), nil
}

// scanOne scans a single [sql.Row] into a [models.PlaylistPage]
func (r *PageRepository) scanOne(row *sql.Row) (*models.PlaylistPage, error) {
	var (
		page    models.PlaylistPage
		encoded string
		next    sql.NullString
	)

	err := row.Scan(&page.Cursor, &encoded, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, unavailable("scan page", err)
	}

	if err := json.Unmarshal([]byte(encoded), &page.URIs); err != nil {
		return nil, unavailable("decode page uris", err)
	}
	page.Next = next.String

	return &page, nil
}
