package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

// PageFetcher reads one page of a playlist from the remote service.
type PageFetcher interface {
	PlaylistPage(ctx context.Context, cursor string) (*models.PlaylistPage, error)
}

// Listing is the full content of a playlist as seen by one [Reader.Read].
type Listing struct {
	PlaylistID     string
	URIs           []string // In playlist order, duplicates kept
	TerminalCursor string   // Cursor of the last page visited
}

// Contains reports whether uri is in the listing.
func (l *Listing) Contains(uri string) bool {
	for _, u := range l.URIs {
		if u == uri {
			return true
		}
	}
	return false
}

// Reader walks playlist pages through the page cache.
//
// Pages with a next cursor are cached as they are fetched. The last page is never cached by a read, so new
// appends are always seen; [Reader.Invalidate] refreshes it after this tool appends.
type Reader struct {
	cache  models.PageCache
	pages  PageFetcher
	logger *log.Logger
}

// NewReader creates a reader over cache and pages.
func NewReader(cache models.PageCache, pages PageFetcher, logger *log.Logger) *Reader {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reader{cache: cache, pages: pages, logger: logger}
}

// Read returns every track URI of the playlist.
func (r *Reader) Read(ctx context.Context, playlistID string) (*Listing, error) {
	listing := &Listing{PlaylistID: playlistID, URIs: []string{}}
	seen := make(map[string]bool)

	for cursor := models.FirstCursor(playlistID); cursor != ""; {
		if seen[cursor] {
			return nil, fmt.Errorf("%w: cursor cycle at %s", shared.ErrAPIRequest, cursor)
		}
		seen[cursor] = true

		page, err := r.page(ctx, cursor)
		if err != nil {
			return nil, err
		}

		listing.URIs = append(listing.URIs, page.URIs...)
		listing.TerminalCursor = cursor
		cursor = page.Next
	}

	return listing, nil
}

func (r *Reader) page(ctx context.Context, cursor string) (*models.PlaylistPage, error) {
	cached, err := r.cache.Get(ctx, cursor)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, shared.ErrCacheMiss) {
		return nil, err
	}

	page, err := r.pages.PlaylistPage(ctx, cursor)
	if err != nil {
		return nil, err
	}

	if !page.Terminal() {
		if err := r.cache.Put(ctx, *page); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Invalidate refreshes the cached last page of a playlist after an append.
//
// The target is the cached page without a next cursor, or fallbackCursor when none is cached. It is deleted,
// fetched again and stored under the same cursor.
func (r *Reader) Invalidate(ctx context.Context, playlistID, fallbackCursor string) error {
	target := fallbackCursor

	last, err := r.cache.LastPage(ctx, playlistID)
	switch {
	case err == nil:
		target = last.Cursor
	case !errors.Is(err, shared.ErrCacheMiss):
		return err
	}

	if target == "" {
		return nil
	}

	r.logger.Info("refresh cache key", "cursor", target)

	if err := r.cache.Delete(ctx, target); err != nil {
		return err
	}

	page, err := r.pages.PlaylistPage(ctx, target)
	if err != nil {
		return err
	}
	return r.cache.Put(ctx, *page)
}
