// package models defines the domain types shared by the sync pipeline and its stores
package models

import (
	"context"
	"strings"
	"time"
)

// Source is a radio station feed bound to the playlist its tracks are appended to.
type Source struct {
	URL        string // Station feed endpoint
	PlaylistID string // Destination Spotify playlist ID
	Extractor  string // Registered extractor name
	JSON       bool   // Whether the feed body is JSON (otherwise HTML)
}

// CachedTrack is one row of the track-name cache.
//
// Resolved is false for a negative entry: the name was searched and nothing matched.
type CachedTrack struct {
	ID           string
	Key          string // Upper-cased "ARTIST - TITLE"
	URI          string // Empty for negative entries
	Resolved     bool
	CreatedAt    time.Time
	LastAccessed time.Time
}

// PlaylistPage is one page of a playlist's track listing.
//
// Cursor values look like "<playlist id>/tracks" or "<playlist id>/tracks?offset=100&limit=100".
// An empty Next marks the terminal page.
type PlaylistPage struct {
	Cursor string
	URIs   []string
	Next   string
}

// Terminal reports whether this is the last page of the playlist.
func (p PlaylistPage) Terminal() bool {
	return p.Next == ""
}

// PlaylistID returns the playlist ID encoded in the cursor.
func (p PlaylistPage) PlaylistID() string {
	return PlaylistIDFromCursor(p.Cursor)
}

// FirstCursor returns the cursor of the first page of a playlist.
func FirstCursor(playlistID string) string {
	return playlistID + "/tracks"
}

// PlaylistIDFromCursor extracts the playlist ID prefix of a cursor.
func PlaylistIDFromCursor(cursor string) string {
	id, _, _ := strings.Cut(cursor, "/")
	return id
}

// CacheStats summarizes the track-name cache.
type CacheStats struct {
	Entries      int
	Negative     int
	DistinctKeys int
	Pages        int
}

// SyncRun records the outcome of one source within a run.
type SyncRun struct {
	ID         string
	SourceURL  string
	PlaylistID string
	Extracted  int
	Appended   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the source completed without error.
func (r SyncRun) Succeeded() bool {
	return r.Error == ""
}

// TrackCache is the persistent track-name cache.
//
// Put never overwrites: each call inserts a row, and Get reads the newest row for the key.
// Get returns shared.ErrCacheMiss when no row exists; a uri of "" passed to Put records a negative entry.
type TrackCache interface {
	Get(ctx context.Context, key string) (*CachedTrack, error)
	Put(ctx context.Context, key, uri string) error
	Touch(ctx context.Context, entry *CachedTrack, at time.Time) error
	Compact(ctx context.Context) (int, error)
}

// PageCache is the persistent playlist page cache.
//
// Get and LastPage return shared.ErrCacheMiss when nothing matches. LastPage finds the cached page of
// a playlist whose next cursor is empty.
type PageCache interface {
	Get(ctx context.Context, cursor string) (*PlaylistPage, error)
	Put(ctx context.Context, page PlaylistPage) error
	Delete(ctx context.Context, cursor string) error
	LastPage(ctx context.Context, playlistID string) (*PlaylistPage, error)
	Clear(ctx context.Context, playlistID string) (int, error)
}

// RunLog persists per-source run outcomes.
type RunLog interface {
	Record(ctx context.Context, run *SyncRun) error
	Recent(ctx context.Context, limit int) ([]SyncRun, error)
}
