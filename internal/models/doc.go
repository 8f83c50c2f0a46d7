// Package models defines the domain types and store interfaces for radiosync.
//
// Transient values, scoped to one pass of the sync pipeline:
//   - [Source] : A station feed bound to a destination playlist
//   - [PlaylistPage] : One page of a playlist listing with its next cursor
//
// Persistent values, which outlive a run:
//   - [CachedTrack] : A resolved (or negatively cached) track name
//   - [SyncRun] : The outcome of one source in one run
//
// The store interfaces [TrackCache], [PageCache] and [RunLog] are implemented by the
// repositories package over SQLite and Redis.
package models
