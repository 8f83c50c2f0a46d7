// Package repositories implements the persistent stores behind the sync pipeline.
//
// Two backends share the interfaces in [models]: SQLite (the default, one database file) and Redis
// (selected by a redis:// cache URL).
//
// Key Implementations:
//   - [TrackRepository] / [RedisTrackCache] : append-only track-name cache with negative entries
//   - [PageRepository] / [RedisPageCache] : playlist page cache keyed by cursor
//   - [RunRepository] : per-source sync history
//
// Track cache keys hold several rows over time. Reads pick the newest, and Compact removes the rest.
package repositories
