// Package tasks runs the sync pipeline: extract track names from a station feed, resolve them to Spotify URIs,
// diff against the playlist and append what is missing.
//
// # Core Operations
//
//  1. [Resolver.Resolve] : Track name to URI
//     - Upper-cases the name and looks it up in the track cache
//     - Searches Spotify only on a miss, caching misses as well as hits
//     - Bumps the last-accessed time of entries older than the stale window
//
//  2. [Reader.Read] : Full playlist listing
//     - Walks page cursors, serving pages from the page cache when present
//     - Never caches the last page, so tracks added elsewhere are seen
//
//  3. [Reader.Invalidate] : Refresh after an append
//     - Deletes the last page, fetches it again and stores it under the same cursor
//
//  4. [Orchestrator.Run] : One pass over every configured source
//     - Authenticates once, then syncs sources in order with a pause between them
//     - Records each source outcome to the run log
//     - Feeds this run's new URIs to the aggregate playlist when one is configured
//
// # Progress Reporting
//
// Progress is sent as [ProgressUpdate] values on an optional channel. Sends never block; updates are dropped
// when the receiver falls behind.
//
// # Failures
//
// A Spotify or feed failure ends that source only. A cache store failure, a failed token fetch or a canceled
// context stops the whole run.
package tasks
