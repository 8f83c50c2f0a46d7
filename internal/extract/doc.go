// Package extract turns station "now playing" feeds into "Artist - Title" strings.
//
// Each station format is an [Extractor] registered by name in a [Registry]. The registry fetches the feed,
// runs the extractor and cleans every result with a [Normalizer]. Feeds that list the newest track first are
// reversed so results are oldest first.
//
// Extraction never fails a run: network errors, timeouts, bad status codes and malformed bodies are logged and
// produce an empty list.
package extract
