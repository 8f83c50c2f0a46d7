// Package services implements the HTTP clients used by a sync run.
//
// # Spotify
//
// [Session] owns the OAuth2 client credentials and the long-lived refresh token. The first call to
// [Session.Token] exchanges the refresh token for an access token, and the token is reused for the rest of
// the run. A rotated refresh token is logged as a warning.
//
// [SpotifyService] wraps the three Web API calls the sync pipeline needs:
//   - Search: first track hit for an "ARTIST - TITLE" query
//   - PlaylistPage: one page of a playlist's track URIs plus the next cursor
//   - AppendTracks: add URIs to the end of a playlist
//
// Cursors are the API's paging URLs with the "https://api.spotify.com/v1/playlists/" prefix removed, so the
// first page of playlist X is "X/tracks".
//
// # Feeds
//
// [APIService] fetches station now-playing endpoints and detects JSON bodies.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAuthFailed] : token refresh or code exchange failed
//   - [shared.ErrNoRefreshToken] : no refresh token configured
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a non-2xx status
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrAppendRejected] : append response carried no snapshot id
package services
