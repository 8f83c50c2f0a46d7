// Package server hosts the one-time Spotify login flow.
//
// 'radiosync auth login' starts a local server on the configured host and port. Visiting "/" redirects to the
// Spotify authorization page; Spotify then calls "/callback", where [OAuthHandler] checks the state token,
// exchanges the code and hands the token back through [OAuthHandler.Result]. The server shuts down once a
// result arrives.
//
// [BasicRouter] wraps [http.ServeMux] with per-route method filtering and a middleware stack.
package server
