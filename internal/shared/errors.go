package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrAppendRejected   = fmt.Errorf("append was not acknowledged")

	// Extraction errors
	ErrExtractFailed    = fmt.Errorf("extraction failed")
	ErrUnknownExtractor = fmt.Errorf("unknown extractor")

	// Cache errors
	ErrCacheMiss        = fmt.Errorf("cache miss")
	ErrCacheUnavailable = fmt.Errorf("cache store unavailable")
	ErrLocked           = fmt.Errorf("another run holds the cache lock")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
