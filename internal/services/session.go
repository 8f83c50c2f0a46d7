package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// spotifyScopes are the scopes needed to read and append to the target playlists.
var spotifyScopes = []string{
	"playlist-read-collaborative",
	"playlist-modify-private",
	"playlist-modify-public",
	"playlist-read-private",
}

// SpotifyEndpoint is the Spotify accounts service.
var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:   spotifyAuthURL,
	TokenURL:  spotifyTokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Session holds the OAuth2 state for one run.
//
// The access token is fetched from the refresh token on first use and reused for the rest of the run.
// The underlying [oauth2.ReuseTokenSource] refreshes it again if it expires mid-run.
type Session struct {
	config       *oauth2.Config
	refreshToken string
	logger       *log.Logger

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewSession creates a session for the configured client credentials.
func NewSession(cfg shared.SpotifyConfig, logger *log.Logger) (*Session, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client id and secret are required", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Session{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       spotifyScopes,
			Endpoint:     SpotifyEndpoint,
		},
		refreshToken: cfg.RefreshToken,
		logger:       logger,
	}, nil
}

// SetEndpoint points the session at a different accounts service.
func (s *Session) SetEndpoint(endpoint oauth2.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Endpoint = endpoint
	s.source = nil
}

// AuthURL returns the authorization URL a user visits to grant access.
func (s *Session) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token. The returned token carries the refresh token to store.
func (s *Session) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Token returns a valid access token, refreshing it when needed.
//
// The context of the first call carries the HTTP client used for every later refresh.
func (s *Session) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	if s.source == nil {
		if s.refreshToken == "" {
			s.mu.Unlock()
			return nil, shared.ErrNoRefreshToken
		}
		s.source = &refreshableTokenSource{
			source:   s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken}),
			callback: s.onToken,
		}
	}
	source := s.source
	s.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// onToken warns when the accounts service rotates the refresh token, since the configured one may stop working.
func (s *Session) onToken(token *oauth2.Token) {
	if token.RefreshToken != "" && token.RefreshToken != s.refreshToken {
		s.logger.Warn("new refresh token supplied, update your configuration", "refresh_token", token.RefreshToken)
	}
}

// refreshableTokenSource calls callback whenever the wrapped source hands out a different access token.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
