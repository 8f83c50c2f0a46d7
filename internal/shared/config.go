package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from the config file.
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvRedirectURL  = "SPOTIFY_REDIRECT_URL"
	EnvRefreshToken = "SPOTIFY_REFRESH_TOKEN"
	EnvCacheURL     = "RADIOSYNC_CACHE_URL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	AggregatePlaylistID string            `toml:"aggregate_playlist_id"`
	Credentials         CredentialsConfig `toml:"credentials"`
	Cache               CacheConfig       `toml:"cache"`
	Throttle            ThrottleConfig    `toml:"throttle"`
	Extract             ExtractConfig     `toml:"extract"`
	Server              ServerConfig      `toml:"server"`
	Sources             []SourceConfig    `toml:"sources"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	RefreshToken string `toml:"refresh_token"`
}

// CacheConfig contains cache store connection settings.
//
// URL is either a SQLite file path (or ":memory:") or a redis:// URL.
type CacheConfig struct {
	URL                  string        `toml:"url"`
	MaxOpenConns         int           `toml:"max_open_conns"`
	MaxIdleConns         int           `toml:"max_idle_conns"`
	StaleAfter           time.Duration `toml:"stale_after"`
	RetryUnresolvedAfter time.Duration `toml:"retry_unresolved_after"`
}

// IsRedis reports whether the cache URL points at a Redis server.
func (c CacheConfig) IsRedis() bool {
	return strings.HasPrefix(c.URL, "redis://") || strings.HasPrefix(c.URL, "rediss://")
}

// ThrottleConfig bounds the randomized pauses between Spotify calls and between sources.
type ThrottleConfig struct {
	SearchMin time.Duration `toml:"search_min"`
	SearchMax time.Duration `toml:"search_max"`
	SourceMin time.Duration `toml:"source_min"`
	SourceMax time.Duration `toml:"source_max"`
}

// ExtractConfig contains station feed fetch settings.
type ExtractConfig struct {
	Timeout time.Duration `toml:"timeout"`
}

// ServerConfig contains the local OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SourceConfig describes one radio station feed and the playlist it feeds.
type SourceConfig struct {
	URL        string `toml:"url"`
	PlaylistID string `toml:"playlist_id"`
	Extractor  string `toml:"extractor"`
	JSON       bool   `toml:"json"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Sources = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads the config at path when it exists, falls back to [DefaultConfig] otherwise,
// and applies environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}
	config.ApplyEnv(os.LookupEnv)
	return config, nil
}

// ApplyEnv overrides credential and cache settings from the environment.
//
// lookup has the signature of [os.LookupEnv]; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Credentials.Spotify.ClientID, EnvClientID)
	set(&c.Credentials.Spotify.ClientSecret, EnvClientSecret)
	set(&c.Credentials.Spotify.RedirectURI, EnvRedirectURL)
	set(&c.Credentials.Spotify.RefreshToken, EnvRefreshToken)
	set(&c.Cache.URL, EnvCacheURL)
}

// Validate checks that the config can drive a sync run.
func (c *Config) Validate() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials)
	}
	if sp.RefreshToken == "" {
		return fmt.Errorf("%w: run 'radiosync auth login' or set %s", ErrNoRefreshToken, EnvRefreshToken)
	}
	if c.Cache.URL == "" {
		return fmt.Errorf("%w: cache.url is empty", ErrInvalidConfig)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources configured", ErrInvalidConfig)
	}
	for i, src := range c.Sources {
		if src.URL == "" || src.PlaylistID == "" || src.Extractor == "" {
			return fmt.Errorf("%w: source #%d needs url, playlist_id and extractor", ErrInvalidConfig, i+1)
		}
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
