package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/repositories"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	configPath   string
	httpClient   *http.Client
	logger       *log.Logger
	output       io.Writer
	spotifyURL   string
	authEndpoint *oauth2.Endpoint
	openBrowser  func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is resolved from the --config flag (or ConfigPath) on each command.
type RunnerOpts struct {
	Config       *shared.Config
	ConfigPath   string
	HTTPClient   *http.Client
	Logger       *log.Logger
	Output       io.Writer
	SpotifyURL   string           // Web API base URL override
	AuthEndpoint *oauth2.Endpoint // Accounts service override
	OpenBrowser  func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		output:       opts.Output,
		spotifyURL:   opts.SpotifyURL,
		authEndpoint: opts.AuthEndpoint,
		openBrowser:  opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, extractCommand, authCommand, cacheCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the injected config or resolves one from the --config flag and the environment.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if flag := cmd.String("config"); flag != "" {
		path = flag
	}

	config, err := shared.ResolveConfig(path)
	if err != nil {
		return nil, err
	}
	r.config = config
	return config, nil
}

// applyVerbose enables debug logging when --verbose is set.
func (r *Runner) applyVerbose(cmd *cli.Command) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
}

// newSession creates the Spotify session for config, honoring the accounts endpoint override.
func (r *Runner) newSession(config *shared.Config) (*services.Session, error) {
	session, err := services.NewSession(config.Credentials.Spotify, r.logger)
	if err != nil {
		return nil, err
	}
	if r.authEndpoint != nil {
		session.SetEndpoint(*r.authEndpoint)
	}
	return session, nil
}

// stores bundles the cache backends selected by the cache URL.
type stores struct {
	tracks models.TrackCache
	pages  models.PageCache
	runs   models.RunLog // nil for Redis
	stats  func(context.Context) (*models.CacheStats, error)
	close  func() error
}

// Close releases the backend connection and any run lock.
func (s *stores) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// openStores connects to the configured cache. With exclusive set, a SQLite file cache is guarded by a run
// lock so that two runs never share it.
func (r *Runner) openStores(ctx context.Context, config *shared.Config, exclusive bool) (*stores, error) {
	if config.Cache.IsRedis() {
		return r.openRedis(ctx, config)
	}
	return r.openSQLite(config, exclusive)
}

func (r *Runner) openRedis(ctx context.Context, config *shared.Config) (*stores, error) {
	client, err := repositories.NewRedisClient(ctx, config.Cache.URL)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("using redis cache", "addr", client.Options().Addr)

	tracks := repositories.NewRedisTrackCache(client)
	return &stores{
		tracks: tracks,
		pages:  repositories.NewRedisPageCache(client),
		stats:  tracks.Stats,
		close:  closeRedis(client),
	}, nil
}

func closeRedis(client *redis.Client) func() error {
	return func() error { return client.Close() }
}

func (r *Runner) openSQLite(config *shared.Config, exclusive bool) (*stores, error) {
	var lock *shared.RunLock
	if exclusive && config.Cache.URL != ":memory:" {
		var err error
		if lock, err = shared.AcquireRunLock(shared.LockPath(config.Cache.URL)); err != nil {
			return nil, err
		}
	}

	db, err := shared.OpenCache(config.Cache)
	if err != nil {
		lock.Release()
		return nil, err
	}
	r.logger.Debug("using sqlite cache", "path", config.Cache.URL)

	return &stores{
		tracks: repositories.NewTrackRepository(db),
		pages:  repositories.NewPageRepository(db),
		runs:   repositories.NewRunRepository(db),
		stats:  func(ctx context.Context) (*models.CacheStats, error) { return repositories.Stats(ctx, db) },
		close: func() error {
			err := db.Close()
			if lerr := lock.Release(); lerr != nil && err == nil {
				err = lerr
			}
			return err
		},
	}, nil
}

func (r *Runner) write(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.write([]byte(fmt.Sprintf(format, args...)))
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.write([]byte("\n" + fmt.Sprintf(format, args...) + "\n"))
}
