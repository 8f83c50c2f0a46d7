package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/shared"
)

// SetupDatabase opens the configured cache, applying migrations for SQLite or checking connectivity for Redis.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	st, config, err := r.cacheFor(ctx, cmd, false)
	if err != nil {
		return err
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}

	r.logger.Info("cache ready", "url", config.Cache.URL)
	return r.writePlain("✓ Cache ready at %s\n", config.Cache.URL)
}

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		return fmt.Errorf("%w: --config", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify.client_id and client_secret\n")
	return r.writePlain("2. Run 'radiosync auth login' to obtain a refresh token\n")
}
