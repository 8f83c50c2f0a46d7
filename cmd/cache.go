package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/formatter"
	"github.com/desertthunder/radiosync/internal/shared"
)

// CacheStats prints entry counts for the configured cache.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	st, config, err := r.cacheFor(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.stats(ctx)
	if err != nil {
		return err
	}

	r.logger.Debug("cache stats", "url", config.Cache.URL)
	return formatter.Write(r.output, func() ([]byte, error) { return formatter.StatsToText(stats) })
}

// CacheCompact deletes superseded rows of the track cache.
func (r *Runner) CacheCompact(ctx context.Context, cmd *cli.Command) error {
	r.applyVerbose(cmd)

	st, _, err := r.cacheFor(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := st.tracks.Compact(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("compacted track cache", "removed", removed)
	return r.writePlain("✓ Removed %d superseded rows\n", removed)
}

// CacheInvalidate drops every cached page of a playlist so the next sync reads it in full.
func (r *Runner) CacheInvalidate(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("playlist")
	if playlistID == "" {
		return fmt.Errorf("%w: --playlist", shared.ErrMissingArgument)
	}

	st, _, err := r.cacheFor(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := st.pages.Clear(ctx, playlistID)
	if err != nil {
		return err
	}

	r.logger.Info("invalidated playlist pages", "playlist", playlistID, "removed", removed)
	return r.writePlain("✓ Removed %d cached pages of %s\n", removed, playlistID)
}

// History prints the most recent recorded runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	st, config, err := r.cacheFor(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer st.Close()

	if st.runs == nil {
		return fmt.Errorf("%w: run history needs a SQLite cache, got %s", shared.ErrInvalidConfig, config.Cache.URL)
	}

	runs, err := st.runs.Recent(ctx, limit)
	if err != nil {
		return err
	}
	return formatter.Write(r.output, func() ([]byte, error) { return formatter.FormatHistory(runs, format) })
}

// cacheFor loads the config and opens its cache.
func (r *Runner) cacheFor(ctx context.Context, cmd *cli.Command, exclusive bool) (*stores, *shared.Config, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if config.Cache.URL == "" {
		return nil, nil, fmt.Errorf("%w: cache.url is empty", shared.ErrInvalidConfig)
	}

	st, err := r.openStores(ctx, config, exclusive)
	if err != nil {
		return nil, nil, err
	}
	return st, config, nil
}
