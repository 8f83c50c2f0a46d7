package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/radiosync/internal/extract"
	"github.com/desertthunder/radiosync/internal/formatter"
	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
)

// Sync runs the pipeline once over the configured (or selected) sources and prints a summary.
//
// Failing sources are reported in the summary; only aborted runs return an error.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	r.applyVerbose(cmd)

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	sources, err := selectSources(config.Sources, cmd.StringSlice("source"))
	if err != nil {
		return err
	}

	st, err := r.openStores(ctx, config, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			r.logger.Warn("failed to close cache", "error", err)
		}
	}()

	session, err := r.newSession(config)
	if err != nil {
		return err
	}

	spotify := services.NewSpotifyService(session, tasks.NewPacer(config.Throttle.SearchMin, config.Throttle.SearchMax))
	spotify.SetHTTPClient(r.httpClient)
	if r.spotifyURL != "" {
		spotify.SetBaseURL(r.spotifyURL)
	}

	orchestrator := tasks.NewOrchestrator(tasks.OrchestratorOpts{
		Spotify:   spotify,
		Tokens:    session,
		Extractor: extract.NewRegistry(config.Extract.Timeout, r.logger),
		Fetcher:   services.NewAPIService(r.httpClient, ""),
		Resolver: tasks.NewResolver(st.tracks, spotify, tasks.ResolverOpts{
			StaleAfter:           config.Cache.StaleAfter,
			RetryUnresolvedAfter: config.Cache.RetryUnresolvedAfter,
			Logger:               r.logger,
		}),
		Reader:              tasks.NewReader(st.pages, spotify, r.logger),
		RunLog:              st.runs,
		SourcePacer:         tasks.NewPacer(config.Throttle.SourceMin, config.Throttle.SourceMax),
		AggregatePlaylistID: config.AggregatePlaylistID,
		DryRun:              cmd.Bool("dry-run"),
		Logger:              r.logger,
	})

	r.logger.Info("starting sync", "sources", len(sources), "dry_run", cmd.Bool("dry-run"))

	progress := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.logProgress(progress)
	}()

	result, runErr := orchestrator.Run(ctx, sources, progress)
	close(progress)
	wg.Wait()

	if result != nil {
		data, err := formatter.FormatSummary(result, format)
		if err != nil {
			return err
		}
		if err := r.write(data); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("sync aborted: %w", runErr)
	}
	return nil
}

// logProgress drains progress updates into the debug log.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) {
	for update := range progress {
		if update.Total > 0 {
			r.logger.Debug(update.Message, "phase", update.Phase, "source", update.Source.URL, "step", update.Step, "total", update.Total)
			continue
		}
		r.logger.Debug(update.Message, "phase", update.Phase, "source", update.Source.URL)
	}
}

// selectSources converts configured sources, keeping only those matching filters when any are given.
func selectSources(configured []shared.SourceConfig, filters []string) ([]models.Source, error) {
	sources := make([]models.Source, 0, len(configured))
	matched := make(map[string]bool, len(filters))

	for _, src := range configured {
		keep := len(filters) == 0
		for _, f := range filters {
			if f != "" && (strings.Contains(src.URL, f) || src.PlaylistID == f) {
				keep = true
				matched[f] = true
			}
		}
		if keep {
			sources = append(sources, models.Source{
				URL:        src.URL,
				PlaylistID: src.PlaylistID,
				Extractor:  src.Extractor,
				JSON:       src.JSON,
			})
		}
	}

	for _, f := range filters {
		if !matched[f] {
			return nil, fmt.Errorf("%w: no source matches %q", shared.ErrInvalidFlag, f)
		}
	}
	return sources, nil
}

// Extract fetches one feed and prints the names its extractor produces, one per line.
//
// Unlike a sync, failures are returned rather than degraded to an empty list.
func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	r.applyVerbose(cmd)

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	registry := extract.NewRegistry(config.Extract.Timeout, r.logger)
	source := models.Source{
		URL:       cmd.String("url"),
		Extractor: cmd.String("extractor"),
		JSON:      !cmd.Bool("html"),
	}

	if _, err := registry.Lookup(source.Extractor); err != nil {
		return err
	}

	body, err := registry.Fetch(ctx, services.NewAPIService(r.httpClient, ""), source)
	if err != nil {
		return err
	}

	names, err := registry.Parse(source.Extractor, body)
	if err != nil {
		return err
	}

	r.logger.Info("extracted tracks", "count", len(names), "extractor", source.Extractor)
	for _, name := range names {
		if err := r.writePlain("%s\n", name); err != nil {
			return err
		}
	}
	return nil
}
