package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
)

// AggregateSourceURL labels the aggregate playlist in results and run history.
const AggregateSourceURL = "aggregate"

// Spotify is the remote playlist service a sync run talks to.
type Spotify interface {
	Searcher
	PageFetcher
	AppendTracks(ctx context.Context, playlistID string, uris []string) (string, error)
}

// FeedExtractor turns a station feed into track names. [extract.Registry] implements it.
type FeedExtractor interface {
	Extract(ctx context.Context, fetcher services.Fetcher, source models.Source) []string
}

// SourceResult is the outcome of syncing one source.
type SourceResult struct {
	Source     models.Source
	Extracted  []string // Track names in feed order
	Resolved   []string // URIs aligned with Extracted, "" when unresolved
	Existing   int      // Tracks already in the playlist
	Appended   []string // URIs added to the playlist
	Pending    []string // URIs that would be added (dry run)
	DryRun     bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Unresolved counts extracted names without a URI.
func (r *SourceResult) Unresolved() int {
	n := 0
	for _, uri := range r.Resolved {
		if uri == "" {
			n++
		}
	}
	return n
}

// RunResult is the outcome of a full run.
type RunResult struct {
	Sources   []*SourceResult
	Aggregate *SourceResult // nil when no aggregate playlist is configured
}

// TotalAppended counts URIs appended across sources, excluding the aggregate playlist.
func (r *RunResult) TotalAppended() int {
	n := 0
	for _, s := range r.Sources {
		n += len(s.Appended)
	}
	return n
}

// Failed counts sources that ended with an error.
func (r *RunResult) Failed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// OrchestratorOpts holds the collaborators of an [Orchestrator].
type OrchestratorOpts struct {
	Spotify   Spotify
	Tokens    services.TokenProvider
	Extractor FeedExtractor
	Fetcher   services.Fetcher
	Resolver  *Resolver
	Reader    *Reader

	RunLog              models.RunLog  // optional
	SourcePacer         services.Pacer // optional pause between sources
	AggregatePlaylistID string
	DryRun              bool
	Logger              *log.Logger
	Now                 func() time.Time
}

// Orchestrator runs the extract, resolve, diff and append pipeline for each source in turn.
type Orchestrator struct {
	spotify   Spotify
	tokens    services.TokenProvider
	extractor FeedExtractor
	fetcher   services.Fetcher
	resolver  *Resolver
	reader    *Reader

	runs        models.RunLog
	sourcePacer services.Pacer
	aggregateID string
	dryRun      bool
	logger      *log.Logger
	now         func() time.Time
}

// NewOrchestrator creates an orchestrator from opts.
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	o := &Orchestrator{
		spotify:     opts.Spotify,
		tokens:      opts.Tokens,
		extractor:   opts.Extractor,
		fetcher:     opts.Fetcher,
		resolver:    opts.Resolver,
		reader:      opts.Reader,
		runs:        opts.RunLog,
		sourcePacer: opts.SourcePacer,
		aggregateID: opts.AggregatePlaylistID,
		dryRun:      opts.DryRun,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if o.logger == nil {
		o.logger = shared.NewLogger(nil)
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// sendProgress sends a progress update through the channel without blocking.
func (o *Orchestrator) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Diff returns the URIs of resolved that are neither empty nor in existing, in resolution order and without
// repeats.
func Diff(resolved, existing []string) []string {
	present := make(map[string]struct{}, len(existing)+len(resolved))
	for _, uri := range existing {
		present[uri] = struct{}{}
	}

	fresh := []string{}
	for _, uri := range resolved {
		if uri == "" {
			continue
		}
		if _, ok := present[uri]; ok {
			continue
		}
		present[uri] = struct{}{}
		fresh = append(fresh, uri)
	}
	return fresh
}

// SyncSource extracts the tracks of source and appends the ones missing from its playlist.
//
// The returned error is also stored in the result. An empty extraction finishes without touching Spotify.
func (o *Orchestrator) SyncSource(ctx context.Context, source models.Source, progress chan<- ProgressUpdate) (*SourceResult, error) {
	result := &SourceResult{Source: source, DryRun: o.dryRun, StartedAt: o.now()}
	err := o.syncSource(ctx, source, result, progress)

	result.Err = err
	result.FinishedAt = o.now()
	o.sendProgress(progress, doneUpdate(result))
	return result, err
}

func (o *Orchestrator) syncSource(ctx context.Context, source models.Source, result *SourceResult, progress chan<- ProgressUpdate) error {
	logger := shared.WithLogger(o.logger, "source", source.URL)

	o.sendProgress(progress, extractingUpdate(source))
	result.Extracted = o.extractor.Extract(ctx, o.fetcher, source)
	if len(result.Extracted) == 0 {
		logger.Info("no tracks extracted")
		return nil
	}

	total := len(result.Extracted)
	resolved, err := o.resolver.resolveAll(ctx, result.Extracted, func(i int, name string) {
		o.sendProgress(progress, resolvingUpdate(source, i+1, total, name))
	})
	result.Resolved = resolved
	if err != nil {
		return err
	}

	o.sendProgress(progress, diffingUpdate(source, len(resolved)))
	listing, err := o.reader.Read(ctx, source.PlaylistID)
	if err != nil {
		return err
	}
	result.Existing = len(listing.URIs)

	fresh := Diff(resolved, listing.URIs)
	if len(fresh) == 0 {
		logger.Debug("playlist up to date", "playlist", source.PlaylistID)
		return nil
	}

	if o.dryRun {
		result.Pending = fresh
		logger.Info("dry run, skipping append", "pending", len(fresh))
		return nil
	}

	o.sendProgress(progress, appendingUpdate(source, fresh))
	if _, err := o.spotify.AppendTracks(ctx, source.PlaylistID, fresh); err != nil {
		return err
	}
	result.Appended = fresh
	logger.Infof("%d successfully added to playlist", len(fresh))

	if err := o.reader.Invalidate(ctx, source.PlaylistID, listing.TerminalCursor); err != nil {
		if errors.Is(err, shared.ErrCacheUnavailable) {
			return err
		}
		logger.Warn("failed to refresh playlist cache", "error", err)
	}
	return nil
}

// Run syncs every source in order, then the aggregate playlist when configured.
//
// Authentication happens once up front and a failure aborts the run. A source that fails is recorded and the
// run moves on; a cache store failure or a canceled context stops the run.
func (o *Orchestrator) Run(ctx context.Context, sources []models.Source, progress chan<- ProgressUpdate) (*RunResult, error) {
	if _, err := o.tokens.Token(ctx); err != nil {
		return nil, err
	}

	result := &RunResult{}
	var union []string

	for i, source := range sources {
		if i > 0 && o.sourcePacer != nil {
			if err := o.sourcePacer.Wait(ctx); err != nil {
				return result, err
			}
		}

		res, err := o.SyncSource(ctx, source, progress)
		result.Sources = append(result.Sources, res)
		o.record(ctx, res)

		if err != nil {
			if errors.Is(err, shared.ErrCacheUnavailable) || ctx.Err() != nil {
				return result, err
			}
			o.logger.Error("source failed", "source", source.URL, "error", err)
			continue
		}

		union = append(union, res.Appended...)
		union = append(union, res.Pending...)
	}

	if o.aggregateID == "" || len(union) == 0 {
		return result, nil
	}

	aggregate, err := o.syncAggregate(ctx, union, progress)
	result.Aggregate = aggregate
	o.record(ctx, aggregate)
	if err != nil {
		if errors.Is(err, shared.ErrCacheUnavailable) || ctx.Err() != nil {
			return result, err
		}
		o.logger.Error("aggregate playlist failed", "playlist", o.aggregateID, "error", err)
	}
	return result, nil
}

// syncAggregate appends this run's new URIs to the aggregate playlist, skipping ones it already holds.
func (o *Orchestrator) syncAggregate(ctx context.Context, uris []string, progress chan<- ProgressUpdate) (*SourceResult, error) {
	source := models.Source{URL: AggregateSourceURL, PlaylistID: o.aggregateID}
	result := &SourceResult{Source: source, DryRun: o.dryRun, StartedAt: o.now(), Resolved: uris}

	err := func() error {
		o.sendProgress(progress, diffingUpdate(source, len(uris)))
		listing, err := o.reader.Read(ctx, o.aggregateID)
		if err != nil {
			return err
		}
		result.Existing = len(listing.URIs)

		fresh := Diff(uris, listing.URIs)
		if len(fresh) == 0 {
			return nil
		}
		if o.dryRun {
			result.Pending = fresh
			return nil
		}

		o.sendProgress(progress, appendingUpdate(source, fresh))
		if _, err := o.spotify.AppendTracks(ctx, o.aggregateID, fresh); err != nil {
			return err
		}
		result.Appended = fresh
		o.logger.Infof("aggregate: %d successfully added to playlist", len(fresh))

		if err := o.reader.Invalidate(ctx, o.aggregateID, listing.TerminalCursor); err != nil {
			if errors.Is(err, shared.ErrCacheUnavailable) {
				return err
			}
			o.logger.Warn("failed to refresh playlist cache", "playlist", o.aggregateID, "error", err)
		}
		return nil
	}()

	result.Err = err
	result.FinishedAt = o.now()
	o.sendProgress(progress, doneUpdate(result))
	return result, err
}

// record writes the outcome of res to the run log. Dry runs are not recorded.
func (o *Orchestrator) record(ctx context.Context, res *SourceResult) {
	if o.runs == nil || res == nil || res.DryRun {
		return
	}

	run := &models.SyncRun{
		SourceURL:  res.Source.URL,
		PlaylistID: res.Source.PlaylistID,
		Extracted:  len(res.Extracted),
		Appended:   len(res.Appended),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}

	if err := o.runs.Record(ctx, run); err != nil {
		o.logger.Warn("failed to record run", "source", res.Source.URL, "error", err)
	}
}
