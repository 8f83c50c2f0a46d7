package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/xrash/smetrics"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
)

const (
	// DefaultStaleAfter is how long a cache hit may go untouched before its last-accessed time is bumped.
	DefaultStaleAfter = 12 * time.Hour

	// weakMatchThreshold is the Jaro-Winkler similarity below which a search hit is reported as doubtful.
	weakMatchThreshold = 0.7
)

// Searcher finds the best catalog match for a query.
type Searcher interface {
	Search(ctx context.Context, query string) (*services.SearchHit, error)
}

// ResolverOpts tunes a [Resolver]. Zero values select the defaults.
type ResolverOpts struct {
	StaleAfter           time.Duration
	RetryUnresolvedAfter time.Duration // 0 keeps negative entries forever
	Logger               *log.Logger
	Now                  func() time.Time
}

// Resolver maps track names to Spotify URIs through the track cache, searching only on a miss.
type Resolver struct {
	cache      models.TrackCache
	search     Searcher
	staleAfter time.Duration
	retryAfter time.Duration
	logger     *log.Logger
	now        func() time.Time
}

// NewResolver creates a resolver over cache and search.
func NewResolver(cache models.TrackCache, search Searcher, opts ResolverOpts) *Resolver {
	r := &Resolver{
		cache:      cache,
		search:     search,
		staleAfter: opts.StaleAfter,
		retryAfter: opts.RetryUnresolvedAfter,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if r.staleAfter <= 0 {
		r.staleAfter = DefaultStaleAfter
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// Resolve returns the URI for name, or "" when no track matches.
//
// Names are upper-cased before lookup. A cached negative entry returns "" without searching again (unless it
// is older than the retry window). Search results, including misses, are written to the cache.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	key := shared.NormalizeTrackName(name)

	entry, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		if err := r.heartbeat(ctx, entry); err != nil {
			return "", err
		}
		if entry.Resolved {
			return entry.URI, nil
		}
		if !r.shouldRetry(entry) {
			r.logger.Warn("unable to find track", "track", name, "cached", true)
			return "", nil
		}
		r.logger.Debug("retrying unresolved track", "track", name, "since", entry.CreatedAt)
	case !errors.Is(err, shared.ErrCacheMiss):
		return "", err
	}

	hit, err := r.search.Search(ctx, key)
	if err != nil {
		return "", err
	}

	var uri string
	if hit != nil {
		uri = hit.URI
		r.checkMatch(key, hit)
	}

	if err := r.cache.Put(ctx, key, uri); err != nil {
		return "", err
	}

	if uri == "" {
		r.logger.Warn("unable to find track", "track", name)
	}
	return uri, nil
}

// ResolveAll resolves names one at a time, preserving order. Unresolved names yield "".
func (r *Resolver) ResolveAll(ctx context.Context, names []string) ([]string, error) {
	return r.resolveAll(ctx, names, nil)
}

func (r *Resolver) resolveAll(ctx context.Context, names []string, onStep func(i int, name string)) ([]string, error) {
	uris := make([]string, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return uris, err
		}
		if onStep != nil {
			onStep(i, name)
		}

		uri, err := r.Resolve(ctx, name)
		if err != nil {
			return uris, err
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

// heartbeat bumps the last-accessed time of entries untouched for longer than the stale window.
func (r *Resolver) heartbeat(ctx context.Context, entry *models.CachedTrack) error {
	now := r.now()
	if now.Sub(entry.LastAccessed) <= r.staleAfter {
		return nil
	}
	return r.cache.Touch(ctx, entry, now)
}

func (r *Resolver) shouldRetry(entry *models.CachedTrack) bool {
	return r.retryAfter > 0 && r.now().Sub(entry.CreatedAt) > r.retryAfter
}

// checkMatch warns when the hit looks unlike the query. The hit is still used.
func (r *Resolver) checkMatch(key string, hit *services.SearchHit) {
	label := shared.NormalizeTrackName(hit.Label())
	if label == "" {
		return
	}

	score := smetrics.JaroWinkler(key, label, weakMatchThreshold, 4)
	if score < weakMatchThreshold {
		r.logger.Warn("weak search match", "query", key, "match", hit.Label(), "score", score)
	}
}
