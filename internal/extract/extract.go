package extract

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
)

// DefaultTimeout bounds a single feed fetch.
const DefaultTimeout = 10 * time.Second

// Extractor parses one station's feed body.
//
// Records missing the artist or the title are skipped. An error means the body as a whole could not be read.
type Extractor interface {
	Name() string
	Extract(body []byte) ([]string, error)
}

// Registry maps extractor names to implementations.
type Registry struct {
	extractors map[string]Extractor
	normalizer *Normalizer
	timeout    time.Duration
	logger     *log.Logger
}

// NewRegistry returns a registry holding the built-in station extractors.
func NewRegistry(timeout time.Duration, logger *log.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	r := &Registry{
		extractors: make(map[string]Extractor),
		normalizer: DefaultNormalizer(),
		timeout:    timeout,
		logger:     logger,
	}
	r.Register(Radio886{})
	r.Register(RadioRock{})
	r.Register(RadiaCZ{})
	return r
}

// Register adds or replaces an extractor.
func (r *Registry) Register(e Extractor) {
	r.extractors[e.Name()] = e
}

// SetNormalizer replaces the cleanup pass applied to every extracted string.
func (r *Registry) SetNormalizer(n *Normalizer) {
	r.normalizer = n
}

// Lookup returns the extractor registered under name.
func (r *Registry) Lookup(name string) (Extractor, error) {
	e, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", shared.ErrUnknownExtractor, name, r.Names())
	}
	return e, nil
}

// Names lists the registered extractor names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Parse runs the named extractor over body and normalizes the results, dropping empty strings.
func (r *Registry) Parse(name string, body []byte) ([]string, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	raw, err := e.Extract(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrExtractFailed, name, err)
	}

	tracks := make([]string, 0, len(raw))
	for _, track := range raw {
		if track = r.normalizer.Normalize(track); track != "" {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

// Fetch retrieves the feed of source within the registry timeout.
//
// JSON sources must return a JSON body.
func (r *Registry) Fetch(ctx context.Context, fetcher services.Fetcher, source models.Source) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := fetcher.Get(ctx, source.URL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", shared.ErrExtractFailed, r.timeout)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrExtractFailed, err)
	}
	if source.JSON && !resp.IsJSON {
		return nil, fmt.Errorf("%w: expected a JSON body", shared.ErrExtractFailed)
	}
	return resp.Body, nil
}

// Extract fetches and parses the feed of source. Any failure is logged and yields an empty list.
func (r *Registry) Extract(ctx context.Context, fetcher services.Fetcher, source models.Source) []string {
	logger := shared.WithLogger(r.logger, "source", source.URL)

	if _, err := r.Lookup(source.Extractor); err != nil {
		logger.Error("cannot extract tracks", "error", err)
		return []string{}
	}

	body, err := r.Fetch(ctx, fetcher, source)
	if err != nil {
		logger.Error("failed while fetching tracks", "error", err)
		return []string{}
	}

	tracks, err := r.Parse(source.Extractor, body)
	if err != nil {
		logger.Error("failed while parsing tracks", "error", err)
		return []string{}
	}

	logger.Debug("extracted tracks", "count", len(tracks))
	return tracks
}
