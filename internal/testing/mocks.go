package testing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/services"
	"github.com/desertthunder/radiosync/internal/shared"
)

// MockSpotify is an in-memory stand-in for [services.SpotifyService].
//
// Catalog maps upper-cased queries to hits; Playlists holds each playlist's URIs and grows on append.
type MockSpotify struct {
	mu sync.Mutex

	Catalog   map[string]*services.SearchHit
	Playlists map[string][]string
	PageSize  int

	SearchErr error
	PageErr   error
	AppendErr error

	Searches    []string
	PageCalls   []string
	AppendCalls [][]string
}

// NewMockSpotify creates a mock with empty catalog and playlists and a page size of 100.
func NewMockSpotify() *MockSpotify {
	return &MockSpotify{
		Catalog:   make(map[string]*services.SearchHit),
		Playlists: make(map[string][]string),
		PageSize:  100,
	}
}

// AddTrack registers a catalog entry for query.
func (m *MockSpotify) AddTrack(query, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Catalog[query] = &services.SearchHit{URI: uri, Name: query}
}

func (m *MockSpotify) Search(ctx context.Context, query string) (*services.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Searches = append(m.Searches, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.Catalog[query], nil
}

// PlaylistPage serves cursors of the form "<id>/tracks" and "<id>/tracks?offset=N&limit=M".
func (m *MockSpotify) PlaylistPage(ctx context.Context, cursor string) (*models.PlaylistPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PageCalls = append(m.PageCalls, cursor)
	if m.PageErr != nil {
		return nil, m.PageErr
	}

	id := models.PlaylistIDFromCursor(cursor)
	uris, ok := m.Playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	offset, limit := 0, m.PageSize
	if _, rawQuery, found := strings.Cut(cursor, "?"); found {
		query, err := url.ParseQuery(rawQuery)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor %q", shared.ErrAPIRequest, cursor)
		}
		offset, _ = strconv.Atoi(query.Get("offset"))
		if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
			limit = l
		}
	}

	end := min(offset+limit, len(uris))
	page := &models.PlaylistPage{Cursor: cursor, URIs: []string{}}
	if offset < end {
		page.URIs = append(page.URIs, uris[offset:end]...)
	}
	if end < len(uris) {
		page.Next = fmt.Sprintf("%s/tracks?offset=%d&limit=%d", id, end, limit)
	}
	return page, nil
}

func (m *MockSpotify) AppendTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls = append(m.AppendCalls, append([]string(nil), uris...))
	if m.AppendErr != nil {
		return "", m.AppendErr
	}
	if _, ok := m.Playlists[playlistID]; !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	m.Playlists[playlistID] = append(m.Playlists[playlistID], uris...)
	return fmt.Sprintf("snapshot-%d", len(m.AppendCalls)), nil
}

// SearchCount returns the number of Search calls made.
func (m *MockSpotify) SearchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Searches)
}

// PageCount returns the number of PlaylistPage calls made.
func (m *MockSpotify) PageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PageCalls)
}

// MockFetcher serves canned feed bodies by URL.
type MockFetcher struct {
	mu        sync.Mutex
	Responses map[string]*services.APIResponse
	Errors    map[string]error
	Calls     []string
}

// NewMockFetcher creates an empty fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Responses: make(map[string]*services.APIResponse),
		Errors:    make(map[string]error),
	}
}

// AddJSON registers a JSON body for url.
func (f *MockFetcher) AddJSON(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[url] = &services.APIResponse{StatusCode: 200, Body: []byte(body), IsJSON: true}
}

// AddHTML registers a non-JSON body for url.
func (f *MockFetcher) AddHTML(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[url] = &services.APIResponse{StatusCode: 200, Body: []byte(body)}
}

func (f *MockFetcher) Get(ctx context.Context, url string) (*services.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, url)
	if err := f.Errors[url]; err != nil {
		return nil, err
	}
	if resp, ok := f.Responses[url]; ok {
		return resp, nil
	}
	return &services.APIResponse{StatusCode: 404}, fmt.Errorf("%w: GET %s: status 404", shared.ErrAPIRequest, url)
}

// MockTokens is a [services.TokenProvider] returning a fixed token or Err.
type MockTokens struct {
	Err   error
	Calls int
}

func (m *MockTokens) Token(context.Context) (*oauth2.Token, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return &oauth2.Token{AccessToken: "mock-access-token", Expiry: time.Now().Add(time.Hour)}, nil
}

// CountingTrackCache wraps a [models.TrackCache] and counts calls per operation.
type CountingTrackCache struct {
	Inner models.TrackCache

	Gets    int
	Puts    int
	Touches int
	PutKeys []string

	// Err, when set, is returned by every operation.
	Err error
}

func (c *CountingTrackCache) Get(ctx context.Context, key string) (*models.CachedTrack, error) {
	c.Gets++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Inner.Get(ctx, key)
}

func (c *CountingTrackCache) Put(ctx context.Context, key, uri string) error {
	c.Puts++
	c.PutKeys = append(c.PutKeys, key)
	if c.Err != nil {
		return c.Err
	}
	return c.Inner.Put(ctx, key, uri)
}

func (c *CountingTrackCache) Touch(ctx context.Context, entry *models.CachedTrack, at time.Time) error {
	c.Touches++
	if c.Err != nil {
		return c.Err
	}
	return c.Inner.Touch(ctx, entry, at)
}

func (c *CountingTrackCache) Compact(ctx context.Context) (int, error) {
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Inner.Compact(ctx)
}

// CountingPageCache wraps a [models.PageCache] and records written and deleted cursors.
type CountingPageCache struct {
	Inner models.PageCache

	Gets    int
	Puts    []string
	Deletes []string

	// Err, when set, is returned by every operation.
	Err error
}

func (c *CountingPageCache) Get(ctx context.Context, cursor string) (*models.PlaylistPage, error) {
	c.Gets++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Inner.Get(ctx, cursor)
}

func (c *CountingPageCache) Put(ctx context.Context, page models.PlaylistPage) error {
	c.Puts = append(c.Puts, page.Cursor)
	if c.Err != nil {
		return c.Err
	}
	return c.Inner.Put(ctx, page)
}

func (c *CountingPageCache) Delete(ctx context.Context, cursor string) error {
	c.Deletes = append(c.Deletes, cursor)
	if c.Err != nil {
		return c.Err
	}
	return c.Inner.Delete(ctx, cursor)
}

func (c *CountingPageCache) LastPage(ctx context.Context, playlistID string) (*models.PlaylistPage, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Inner.LastPage(ctx, playlistID)
}

func (c *CountingPageCache) Clear(ctx context.Context, playlistID string) (int, error) {
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Inner.Clear(ctx, playlistID)
}
