// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// MaxAppendBatch is the largest number of URIs the add-items endpoint accepts per call.
	MaxAppendBatch = 100
)

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type searchResponse struct {
	Tracks *struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for removed or unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistItems represents one page of a playlist's items.
type SpotifyPlaylistItems struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// SearchHit is the first track returned by a search.
type SearchHit struct {
	URI    string
	Name   string
	Artist string
}

// Label formats the hit as "Artist - Title".
func (h SearchHit) Label() string {
	if h.Artist == "" {
		return h.Name
	}
	return h.Artist + " - " + h.Name
}

// SpotifyService performs the search, playlist read and append calls of a sync run.
//
// Every call waits on the pacer after its response arrives.
type SpotifyService struct {
	tokens     TokenProvider
	pacer      Pacer
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a client that authorizes requests with tokens. A nil pacer disables pacing.
func NewSpotifyService(tokens TokenProvider, pacer Pacer) *SpotifyService {
	return &SpotifyService{
		tokens:     tokens,
		pacer:      pacer,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}
}

// SetBaseURL replaces the Web API base URL.
func (s *SpotifyService) SetBaseURL(baseURL string) {
	s.baseURL = strings.TrimSuffix(baseURL, "/")
}

// SetHTTPClient replaces the HTTP client used for API calls.
func (s *SpotifyService) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

// Search returns the first track matching query, or nil when nothing matches.
//
// A response without the expected tracks shape counts as no match.
func (s *SpotifyService) Search(ctx context.Context, query string) (*SearchHit, error) {
	endpoint := "/search?type=track&q=" + url.QueryEscape(query)

	var response searchResponse
	err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response)

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if response.Tracks == nil || len(response.Tracks.Items) == 0 {
		return nil, nil
	}

	first := response.Tracks.Items[0]
	if first.URI == "" {
		return nil, nil
	}

	hit := &SearchHit{URI: first.URI, Name: first.Name}
	if len(first.Artists) > 0 {
		hit.Artist = first.Artists[0].Name
	}
	return hit, nil
}

// PlaylistPage fetches the page at cursor.
//
// The returned page's Next is the API's next URL with the playlists prefix removed, so it can be passed back
// as a cursor.
func (s *SpotifyService) PlaylistPage(ctx context.Context, cursor string) (*models.PlaylistPage, error) {
	var response SpotifyPlaylistItems
	if err := s.doRequest(ctx, http.MethodGet, "/playlists/"+cursor, nil, &response); err != nil {
		return nil, err
	}

	page := &models.PlaylistPage{Cursor: cursor, URIs: make([]string, 0, len(response.Items))}
	for _, item := range response.Items {
		if item.Track == nil || item.Track.URI == "" {
			continue
		}
		page.URIs = append(page.URIs, item.Track.URI)
	}

	if response.Next != nil {
		page.Next = s.cursorFromURL(*response.Next)
	}
	return page, nil
}

// AppendTracks adds uris to the end of the playlist in batches of [MaxAppendBatch] and returns the last snapshot id.
func (s *SpotifyService) AppendTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: no tracks to append", shared.ErrMissingArgument)
	}

	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"

	var snapshot string
	for start := 0; start < len(uris); start += MaxAppendBatch {
		end := min(start+MaxAppendBatch, len(uris))

		var response snapshotResponse
		body := map[string][]string{"uris": uris[start:end]}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &response); err != nil {
			return snapshot, err
		}
		if response.SnapshotID == "" {
			return snapshot, fmt.Errorf("%w: playlist %s", shared.ErrAppendRejected, playlistID)
		}
		snapshot = response.SnapshotID
	}
	return snapshot, nil
}

func (s *SpotifyService) cursorFromURL(next string) string {
	for _, prefix := range []string{s.baseURL + "/playlists/", spotifyBaseURL + "/playlists/"} {
		if cursor, ok := strings.CutPrefix(next, prefix); ok {
			return cursor
		}
	}
	return next
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	if s.pacer != nil {
		defer s.pacer.Wait(ctx)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(endpoint, "/playlists/"):
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return err
			}
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}
