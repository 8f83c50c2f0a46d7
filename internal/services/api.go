// Feed fetcher for station now-playing endpoints
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/radiosync/internal/shared"
)

// DefaultUserAgent is sent with feed requests; some stations reject the Go default.
const DefaultUserAgent = "Mozilla/5.0 (compatible; radiosync/1.0)"

// APIService fetches station feeds over plain HTTP.
type APIService struct {
	httpClient *http.Client
	userAgent  string
}

// NewAPIService creates a feed fetcher. A nil client uses [http.DefaultClient].
func NewAPIService(client *http.Client, userAgent string) *APIService {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &APIService{
		httpClient: client,
		userAgent:  userAgent,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to url and returns the raw response.
//
// A non-2xx status returns the response together with an error wrapping [shared.ErrAPIRequest].
func (a *APIService) Get(ctx context.Context, url string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiResp, fmt.Errorf("%w: GET %s: status %d", shared.ErrAPIRequest, url, resp.StatusCode)
	}

	return apiResp, nil
}
