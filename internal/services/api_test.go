package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/radiosync/internal/shared"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService(customClient, "agent/1.0")

			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
			if srv.userAgent != "agent/1.0" {
				t.Errorf("expected user agent 'agent/1.0', got %s", srv.userAgent)
			}
		})

		t.Run("With Defaults", func(t *testing.T) {
			srv := NewAPIService(nil, "")

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
			if srv.userAgent != DefaultUserAgent {
				t.Errorf("expected default user agent, got %s", srv.userAgent)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("expected user agent header, got %q", r.Header.Get("User-Agent"))
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
			}))
			defer server.Close()

			srv := NewAPIService(nil, "")
			resp, err := srv.Get(context.Background(), server.URL+"/feed")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected response to be JSON")
			}
			if resp.Headers.Get("Content-Type") != "application/json" {
				t.Error("expected headers to be preserved")
			}
		})

		t.Run("Successful Request With HTML Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<div class=\"interpret-song\"></div>"))
			}))
			defer server.Close()

			srv := NewAPIService(nil, "")
			resp, err := srv.Get(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected response to not be JSON")
			}
			if !strings.Contains(string(resp.Body), "interpret-song") {
				t.Errorf("unexpected body: %s", resp.Body)
			}
		})

		t.Run("Non-2xx Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			srv := NewAPIService(nil, "")
			resp, err := srv.Get(context.Background(), server.URL)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
				t.Error("expected response to be returned with the error")
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService(nil, "")
			_, err := srv.Get(context.Background(), "://bad-url")
			if err == nil {
				t.Error("expected error for invalid URL")
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			srv := NewAPIService(nil, "")
			if _, err := srv.Get(ctx, server.URL); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})
}
