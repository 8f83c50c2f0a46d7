package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/shared"
	tu "github.com/desertthunder/radiosync/internal/testing"
)

// fakeSpotify serves the token endpoint and the search, playlist and append endpoints under /v1.
type fakeSpotify struct {
	mu        sync.Mutex
	catalog   map[string]string // upper-cased query to uri
	playlists map[string][]string
	searches  []string
	appends   int
}

func newFakeSpotify() *fakeSpotify {
	return &fakeSpotify{
		catalog: map[string]string{
			"A - X": "spotify:track:x",
			"B - Y": "spotify:track:y",
		},
		playlists: map[string][]string{"pl1": {}},
	}
}

func (f *fakeSpotify) playlist(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.playlists[id])
}

func (f *fakeSpotify) counts() (searches, appends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches), f.appends
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (f *fakeSpotify) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		body := map[string]any{"access_token": "access", "token_type": "Bearer", "expires_in": 3600}
		if r.Form.Get("grant_type") == "authorization_code" {
			body["refresh_token"] = "new-refresh"
		}
		writeJSON(w, http.StatusOK, body)
	})

	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			t.Errorf("missing bearer token on search")
		}
		q := r.URL.Query().Get("q")

		f.mu.Lock()
		f.searches = append(f.searches, q)
		uri, ok := f.catalog[q]
		f.mu.Unlock()

		items := []map[string]any{}
		if ok {
			items = append(items, map[string]any{"uri": uri, "name": q, "artists": []any{}})
		}
		writeJSON(w, http.StatusOK, map[string]any{"tracks": map[string]any{"items": items}})
	})

	mux.HandleFunc("GET /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		uris, ok := f.playlists[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}

		items := []map[string]any{}
		for _, uri := range uris {
			items = append(items, map[string]any{"track": map[string]any{"uri": uri}})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items), "next": nil})
	})

	mux.HandleFunc("POST /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad append body: %v", err)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := f.playlists[id]; !ok {
			http.NotFound(w, r)
			return
		}
		f.playlists[id] = append(f.playlists[id], body.URIs...)
		f.appends++
		writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": "snap"})
	})

	return mux
}

type harness struct {
	spotify *fakeSpotify
	api     *httptest.Server
	feed    *httptest.Server
	config  *shared.Config
	output  *bytes.Buffer
	logs    *bytes.Buffer
	browser func(string) error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{spotify: newFakeSpotify(), output: &bytes.Buffer{}, logs: &bytes.Buffer{}}
	h.api = httptest.NewServer(h.spotify.handler(t))
	t.Cleanup(h.api.Close)

	h.feed = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rock":
			writeJSON(w, http.StatusOK, []map[string]string{{"artist": "A", "title": "X"}, {"artist": "B", "title": "Y"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(h.feed.Close)

	config := shared.DefaultConfig()
	config.Credentials.Spotify = shared.SpotifyConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "http://127.0.0.1/callback",
		RefreshToken: "refresh",
	}
	config.Cache.URL = filepath.Join(t.TempDir(), "cache.db")
	config.Throttle = shared.ThrottleConfig{}
	config.Sources = []shared.SourceConfig{{URL: h.feed.URL + "/rock", PlaylistID: "pl1", Extractor: "radiorock", JSON: true}}
	h.config = config

	return h
}

// run executes the CLI with a fresh runner over the harness config.
func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.output.Reset()

	runner := NewRunner(RunnerOpts{
		Config:     h.config,
		Logger:     shared.NewLogger(h.logs),
		Output:     h.output,
		SpotifyURL: h.api.URL + "/v1",
		AuthEndpoint: &oauth2.Endpoint{
			AuthURL:   h.api.URL + "/authorize",
			TokenURL:  h.api.URL + "/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		OpenBrowser: h.browser,
	})
	return newApp(runner).Run(context.Background(), append([]string{"radiosync"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil values uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config != nil {
				t.Error("config should be resolved lazily")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.openBrowser == nil {
				t.Error("expected browser opener to be set")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello %s\n", "World"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "Hello World\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writePlain("test"); err == nil {
				t.Error("expected error for failed write")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		var names []string
		for _, cmd := range runner.register() {
			names = append(names, cmd.Name)
		}
		want := []string{"sync", "extract", "auth", "cache", "history", "setup"}
		if !slices.Equal(names, want) {
			t.Errorf("expected commands %v, got %v", want, names)
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		if err := shared.CreateConfigFile(path); err != nil {
			t.Fatalf("failed to create config: %v", err)
		}
		t.Setenv(shared.EnvCacheURL, filepath.Join(dir, "env.db"))

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{ConfigPath: path, Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})
		err := newApp(runner).Run(context.Background(), []string{"radiosync", "setup", "database", "--config", path})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if runner.config == nil || runner.config.Cache.URL != filepath.Join(dir, "env.db") {
			t.Errorf("expected environment cache url to win, got %+v", runner.config)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "env.db"))
	})
}

func TestSelectSources(t *testing.T) {
	configured := []shared.SourceConfig{
		{URL: "https://api.radiorock.sk/playlist", PlaylistID: "rock", Extractor: "radiorock", JSON: true},
		{URL: "https://meta.radio886.at/HardRock", PlaylistID: "hard", Extractor: "radio886", JSON: true},
		{URL: "https://radia.cz/radio-rock-radio-playlist", PlaylistID: "cz", Extractor: "radiacz"},
	}

	tests := []struct {
		name    string
		filters []string
		want    []string
		wantErr bool
	}{
		{name: "no filter keeps all", want: []string{"rock", "hard", "cz"}},
		{name: "by url fragment", filters: []string{"radio886"}, want: []string{"hard"}},
		{name: "by playlist id", filters: []string{"cz"}, want: []string{"cz"}},
		{name: "several", filters: []string{"cz", "radiorock"}, want: []string{"rock", "cz"}},
		{name: "unknown", filters: []string{"nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectSources(configured, tt.filters)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var ids []string
			for _, s := range got {
				ids = append(ids, s.PlaylistID)
			}
			if !slices.Equal(ids, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids)
			}
		})
	}

	t.Run("carries json flag", func(t *testing.T) {
		got, _ := selectSources(configured, []string{"cz"})
		if got[0].JSON || got[0].Extractor != "radiacz" {
			t.Errorf("unexpected source %+v", got[0])
		}
	})
}

func TestSync(t *testing.T) {
	t.Run("appends then is idempotent", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(t, "sync"); err != nil {
			t.Fatalf("first sync failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "extracted 2, unresolved 0, in playlist 0, added 2") {
			t.Errorf("unexpected summary:\n%s", h.output.String())
		}
		want := []string{"spotify:track:y", "spotify:track:x"}
		if got := h.spotify.playlist("pl1"); !slices.Equal(got, want) {
			t.Errorf("expected playlist %v, got %v", want, got)
		}

		if err := h.run(t); err != nil {
			t.Fatalf("second sync failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "in playlist 2, added 0") {
			t.Errorf("second run should add nothing:\n%s", h.output.String())
		}
		searches, appends := h.spotify.counts()
		if appends != 1 {
			t.Errorf("expected a single append call, got %d", appends)
		}
		if searches != 2 {
			t.Errorf("expected searches only on the first run, got %d", searches)
		}
	})

	t.Run("dry run", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(t, "sync", "--dry-run", "--format", "csv"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if _, appends := h.spotify.counts(); appends != 0 {
			t.Error("dry run should not append")
		}
		if !strings.Contains(h.output.String(), ",pl1,2,0,0,0,2,,") {
			t.Errorf("expected pending tracks in CSV, got:\n%s", h.output.String())
		}
	})

	t.Run("failing source does not fail the run", func(t *testing.T) {
		h := newHarness(t)
		h.config.Sources = append(h.config.Sources, shared.SourceConfig{
			URL: h.feed.URL + "/rock", PlaylistID: "missing", Extractor: "radiorock", JSON: true,
		})

		if err := h.run(t, "sync"); err != nil {
			t.Fatalf("expected run to complete, got %v", err)
		}
		if !strings.Contains(h.output.String(), "1 failed") {
			t.Errorf("expected failure in summary:\n%s", h.output.String())
		}
		if len(h.spotify.playlist("pl1")) != 2 {
			t.Error("healthy source should still be synced")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		h := newHarness(t)
		h.config.Credentials.Spotify.ClientSecret = ""

		if err := h.run(t, "sync"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "sync", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("cache locked", func(t *testing.T) {
		h := newHarness(t)

		lock, err := shared.AcquireRunLock(shared.LockPath(h.config.Cache.URL))
		if err != nil {
			t.Fatalf("failed to take lock: %v", err)
		}
		defer lock.Release()

		if err := h.run(t, "sync"); !errors.Is(err, shared.ErrLocked) {
			t.Errorf("expected ErrLocked, got %v", err)
		}
		if searches, _ := h.spotify.counts(); searches != 0 {
			t.Error("nothing should run while the cache is locked")
		}
	})
}

func TestCacheCommands(t *testing.T) {
	h := newHarness(t)
	if err := h.run(t, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	t.Run("stats", func(t *testing.T) {
		if err := h.run(t, "cache", "stats"); err != nil {
			t.Fatalf("stats failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "Track entries:  2") {
			t.Errorf("unexpected stats:\n%s", h.output.String())
		}
	})

	t.Run("compact", func(t *testing.T) {
		if err := h.run(t, "cache", "compact"); err != nil {
			t.Fatalf("compact failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "Removed 0 superseded rows") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		if err := h.run(t, "cache", "invalidate", "--playlist", "pl1"); err != nil {
			t.Fatalf("invalidate failed: %v", err)
		}
		if !strings.Contains(h.output.String(), "Removed 1 cached pages of pl1") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})

	t.Run("history", func(t *testing.T) {
		if err := h.run(t, "history", "--format", "csv"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(h.output.String(), h.feed.URL+"/rock,pl1,2,2,,") {
			t.Errorf("expected recorded run, got:\n%s", h.output.String())
		}
	})
}

func TestExtractCommand(t *testing.T) {
	h := newHarness(t)

	t.Run("prints names", func(t *testing.T) {
		if err := h.run(t, "extract", "--url", h.feed.URL+"/rock", "--extractor", "radiorock"); err != nil {
			t.Fatalf("extract failed: %v", err)
		}
		if h.output.String() != "B - Y\nA - X\n" {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("unknown extractor", func(t *testing.T) {
		err := h.run(t, "extract", "--url", h.feed.URL+"/rock", "--extractor", "nope")
		if !errors.Is(err, shared.ErrUnknownExtractor) {
			t.Errorf("expected ErrUnknownExtractor, got %v", err)
		}
	})

	t.Run("fetch failure is returned", func(t *testing.T) {
		err := h.run(t, "extract", "--url", h.feed.URL+"/missing", "--extractor", "radiorock")
		if !errors.Is(err, shared.ErrExtractFailed) {
			t.Errorf("expected ErrExtractFailed, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("url", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(t, "auth", "url"); err != nil {
			t.Fatalf("auth url failed: %v", err)
		}
		out := strings.TrimSpace(h.output.String())
		if !strings.HasPrefix(out, h.api.URL+"/authorize?") || !strings.Contains(out, "client_id=id") {
			t.Errorf("unexpected auth url %q", out)
		}
	})

	t.Run("login", func(t *testing.T) {
		h := newHarness(t)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to find a free port: %v", err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()
		h.config.Server = shared.ServerConfig{Host: "127.0.0.1", Port: port}

		callback := make(chan error, 1)
		h.browser = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			go func() {
				resp, err := http.Get(h.callbackURL(port, u.Query().Get("state")))
				if err == nil {
					resp.Body.Close()
				}
				callback <- err
			}()
			return nil
		}

		if err := h.run(t, "auth", "login", "--timeout", "10s"); err != nil {
			t.Fatalf("auth login failed: %v", err)
		}
		if err := <-callback; err != nil {
			t.Errorf("callback request failed: %v", err)
		}
		if !strings.Contains(h.output.String(), `refresh_token = "new-refresh"`) {
			t.Errorf("expected refresh token in output:\n%s", h.output.String())
		}
	})
}

func (h *harness) callbackURL(port int, state string) string {
	q := url.Values{"state": {state}, "code": {"abc"}}
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/callback?" + q.Encode()
}

func TestSetupConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})

	if err := newApp(runner).Run(context.Background(), []string{"radiosync", "setup", "config", "--config", path}); err != nil {
		t.Fatalf("setup config failed: %v", err)
	}
	tu.AssertFileExists(t, path)

	runner = NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})
	if err := newApp(runner).Run(context.Background(), []string{"radiosync", "setup", "config", "--config", path}); err == nil {
		t.Error("expected error when config already exists")
	}
}
