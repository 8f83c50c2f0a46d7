package shared

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestRunLock(t *testing.T) {
	t.Run("second acquire fails while held", func(t *testing.T) {
		path := LockPath(filepath.Join(t.TempDir(), "cache.db"))

		first, err := AcquireRunLock(path)
		if err != nil {
			t.Fatalf("failed to acquire lock: %v", err)
		}
		defer first.Release()

		if _, err := AcquireRunLock(path); !errors.Is(err, ErrLocked) {
			t.Errorf("expected ErrLocked, got %v", err)
		}
	})

	t.Run("acquire after release", func(t *testing.T) {
		path := LockPath(filepath.Join(t.TempDir(), "cache.db"))

		first, err := AcquireRunLock(path)
		if err != nil {
			t.Fatalf("failed to acquire lock: %v", err)
		}
		if err := first.Release(); err != nil {
			t.Fatalf("failed to release lock: %v", err)
		}

		second, err := AcquireRunLock(path)
		if err != nil {
			t.Fatalf("expected lock to be free after release, got %v", err)
		}
		second.Release()
	})

	t.Run("nil release", func(t *testing.T) {
		var l *RunLock
		if err := l.Release(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	tt := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.goos, func(t *testing.T) {
			cmd, err := browserCommand(tc.goos, "https://accounts.spotify.com/authorize")
			if (err != nil) != tc.wantErr {
				t.Fatalf("browserCommand() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if filepath.Base(cmd.Path) != tc.want && cmd.Args[0] != tc.want {
				t.Errorf("browserCommand() = %v, want %s", cmd.Args, tc.want)
			}
		})
	}
}
