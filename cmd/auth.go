package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/radiosync/internal/server"
	"github.com/desertthunder/radiosync/internal/shared"
)

const authTimeout = 2 * time.Minute

// AuthURL prints the authorization URL for a manual login.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	session, err := r.newSession(config)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", session.AuthURL(shared.GenerateID()))
}

// AuthLogin runs the authorization code flow through a local callback server and prints the refresh token.
//
// The callback address is the configured server host and port, which must match the redirect URI registered
// with Spotify.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.applyVerbose(cmd)

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, config, !cmd.Bool("no-browser"), cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: Spotify did not return a refresh token", shared.ErrNoRefreshToken)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("Add this to the [credentials.spotify] section of your config or export it as %s:\n\n", shared.EnvRefreshToken)
	return r.writePlain("refresh_token = %q\n", token.RefreshToken)
}

func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, browser bool, timeout time.Duration) (*oauth2.Token, error) {
	session, err := r.newSession(config)
	if err != nil {
		return nil, err
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(session, state)
	router := server.NewLoginRouter(session, handler, server.RequestLogger(r.logger))

	if timeout <= 0 {
		timeout = authTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	ready := make(chan string, 1)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx, addr, router, ready) }()

	select {
	case bound := <-ready:
		r.logger.Info("waiting for authorization callback", "addr", bound)
	case err := <-serveErr:
		return nil, err
	}

	authURL := session.AuthURL(state)
	if browser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			browser = false
		}
	}
	if !browser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serveErr:
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: callback server stopped: %v", shared.ErrAuthFailed, err)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: no callback within %s", shared.ErrAuthFailed, timeout)
	}

	cancel()
	if err := <-serveErr; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, result.Error()
	}
	return result.Token, nil
}
