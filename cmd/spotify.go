package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/blockify/internal/formatter"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/server"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// authTimeout bounds how long the callback server waits for the browser.
const authTimeout = 2 * time.Minute

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	srv, ok := r.spotify.(services.OAuthService)
	if !ok {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET", shared.ErrMissingCredentials)
	}

	if err := r.reauthorize(ctx, srv); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	}
	r.writePlain("You can now use: blockify spotify playlists\n")
	return nil
}

// SpotifyPlaylists lists Spotify playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	var playlists []models.Playlist
	err := r.withReauth(ctx, func() error {
		var err error
		playlists, err = r.spotify.GetPlaylists(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		r.writePlain("   Visibility: %s\n", shared.VisibilityString(p.Public))
		r.writePlain("\n")
	}

	return nil
}

// SpotifyTracks fetches a playlist's catalog with audio features and genres, and renders it.
//
// The catalog is cached so later previews can run with --offline.
func (r *Runner) SpotifyTracks(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}
	engine, err := r.arrangeEngine()
	if err != nil {
		return err
	}

	r.logger.Infof("fetching spotify playlist %v", playlistID)

	var export *models.PlaylistExport
	err = r.withReauth(ctx, func() error {
		var err error
		export, err = engine.Fetch(ctx, playlistID, nil)
		return err
	})
	if err != nil {
		return err
	}

	data, err := formatter.ExportCatalog(export, format)
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" && out != "-" {
		if err := formatter.WriteFile(out, data); err != nil {
			return err
		}
		r.logger.Info("catalog written", "file", out, "tracks", len(export.Tracks))
		r.writePlain("✓ Catalog written to %s\n", out)
		r.writePlain("  Playlist: %s\n", export.Playlist.Name)
		r.writePlain("  Tracks: %d\n", len(export.Tracks))
		return nil
	}

	_, err = r.output.Write(data)
	return err
}

// withReauth runs fn and, when it fails for lack of authorization, runs the OAuth flow once and retries fn once.
func (r *Runner) withReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrAuthRequired) && !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}

	srv, ok := r.spotify.(services.OAuthService)
	if !ok {
		return err
	}

	r.writePlainln("⚠ Spotify authorization expired. Starting reauthorization...")
	if rerr := r.reauthorize(ctx, srv); rerr != nil {
		return fmt.Errorf("reauthorization failed: %w", rerr)
	}
	r.writePlain("✓ Reauthorized. Retrying...\n\n")

	return fn()
}

// reauthorize obtains a new token, persists it and binds srv to it.
func (r *Runner) reauthorize(ctx context.Context, srv services.OAuthService) error {
	token, err := r.authorize(ctx, srv)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	if err := srv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, srv services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := srv.GetAuthURL(state)
	handler := server.NewOAuthHandler(srv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(handler)

	addr := r.config.Server.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", authTimeout)

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	type outcome struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		token, err := handler.Wait(waitCtx)
		done <- outcome{token, err}
	}()

	select {
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("authorization failed: %w", o.err)
		}
		return o.token, nil
	}
}
