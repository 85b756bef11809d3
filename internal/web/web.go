// Package web implements the JSON API behind the browser front end.
//
// # Sessions
//
// Each browser gets a random session ID in the blockify_session cookie. The [SessionStore] keeps, per session,
// the pending OAuth state, the token issued at the callback and every catalog fetched so far, so previews
// re-run the allocator without going back to Spotify.
//
// # Routes
//
//	GET  /login                     redirect to the Spotify authorize URL
//	GET  /callback                  verify state, exchange the code, redirect to /
//	GET  /api/session               {"authenticated": bool}
//	GET  /api/playlists             playlists of the session user
//	GET  /api/playlist/{id}/tracks  catalog with audio features and genres
//	GET  /api/artists/{id}          {"genres": [...]}
//	POST /api/preview               {playlistId, blocks} -> allocation preview
//	POST /api/reorganize            {tracks, blocks, newPlaylistName, public} -> {success, playlistId}
//
// # Errors
//
// Failures are JSON objects with an "error" field. Missing or rejected credentials are 401, malformed requests 400,
// Spotify failures 502 with the upstream "status" and "message", and anything else 500.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blockify/internal/server"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/tasks"
	"golang.org/x/oauth2"
)

// Connector hands out services bound to a session's token.
type Connector interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Connect binds a service to token. onRefresh receives every token the service refreshes to.
	Connect(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) (services.Service, error)
}

type spotifyConnector struct {
	svc *services.SpotifyService
}

// SpotifyConnector adapts a credentialed but unauthenticated [services.SpotifyService].
func SpotifyConnector(svc *services.SpotifyService) Connector {
	return spotifyConnector{svc: svc}
}

func (c spotifyConnector) GetAuthURL(state string) string { return c.svc.GetAuthURL(state) }

func (c spotifyConnector) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.svc.Exchange(ctx, code)
}

func (c spotifyConnector) Connect(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) (services.Service, error) {
	bound, err := c.svc.WithToken(ctx, token)
	if err != nil {
		return nil, err
	}
	bound.SetTokenRefreshCallback(onRefresh)
	return bound, nil
}

// Server is the web API.
type Server struct {
	connector    Connector
	sessions     *SessionStore
	cache        tasks.Cacher
	genres       tasks.GenreStore
	history      tasks.Recorder
	logger       *log.Logger
	callbackPath string
	router       *server.BasicRouter
}

// Option configures a [Server].
type Option func(*Server)

// WithSessionStore replaces the default in-memory store.
func WithSessionStore(st *SessionStore) Option { return func(s *Server) { s.sessions = st } }

// WithCache stores fetched catalogs in the local database.
func WithCache(c tasks.Cacher) Option { return func(s *Server) { s.cache = c } }

// WithGenreStore reads artist genres through store.
func WithGenreStore(store tasks.GenreStore) Option { return func(s *Server) { s.genres = store } }

// WithRecorder records every reorganize request.
func WithRecorder(r tasks.Recorder) Option { return func(s *Server) { s.history = r } }

// WithLogger sets the request and error logger.
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.logger = l } }

// WithCallbackPath mounts the OAuth callback somewhere other than /callback.
func WithCallbackPath(path string) Option { return func(s *Server) { s.callbackPath = path } }

// New creates the API and registers its routes.
func New(connector Connector, opts ...Option) *Server {
	s := &Server{connector: connector, callbackPath: "/callback"}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = NewSessionStore(DefaultSessionTTL)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
		s.logger.SetLevel(log.FatalLevel)
	}

	s.router = server.NewBasicRouter()
	s.router.Use(server.Recover(s.logger), server.Logging(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc(http.MethodGet, "/login", s.handleLogin)
	s.router.HandleFunc(http.MethodGet, s.callbackPath, s.handleCallback)
	s.router.HandleFunc(http.MethodGet, "/api/session", s.handleSession)
	s.router.HandleFunc(http.MethodGet, "/api/playlists", s.handlePlaylists)
	s.router.HandleFunc(http.MethodGet, "/api/playlist/{id}/tracks", s.handleTracks)
	s.router.HandleFunc(http.MethodGet, "/api/artists/{id}", s.handleArtist)
	s.router.HandleFunc(http.MethodPost, "/api/preview", s.handlePreview)
	s.router.HandleFunc(http.MethodPost, "/api/reorganize", s.handleReorganize)
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions exposes the session store.
func (s *Server) Sessions() *SessionStore { return s.sessions }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("web api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// engine builds the arrange workflow for one request.
func (s *Server) engine(svc services.Service) *tasks.ArrangeEngine {
	opts := []tasks.Option{tasks.WithLogger(s.logger)}
	if s.cache != nil {
		opts = append(opts, tasks.WithCache(s.cache))
	}
	if s.genres != nil {
		opts = append(opts, tasks.WithGenreStore(s.genres))
	}
	if s.history != nil {
		opts = append(opts, tasks.WithRecorder(s.history))
	}
	return tasks.NewArrangeEngine(svc, opts...)
}
