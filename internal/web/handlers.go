package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/blockify/internal/blocks"
	"github.com/desertthunder/blockify/internal/formatter"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/tasks"
	"golang.org/x/oauth2"
)

// maxBodyBytes caps request bodies. A 10k track reorganize is well under this.
const maxBodyBytes = 4 << 20

// PreviewRequest is the body of POST /api/preview.
type PreviewRequest struct {
	PlaylistID string               `json:"playlistId"`
	Blocks     []blocks.BlockConfig `json:"blocks"`
}

// ReorganizeRequest is the body of POST /api/reorganize.
type ReorganizeRequest struct {
	SourcePlaylistID string               `json:"sourcePlaylistId,omitempty"`
	Tracks           []string             `json:"tracks"`
	Blocks           []blocks.BlockConfig `json:"blocks"`
	NewPlaylistName  string               `json:"newPlaylistName"`
	Public           bool                 `json:"public"`
}

// ReorganizeResponse is returned by a successful reorganize.
type ReorganizeResponse struct {
	Success     bool   `json:"success"`
	PlaylistID  string `json:"playlistId"`
	Description string `json:"description"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.ensure(w, r)

	state, err := shared.GenerateState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess.SetState(state)

	http.Redirect(w, r, s.connector.GetAuthURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.lookup(r)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: no session for callback", shared.ErrStateMismatch))
		return
	}

	query := r.URL.Query()
	if !sess.ConsumeState(query.Get("state")) {
		s.writeError(w, shared.ErrStateMismatch)
		return
	}

	code := query.Get("code")
	if code == "" {
		s.writeError(w, fmt.Errorf("%w: %s", shared.ErrAuthFailed, query.Get("error")))
		return
	}

	token, err := s.connector.Exchange(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess.SetToken(token)
	s.logger.Info("session authorized", "session", sess.ID)

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if sess, ok := s.sessions.lookup(r); ok {
		authenticated = sess.Token() != nil
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"authenticated": authenticated})
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	_, svc, ok := s.connect(w, r)
	if !ok {
		return
	}

	playlists, err := svc.GetPlaylists(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	s.writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := s.connect(w, r)
	if !ok {
		return
	}

	catalog, err := s.catalog(r, sess, svc, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleArtist(w http.ResponseWriter, r *http.Request) {
	_, svc, ok := s.connect(w, r)
	if !ok {
		return
	}

	genres, err := svc.ArtistGenres(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(genres) == 0 {
		genres = []string{services.UnknownArtistGenre}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"genres": genres})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := s.connect(w, r)
	if !ok {
		return
	}

	var req PreviewRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.PlaylistID) == "" {
		s.writeError(w, fmt.Errorf("%w: playlistId is required", shared.ErrInvalidRequest))
		return
	}

	specs, err := blocks.BuildSpecs(req.Blocks)
	if err != nil {
		s.writeError(w, err)
		return
	}

	catalog, err := s.catalog(r, sess, svc, req.PlaylistID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result := s.engine(svc).Preview(catalog, specs)
	s.writeJSON(w, http.StatusOK, formatter.NewPreview(result.Playlist, result.Allocation, result.Description, result.TotalTracks))
}

func (s *Server) handleReorganize(w http.ResponseWriter, r *http.Request) {
	_, svc, ok := s.connect(w, r)
	if !ok {
		return
	}

	var req ReorganizeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	specs, err := blocks.BuildSpecs(req.Blocks)
	if err != nil {
		s.writeError(w, err)
		return
	}

	plan := blocks.Plan{Name: req.NewPlaylistName, Public: req.Public, Blocks: req.Blocks}
	result, err := s.engine(svc).Publish(r.Context(), tasks.PublishRequest{
		SourcePlaylistID: req.SourcePlaylistID,
		Name:             req.NewPlaylistName,
		Public:           req.Public,
		URIs:             req.Tracks,
		Specs:            specs,
		Plan:             plan.JSON(),
	}, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ReorganizeResponse{
		Success:     true,
		PlaylistID:  result.Playlist.ID,
		Description: result.Description,
	})
}

// connect resolves the request's session and binds a service to its token.
// It writes a 401 and returns false when the session has no token.
func (s *Server) connect(w http.ResponseWriter, r *http.Request) (*Session, services.Service, bool) {
	sess, ok := s.sessions.lookup(r)
	if !ok || sess.Token() == nil {
		s.writeError(w, fmt.Errorf("%w: log in first", shared.ErrAuthRequired))
		return nil, nil, false
	}

	svc, err := s.connector.Connect(r.Context(), sess.Token(), func(t *oauth2.Token) {
		sess.SetToken(t)
	})
	if err != nil {
		s.writeError(w, err)
		return nil, nil, false
	}
	return sess, svc, true
}

// catalog returns the session's memoised catalog for playlistID, fetching it on first use.
func (s *Server) catalog(r *http.Request, sess *Session, svc services.Service, playlistID string) (*models.PlaylistExport, error) {
	if c, ok := sess.Catalog(playlistID); ok {
		return c, nil
	}

	c, err := s.engine(svc).Fetch(r.Context(), playlistID, nil)
	if err != nil {
		return nil, err
	}
	sess.SetCatalog(playlistID, c)
	return c, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", shared.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte("\n"))
}

// writeError maps err onto a status code and writes it as JSON.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := errorResponse{Error: err.Error()}

	if ue, ok := shared.AsUpstream(err); ok && status == http.StatusBadGateway {
		body.Status = ue.Status
		body.Message = ue.Message
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, body)
}

// StatusFor maps an error from the service or workflow layers onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrAuthRequired), errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrStateMismatch),
		errors.Is(err, shared.ErrInvalidRequest),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
