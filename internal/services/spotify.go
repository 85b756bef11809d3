// Spotify Web API implementation of [Service] on top of github.com/zmb3/spotify/v2.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// ServiceKey identifies Spotify rows in the local cache.
const ServiceKey = "spotify"

const (
	spotifyBaseURL = "https://api.spotify.com/v1/"
	trackURIPrefix = "spotify:track:"
	trackFields    = "items(is_local,track(id,name,uri,duration_ms,popularity,artists(id,name),album(name,images))),next"
	playlistFields = "id,name,description,public,owner(id,display_name),tracks(total)"
)

// Scopes requested during authorization.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
}

// SpotifyService implements the Service interface for Spotify API interactions.
//
// Requests go through an [oauth2] token source that refreshes expired tokens and a [rate.Limiter]
// shared by every copy made with [SpotifyService.WithToken].
type SpotifyService struct {
	config         *oauth2.Config
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *log.Logger
	mu             sync.Mutex
	token          *oauth2.Token
	client         *spotify.Client
	onTokenRefresh func(*oauth2.Token)
}

// Option configures a [SpotifyService].
type Option func(*SpotifyService)

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(u string) Option {
	return func(s *SpotifyService) {
		if u != "" && !strings.HasSuffix(u, "/") {
			u += "/"
		}
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithHTTPClient sets the client whose transport carries API and token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithRateLimit paces requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *SpotifyService) { s.limiter = NewLimiter(rps, burst) }
}

// WithOAuthEndpoint overrides the authorize and token URLs.
func WithOAuthEndpoint(ep oauth2.Endpoint) Option {
	return func(s *SpotifyService) { s.config.Endpoint = ep }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(s *SpotifyService) { s.logger = l }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...Option) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		baseURL: spotifyBaseURL,
		logger:  log.New(io.Discard),
	}
	s.logger.SetLevel(log.FatalLevel)

	for _, opt := range opts {
		opt(s)
	}

	base := http.DefaultTransport
	if s.httpClient != nil && s.httpClient.Transport != nil {
		base = s.httpClient.Transport
	}
	s.httpClient = &http.Client{Transport: newLimitedTransport(base, s.limiter)}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 client configuration.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Exchange trades an authorization code for a token without binding the service to it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// SetTokenRefreshCallback registers fn to be called with every new token, including refreshed ones.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" || credentials["refresh_token"] != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    credentials["token_type"],
		}
		if exp := credentials["expiry"]; exp != "" {
			if t, err := time.Parse(time.RFC3339, exp); err == nil {
				token.Expiry = t
			}
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.Exchange(ctx, authCode)
		if err != nil {
			return err
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrAuthRequired)
}

// OAuthenticate binds the service to token. Refreshed tokens are reported to the refresh callback.
func (s *SpotifyService) OAuthenticate(_ context.Context, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: no token", shared.ErrAuthRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oc := s.oauthContext(context.Background())
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(oc, token),
		callback: s.notifyRefresh,
		last:     token.AccessToken,
	}
	s.token = token
	s.client = spotify.New(oauth2.NewClient(oc, source), spotify.WithBaseURL(s.baseURL))
	return nil
}

// WithToken returns a copy of the service bound to token, sharing configuration and rate limiter.
// Used to serve many users from one configured service.
func (s *SpotifyService) WithToken(ctx context.Context, token *oauth2.Token) (*SpotifyService, error) {
	c := &SpotifyService{
		config:     s.config,
		baseURL:    s.baseURL,
		httpClient: s.httpClient,
		limiter:    s.limiter,
		logger:     s.logger,
	}
	if err := c.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}
	return c, nil
}

// Token returns the token the service was last bound to.
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *SpotifyService) notifyRefresh(token *oauth2.Token) {
	s.mu.Lock()
	s.token = token
	fn := s.onTokenRefresh
	s.mu.Unlock()

	if fn != nil {
		fn(token)
	}
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrAuthRequired)
	}
	return s.client, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var playlists []models.Playlist
	offset := 0
	for {
		page, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(PlaylistsPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, classify("list playlists", err)
		}

		for _, sp := range page.Playlists {
			playlists = append(playlists, models.Playlist{
				ID:          string(sp.ID),
				Name:        sp.Name,
				Description: sp.Description,
				TrackCount:  int(sp.Tracks.Total),
				Public:      sp.IsPublic,
				Owner:       sp.Owner.DisplayName,
			})
		}

		if page.Next == "" || len(page.Playlists) == 0 {
			break
		}
		offset += PlaylistsPageSize
	}

	return playlists, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	sp, err := client.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Fields(playlistFields))
	if err != nil {
		return nil, notFound(classify("get playlist", err))
	}

	return &models.Playlist{
		ID:          string(sp.ID),
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  int(sp.Tracks.Total),
		Public:      sp.IsPublic,
		Owner:       sp.Owner.DisplayName,
	}, nil
}

// ExportPlaylist exports a playlist with all its tracks and their audio features.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	playlist, err := s.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks, err := s.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	return &models.PlaylistExport{Playlist: *playlist, Tracks: tracks}, nil
}

// PlaylistTracks pages through a playlist and merges each track with its audio features.
//
// Local files and removed tracks are skipped. Tracks without a feature record keep zero features and an unknown key.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	offset := 0
	for {
		page, err := client.GetPlaylistTracks(ctx, spotify.ID(playlistID),
			spotify.Limit(PlaylistPageSize), spotify.Offset(offset), spotify.Fields(trackFields))
		if err != nil {
			return nil, notFound(classify("get playlist tracks", err))
		}

		for _, item := range page.Tracks {
			if item.IsLocal || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, mapTrack(item.Track))
		}

		s.logger.Debug("fetched playlist page", "playlist", playlistID, "offset", offset, "items", len(page.Tracks))

		if page.Next == "" || len(page.Tracks) == 0 {
			break
		}
		offset += PlaylistPageSize
	}

	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}

	features, err := s.AudioFeatures(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i, t := range tracks {
		if af, ok := features[t.ID]; ok {
			tracks[i] = withFeatures(t, af)
		}
	}
	return tracks, nil
}

// AudioFeatures fetches features for ids in batches of [FeaturesBatchSize], keyed by track ID.
// Tracks the service has no analysis for are absent from the map.
func (s *SpotifyService) AudioFeatures(ctx context.Context, ids []string) (map[string]*spotify.AudioFeatures, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	features := make(map[string]*spotify.AudioFeatures, len(ids))
	for start := 0; start < len(ids); start += FeaturesBatchSize {
		end := min(start+FeaturesBatchSize, len(ids))

		batch := make([]spotify.ID, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, spotify.ID(id))
		}

		result, err := client.GetAudioFeatures(ctx, batch...)
		if err != nil {
			return nil, classify("get audio features", err)
		}
		for _, af := range result {
			if af != nil && af.ID != "" {
				features[string(af.ID)] = af
			}
		}
	}
	return features, nil
}

// ArtistGenres returns an artist's genres, falling back to [UnknownArtistGenre].
func (s *SpotifyService) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	artist, err := client.GetArtist(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, classify("get artist", err)
	}

	if len(artist.Genres) == 0 {
		return []string{UnknownArtistGenre}, nil
	}
	return artist.Genres, nil
}

// ImportPlaylist creates a playlist for the current user and appends the export's tracks
// in sequential batches of at most [AddTracksMaxBatch], preserving order.
//
// The description must already fit the service's limit.
func (s *SpotifyService) ImportPlaylist(ctx context.Context, export *models.PlaylistExport) (*models.Playlist, error) {
	if export == nil || export.Playlist.Name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidRequest)
	}

	ids := make([]spotify.ID, 0, len(export.Tracks))
	for _, t := range export.Tracks {
		id, err := TrackIDFromURI(t.URI)
		if err != nil {
			return nil, err
		}
		ids = append(ids, spotify.ID(id))
	}

	client, err := s.api()
	if err != nil {
		return nil, err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, classify("get current user", err)
	}

	created, err := client.CreatePlaylistForUser(ctx, user.ID, export.Playlist.Name, export.Playlist.Description, export.Playlist.Public, false)
	if err != nil {
		return nil, classify("create playlist", err)
	}

	for start := 0; start < len(ids); start += AddTracksMaxBatch {
		end := min(start+AddTracksMaxBatch, len(ids))
		if _, err := client.AddTracksToPlaylist(ctx, created.ID, ids[start:end]...); err != nil {
			return nil, classify(fmt.Sprintf("add tracks %d-%d", start+1, end), err)
		}
		s.logger.Debug("added tracks", "playlist", created.ID, "from", start, "to", end)
	}

	return &models.Playlist{
		ID:          string(created.ID),
		Name:        created.Name,
		Description: created.Description,
		TrackCount:  len(ids),
		Public:      export.Playlist.Public,
		Owner:       user.DisplayName,
	}, nil
}

// TrackIDFromURI extracts the ID from a "spotify:track:<id>" URI. Bare IDs are returned unchanged.
func TrackIDFromURI(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, trackURIPrefix):
		if id := strings.TrimPrefix(uri, trackURIPrefix); id != "" {
			return id, nil
		}
	case uri != "" && !strings.Contains(uri, ":"):
		return uri, nil
	}
	return "", fmt.Errorf("%w: %q is not a track URI", shared.ErrInvalidRequest, uri)
}

func mapTrack(ft spotify.FullTrack) models.Track {
	t := models.Track{
		ID:         string(ft.ID),
		Name:       ft.Name,
		Album:      ft.Album.Name,
		DurationMs: int(ft.Duration),
		URI:        string(ft.URI),
		Popularity: int(ft.Popularity),
		Key:        models.NoKey,
		Genre:      models.UnknownGenre,
	}
	for _, a := range ft.Artists {
		t.Artists = append(t.Artists, a.Name)
		t.ArtistIDs = append(t.ArtistIDs, string(a.ID))
	}
	if len(ft.Album.Images) > 0 {
		t.ImageURL = ft.Album.Images[0].URL
	}
	return t
}

func withFeatures(t models.Track, af *spotify.AudioFeatures) models.Track {
	t.Energy = widen(af.Energy)
	t.Danceability = widen(af.Danceability)
	t.Valence = widen(af.Valence)
	t.Tempo = widen(af.Tempo)
	t.Key = int(af.Key)
	if t.Key < 0 || t.Key >= len(models.KeyLabels) {
		t.Key = models.NoKey
	}
	return t
}

// widen converts a decoded float32 feature through its shortest decimal form, so 0.9 stays 0.9
// instead of 0.8999999761581421 and inclusive filter bounds still match.
func widen(f float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return v
}

// refreshableTokenSource reports each token that differs from the previous one to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
