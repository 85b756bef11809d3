// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
	"golang.org/x/oauth2"
)

// MockService is a configurable test double for [services.Service] and [services.OAuthService].
//
// Zero values behave like an empty account. Calls are counted so tests can assert on remote traffic.
type MockService struct {
	mu sync.Mutex

	Playlists []models.Playlist
	Exports   map[string]*models.PlaylistExport
	Genres    map[string][]string
	Imported  *models.PlaylistExport
	Token     *oauth2.Token

	AuthErr      error
	PlaylistsErr error
	ExportErr    error
	GenresErr    error
	ImportErr    error

	ExportCalls int
	GenreCalls  int
	ImportCalls int

	onRefresh func(*oauth2.Token)
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return m.AuthErr
}

func (m *MockService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if m.AuthErr != nil {
		return m.AuthErr
	}
	m.mu.Lock()
	m.Token = token
	m.mu.Unlock()
	return nil
}

func (m *MockService) GetAuthURL(state string) string {
	return "https://accounts.example.test/authorize?state=" + state
}

func (m *MockService) GetOAuthConfig() *oauth2.Config {
	return &oauth2.Config{ClientID: "mock", RedirectURL: "http://127.0.0.1:3000/callback"}
}

func (m *MockService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRefresh = fn
}

// Refresh simulates the token source handing out a new token.
func (m *MockService) Refresh(token *oauth2.Token) {
	m.mu.Lock()
	m.Token = token
	fn := m.onRefresh
	m.mu.Unlock()
	if fn != nil {
		fn(token)
	}
}

func (m *MockService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.PlaylistsErr != nil {
		return nil, m.PlaylistsErr
	}
	return m.Playlists, nil
}

func (m *MockService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.mu.Lock()
	export, ok := m.Exports[playlistID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return &export.Playlist, nil
}

func (m *MockService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExportCalls++
	if m.ExportErr != nil {
		return nil, m.ExportErr
	}
	export, ok := m.Exports[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return export, nil
}

func (m *MockService) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenreCalls++
	if m.GenresErr != nil {
		return nil, m.GenresErr
	}
	if genres, ok := m.Genres[artistID]; ok && len(genres) > 0 {
		return genres, nil
	}
	return []string{"unknown genre"}, nil
}

func (m *MockService) ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ImportCalls++
	if m.ImportErr != nil {
		return nil, m.ImportErr
	}
	m.Imported = playlist
	created := playlist.Playlist
	created.ID = "created-" + playlist.Playlist.Name
	created.TrackCount = len(playlist.Tracks)
	return &created, nil
}

// Track builds a track with the given ID, duration in minutes and first artist.
func Track(id string, minutes float64, artistID string) models.Track {
	return models.Track{
		ID:         id,
		Name:       "Track " + id,
		Artists:    []string{"Artist " + artistID},
		ArtistIDs:  []string{artistID},
		DurationMs: int(minutes * 60000),
		URI:        "spotify:track:" + id,
		Key:        models.NoKey,
		Genre:      models.UnknownGenre,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
