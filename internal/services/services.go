// package services defines interface Service for interacting with music service APIs
package services

import (
	"context"

	"github.com/desertthunder/blockify/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the interface for music service providers that can export playlists with audio features
// and publish new playlists.
type Service interface {
	// Authenticate binds the service to a token from credentials ("access_token", "refresh_token", "expiry")
	// or exchanges an "auth_code" for one.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// GetPlaylist retrieves a specific playlist by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// ExportPlaylist retrieves a playlist with every track and its audio features.
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)

	// ArtistGenres returns the genres of an artist, or [UnknownArtistGenre] alone when the service has none.
	ArtistGenres(ctx context.Context, artistID string) ([]string, error)

	// ImportPlaylist creates a new playlist from the export's name, description and visibility
	// and appends its tracks in order.
	ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends [Service] for providers using the OAuth2 authorization code flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the authorization URL carrying state.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the client configuration for callback handlers.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate binds the service to a token obtained from the callback flow.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error

	// SetTokenRefreshCallback registers fn to receive every new token the service obtains.
	SetTokenRefreshCallback(fn func(*oauth2.Token))
}

// UnknownArtistGenre is returned for artists the service has no genres for.
const UnknownArtistGenre = "unknown genre"

// Batch limits imposed by the Spotify Web API.
const (
	PlaylistPageSize  = 100
	PlaylistsPageSize = 50
	FeaturesBatchSize = 100
	AddTracksMaxBatch = 100
)
