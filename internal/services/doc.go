// Package services defines the [Service] interface for music streaming providers and implements it for Spotify.
//
// # Service Interface
//
// A provider lists the user's playlists, exports one with per-track audio features, looks up artist genres
// and publishes a new playlist from an ordered track list. The arrange engine only talks to this interface.
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2. Authentication uses the OAuth2 authorization code flow;
// the [oauth2] token source refreshes expired tokens and reports new ones through
// [SpotifyService.SetTokenRefreshCallback] so callers can persist them.
//
// Every request passes through a [rate.Limiter] shared by all copies made with [SpotifyService.WithToken].
//
// # Paging and Batching
//
//   - Playlist items are read 100 at a time, following the next link until it is empty.
//   - Audio features are requested in batches of 100 IDs; tracks without analysis keep zero features and no key.
//   - Tracks are appended to a new playlist in sequential batches of 100 so order is preserved.
//
// # Error Handling
//
// Upstream failures are mapped onto the shared taxonomy:
//   - [shared.ErrAuthRequired] : no token, a 401, or a refresh the token endpoint rejected
//   - [shared.UpstreamError] : any other non-2xx response, matching [shared.ErrAPIRequest]
//   - [shared.ErrPlaylistNotFound] : a 404 on a playlist lookup
//   - [shared.ErrInvalidRequest] : a publish request rejected before any network call
package services
