package tasks

import (
	"fmt"

	"github.com/desertthunder/blockify/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	FetchFeatures
	FetchGenres
	Allocate
	CreatePlaylist
	AddTracks
	CachePlaylists
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchFeatures:
		return "fetch_features"
	case FetchGenres:
		return "fetch_genres"
	case Allocate:
		return "allocate"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case CachePlaylists:
		return "cache_playlists"
	default:
		return ""
	}
}

func fetchingSourceUpdate(idOrName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", idOrName),
	}
}

func resolvingNameUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking up playlist named %q...", name),
	}
}

func featuresUpdate(export *models.PlaylistExport) ProgressUpdate {
	n := len(export.Tracks)
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    n,
		Total:   n,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks with audio features)", export.Playlist.Name, n),
		Data:    export,
	}
}

func genreUpdate(step, total int, artistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchGenres,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Looking up genres for artist %s", step, total, artistID),
	}
}

func allocateUpdate(blocks, assigned, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Allocate,
		Step:    assigned,
		Total:   total,
		Message: fmt.Sprintf("Allocated %d of %d tracks into %d blocks", assigned, total, blocks),
	}
}

func creatingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q on Spotify...", name),
	}
}

func addTracksUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Adding %d tracks in batches of up to 100...", total),
	}
}

func createdPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func cachingPlaylistUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CachePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Caching: %s...", step, total, id),
	}
}

func cacheCompletedUpdate(step, total int, name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CachePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, name, tracks),
	}
}

func cacheFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CachePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}
