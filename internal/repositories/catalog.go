package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// CatalogCache stores fetched playlists with their ordered tracks so they can be allocated offline.
//
// Tracks are deduplicated on (service, service_id); playlist membership keeps every position.
type CatalogCache struct {
	db        *sql.DB
	service   string
	playlists *PlaylistRepository
	tracks    *TrackRepository
}

// NewCatalogCache creates a CatalogCache for service's catalogs.
func NewCatalogCache(db *sql.DB, service string) *CatalogCache {
	return &CatalogCache{
		db:        db,
		service:   service,
		playlists: NewPlaylistRepository(db),
		tracks:    NewTrackRepository(db),
	}
}

// CacheTrack stores or refreshes a single track.
func (c *CatalogCache) CacheTrack(track models.Track) (string, error) {
	persisted := models.NewPersistedTrack(0, c.service, track.ID, track)
	if err := c.tracks.Upsert(persisted); err != nil {
		return "", fmt.Errorf("failed to cache track %s: %w", track.ID, err)
	}
	return persisted.ID(), nil
}

// SaveCatalog replaces the cached copy of export's playlist and its track order.
func (c *CatalogCache) SaveCatalog(export *models.PlaylistExport) error {
	if export == nil {
		return fmt.Errorf("%w: nil catalog", shared.ErrInvalidInput)
	}

	playlist := models.NewPersistedPlaylist(0, c.service, export.Playlist.ID, export.Playlist)
	if err := c.playlists.Upsert(playlist); err != nil {
		return fmt.Errorf("failed to cache playlist: %w", err)
	}

	rowIDs := make(map[string]string, len(export.Tracks))
	order := make([]string, 0, len(export.Tracks))
	for _, t := range export.Tracks {
		rowID, ok := rowIDs[t.ID]
		if !ok {
			var err error
			if rowID, err = c.CacheTrack(t); err != nil {
				return err
			}
			rowIDs[t.ID] = rowID
		}
		order = append(order, rowID)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlist.ID()); err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	for pos, rowID := range order {
		if _, err := tx.Exec(`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`, playlist.ID(), rowID, pos); err != nil {
			return fmt.Errorf("failed to insert playlist track %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist tracks: %w", err)
	}

	return nil
}

// LoadCatalog returns the cached playlist with its tracks in stored order.
// A playlist that was never cached yields [shared.ErrNotCached].
func (c *CatalogCache) LoadCatalog(playlistID string) (*models.PlaylistExport, error) {
	playlist, err := c.playlists.GetByServiceID(c.service, playlistID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotCached, playlistID)
	}
	if err != nil {
		return nil, err
	}

	persisted, err := c.tracks.ListByPlaylist(playlist.ID())
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(persisted))
	for _, t := range persisted {
		tracks = append(tracks, t.Track())
	}

	return &models.PlaylistExport{Playlist: playlist.Playlist(), Tracks: tracks}, nil
}

// Playlists lists every cached playlist for the service.
func (c *CatalogCache) Playlists() ([]models.Playlist, error) {
	persisted, err := c.playlists.List(map[string]any{"service": c.service})
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(persisted))
	for _, p := range persisted {
		playlists = append(playlists, p.Playlist())
	}
	return playlists, nil
}

// Forget drops a cached playlist and every track no other cached playlist still holds.
// It returns the number of tracks removed. A playlist that was never cached yields [shared.ErrNotCached].
func (c *CatalogCache) Forget(playlistID string) (int, error) {
	playlist, err := c.playlists.GetByServiceID(c.service, playlistID)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: playlist %s", shared.ErrNotCached, playlistID)
	}
	if err != nil {
		return 0, err
	}

	tracks, err := c.tracks.ListByPlaylist(playlist.ID())
	if err != nil {
		return 0, err
	}

	if err := c.playlists.Delete(playlist.ID()); err != nil {
		return 0, err
	}
	if _, err := c.db.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlist.ID()); err != nil {
		return 0, fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	removed := 0
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if seen[t.ID()] {
			continue
		}
		seen[t.ID()] = true

		var refs int
		err := c.db.QueryRow(`
			SELECT COUNT(*) FROM playlist_tracks pt
			JOIN playlists p ON p.id = pt.playlist_id
			WHERE pt.track_id = ? AND p.deleted_at IS NULL
		`, t.ID()).Scan(&refs)
		if err != nil {
			return removed, fmt.Errorf("failed to count track references: %w", err)
		}
		if refs > 0 {
			continue
		}

		if err := c.tracks.Delete(t.ID()); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}
