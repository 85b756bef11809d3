package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// TrackRepository implements models.Repository[*models.PersistedTrack] for track caching.
//
// Tracks are stored with their audio features and resolved genre so a cached playlist can be
// allocated without contacting the service.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `id, sequence, service, service_id, name, artists, artist_ids, album, image_url, duration_ms, uri,
	popularity, energy, danceability, valence, tempo, musical_key, genre, created_at, updated_at, deleted_at`

// Create inserts a new [models.PersistedTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	artists, artistIDs, err := encodeArtists(track.Track())
	if err != nil {
		return err
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	t := track.Track()

	query := `
		INSERT INTO tracks (
			id, sequence, service, service_id, name, artists, artist_ids, album, image_url, duration_ms, uri,
			popularity, energy, danceability, valence, tempo, musical_key, genre, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.Service(),
		track.ServiceID(),
		t.Name,
		artists,
		artistIDs,
		t.Album,
		t.ImageURL,
		t.DurationMs,
		t.URI,
		t.Popularity,
		t.Energy,
		t.Danceability,
		t.Valence,
		t.Tempo,
		t.Key,
		t.Genre,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	track.SetID(id)
	return nil
}

// GetByServiceID retrieves a track by service and service_id
func (r *TrackRepository) GetByServiceID(service, serviceID string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE service = ? AND service_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, service, serviceID))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	artists, artistIDs, err := encodeArtists(track.Track())
	if err != nil {
		return err
	}

	now := time.Now()
	track.SetUpdatedAt(now)
	t := track.Track()

	query := `
		UPDATE tracks
		SET name = ?, artists = ?, artist_ids = ?, album = ?, image_url = ?, duration_ms = ?, uri = ?,
			popularity = ?, energy = ?, danceability = ?, valence = ?, tempo = ?, musical_key = ?, genre = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		t.Name,
		artists,
		artistIDs,
		t.Album,
		t.ImageURL,
		t.DurationMs,
		t.URI,
		t.Popularity,
		t.Energy,
		t.Danceability,
		t.Valence,
		t.Tempo,
		t.Key,
		t.Genre,
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	return checkAffected(result, "track", track.ID())
}

// Upsert updates the live row for the track's (service, service_id) or creates one.
func (r *TrackRepository) Upsert(track *models.PersistedTrack) error {
	if err := r.restore(track.Service(), track.ServiceID()); err != nil {
		return err
	}

	existing, err := r.GetByServiceID(track.Service(), track.ServiceID())
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return r.Create(track)
	case err != nil:
		return err
	}

	track.SetID(existing.ID())
	track.SetCreatedAt(existing.CreatedAt())
	return r.Update(track)
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	query := `UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	return checkAffected(result, "track", id)
}

// restore clears the soft delete on the row for (service, service_id) so it can be written again.
func (r *TrackRepository) restore(service, serviceID string) error {
	query := `UPDATE tracks SET deleted_at = NULL WHERE service = ? AND service_id = ? AND deleted_at IS NOT NULL`
	if _, err := r.db.Exec(query, service, serviceID); err != nil {
		return fmt.Errorf("failed to restore track: %w", err)
	}
	return nil
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks.
// Supported criteria: "service", "genre".
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	if genre, ok := criteria["genre"].(string); ok && genre != "" {
		query += " AND genre = ?"
		args = append(args, genre)
	}

	query += " ORDER BY sequence ASC"

	return r.query(query, args...)
}

// ListByPlaylist returns the tracks of a cached playlist in stored order, duplicates included.
func (r *TrackRepository) ListByPlaylist(playlistID string) ([]*models.PersistedTrack, error) {
	query := `
		SELECT t.id, t.sequence, t.service, t.service_id, t.name, t.artists, t.artist_ids, t.album, t.image_url,
			t.duration_ms, t.uri, t.popularity, t.energy, t.danceability, t.valence, t.tempo, t.musical_key, t.genre,
			t.created_at, t.updated_at, t.deleted_at
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ? AND t.deleted_at IS NULL
		ORDER BY pt.position ASC
	`

	return r.query(query, playlistID)
}

func (r *TrackRepository) query(query string, args ...any) ([]*models.PersistedTrack, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row] into a [models.PersistedTrack]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.PersistedTrack, error) {
	track, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track", ErrRecordNotFound)
	}
	return track, err
}

func (r *TrackRepository) scan(row scanner) (*models.PersistedTrack, error) {
	var (
		id        string
		sequence  int
		service   string
		serviceID string
		artists   string
		artistIDs string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
		t         models.Track
	)

	err := row.Scan(
		&id, &sequence, &service, &serviceID, &t.Name, &artists, &artistIDs, &t.Album, &t.ImageURL,
		&t.DurationMs, &t.URI, &t.Popularity, &t.Energy, &t.Danceability, &t.Valence, &t.Tempo, &t.Key, &t.Genre,
		&createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	if t.Artists, err = decodeStrings(artists); err != nil {
		return nil, fmt.Errorf("failed to decode artists: %w", err)
	}
	if t.ArtistIDs, err = decodeStrings(artistIDs); err != nil {
		return nil, fmt.Errorf("failed to decode artist ids: %w", err)
	}
	t.ID = serviceID

	track := models.NewPersistedTrack(sequence, service, serviceID, t)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}

func encodeArtists(t models.Track) (string, string, error) {
	artists, err := encodeStrings(t.Artists)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode artists: %w", err)
	}
	artistIDs, err := encodeStrings(t.ArtistIDs)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode artist ids: %w", err)
	}
	return artists, artistIDs, nil
}
