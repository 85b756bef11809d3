package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// PlaylistRepository implements models.Repository[*models.PersistedPlaylist] for playlist caching.
//
// Handles playlist CRUD operations with soft delete support and service-specific lookups.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

const playlistColumns = `id, sequence, service, service_id, name, description, owner, track_count, public, created_at, updated_at, deleted_at`

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	p := playlist.Playlist()

	query := `
		INSERT INTO playlists (id, sequence, service, service_id, name, description, owner, track_count, public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		playlist.Service(),
		playlist.ServiceID(),
		p.Name,
		p.Description,
		p.Owner,
		p.TrackCount,
		p.Public,
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	playlist.SetID(id)
	return nil
}

// GetByServiceID retrieves a playlist by service and service_id
func (r *PlaylistRepository) GetByServiceID(service, serviceID string) (*models.PersistedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE service = ? AND service_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, service, serviceID))
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)
	p := playlist.Playlist()

	query := `
		UPDATE playlists
		SET name = ?, description = ?, owner = ?, track_count = ?, public = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, p.Name, p.Description, p.Owner, p.TrackCount, p.Public, now, playlist.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return checkAffected(result, "playlist", playlist.ID())
}

// Upsert updates the live row for the playlist's (service, service_id) or creates one.
func (r *PlaylistRepository) Upsert(playlist *models.PersistedPlaylist) error {
	if err := r.restore(playlist.Service(), playlist.ServiceID()); err != nil {
		return err
	}

	existing, err := r.GetByServiceID(playlist.Service(), playlist.ServiceID())
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return r.Create(playlist)
	case err != nil:
		return err
	}

	playlist.SetID(existing.ID())
	playlist.SetCreatedAt(existing.CreatedAt())
	return r.Update(playlist)
}

// Delete soft-deletes a playlist by ID
func (r *PlaylistRepository) Delete(id string) error {
	query := `UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	return checkAffected(result, "playlist", id)
}

// restore clears the soft delete on the row for (service, service_id) so it can be written again.
func (r *PlaylistRepository) restore(service, serviceID string) error {
	query := `UPDATE playlists SET deleted_at = NULL WHERE service = ? AND service_id = ? AND deleted_at IS NOT NULL`
	if _, err := r.db.Exec(query, service, serviceID); err != nil {
		return fmt.Errorf("failed to restore playlist: %w", err)
	}
	return nil
}

// List retrieves all playlists matching the given criteria, excluding soft-deleted playlists.
// Supported criteria: "service", "owner".
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.PersistedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE deleted_at IS NULL`
	args := []any{}

	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	if owner, ok := criteria["owner"].(string); ok && owner != "" {
		query += " AND owner = ?"
		args = append(args, owner)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.PersistedPlaylist
	for rows.Next() {
		playlist, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// scanOne scans a single row into a [models.PersistedPlaylist]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.PersistedPlaylist, error) {
	playlist, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist", ErrRecordNotFound)
	}
	return playlist, err
}

func (r *PlaylistRepository) scan(row scanner) (*models.PersistedPlaylist, error) {
	var (
		id          string
		sequence    int
		service     string
		serviceID   string
		name        string
		description string
		owner       string
		trackCount  int
		public      bool
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &service, &serviceID, &name, &description, &owner, &trackCount, &public, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	dto := models.Playlist{
		ID:          serviceID,
		Name:        name,
		Description: description,
		TrackCount:  trackCount,
		Public:      public,
		Owner:       owner,
	}

	playlist := models.NewPersistedPlaylist(sequence, service, serviceID, dto)
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		playlist.SetDeletedAt(&deletedAt.Time)
	}

	return playlist, nil
}
