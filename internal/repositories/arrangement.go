package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// ArrangementRepository implements models.Repository[*models.Arrangement] for publish history.
//
// Handles arrangement CRUD operations with soft delete support and status-based queries.
type ArrangementRepository struct {
	db *sql.DB
}

// NewArrangementRepository creates a new ArrangementRepository with the given database connection
func NewArrangementRepository(db *sql.DB) *ArrangementRepository {
	return &ArrangementRepository{db: db}
}

const arrangementColumns = `id, sequence, source_playlist_id, target_playlist_id, name, description, public,
	tracks_total, blocks_total, plan, status, error_message, completed_at, created_at, updated_at, deleted_at`

// Create inserts a new arrangement into the database with generated ID and sequence
func (r *ArrangementRepository) Create(a *models.Arrangement) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "arrangements")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO arrangements (
			id, sequence, source_playlist_id, target_playlist_id, name, description, public,
			tracks_total, blocks_total, plan, status, error_message, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		a.SourcePlaylistID(),
		nullString(a.TargetPlaylistID()),
		a.Name(),
		a.Description(),
		a.Public(),
		a.TracksTotal(),
		a.BlocksTotal(),
		a.Plan(),
		string(a.Status()),
		nullString(a.ErrorMessage()),
		a.CompletedAt(),
		a.CreatedAt(),
		a.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert arrangement: %w", err)
	}

	a.SetID(id)
	return nil
}

// Get retrieves an arrangement by ID, excluding soft-deleted arrangements
func (r *ArrangementRepository) Get(id string) (*models.Arrangement, error) {
	query := `SELECT ` + arrangementColumns + ` FROM arrangements WHERE id = ? AND deleted_at IS NULL`

	a, err := r.scan(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: arrangement", ErrRecordNotFound)
	}
	return a, err
}

// Update persists status, target and completion changes
func (r *ArrangementRepository) Update(a *models.Arrangement) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	a.SetUpdatedAt(now)

	query := `
		UPDATE arrangements
		SET target_playlist_id = ?, description = ?, status = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		nullString(a.TargetPlaylistID()),
		a.Description(),
		string(a.Status()),
		nullString(a.ErrorMessage()),
		a.CompletedAt(),
		now,
		a.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update arrangement: %w", err)
	}

	return checkAffected(result, "arrangement", a.ID())
}

// Delete soft-deletes an arrangement by ID
func (r *ArrangementRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE arrangements SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete arrangement: %w", err)
	}

	return checkAffected(result, "arrangement", id)
}

// List retrieves arrangements newest first.
// Supported criteria: "status" ([models.ArrangementStatus] or string), "source_playlist_id", "limit" (int).
func (r *ArrangementRepository) List(criteria map[string]any) ([]*models.Arrangement, error) {
	query := `SELECT ` + arrangementColumns + ` FROM arrangements WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.ArrangementStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	if source, ok := criteria["source_playlist_id"].(string); ok && source != "" {
		query += " AND source_playlist_id = ?"
		args = append(args, source)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query arrangements: %w", err)
	}
	defer rows.Close()

	var arrangements []*models.Arrangement
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		arrangements = append(arrangements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return arrangements, nil
}

func (r *ArrangementRepository) scan(row scanner) (*models.Arrangement, error) {
	var (
		id               string
		sequence         int
		sourcePlaylistID string
		targetPlaylistID sql.NullString
		name             string
		description      string
		public           bool
		tracksTotal      int
		blocksTotal      int
		plan             string
		status           string
		errorMessage     sql.NullString
		completedAt      sql.NullTime
		createdAt        time.Time
		updatedAt        time.Time
		deletedAt        sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &sourcePlaylistID, &targetPlaylistID, &name, &description, &public,
		&tracksTotal, &blocksTotal, &plan, &status, &errorMessage, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan arrangement: %w", err)
	}

	a := models.NewArrangement(sequence, sourcePlaylistID, name, description, public, tracksTotal, blocksTotal, plan)
	a.SetID(id)
	a.SetStatus(models.ArrangementStatus(status), errorMessage.String)
	a.SetTargetPlaylistID(targetPlaylistID.String)
	if completedAt.Valid {
		a.SetCompletedAt(&completedAt.Time)
	}
	a.SetCreatedAt(createdAt)
	a.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		a.SetDeletedAt(&deletedAt.Time)
	}

	return a, nil
}
