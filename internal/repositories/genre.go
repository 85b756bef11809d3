package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GenreRepository caches artist genres so repeated arrangements skip the lookup.
type GenreRepository struct {
	db  *sql.DB
	ttl time.Duration
}

// NewGenreRepository creates a GenreRepository. Entries older than ttl are treated as missing;
// a zero ttl keeps entries forever.
func NewGenreRepository(db *sql.DB, ttl time.Duration) *GenreRepository {
	return &GenreRepository{db: db, ttl: ttl}
}

// Get returns the cached genres for artistID, or [ErrRecordNotFound].
func (r *GenreRepository) Get(artistID string) ([]string, error) {
	var (
		raw       string
		fetchedAt time.Time
	)

	err := r.db.QueryRow(`SELECT genres, fetched_at FROM artist_genres WHERE artist_id = ?`, artistID).Scan(&raw, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artist %s", ErrRecordNotFound, artistID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}

	if r.ttl > 0 && time.Since(fetchedAt) > r.ttl {
		return nil, fmt.Errorf("%w: artist %s expired", ErrRecordNotFound, artistID)
	}

	genres, err := decodeStrings(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode genres: %w", err)
	}
	return genres, nil
}

// Put stores genres for artistID, replacing any earlier entry.
func (r *GenreRepository) Put(artistID string, genres []string) error {
	if artistID == "" {
		return fmt.Errorf("artist id is required")
	}

	raw, err := encodeStrings(genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	query := `
		INSERT INTO artist_genres (artist_id, genres, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(artist_id) DO UPDATE SET genres = excluded.genres, fetched_at = excluded.fetched_at
	`
	if _, err := r.db.Exec(query, artistID, raw, time.Now()); err != nil {
		return fmt.Errorf("failed to store genres: %w", err)
	}
	return nil
}

// Purge removes entries fetched before cutoff and reports how many were dropped.
func (r *GenreRepository) Purge(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM artist_genres WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge genres: %w", err)
	}
	return result.RowsAffected()
}
