// Package repositories implements SQLite persistence for the local catalog cache and publish history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [PlaylistRepository] : cached playlist metadata keyed by service and service ID
//   - [TrackRepository] : cached tracks with audio features and resolved genre
//   - [CatalogCache] : whole catalogs (playlist plus ordered tracks) for offline previews
//   - [GenreRepository] : artist genre lookups with an optional time to live
//   - [ArrangementRepository] : published arrangements with status tracking
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
