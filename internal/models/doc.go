// Package models defines domain entities and persistence interfaces for blockify.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [Track] : Song metadata with audio features and genre, the unit the allocator works on
//   - [Playlist] : Basic playlist metadata from music services
//   - [PlaylistExport] : Playlist with complete track listing
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [PersistedPlaylist] : Cached playlists with service metadata
//   - [PersistedTrack] : Cached tracks for offline previews
//   - [Arrangement] : Published allocations with status and the plan that produced them
//
// All persistent entities implement the Model interface providing ID, timestamps, validation and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
