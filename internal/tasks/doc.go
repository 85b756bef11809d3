// Package tasks runs the arrange workflow with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines the workflow:
//
//  1. [Engine.Fetch] : export a playlist by ID, falling back to an exact or fuzzy name match
//     - Audio features are merged by the service
//     - Each track takes the first genre of its first artist, looked up once per artist
//
//  2. [Engine.FetchCached] : load a previously fetched catalog from the local cache
//
//  3. [Engine.Preview] : run the block allocator and build the playlist description
//
//  4. [Engine.Publish] : create a playlist from the allocated URIs
//     - Requests without tracks, blocks or a name are rejected before any remote call
//     - Attempts are recorded as pending, then published or failed
//
// [ArrangeEngine.CacheMany] fetches several playlists through a small worker pool so they can be previewed offline.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Persistence
//
// The optional [Cacher], [GenreStore] and [Recorder] interfaces are satisfied by the sqlite repositories.
// Their failures are logged and never abort a fetch or publish.
package tasks
