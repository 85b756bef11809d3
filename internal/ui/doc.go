// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI applies one block plan to a playlist picked from the user's library:
//  1. [PlaylistListView] : Browse and select Spotify playlists
//  2. [PreviewView] : Tracks grouped by block with per-block totals
//  3. [ConfirmView] : Confirm the name, visibility and description
//  4. [PublishView] : Monitor progress while the playlist is created
//  5. [ResultView] : Display the new playlist
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the arrange engine, so the publish never blocks rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
