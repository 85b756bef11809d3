package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgCatalogFetched
	MsgProgressUpdate
	MsgPublishComplete
)

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

type catalogFetched struct {
	catalog *models.PlaylistExport
	err     error
}

type publishComplete struct {
	result *tasks.PublishResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// catalogFetchedMsg is the constructor for [MsgCatalogFetched]
func catalogFetchedMsg(catalog *models.PlaylistExport, err error) Msg {
	return Msg{kind: MsgCatalogFetched, data: catalogFetched{catalog, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// publishCompleteMsg is the constructor for [MsgPublishComplete]
func publishCompleteMsg(result *tasks.PublishResult, err error) Msg {
	return Msg{kind: MsgPublishComplete, data: publishComplete{result, err}}
}
