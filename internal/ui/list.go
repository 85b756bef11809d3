package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/blockify/internal/formatter"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// trackItem wraps an allocated [models.Track] with the block it landed in.
type trackItem struct {
	block    string
	position int
	track    models.Track
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string {
	return fmt.Sprintf("[B%d] %s", i.position, i.track.Name)
}
func (i trackItem) Description() string {
	return fmt.Sprintf("%s • %s • %s • energy %.2f • %d★",
		i.block, i.track.ArtistNames(), shared.FormatDuration(i.track.DurationMs), i.track.Energy, i.track.Stars())
}

// previewItems flattens the preview into list items, in publish order.
func previewItems(p formatter.Preview) []list.Item {
	var items []list.Item
	for _, b := range p.Blocks {
		for _, t := range b.Tracks {
			items = append(items, trackItem{block: b.Name, position: b.Position, track: t})
		}
	}
	return items
}
