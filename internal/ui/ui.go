package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/blockify/internal/blocks"
	"github.com/desertthunder/blockify/internal/formatter"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	PreviewView
	ConfirmView
	PublishView
	ResultView
)

// Arrangement is the block plan the TUI applies to whichever playlist is picked.
type Arrangement struct {
	Specs []blocks.Spec
	// Name of the new playlist. Empty means "<source name> (blocks)".
	Name   string
	Public bool
	// Plan is the serialized plan stored with the arrangement history.
	Plan string
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	service      services.Service
	engine       tasks.Engine
	arrangement  Arrangement
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	loading      bool
	catalog      *models.PlaylistExport
	preview      formatter.Preview
	progressChan chan tasks.ProgressUpdate
	done         chan publishComplete
	progress     tasks.ProgressUpdate
	result       *tasks.PublishResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, service services.Service, engine tasks.Engine, arrangement Arrangement) *Model {
	playlists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlists.Title = "Spotify Playlists"
	tracks := list.New(nil, list.NewDefaultDelegate(), 0, 0)

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		service:      service,
		engine:       engine,
		arrangement:  arrangement,
		playlistList: playlists,
		trackList:    tracks,
		loading:      true,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// ViewState returns the current view.
func (m *Model) ViewState() ViewState { return m.view }

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

// Result returns the published playlist, once the publish completes.
func (m *Model) Result() *tasks.PublishResult { return m.result }

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-12)
		return m, nil

	case tea.KeyMsg:
		if m.playlistList.FilterState() == list.Filtering || m.trackList.FilterState() == list.Filtering {
			return m.updateLists(msg)
		}
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case PublishView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		return m, m.playlistList.SetItems(items)

	case MsgCatalogFetched:
		data := msg.data.(catalogFetched)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.err = nil
		m.catalog = data.catalog
		m.allocate()
		m.view = PreviewView
		return m, m.trackList.SetItems(previewItems(m.preview))

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.done)

	case MsgPublishComplete:
		data := msg.data.(publishComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		return m, nil
	}
	return m, nil
}

// allocate re-runs the allocator over the selected catalog.
func (m *Model) allocate() {
	r := m.engine.Preview(m.catalog, m.arrangement.Specs)
	m.preview = formatter.NewPreview(r.Playlist, r.Allocation, r.Description, r.TotalTracks)
	m.trackList.Title = fmt.Sprintf("Preview of '%s'", m.catalog.Playlist.Name)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress esc to go back, q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case PublishView:
		return m.renderPublish()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if m.loading {
			return m, nil
		}
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.loading = true
			m.err = nil
			return m, m.fetchCatalog(pl.playlist.ID)
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if m.preview.Assigned > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PreviewView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = PublishView
		return m, m.startPublish()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.catalog = nil
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case PreviewView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		playlists, err := svc.GetPlaylists(ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchCatalog(playlistID string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		catalog, err := engine.Fetch(ctx, playlistID, nil)
		return catalogFetchedMsg(catalog, err)
	}
}

// playlistName is the name the new playlist is published under.
func (m *Model) playlistName() string {
	if name := strings.TrimSpace(m.arrangement.Name); name != "" {
		return name
	}
	return m.catalog.Playlist.Name + " (blocks)"
}

func (m *Model) startPublish() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan publishComplete, 1)

	req := tasks.PublishRequest{
		SourcePlaylistID: m.catalog.Playlist.ID,
		Name:             m.playlistName(),
		Public:           m.arrangement.Public,
		URIs:             uris(m.preview),
		Specs:            m.arrangement.Specs,
		Plan:             m.arrangement.Plan,
	}

	ctx, engine, progress, done := m.ctx, m.engine, m.progressChan, m.done
	go func() {
		result, err := engine.Publish(ctx, req, progress)
		done <- publishComplete{result: result, err: err}
		close(progress)
	}()

	return waitForProgress(progress, done)
}

// waitForProgress relays one progress update, or the outcome once the publish goroutine closes the channel.
func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan publishComplete) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			c := <-done
			return publishCompleteMsg(c.result, c.err)
		}
		return progressUpdateMsg(update)
	}
}

func uris(p formatter.Preview) []string {
	var out []string
	for _, b := range p.Blocks {
		for _, t := range b.Tracks {
			out = append(out, t.URI)
		}
	}
	return out
}

func (m *Model) renderPlaylistList() string {
	if m.loading {
		return styles.help.Render("Loading...")
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderPreview() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("%s: %d of %d tracks allocated",
		m.preview.Playlist.Name, m.preview.Assigned, m.preview.TotalTracks)))
	b.WriteString("\n")
	b.WriteString(styles.help.Render(m.preview.Description))
	b.WriteString("\n\n")

	for _, blk := range m.preview.Blocks {
		line := fmt.Sprintf("B%d %s  %s / %s min  %d tracks",
			blk.Position, blk.Name, shared.FormatMinutes(blk.Minutes),
			shared.FormatMinutes(float64(blk.DurationMinutes)), len(blk.Tracks))
		if len(blk.Tracks) == 0 {
			b.WriteString(styles.warn.Render(line))
		} else {
			b.WriteString(styles.block.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	publishKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "publish"))
	helpKeys := []key.Binding{publishKey, m.keys.back, m.keys.quit}

	if m.preview.Assigned == 0 {
		b.WriteString(styles.warn.Render("No tracks matched any block."))
		b.WriteString("\n\n")
		helpKeys = []key.Binding{m.keys.back, m.keys.quit}
	} else {
		b.WriteString(m.trackList.View())
		b.WriteString("\n\n")
	}

	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Publish '%s' to Spotify?", m.playlistName()))
	info := fmt.Sprintf("\nSource: %s\nTracks: %d in %d blocks\nVisibility: %s\nDescription: %s\n",
		m.catalog.Playlist.Name, m.preview.Assigned, len(m.preview.Blocks),
		shared.VisibilityString(m.arrangement.Public), m.preview.Description)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderPublish() string {
	title := styles.title.Render("Publishing Playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.CreatePlaylist:
		phase = "Creating playlist on Spotify..."
	case tasks.AddTracks:
		phase = fmt.Sprintf("Adding %d tracks...", m.progress.Total)
	default:
		phase = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Publish failed: %v", m.err)) + "\n\n" + helpView
	}

	if m.result == nil || m.result.Playlist == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Playlist Published!")
	info := fmt.Sprintf("\nName: %s\nID: %s\nTracks: %d\nDescription: %s",
		m.result.Playlist.Name, m.result.Playlist.ID, m.result.Playlist.TrackCount, m.result.Description)

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
