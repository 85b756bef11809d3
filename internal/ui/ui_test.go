package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/blockify/internal/blocks"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/tasks"
	th "github.com/desertthunder/blockify/internal/testing"
)

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, arrangement Arrangement) (*Model, *th.MockService) {
	t.Helper()
	svc := &th.MockService{
		Playlists: []models.Playlist{
			{ID: "pl-1", Name: "Sunday Chill", TrackCount: 2},
			{ID: "pl-2", Name: "Running", TrackCount: 0},
		},
		Exports: map[string]*models.PlaylistExport{
			"pl-1": {
				Playlist: models.Playlist{ID: "pl-1", Name: "Sunday Chill", TrackCount: 2},
				Tracks:   []models.Track{th.Track("a", 3, "art1"), th.Track("b", 4, "art2")},
			},
		},
	}
	if arrangement.Specs == nil {
		arrangement.Specs = []blocks.Spec{{Name: "All", DurationMinutes: 10}}
	}

	m := NewModel(context.Background(), svc, tasks.NewArrangeEngine(svc), arrangement)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, svc
}

// step runs cmd and feeds its message back into the model.
func step(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	_, next := m.Update(cmd())
	return next
}

// toPreview loads playlists and opens the first one.
func toPreview(t *testing.T, m *Model) {
	t.Helper()
	step(t, m, m.Init())
	_, cmd := m.Update(enter)
	step(t, m, cmd)
}

func TestModel(t *testing.T) {
	t.Run("Loads Playlists", func(t *testing.T) {
		m, _ := newTestModel(t, Arrangement{})

		if !strings.Contains(m.View(), "Loading") {
			t.Errorf("expected loading view, got %q", m.View())
		}

		step(t, m, m.Init())

		if got := len(m.playlistList.Items()); got != 2 {
			t.Fatalf("expected 2 playlists, got %d", got)
		}
		if !strings.Contains(m.View(), "Sunday Chill") {
			t.Errorf("expected playlist in view")
		}
	})

	t.Run("Playlist Error", func(t *testing.T) {
		m, svc := newTestModel(t, Arrangement{})
		svc.PlaylistsErr = fmt.Errorf("%w: expired", shared.ErrAuthRequired)

		step(t, m, m.Init())

		if m.Err() == nil || !strings.Contains(m.View(), "Error") {
			t.Errorf("expected error view, got %q", m.View())
		}
	})

	t.Run("Preview Groups By Block", func(t *testing.T) {
		m, _ := newTestModel(t, Arrangement{})
		toPreview(t, m)

		if m.ViewState() != PreviewView {
			t.Fatalf("expected preview view, got %v", m.ViewState())
		}
		if m.preview.Assigned != 2 || len(m.preview.Blocks) != 1 {
			t.Errorf("expected 2 tracks in 1 block, got %d in %d", m.preview.Assigned, len(m.preview.Blocks))
		}

		view := m.View()
		for _, want := range []string{"2 of 2 tracks allocated", "B1 All  7 / 10 min  2 tracks", "B1(0.17h): "} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q", want)
			}
		}
	})

	t.Run("Catalog Error Returns To List", func(t *testing.T) {
		m, svc := newTestModel(t, Arrangement{})
		step(t, m, m.Init())
		svc.ExportErr = fmt.Errorf("%w: revoked", shared.ErrAuthRequired)

		_, cmd := m.Update(enter)
		step(t, m, cmd)

		if m.ViewState() != PlaylistListView || m.Err() == nil {
			t.Fatalf("expected error on playlist list, got view %v err %v", m.ViewState(), m.Err())
		}

		m.Update(esc)
		if m.Err() != nil {
			t.Error("expected esc to clear the error")
		}
	})

	t.Run("Nothing Allocated Blocks Publish", func(t *testing.T) {
		m, _ := newTestModel(t, Arrangement{Specs: []blocks.Spec{{Name: "Tiny", DurationMinutes: 1}}})
		toPreview(t, m)

		m.Update(enter)
		if m.ViewState() != PreviewView {
			t.Errorf("expected to stay on preview, got %v", m.ViewState())
		}
		if !strings.Contains(m.View(), "No tracks matched") {
			t.Error("expected empty allocation notice")
		}
	})

	t.Run("Cancel Confirm", func(t *testing.T) {
		m, svc := newTestModel(t, Arrangement{})
		toPreview(t, m)

		m.Update(enter)
		if m.ViewState() != ConfirmView {
			t.Fatalf("expected confirm view, got %v", m.ViewState())
		}

		m.Update(runes("n"))
		if m.ViewState() != PreviewView {
			t.Errorf("expected preview view, got %v", m.ViewState())
		}
		if svc.ImportCalls != 0 {
			t.Error("expected nothing published")
		}
	})

	t.Run("Publish", func(t *testing.T) {
		m, svc := newTestModel(t, Arrangement{Public: true})
		toPreview(t, m)

		m.Update(enter)
		if !strings.Contains(m.View(), "Publish 'Sunday Chill (blocks)' to Spotify?") {
			t.Errorf("unexpected confirm view %q", m.View())
		}

		_, cmd := m.Update(runes("y"))
		for i := 0; m.ViewState() != ResultView; i++ {
			if i > 10 {
				t.Fatal("publish did not complete")
			}
			cmd = step(t, m, cmd)
		}

		if m.Err() != nil {
			t.Fatalf("unexpected error %v", m.Err())
		}
		if m.Result() == nil || m.Result().Playlist.ID != "created-Sunday Chill (blocks)" {
			t.Fatalf("unexpected result %+v", m.Result())
		}
		if !svc.Imported.Playlist.Public {
			t.Error("expected public playlist")
		}
		if got := len(svc.Imported.Tracks); got != 2 {
			t.Errorf("expected 2 tracks published, got %d", got)
		}
		if !strings.Contains(m.View(), "Playlist Published") {
			t.Errorf("unexpected result view %q", m.View())
		}

		m.Update(runes("r"))
		if m.ViewState() != PlaylistListView || m.Result() != nil {
			t.Error("expected restart to return to the playlist list")
		}
	})

	t.Run("Publish Failure", func(t *testing.T) {
		m, svc := newTestModel(t, Arrangement{Name: "Evening"})
		svc.ImportErr = &shared.UpstreamError{Status: 403, Message: "forbidden"}
		toPreview(t, m)

		m.Update(enter)
		_, cmd := m.Update(runes("y"))
		for i := 0; m.ViewState() != ResultView; i++ {
			if i > 10 {
				t.Fatal("publish did not complete")
			}
			cmd = step(t, m, cmd)
		}

		if m.Err() == nil || !strings.Contains(m.View(), "Publish failed") {
			t.Errorf("expected failure view, got %q", m.View())
		}
		if svc.Imported != nil {
			t.Error("expected nothing imported")
		}
	})
}

func TestPreviewItems(t *testing.T) {
	m, _ := newTestModel(t, Arrangement{})
	toPreview(t, m)

	items := previewItems(m.preview)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	ti := items[0].(trackItem)
	if ti.Title() != "[B1] Track a" {
		t.Errorf("unexpected title %q", ti.Title())
	}
	if !strings.Contains(ti.Description(), "All") || !strings.Contains(ti.Description(), "3:00") {
		t.Errorf("unexpected description %q", ti.Description())
	}
}
