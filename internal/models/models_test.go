package models

import (
	"errors"
	"testing"
)

func TestTrack(t *testing.T) {
	t.Run("Stars", func(t *testing.T) {
		tc := []struct {
			popularity int
			want       int
		}{
			{0, 0}, {9, 0}, {10, 1}, {29, 1}, {30, 2}, {50, 3}, {69, 3}, {70, 4}, {89, 4}, {90, 5}, {100, 5},
		}
		for _, tt := range tc {
			if got := (Track{Popularity: tt.popularity}).Stars(); got != tt.want {
				t.Errorf("Stars() for popularity %d = %d, want %d", tt.popularity, got, tt.want)
			}
		}
	})

	t.Run("KeyLabel", func(t *testing.T) {
		tc := []struct {
			key  int
			want string
		}{
			{0, "C"}, {1, "C#"}, {11, "B"}, {NoKey, ""}, {12, ""},
		}
		for _, tt := range tc {
			if got := (Track{Key: tt.key}).KeyLabel(); got != tt.want {
				t.Errorf("KeyLabel() for key %d = %q, want %q", tt.key, got, tt.want)
			}
		}
	})

	t.Run("Minutes", func(t *testing.T) {
		if got := (Track{DurationMs: 90000}).Minutes(); got != 1.5 {
			t.Errorf("expected 1.5 minutes, got %v", got)
		}
	})

	t.Run("WithGenre", func(t *testing.T) {
		orig := Track{ID: "a", Genre: "rock"}
		got := orig.WithGenre("  ")

		if got.Genre != UnknownGenre {
			t.Errorf("expected %q, got %q", UnknownGenre, got.Genre)
		}
		if orig.Genre != "rock" {
			t.Error("WithGenre must not modify the receiver")
		}
	})

	t.Run("KeyIndex", func(t *testing.T) {
		if got := KeyIndex("f#"); got != 6 {
			t.Errorf("expected 6, got %d", got)
		}
		if got := KeyIndex("H"); got != NoKey {
			t.Errorf("expected NoKey, got %d", got)
		}
	})
}

func TestPlaylistExport(t *testing.T) {
	export := PlaylistExport{Tracks: []Track{
		{URI: "spotify:track:a", DurationMs: 1000},
		{URI: "spotify:track:b", DurationMs: 2500},
	}}

	if got := export.DurationMs(); got != 3500 {
		t.Errorf("expected 3500, got %d", got)
	}

	uris := export.URIs()
	if len(uris) != 2 || uris[0] != "spotify:track:a" || uris[1] != "spotify:track:b" {
		t.Errorf("unexpected URIs: %v", uris)
	}
}

func TestArrangement(t *testing.T) {
	t.Run("lifecycle", func(t *testing.T) {
		a := NewArrangement(0, "src", "Evening", "B1(1h): energy(desc)", false, 10, 1, "{}")
		if err := a.Validate(); err != nil {
			t.Fatalf("pending arrangement should validate: %v", err)
		}

		a.MarkPublished("target")
		if a.Status() != ArrangementPublished {
			t.Errorf("expected published, got %s", a.Status())
		}
		if a.CompletedAt() == nil {
			t.Error("expected completed_at to be set")
		}
	})

	t.Run("failed keeps message", func(t *testing.T) {
		a := NewArrangement(0, "src", "Evening", "", false, 10, 1, "{}")
		a.MarkFailed(errors.New("boom"))

		if a.ErrorMessage() != "boom" {
			t.Errorf("expected error message boom, got %q", a.ErrorMessage())
		}
	})

	t.Run("validation", func(t *testing.T) {
		tc := []struct {
			name string
			a    *Arrangement
		}{
			{name: "missing source", a: NewArrangement(0, "", "n", "", false, 0, 0, "")},
			{name: "missing name", a: NewArrangement(0, "src", "", "", false, 0, 0, "")},
			{name: "published without target", a: func() *Arrangement {
				a := NewArrangement(0, "src", "n", "", false, 0, 0, "")
				a.SetStatus(ArrangementPublished, "")
				return a
			}()},
			{name: "bad status", a: func() *Arrangement {
				a := NewArrangement(0, "src", "n", "", false, 0, 0, "")
				a.SetStatus("archived", "")
				return a
			}()},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.a.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})
}

func TestPersistedTrackValidate(t *testing.T) {
	if err := NewPersistedTrack(0, "spotify", "", Track{URI: "u"}).Validate(); err == nil {
		t.Error("expected error for missing service id")
	}
	if err := NewPersistedTrack(0, "spotify", "a", Track{URI: "u"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
