package models

import (
	"math"
	"strings"
)

// NoKey marks a track whose musical key is absent or was never analysed.
const NoKey = -1

// UnknownGenre is assigned to tracks with no genre.
const UnknownGenre = "unknown"

// KeyLabels maps pitch class 0-11 to its label.
var KeyLabels = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Track is one playlist entry with its audio features and genre.
//
// Records are immutable once built; enrichment returns a copy.
type Track struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Artists      []string `json:"artists"`
	ArtistIDs    []string `json:"artistIds,omitempty"`
	Album        string   `json:"album"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	DurationMs   int      `json:"durationMs"`
	URI          string   `json:"uri"`
	Popularity   int      `json:"popularity"`
	Energy       float64  `json:"energy"`
	Danceability float64  `json:"danceability"`
	Valence      float64  `json:"valence"`
	Tempo        float64  `json:"tempo"`
	Key          int      `json:"key"`
	Genre        string   `json:"genre"`
}

// Minutes returns the track length in minutes.
func (t Track) Minutes() float64 {
	return float64(t.DurationMs) / 60000
}

// Stars buckets popularity 0-100 into 0-5 stars, rounding half away from zero.
func (t Track) Stars() int {
	return int(math.Round(float64(t.Popularity) / 20))
}

// KeyLabel returns the pitch class label, or "" when the key is unknown.
func (t Track) KeyLabel() string {
	if t.Key < 0 || t.Key >= len(KeyLabels) {
		return ""
	}
	return KeyLabels[t.Key]
}

// ArtistNames joins the artist names with ", ".
func (t Track) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// FirstArtistID returns the primary artist's ID, if any.
func (t Track) FirstArtistID() string {
	if len(t.ArtistIDs) == 0 {
		return ""
	}
	return t.ArtistIDs[0]
}

// WithGenre returns a copy of t with the given genre, defaulting empty genres to [UnknownGenre].
func (t Track) WithGenre(genre string) Track {
	if strings.TrimSpace(genre) == "" {
		genre = UnknownGenre
	}
	t.Genre = genre
	return t
}

// KeyIndex returns the pitch class for label, or [NoKey] when label is not one of [KeyLabels].
func KeyIndex(label string) int {
	for i, l := range KeyLabels {
		if strings.EqualFold(l, strings.TrimSpace(label)) {
			return i
		}
	}
	return NoKey
}

// Playlist represents a playlist from a music service.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"trackCount"`
	Public      bool   `json:"public"`
	Owner       string `json:"owner,omitempty"`
}

// PlaylistExport is a playlist together with its full ordered track list.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// DurationMs sums the durations of the exported tracks.
func (p PlaylistExport) DurationMs() int {
	total := 0
	for _, t := range p.Tracks {
		total += t.DurationMs
	}
	return total
}

// URIs returns the track URIs in order.
func (p PlaylistExport) URIs() []string {
	uris := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		uris = append(uris, t.URI)
	}
	return uris
}
