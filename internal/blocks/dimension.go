package blocks

import (
	"fmt"
	"strings"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// Dimension is a track attribute a rule filters or sorts on.
type Dimension string

const (
	Popularity   Dimension = "popularity"
	Energy       Dimension = "energy"
	Danceability Dimension = "danceability"
	Valence      Dimension = "valence"
	Tempo        Dimension = "tempo"
	Key          Dimension = "key"
	Genre        Dimension = "genre"
)

// Dimensions lists every supported dimension.
var Dimensions = []Dimension{Popularity, Energy, Danceability, Valence, Tempo, Key, Genre}

// ParseDimension accepts a dimension name, case-insensitively. "mood" is an alias for valence and "bpm" for tempo.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case Popularity, Energy, Danceability, Valence, Tempo, Key, Genre:
		return d, nil
	case "mood":
		return Valence, nil
	case "bpm":
		return Tempo, nil
	}
	return "", fmt.Errorf("%w: unknown dimension %q", shared.ErrInvalidInput, s)
}

// Sortable reports whether the dimension has an ordering. Key and genre do not.
func (d Dimension) Sortable() bool {
	switch d {
	case Popularity, Energy, Danceability, Valence, Tempo:
		return true
	}
	return false
}

// value returns the numeric attribute d reads from t.
func (d Dimension) value(t models.Track) float64 {
	switch d {
	case Popularity:
		return float64(t.Popularity)
	case Energy:
		return t.Energy
	case Danceability:
		return t.Danceability
	case Valence:
		return t.Valence
	case Tempo:
		return t.Tempo
	}
	return 0
}

// Order is the sort direction applied after a rule's filter.
type Order string

const (
	Unordered  Order = ""
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// ParseOrder accepts asc, ascending, desc, descending, none or the empty string.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null":
		return Unordered, nil
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: unknown order %q", shared.ErrInvalidInput, s)
}

func (o Order) String() string {
	if o == Unordered {
		return "none"
	}
	return string(o)
}
