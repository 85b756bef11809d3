package blocks

import (
	"fmt"
	"math"
	"slices"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// Filter decides which candidates survive a rule.
//
// The set of implementations is closed: [StarFilter], [RangeFilter], [KeyFilter] and [GenreFilter].
type Filter interface {
	Keep(t models.Track) bool
	accepts(d Dimension) bool
}

// StarFilter keeps tracks whose popularity rounds to one of Stars (1-5).
type StarFilter struct {
	Stars []int
}

// RangeFilter keeps tracks whose attribute lies in [Min, Max].
type RangeFilter struct {
	Dimension Dimension
	Min       float64
	Max       float64
}

// KeyFilter keeps tracks whose key label is one of Labels. Unknown keys never match.
type KeyFilter struct {
	Labels []string
}

// GenreFilter keeps tracks whose genre is one of Genres.
type GenreFilter struct {
	Genres []string
}

func (f StarFilter) Keep(t models.Track) bool {
	return slices.Contains(f.Stars, t.Stars())
}

func (f RangeFilter) Keep(t models.Track) bool {
	v := f.Dimension.value(t)
	return f.Min <= v && v <= f.Max
}

func (f KeyFilter) Keep(t models.Track) bool {
	label := t.KeyLabel()
	return label != "" && slices.Contains(f.Labels, label)
}

func (f GenreFilter) Keep(t models.Track) bool {
	return slices.Contains(f.Genres, t.Genre)
}

func (StarFilter) accepts(d Dimension) bool { return d == Popularity }

func (f RangeFilter) accepts(d Dimension) bool {
	switch d {
	case Energy, Danceability, Valence, Tempo:
		return f.Dimension == d
	}
	return false
}

func (KeyFilter) accepts(d Dimension) bool   { return d == Key }
func (GenreFilter) accepts(d Dimension) bool { return d == Genre }

// Rule is one filter-then-sort step. A nil Filter passes every candidate through.
type Rule struct {
	Dimension Dimension
	Order     Order
	Filter    Filter
}

// NewRule validates that filter belongs to dimension and that its values are in range.
func NewRule(d Dimension, o Order, filter Filter) (Rule, error) {
	r := Rule{Dimension: d, Order: o, Filter: filter}
	if filter == nil {
		return r, nil
	}
	if !filter.accepts(d) {
		return Rule{}, fmt.Errorf("%w: %T cannot filter %s", shared.ErrInvalidInput, filter, d)
	}

	switch f := filter.(type) {
	case StarFilter:
		for _, s := range f.Stars {
			if s < 1 || s > 5 {
				return Rule{}, fmt.Errorf("%w: popularity stars must be 1-5, got %d", shared.ErrInvalidInput, s)
			}
		}
	case RangeFilter:
		if math.IsNaN(f.Min) || math.IsNaN(f.Max) {
			return Rule{}, fmt.Errorf("%w: %s range must be numeric", shared.ErrInvalidInput, d)
		}
	case KeyFilter:
		for _, l := range f.Labels {
			if models.KeyIndex(l) == models.NoKey || l != models.KeyLabels[models.KeyIndex(l)] {
				return Rule{}, fmt.Errorf("%w: unknown key label %q", shared.ErrInvalidInput, l)
			}
		}
	}
	return r, nil
}

// MustRule is like [NewRule] but panics on error. Intended for literals in tests and defaults.
func MustRule(d Dimension, o Order, filter Filter) Rule {
	r, err := NewRule(d, o, filter)
	if err != nil {
		panic(err)
	}
	return r
}
