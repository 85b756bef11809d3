package blocks

import (
	"sort"

	"github.com/desertthunder/blockify/internal/models"
)

// Spec describes one block. Specs with an empty Name are skipped.
type Spec struct {
	Name            string
	DurationMinutes float64
	Rules           []Rule
}

// Block is the resolved output for one named [Spec].
type Block struct {
	// Position is the 1-based index of the spec in the list passed to [Allocate].
	Position int
	Spec     Spec
	Tracks   []models.Track
	Minutes  float64
}

// DurationMs sums the lengths of the block's tracks.
func (b Block) DurationMs() int {
	total := 0
	for _, t := range b.Tracks {
		total += t.DurationMs
	}
	return total
}

// Allocation is the disjoint assignment of tracks to blocks from one run of [Allocate].
type Allocation struct {
	Blocks []Block
	// Unassigned holds the tracks no block claimed, in their original order.
	Unassigned []models.Track
}

// Tracks concatenates every block's tracks in block order.
func (a Allocation) Tracks() []models.Track {
	var out []models.Track
	for _, b := range a.Blocks {
		out = append(out, b.Tracks...)
	}
	return out
}

// URIs returns the URIs of [Allocation.Tracks].
func (a Allocation) URIs() []string {
	var uris []string
	for _, b := range a.Blocks {
		for _, t := range b.Tracks {
			uris = append(uris, t.URI)
		}
	}
	return uris
}

// Len counts the allocated tracks.
func (a Allocation) Len() int {
	n := 0
	for _, b := range a.Blocks {
		n += len(b.Tracks)
	}
	return n
}

// Allocate assigns tracks to specs in order.
//
// Each named spec starts from the tracks earlier blocks left unclaimed, in their original relative order,
// runs its rules (filter, then a stable re-sort when the rule is ordered) and then greedily accepts every
// candidate that still fits the remaining budget. Accepted tracks leave the pool before the next spec runs.
//
// Neither tracks nor specs are modified. Tracks are tracked by position, so duplicates are allocated independently.
func Allocate(tracks []models.Track, specs []Spec) Allocation {
	pool := make([]int, len(tracks))
	for i := range pool {
		pool[i] = i
	}

	var alloc Allocation
	for i, spec := range specs {
		if spec.Name == "" {
			continue
		}

		candidates := append([]int(nil), pool...)
		for _, rule := range spec.Rules {
			candidates = rule.apply(tracks, candidates)
		}

		accepted, minutes := fit(tracks, candidates, spec.DurationMinutes)

		block := Block{Position: i + 1, Spec: spec, Minutes: minutes}
		claimed := make(map[int]bool, len(accepted))
		for _, h := range accepted {
			claimed[h] = true
			block.Tracks = append(block.Tracks, tracks[h])
		}
		alloc.Blocks = append(alloc.Blocks, block)

		remaining := pool[:0:0]
		for _, h := range pool {
			if !claimed[h] {
				remaining = append(remaining, h)
			}
		}
		pool = remaining
	}

	for _, h := range pool {
		alloc.Unassigned = append(alloc.Unassigned, tracks[h])
	}
	return alloc
}

// apply filters candidates, then stable-sorts them when the rule is ordered and the dimension sortable.
func (r Rule) apply(tracks []models.Track, candidates []int) []int {
	if r.Filter != nil {
		kept := candidates[:0:0]
		for _, h := range candidates {
			if r.Filter.Keep(tracks[h]) {
				kept = append(kept, h)
			}
		}
		candidates = kept
	}

	if r.Order == Unordered || !r.Dimension.Sortable() {
		return candidates
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := r.Dimension.value(tracks[candidates[i]]), r.Dimension.value(tracks[candidates[j]])
		if r.Order == Descending {
			return a > b
		}
		return a < b
	})
	return candidates
}

// fit scans every candidate and accepts those that keep the running total within budget.
// A budget that is not a positive number accepts nothing.
func fit(tracks []models.Track, candidates []int, budget float64) ([]int, float64) {
	if !(budget > 0) {
		return nil, 0
	}

	var accepted []int
	running := 0.0
	for _, h := range candidates {
		m := tracks[h].Minutes()
		if running+m <= budget {
			running += m
			accepted = append(accepted, h)
		}
	}
	return accepted, running
}
