package blocks

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxDescriptionLength is the longest playlist description the service accepts.
const MaxDescriptionLength = 300

const ellipsis = "..."

// Describe summarizes specs as "B<pos>(<hours>h): <dimension>(<order>), ..." joined by ". ".
//
// Positions count every spec passed in, named or not.
func Describe(specs []Spec) string {
	parts := make([]string, 0, len(specs))
	for i, s := range specs {
		dims := make([]string, 0, len(s.Rules))
		for _, r := range s.Rules {
			dims = append(dims, fmt.Sprintf("%s(%s)", r.Dimension, r.Order))
		}
		parts = append(parts, fmt.Sprintf("B%d(%sh): %s", i+1, hours(s.DurationMinutes), strings.Join(dims, ", ")))
	}
	return strings.Join(parts, ". ")
}

// TruncateDescription limits s to [MaxDescriptionLength] characters, replacing the tail with "...".
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLength {
		return s
	}
	return string(runes[:MaxDescriptionLength-len(ellipsis)]) + ellipsis
}

func hours(minutes float64) string {
	if !(minutes > 0) {
		return "0"
	}
	return strconv.FormatFloat(math.Round(minutes/60*100)/100, 'f', -1, 64)
}
