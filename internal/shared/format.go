package shared

import (
	"fmt"
	"math"
	"strconv"
)

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past the hour.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatMinutes renders a minute count with at most one decimal place.
func FormatMinutes(m float64) string {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return "0"
	}
	return strconv.FormatFloat(math.Round(m*10)/10, 'f', -1, 64)
}

// VisibilityString returns "public" or "private".
func VisibilityString(public bool) string {
	if public {
		return "public"
	}
	return "private"
}
