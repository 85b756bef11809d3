package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/desertthunder/blockify/internal/blocks"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// Preview is the serializable view of one allocation, shared by the CLI and the web API.
type Preview struct {
	Playlist    models.Playlist `json:"playlist"`
	Description string          `json:"description"`
	TotalTracks int             `json:"totalTracks"`
	Assigned    int             `json:"assignedTracks"`
	Unassigned  int             `json:"unassignedTracks"`
	Blocks      []PreviewBlock  `json:"blocks"`
}

// PreviewBlock is one allocated block.
type PreviewBlock struct {
	Position        int            `json:"position"`
	Name            string         `json:"name"`
	DurationMinutes blocks.Minutes `json:"durationMinutes"`
	Minutes         float64        `json:"minutes"`
	Rules           []string       `json:"rules"`
	Tracks          []models.Track `json:"tracks"`
}

// NewPreview builds the view of alloc over a catalog of totalTracks tracks.
func NewPreview(playlist models.Playlist, alloc blocks.Allocation, description string, totalTracks int) Preview {
	p := Preview{
		Playlist:    playlist,
		Description: description,
		TotalTracks: totalTracks,
		Assigned:    alloc.Len(),
		Unassigned:  len(alloc.Unassigned),
		Blocks:      make([]PreviewBlock, 0, len(alloc.Blocks)),
	}

	for _, b := range alloc.Blocks {
		rules := make([]string, 0, len(b.Spec.Rules))
		for _, r := range b.Spec.Rules {
			rules = append(rules, fmt.Sprintf("%s(%s)", r.Dimension, r.Order))
		}
		tracks := b.Tracks
		if tracks == nil {
			tracks = []models.Track{}
		}
		p.Blocks = append(p.Blocks, PreviewBlock{
			Position:        b.Position,
			Name:            b.Spec.Name,
			DurationMinutes: blocks.Minutes(b.Spec.DurationMinutes),
			Minutes:         b.Minutes,
			Rules:           rules,
			Tracks:          tracks,
		})
	}
	return p
}

// PreviewToText renders the allocation grouped by block with per-block totals
func PreviewToText(p Preview) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", p.Playlist.Name)
	fmt.Fprintf(&buf, "Description: %s\n", p.Description)
	fmt.Fprintf(&buf, "Allocated: %d of %d tracks\n", p.Assigned, p.TotalTracks)

	for _, b := range p.Blocks {
		fmt.Fprintf(&buf, "\n[B%d] %s  %s / %s min, %d tracks\n",
			b.Position, b.Name, shared.FormatMinutes(b.Minutes), shared.FormatMinutes(float64(b.DurationMinutes)), len(b.Tracks))
		for i, t := range b.Tracks {
			fmt.Fprintf(&buf, "  %d. %s\n", i+1, trackLine(t))
		}
	}

	if p.Unassigned > 0 {
		fmt.Fprintf(&buf, "\n%d tracks left unassigned\n", p.Unassigned)
	}

	return buf.Bytes()
}

// PreviewToCSV renders one row per allocated track, prefixed with its block
func PreviewToCSV(p Preview) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := append([]string{"Block", "Block Name", "Order"}, trackHeaders...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, b := range p.Blocks {
		for i, t := range b.Tracks {
			record := append([]string{strconv.Itoa(b.Position), b.Name, strconv.Itoa(i + 1)}, trackRecord(t)...)
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// PreviewToMarkdown renders one section per block with a track table
func PreviewToMarkdown(p Preview) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", p.Playlist.Name)
	fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
	fmt.Fprintf(&buf, "**Allocated**: %d of %d tracks\n\n", p.Assigned, p.TotalTracks)

	for _, b := range p.Blocks {
		fmt.Fprintf(&buf, "## B%d: %s\n\n", b.Position, b.Name)
		fmt.Fprintf(&buf, "%s of %s minutes", shared.FormatMinutes(b.Minutes), shared.FormatMinutes(float64(b.DurationMinutes)))
		if len(b.Rules) > 0 {
			fmt.Fprintf(&buf, ", rules: %s", joinRules(b.Rules))
		}
		buf.WriteString("\n\n")
		writeTrackTable(&buf, b.Tracks)
	}

	return buf.Bytes()
}

// RenderPreview renders p in format.
func RenderPreview(p Preview, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return PreviewToCSV(p)
	case FormatMarkdown:
		return PreviewToMarkdown(p), nil
	case FormatJSON:
		return shared.MarshalJSON(p, true)
	default:
		return PreviewToText(p), nil
	}
}

func joinRules(rules []string) string {
	var buf bytes.Buffer
	for i, r := range rules {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("`" + r + "`")
	}
	return buf.String()
}
