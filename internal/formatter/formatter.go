// package formatter renders catalogs and block allocations as CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// Supported output formats.
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// ParseFormat normalizes a format flag. Empty input selects [FormatText].
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (text, csv, md, json)", shared.ErrInvalidFlag, s)
	}
}

var trackHeaders = []string{
	"ID", "Name", "Artists", "Album", "Duration", "Popularity", "Energy", "Danceability", "Valence", "Tempo", "Key", "Genre", "URI",
}

func trackRecord(t models.Track) []string {
	return []string{
		t.ID,
		t.Name,
		t.ArtistNames(),
		t.Album,
		shared.FormatDuration(t.DurationMs),
		strconv.Itoa(t.Popularity),
		feature(t.Energy),
		feature(t.Danceability),
		feature(t.Valence),
		strconv.FormatFloat(t.Tempo, 'f', 1, 64),
		t.KeyLabel(),
		t.Genre,
		t.URI,
	}
}

func feature(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ExportToCSV converts a PlaylistExport to CSV with one row per track and its audio features
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(trackHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		if err := writer.Write(trackRecord(track)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to a Markdown feature table
func ExportToMarkdown(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Duration**: %s\n", shared.FormatDuration(export.DurationMs()))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", shared.VisibilityString(export.Playlist.Public))

	buf.WriteString("## Tracks\n\n")
	writeTrackTable(&buf, export.Tracks)

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d (%s)\n\n", len(export.Tracks), shared.FormatDuration(export.DurationMs()))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, trackLine(track))
	}

	return buf.Bytes(), nil
}

// ExportCatalog renders export in format.
func ExportCatalog(export *models.PlaylistExport, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatJSON:
		return shared.MarshalJSON(export, true)
	default:
		return ExportToText(export)
	}
}

// WriteFile writes data to path, or to stdout when path is empty or "-".
func WriteFile(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func trackLine(t models.Track) string {
	key := t.KeyLabel()
	if key == "" {
		key = "-"
	}
	return fmt.Sprintf("%s - %s [%s] pop %d, energy %.2f, dance %.2f, mood %.2f, %.0f bpm, key %s, %s",
		t.ArtistNames(), t.Name, shared.FormatDuration(t.DurationMs),
		t.Popularity, t.Energy, t.Danceability, t.Valence, t.Tempo, key, t.Genre)
}

func writeTrackTable(buf *bytes.Buffer, tracks []models.Track) {
	buf.WriteString("| # | Track | Artists | Length | Pop | Energy | Dance | Mood | BPM | Key | Genre |\n")
	buf.WriteString("|---|-------|---------|--------|-----|--------|-------|------|-----|-----|-------|\n")
	for i, t := range tracks {
		fmt.Fprintf(buf, "| %d | %s | %s | %s | %d | %.2f | %.2f | %.2f | %.0f | %s | %s |\n",
			i+1, escapeCell(t.Name), escapeCell(t.ArtistNames()), shared.FormatDuration(t.DurationMs),
			t.Popularity, t.Energy, t.Danceability, t.Valence, t.Tempo, t.KeyLabel(), escapeCell(t.Genre))
	}
	buf.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
