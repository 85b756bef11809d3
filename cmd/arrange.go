package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/blockify/internal/blocks"
	"github.com/desertthunder/blockify/internal/formatter"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ArrangePreview allocates a playlist into the plan's blocks and renders the result without publishing.
func (r *Runner) ArrangePreview(ctx context.Context, cmd *cli.Command) error {
	_, specs, err := loadPlan(cmd.String("plan"))
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	engine, err := r.arrangeEngine()
	if err != nil {
		return err
	}

	export, err := r.catalog(ctx, engine, cmd.String("playlist"), cmd.Bool("offline"))
	if err != nil {
		return err
	}

	result := engine.Preview(export, specs)
	r.logger.Info("allocated playlist",
		"playlist", result.Playlist.Name, "assigned", result.Allocation.Len(), "total", result.TotalTracks)

	preview := formatter.NewPreview(result.Playlist, result.Allocation, result.Description, result.TotalTracks)
	data, err := formatter.RenderPreview(preview, format)
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" && out != "-" {
		if err := formatter.WriteFile(out, data); err != nil {
			return err
		}
		r.writePlain("✓ Preview written to %s\n", out)
		return nil
	}

	_, err = r.output.Write(data)
	return err
}

// ArrangePublish allocates a playlist and publishes the allocation as a new playlist.
//
// The name comes from --name, then the plan, then "<source> (blocks)". Visibility is public when either
// --public or the plan says so.
func (r *Runner) ArrangePublish(ctx context.Context, cmd *cli.Command) error {
	plan, specs, err := loadPlan(cmd.String("plan"))
	if err != nil {
		return err
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}
	engine, err := r.arrangeEngine()
	if err != nil {
		return err
	}

	export, err := r.catalog(ctx, engine, cmd.String("playlist"), cmd.Bool("offline"))
	if err != nil {
		return err
	}

	name := firstNonEmpty(cmd.String("name"), plan.Name, export.Playlist.Name+" (blocks)")
	public := cmd.Bool("public") || plan.Public

	progress := make(chan tasks.ProgressUpdate, 10)
	wait := r.printProgress(progress)

	preview := engine.PreviewWithProgress(export, specs, progress)
	req := tasks.PublishRequest{
		SourcePlaylistID: export.Playlist.ID,
		Name:             name,
		Public:           public,
		URIs:             preview.Allocation.URIs(),
		Specs:            specs,
		Plan:             plan.JSON(),
	}

	var result *tasks.PublishResult
	err = r.withReauth(ctx, func() error {
		var err error
		result, err = engine.Publish(ctx, req, progress)
		return err
	})
	close(progress)
	wait()

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Playlist Published!")
	r.writePlain("Name: %s\n", result.Playlist.Name)
	r.writePlain("ID: %s\n", result.Playlist.ID)
	r.writePlain("Tracks: %d of %d\n", len(req.URIs), preview.TotalTracks)
	r.writePlain("Visibility: %s\n", shared.VisibilityString(public))
	r.writePlain("Description: %s\n", result.Description)
	return nil
}

// ArrangeDescribe prints the description a plan produces, truncated the way publishing truncates it.
func (r *Runner) ArrangeDescribe(ctx context.Context, cmd *cli.Command) error {
	_, specs, err := loadPlan(cmd.String("plan"))
	if err != nil {
		return err
	}

	full := blocks.Describe(specs)
	description := blocks.TruncateDescription(full)

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"description": description,
			"length":      len([]rune(full)),
			"truncated":   description != full,
		}, true)
	}

	r.writePlain("%s\n", description)
	if description != full {
		r.logger.Warn("description truncated", "length", len([]rune(full)), "max", blocks.MaxDescriptionLength)
	}
	return nil
}

// catalog loads a playlist from the local cache when offline, otherwise from Spotify.
func (r *Runner) catalog(ctx context.Context, engine tasks.Engine, idOrName string, offline bool) (*models.PlaylistExport, error) {
	if strings.TrimSpace(idOrName) == "" {
		return nil, fmt.Errorf("%w: --playlist flag is required", shared.ErrMissingArgument)
	}

	if offline {
		export, err := engine.FetchCached(idOrName)
		if errors.Is(err, shared.ErrNotCached) {
			return nil, fmt.Errorf("%w (run 'blockify cache playlist --id %s' first)", err, idOrName)
		}
		return export, err
	}

	if err := r.requireSpotify(); err != nil {
		return nil, err
	}

	var export *models.PlaylistExport
	err := r.withReauth(ctx, func() error {
		var err error
		export, err = engine.Fetch(ctx, idOrName, nil)
		return err
	})
	return export, err
}

// printProgress writes updates from progress until it is closed. The returned func blocks until the last
// update has been written.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.Allocate:
				r.writePlain("🧮 %s\n", update.Message)
			case tasks.CreatePlaylist:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.AddTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.CachePlaylists:
				r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			default:
				r.writePlain("📥 %s\n", update.Message)
			}
		}
	}()
	return func() { <-done }
}

// loadPlan reads a TOML block plan and builds its specs. A plan needs at least one block.
func loadPlan(path string) (*blocks.Plan, []blocks.Spec, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("%w: --plan flag is required", shared.ErrMissingArgument)
	}

	plan, err := blocks.LoadPlan(path)
	if err != nil {
		return nil, nil, err
	}

	specs, err := plan.Specs()
	if err != nil {
		return nil, nil, err
	}
	if len(specs) == 0 {
		return nil, nil, fmt.Errorf("%w: plan %s has no blocks", shared.ErrInvalidInput, path)
	}
	return plan, specs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// arrangeCommand handles allocating playlists into blocks
func arrangeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "arrange",
		Usage: "Arrange a playlist into timed blocks",
		Commands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "Show how a playlist would be allocated into the plan's blocks",
				Flags: []cli.Flag{
					playlistFlag(),
					planFlag(),
					offlineFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, csv, md, json)",
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.ArrangePreview,
			},
			{
				Name:  "publish",
				Usage: "Allocate a playlist and publish the result as a new Spotify playlist",
				Flags: []cli.Flag{
					playlistFlag(),
					planFlag(),
					offlineFlag(),
					&cli.StringFlag{
						Name:  "name",
						Usage: "Name of the new playlist",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Make the new playlist public",
					},
				},
				Action: r.ArrangePublish,
			},
			{
				Name:  "describe",
				Usage: "Print the playlist description a plan produces",
				Flags: []cli.Flag{
					planFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ArrangeDescribe,
			},
		},
	}
}

func planFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "plan",
		Aliases:  []string{"p"},
		Usage:    "Path to a TOML block plan",
		Required: true,
	}
}

func playlistFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "playlist",
		Usage:    "Source playlist ID or name",
		Required: true,
	}
}

func offlineFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "offline",
		Usage: "Use the locally cached catalog instead of calling Spotify",
	}
}
