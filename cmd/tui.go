package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI that applies a plan to a playlist picked from the library.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	plan, specs, err := loadPlan(cmd.String("plan"))
	if err != nil {
		return err
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(r.config.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	fileLogger.SetLevel(r.config.Logging.LogLevel())
	r.SetLogger(fileLogger)

	engine, err := r.arrangeEngine()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.spotify, engine, ui.Arrangement{
		Specs:  specs,
		Name:   firstNonEmpty(cmd.String("name"), plan.Name),
		Public: cmd.Bool("public") || plan.Public,
		Plan:   plan.JSON(),
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	return nil
}

// tuiCommand returns the top-level TUI command for interactive arranging.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI to arrange and publish a playlist",
		Flags: []cli.Flag{
			planFlag(),
			&cli.StringFlag{
				Name:  "name",
				Usage: "Name of the new playlist",
			},
			&cli.BoolFlag{
				Name:  "public",
				Usage: "Make the new playlist public",
			},
		},
		Action: r.TUI,
	}
}
