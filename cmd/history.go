package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/repositories"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/urfave/cli/v3"
)

// arrangementView is the JSON shape of a recorded arrangement.
type arrangementView struct {
	ID               string     `json:"id"`
	SourcePlaylistID string     `json:"sourcePlaylistId"`
	TargetPlaylistID string     `json:"targetPlaylistId,omitempty"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Public           bool       `json:"public"`
	Tracks           int        `json:"tracks"`
	Blocks           int        `json:"blocks"`
	Status           string     `json:"status"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

func newArrangementView(a *models.Arrangement) arrangementView {
	return arrangementView{
		ID:               a.ID(),
		SourcePlaylistID: a.SourcePlaylistID(),
		TargetPlaylistID: a.TargetPlaylistID(),
		Name:             a.Name(),
		Description:      a.Description(),
		Public:           a.Public(),
		Tracks:           a.TracksTotal(),
		Blocks:           a.BlocksTotal(),
		Status:           string(a.Status()),
		Error:            a.ErrorMessage(),
		CreatedAt:        a.CreatedAt(),
		CompletedAt:      a.CompletedAt(),
	}
}

// HistoryList lists recorded arrangements, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if status := cmd.String("status"); status != "" {
		switch models.ArrangementStatus(status) {
		case models.ArrangementPending, models.ArrangementPublished, models.ArrangementFailed:
			criteria["status"] = models.ArrangementStatus(status)
		default:
			return fmt.Errorf("%w: unknown status %q (pending, published, failed)", shared.ErrInvalidFlag, status)
		}
	}
	if source := cmd.String("source"); source != "" {
		criteria["source_playlist_id"] = source
	}

	arrangements, err := repositories.NewArrangementRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]arrangementView, 0, len(arrangements))
		for _, a := range arrangements {
			views = append(views, newArrangementView(a))
		}
		return r.writeJSON(views, true)
	}

	if len(arrangements) == 0 {
		r.writePlain("No arrangements recorded.\n")
		return nil
	}

	for i, a := range arrangements {
		r.writePlain("%d. %s [%s]\n", i+1, a.Name(), a.Status())
		r.writePlain("   Created: %s\n", a.CreatedAt().Local().Format(time.DateTime))
		r.writePlain("   Source: %s\n", a.SourcePlaylistID())
		if a.TargetPlaylistID() != "" {
			r.writePlain("   Playlist: %s\n", a.TargetPlaylistID())
		}
		r.writePlain("   Tracks: %d in %d blocks (%s)\n", a.TracksTotal(), a.BlocksTotal(), shared.VisibilityString(a.Public()))
		if a.ErrorMessage() != "" {
			r.writePlain("   Error: %s\n", a.ErrorMessage())
		}
		r.writePlain("\n")
	}
	return nil
}

// HistoryShow prints one arrangement with the plan it was published from.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	a, err := repositories.NewArrangementRepository(db).Get(cmd.String("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			arrangementView
			Plan string `json:"plan"`
		}{newArrangementView(a), a.Plan()}, true)
	}

	r.writePlainHeader(a.Name())
	r.writePlain("ID: %s\n", a.ID())
	r.writePlain("Status: %s\n", a.Status())
	r.writePlain("Description: %s\n", a.Description())
	r.writePlain("Plan: %s\n", a.Plan())
	return nil
}

// HistoryDelete removes an arrangement from the history. The published playlist is left alone.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	id := cmd.String("id")
	if err := repositories.NewArrangementRepository(db).Delete(id); err != nil {
		return err
	}

	r.writePlain("✓ Deleted arrangement %s\n", id)
	return nil
}

// historyCommand handles the record of published arrangements
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show published arrangements",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List arrangements, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of arrangements to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show arrangements with this status (pending, published, failed)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only show arrangements of this source playlist ID",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one arrangement with its plan",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Arrangement ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Delete one arrangement from the history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Arrangement ID",
						Required: true,
					},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}
