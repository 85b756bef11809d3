package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/blockify/internal/repositories"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// CachePlaylist fetches one or more playlists with their audio features and genres and stores them in the
// database so they can be previewed with --offline.
//
// With --all every playlist in the library is cached. Playlists are fetched concurrently; one failure does
// not stop the others.
func (r *Runner) CachePlaylist(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("id")

	if err := r.requireSpotify(); err != nil {
		return err
	}

	if cmd.Bool("all") {
		err := r.withReauth(ctx, func() error {
			playlists, err := r.spotify.GetPlaylists(ctx)
			if err != nil {
				return err
			}
			for _, p := range playlists {
				ids = append(ids, p.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if len(ids) == 0 {
		return fmt.Errorf("%w: --id or --all is required", shared.ErrMissingArgument)
	}

	engine, err := r.arrangeEngine()
	if err != nil {
		return err
	}

	r.logger.Info("caching playlists", "count", len(ids), "workers", cmd.Int("workers"))

	progress := make(chan tasks.ProgressUpdate, len(ids)*2)
	wait := r.printProgress(progress)

	var result *tasks.CacheResult
	err = r.withReauth(ctx, func() error {
		var err error
		result, err = engine.CacheMany(ctx, ids, tasks.CacheOpts{
			NumWorkers: cmd.Int("workers"),
			RateLimit:  cmd.Float("rate"),
		}, progress)
		return err
	})
	close(progress)
	wait()

	if err != nil && result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Cache Complete")
	r.writePlain("Cached: %d/%d playlists\n", result.Succeeded, result.Total)

	if result.Failed > 0 {
		r.writePlain("\nFailed to cache %d playlists:\n", result.Failed)
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  - %s: %v\n", res.PlaylistID, res.Error)
			}
		}
	}
	return err
}

// CacheList lists the playlists stored in the local cache.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	playlists, err := repositories.NewCatalogCache(db, services.ServiceKey).Playlists()
	if err != nil {
		return fmt.Errorf("failed to list cached playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	if len(playlists) == 0 {
		r.writePlain("No cached playlists.\n")
		return nil
	}

	r.writePlain("Found %d cached playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
	}
	return nil
}

// CacheRemove forgets cached playlists and the tracks only they held.
func (r *Runner) CacheRemove(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("id")
	if len(ids) == 0 {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	cache := repositories.NewCatalogCache(db, services.ServiceKey)
	for _, id := range ids {
		n, err := cache.Forget(id)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", id, err)
		}
		r.logger.Info("removed cached playlist", "playlist", id, "tracks", n)
		r.writePlain("✓ Removed %s (%d tracks no longer cached)\n", id, n)
	}
	return nil
}

// CachePurgeGenres drops cached artist genres older than --older-than.
func (r *Runner) CachePurgeGenres(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age < 0 {
		return fmt.Errorf("%w: --older-than must not be negative", shared.ErrInvalidFlag)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	n, err := repositories.NewGenreRepository(db, genreTTL).Purge(time.Now().Add(-age))
	if err != nil {
		return fmt.Errorf("failed to purge genres: %w", err)
	}

	r.logger.Info("purged artist genres", "count", n, "older_than", age)
	r.writePlain("✓ Removed %d cached artist genres\n", n)
	return nil
}

// cacheCommand handles opt-in playlist caching
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Cache playlists and artist genres locally",
		Commands: []*cli.Command{
			{
				Name:  "playlist",
				Usage: "Cache Spotify playlists for offline previews",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Playlist ID or name to cache (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Cache every playlist in the library",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of playlists fetched concurrently",
						Value: 3,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Playlists started per second",
						Value: 2,
					},
				},
				Action: r.CachePlaylist,
			},
			{
				Name:  "remove",
				Usage: "Remove cached playlists",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Cached playlist ID to remove (repeatable)",
					},
				},
				Action: r.CacheRemove,
			},
			{
				Name:  "list",
				Usage: "List cached playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "purge-genres",
				Usage: "Remove cached artist genres",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only remove entries fetched longer ago than this",
						Value: genreTTL,
					},
				},
				Action: r.CachePurgeGenres,
			},
		},
	}
}
