package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/desertthunder/blockify/internal/repositories"
	"github.com/desertthunder/blockify/internal/server"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web API until interrupted.
//
// Every browser session authorizes separately, so the CLI's own token is not used.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	svc, ok := r.spotify.(*services.SpotifyService)
	if !ok {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set to serve the web API", shared.ErrMissingCredentials)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	addr := r.config.Server.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	logger := shared.WithLogger(r.logger, "component", "web")
	api := web.New(web.SpotifyConnector(svc),
		web.WithSessionStore(web.NewSessionStore(cmd.Duration("session-ttl"))),
		web.WithCache(repositories.NewCatalogCache(db, services.ServiceKey)),
		web.WithGenreStore(repositories.NewGenreRepository(db, genreTTL)),
		web.WithRecorder(repositories.NewArrangementRepository(db)),
		web.WithCallbackPath(server.CallbackPath(r.config.Credentials.Spotify.RedirectURI)),
		web.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.writePlain("→ Serving blockify on http://%s (login at /login)\n", addr)
	if err := api.ListenAndServe(ctx, addr); err != nil {
		return err
	}

	r.logger.Info("web api stopped")
	return nil
}

// serveCommand runs the web JSON API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to [server] host and port)",
			},
			&cli.DurationFlag{
				Name:  "session-ttl",
				Usage: "How long an idle browser session is kept",
				Value: web.DefaultSessionTTL,
			},
		},
		Action: r.Serve,
	}
}
