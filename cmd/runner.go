package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blockify/internal/repositories"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/shared"
	"github.com/desertthunder/blockify/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// genreTTL is how long a cached artist genre list is trusted.
const genreTTL = 30 * 24 * time.Hour

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	mu         sync.Mutex
	config     *shared.Config
	configPath string
	spotify    services.Service
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	ownsDB     bool
	engine     *tasks.ArrangeEngine

	// authorize runs the interactive OAuth flow. Replaced in tests.
	authorize func(ctx context.Context, srv services.OAuthService) (*oauth2.Token, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.Service
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
	r.authorize = r.doOAuth

	if opts.Spotify != nil {
		r.setSpotify(opts.Spotify)
	}
	return r
}

// Load reads the file named by --config, applies .env overrides and connects to Spotify
// when client credentials are present. Commands that need Spotify report its absence themselves.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return ctx, err
		}
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	if err := shared.ApplyEnv(config, ".env"); err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	shared.SetLogLevel(r.logger, config.Logging.LogLevel())

	if r.spotify == nil {
		if err := r.connect(ctx); err != nil {
			r.logger.Debug("spotify unavailable", "error", err)
		}
	}
	return ctx, nil
}

// Close releases the database if the runner opened it.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.engine = nil
	return err
}

// SetLogger replaces the logger, dropping any engine built with the old one.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.engine = nil
}

// connect builds the Spotify service from the loaded config and binds the stored token, if any.
func (r *Runner) connect(ctx context.Context) error {
	creds := r.config.Credentials.Spotify
	svc, err := services.NewSpotifyService(
		map[string]string{
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"redirect_uri":  creds.RedirectURI,
		},
		services.WithBaseURL(r.config.Spotify.BaseURL),
		services.WithRateLimit(r.config.Spotify.RequestsPerSecond, r.config.Spotify.Burst),
		services.WithLogger(shared.WithLogger(r.logger, "service", services.ServiceKey)),
	)
	if err != nil {
		return err
	}

	if creds.Token() != nil {
		if err := svc.Authenticate(ctx, creds.Map()); err != nil {
			return err
		}
	}

	r.setSpotify(svc)
	return nil
}

func (r *Runner) setSpotify(svc services.Service) {
	r.spotify = svc
	r.engine = nil
	if o, ok := svc.(services.OAuthService); ok {
		o.SetTokenRefreshCallback(r.onTokenRefresh)
	}
}

func (r *Runner) onTokenRefresh(token *oauth2.Token) {
	if err := r.saveTokens(token); err != nil {
		r.logger.Warn("failed to persist refreshed token", "error", err)
		return
	}
	r.logger.Debug("persisted refreshed token")
}

// saveTokens stores token in the config and writes the config to disk when it has a path.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if token == nil {
		return fmt.Errorf("failed to update spotify configuration: %w: token cannot be nil", shared.ErrInvalidInput)
	}

	r.config.Credentials.Spotify.Update(token)

	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// database opens the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	r.ownsDB = true
	return db, nil
}

// arrangeEngine builds the engine over the Spotify service with the sqlite catalog cache,
// genre cache and arrangement history. The service may be nil for offline commands.
func (r *Runner) arrangeEngine() (*tasks.ArrangeEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	r.engine = tasks.NewArrangeEngine(r.spotify,
		tasks.WithCache(repositories.NewCatalogCache(db, services.ServiceKey)),
		tasks.WithGenreStore(repositories.NewGenreRepository(db, genreTTL)),
		tasks.WithRecorder(repositories.NewArrangementRepository(db)),
		tasks.WithLogger(r.logger),
	)
	return r.engine, nil
}

func (r *Runner) requireSpotify() error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized (set client_id and client_secret in config.toml)", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, arrangeCommand, cacheCommand, historyCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
