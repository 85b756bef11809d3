// package tasks implements the arrange workflow: fetch a catalog, allocate it into blocks and publish the result.
//
// The core abstraction is Engine, which orchestrates catalog fetches, previews, and publishes.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/blockify/internal/blocks"
	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/services"
	"github.com/desertthunder/blockify/internal/shared"
)

// Cacher persists fetched catalogs for offline previews.
type Cacher interface {
	SaveCatalog(export *models.PlaylistExport) error
	LoadCatalog(playlistID string) (*models.PlaylistExport, error)
}

// GenreStore caches artist genres between runs. Any error from Get is treated as a miss.
type GenreStore interface {
	Get(artistID string) ([]string, error)
	Put(artistID string, genres []string) error
}

// Recorder keeps the arrangement history.
type Recorder interface {
	Create(a *models.Arrangement) error
	Update(a *models.Arrangement) error
}

// Engine defines the arrange workflow.
type Engine interface {
	// Fetch exports a playlist by ID or name and enriches each track with its primary artist's genre.
	Fetch(ctx context.Context, idOrName string, progress chan<- ProgressUpdate) (*models.PlaylistExport, error)

	// FetchCached loads a previously fetched catalog from the local cache.
	FetchCached(playlistID string) (*models.PlaylistExport, error)

	// Preview allocates a catalog into blocks and builds the playlist description.
	Preview(export *models.PlaylistExport, specs []blocks.Spec) *PreviewResult

	// Publish creates a new playlist from an ordered list of track URIs.
	Publish(ctx context.Context, req PublishRequest, progress chan<- ProgressUpdate) (*PublishResult, error)
}

// PreviewResult is one allocator run over a catalog.
type PreviewResult struct {
	Playlist    models.Playlist
	Allocation  blocks.Allocation
	Description string
	TotalTracks int
}

// AssignedMinutes sums the minutes of every block.
func (r *PreviewResult) AssignedMinutes() float64 {
	var total float64
	for _, b := range r.Allocation.Blocks {
		total += b.Minutes
	}
	return total
}

// PublishRequest describes a playlist to create from an allocation.
type PublishRequest struct {
	SourcePlaylistID string
	Name             string
	Public           bool
	URIs             []string
	Specs            []blocks.Spec
	// Plan is the serialized block plan stored with the arrangement history.
	Plan string
}

// PublishResult is the outcome of a successful [Engine.Publish].
type PublishResult struct {
	Playlist    *models.Playlist
	Description string
	Arrangement *models.Arrangement
}

// ArrangeEngine implements [Engine] on top of a [services.Service].
type ArrangeEngine struct {
	service services.Service
	cache   Cacher
	genres  GenreStore
	history Recorder
	logger  *log.Logger
}

// Option configures an [ArrangeEngine].
type Option func(*ArrangeEngine)

// WithCache stores every fetched catalog and enables [ArrangeEngine.FetchCached].
func WithCache(c Cacher) Option { return func(e *ArrangeEngine) { e.cache = c } }

// WithGenreStore reads artist genres through store before asking the service.
func WithGenreStore(store GenreStore) Option { return func(e *ArrangeEngine) { e.genres = store } }

// WithRecorder records every publish attempt.
func WithRecorder(r Recorder) Option { return func(e *ArrangeEngine) { e.history = r } }

// WithLogger sets the logger for non-fatal cache and history failures.
func WithLogger(l *log.Logger) Option { return func(e *ArrangeEngine) { e.logger = l } }

// NewArrangeEngine creates a new ArrangeEngine with the provided service.
func NewArrangeEngine(service services.Service, opts ...Option) *ArrangeEngine {
	e := &ArrangeEngine{service: service}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
		e.logger.SetLevel(log.FatalLevel)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ArrangeEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Fetch exports a playlist and resolves each track's genre.
//
// idOrName is tried as an ID first. If the service does not recognise it as a playlist ID, it is matched against
// the user's playlist names: an exact match wins, otherwise the closest name scoring at least
// [shared.MatchThreshold]. Any other export failure is returned unchanged.
func (e *ArrangeEngine) Fetch(ctx context.Context, idOrName string, progress chan<- ProgressUpdate) (*models.PlaylistExport, error) {
	catalog, err := e.fetch(ctx, idOrName, progress)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SaveCatalog(catalog); err != nil {
			e.logger.Warn("failed to cache catalog", "playlist", catalog.Playlist.ID, "error", err)
		}
	}

	return catalog, nil
}

func (e *ArrangeEngine) fetch(ctx context.Context, idOrName string, progress chan<- ProgressUpdate) (*models.PlaylistExport, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if strings.TrimSpace(idOrName) == "" {
		return nil, fmt.Errorf("%w: playlist ID or name", shared.ErrMissingArgument)
	}

	e.sendProgress(progress, fetchingSourceUpdate(idOrName))

	export, err := e.service.ExportPlaylist(ctx, idOrName)
	if err != nil {
		if fatal(ctx, err) || !unknownID(err) {
			return nil, err
		}

		e.sendProgress(progress, resolvingNameUpdate(idOrName))
		id, rerr := e.resolve(ctx, idOrName)
		if rerr != nil {
			return nil, rerr
		}

		if export, err = e.service.ExportPlaylist(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to export playlist: %w", err)
		}
	}

	e.sendProgress(progress, featuresUpdate(export))

	tracks, err := e.enrichGenres(ctx, export.Tracks, progress)
	if err != nil {
		return nil, err
	}

	return &models.PlaylistExport{Playlist: export.Playlist, Tracks: tracks}, nil
}

// FetchCached loads a catalog saved by an earlier [ArrangeEngine.Fetch].
func (e *ArrangeEngine) FetchCached(playlistID string) (*models.PlaylistExport, error) {
	if e.cache == nil {
		return nil, fmt.Errorf("%w: no cache configured", shared.ErrNotCached)
	}
	return e.cache.LoadCatalog(playlistID)
}

// Preview runs the allocator. It performs no I/O.
func (e *ArrangeEngine) Preview(export *models.PlaylistExport, specs []blocks.Spec) *PreviewResult {
	result := &PreviewResult{Description: blocks.TruncateDescription(blocks.Describe(specs))}
	if export == nil {
		return result
	}

	result.Playlist = export.Playlist
	result.TotalTracks = len(export.Tracks)
	result.Allocation = blocks.Allocate(export.Tracks, specs)
	return result
}

// PreviewWithProgress runs [ArrangeEngine.Preview] and reports the allocation on progress.
func (e *ArrangeEngine) PreviewWithProgress(export *models.PlaylistExport, specs []blocks.Spec, progress chan<- ProgressUpdate) *PreviewResult {
	result := e.Preview(export, specs)
	e.sendProgress(progress, allocateUpdate(len(result.Allocation.Blocks), result.Allocation.Len(), result.TotalTracks))
	return result
}

// Publish validates req, then creates the playlist with a truncated block description and appends the URIs in order.
//
// Requests with no URIs, no blocks or a blank name fail with [shared.ErrInvalidRequest] before any remote call.
// When a [Recorder] is configured the attempt is stored as pending and then marked published or failed;
// history failures are logged and never fail the publish.
func (e *ArrangeEngine) Publish(ctx context.Context, req PublishRequest, progress chan<- ProgressUpdate) (*PublishResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.service == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	name := strings.TrimSpace(req.Name)
	description := blocks.TruncateDescription(blocks.Describe(req.Specs))

	tracks := make([]models.Track, 0, len(req.URIs))
	for _, uri := range req.URIs {
		tracks = append(tracks, models.Track{URI: uri})
	}

	export := &models.PlaylistExport{
		Playlist: models.Playlist{Name: name, Description: description, Public: req.Public},
		Tracks:   tracks,
	}

	arrangement := e.record(req, name, description)

	e.sendProgress(progress, creatingPlaylistUpdate(name))
	e.sendProgress(progress, addTracksUpdate(len(tracks)))

	playlist, err := e.service.ImportPlaylist(ctx, export)
	if err != nil {
		if arrangement != nil {
			arrangement.MarkFailed(err)
			e.saveRecord(arrangement)
		}
		return nil, fmt.Errorf("failed to publish playlist: %w", err)
	}

	if arrangement != nil {
		arrangement.MarkPublished(playlist.ID)
		e.saveRecord(arrangement)
	}

	e.sendProgress(progress, createdPlaylistUpdate(playlist))
	return &PublishResult{Playlist: playlist, Description: description, Arrangement: arrangement}, nil
}

// Validate reports the first missing field as [shared.ErrInvalidRequest].
func (r PublishRequest) Validate() error {
	switch {
	case len(r.URIs) == 0:
		return fmt.Errorf("%w: no tracks to publish", shared.ErrInvalidRequest)
	case len(r.Specs) == 0:
		return fmt.Errorf("%w: no blocks configured", shared.ErrInvalidRequest)
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidRequest)
	}
	return nil
}

func (e *ArrangeEngine) record(req PublishRequest, name, description string) *models.Arrangement {
	if e.history == nil {
		return nil
	}

	source := req.SourcePlaylistID
	if source == "" {
		source = "unknown"
	}

	named := 0
	for _, s := range req.Specs {
		if s.Name != "" {
			named++
		}
	}

	a := models.NewArrangement(0, source, name, description, req.Public, len(req.URIs), named, req.Plan)
	if err := e.history.Create(a); err != nil {
		e.logger.Warn("failed to record arrangement", "name", name, "error", err)
		return nil
	}
	return a
}

func (e *ArrangeEngine) saveRecord(a *models.Arrangement) {
	if err := e.history.Update(a); err != nil {
		e.logger.Warn("failed to update arrangement", "id", a.ID(), "status", a.Status(), "error", err)
	}
}

func (e *ArrangeEngine) resolve(ctx context.Context, name string) (string, error) {
	playlists, err := e.service.GetPlaylists(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get playlists: %w", err)
	}

	names := make([]string, len(playlists))
	for i, pl := range playlists {
		names[i] = pl.Name
	}

	idx := shared.BestMatch(name, names)
	if idx < 0 {
		return "", fmt.Errorf("%w: no playlist found with name '%s'", shared.ErrPlaylistNotFound, name)
	}

	e.logger.Debug("resolved playlist by name", "query", name, "match", playlists[idx].Name, "id", playlists[idx].ID)
	return playlists[idx].ID, nil
}

// enrichGenres sets each track's genre to the first genre of its first artist, looking each artist up once.
// Lookup failures other than authorization leave the track's genre unknown.
func (e *ArrangeEngine) enrichGenres(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) ([]models.Track, error) {
	var artists []string
	seen := make(map[string]bool)
	for _, t := range tracks {
		if id := t.FirstArtistID(); id != "" && !seen[id] {
			seen[id] = true
			artists = append(artists, id)
		}
	}

	primary := make(map[string]string, len(artists))
	for i, id := range artists {
		e.sendProgress(progress, genreUpdate(i+1, len(artists), id))

		genres, err := e.artistGenres(ctx, id)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			e.logger.Warn("failed to fetch artist genres", "artist", id, "error", err)
			continue
		}
		if len(genres) > 0 && genres[0] != services.UnknownArtistGenre {
			primary[id] = genres[0]
		}
	}

	out := make([]models.Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.WithGenre(primary[t.FirstArtistID()])
	}
	return out, nil
}

func (e *ArrangeEngine) artistGenres(ctx context.Context, artistID string) ([]string, error) {
	if e.genres != nil {
		if genres, err := e.genres.Get(artistID); err == nil {
			return genres, nil
		}
	}

	genres, err := e.service.ArtistGenres(ctx, artistID)
	if err != nil {
		return nil, err
	}

	if e.genres != nil {
		if err := e.genres.Put(artistID, genres); err != nil {
			e.logger.Warn("failed to cache artist genres", "artist", artistID, "error", err)
		}
	}
	return genres, nil
}

// fatal reports errors that must abort the workflow instead of degrading it.
// unknownID reports whether an export failed because the argument is not a playlist ID, in which case it may be a name.
// Spotify answers 404 for unknown IDs and 400 for strings that are not IDs at all.
func unknownID(err error) bool {
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		return true
	}
	ue, ok := shared.AsUpstream(err)
	return ok && ue.Status == http.StatusBadRequest
}

func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, shared.ErrAuthRequired) || ctx.Err() != nil
}
