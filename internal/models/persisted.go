package models

import (
	"fmt"
	"time"
)

// PersistedPlaylist is a cached copy of a service playlist.
type PersistedPlaylist struct {
	record
	service   string
	serviceID string
	playlist  Playlist
}

// NewPersistedPlaylist wraps a [Playlist] fetched from service for storage.
func NewPersistedPlaylist(sequence int, service, serviceID string, p Playlist) *PersistedPlaylist {
	return &PersistedPlaylist{record: newRecord(sequence), service: service, serviceID: serviceID, playlist: p}
}

func (p *PersistedPlaylist) Service() string    { return p.service }
func (p *PersistedPlaylist) ServiceID() string  { return p.serviceID }
func (p *PersistedPlaylist) Playlist() Playlist { return p.playlist }

// SetPlaylist replaces the cached metadata.
func (p *PersistedPlaylist) SetPlaylist(pl Playlist) { p.playlist = pl }

func (p *PersistedPlaylist) Validate() error {
	switch {
	case p.service == "":
		return fmt.Errorf("service is required")
	case p.serviceID == "":
		return fmt.Errorf("service_id is required")
	case p.playlist.Name == "":
		return fmt.Errorf("name is required")
	}
	return nil
}

// PersistedTrack is a cached [Track] keyed by (service, service_id).
type PersistedTrack struct {
	record
	service   string
	serviceID string
	track     Track
}

// NewPersistedTrack wraps a [Track] fetched from service for storage.
func NewPersistedTrack(sequence int, service, serviceID string, t Track) *PersistedTrack {
	return &PersistedTrack{record: newRecord(sequence), service: service, serviceID: serviceID, track: t}
}

func (t *PersistedTrack) Service() string   { return t.service }
func (t *PersistedTrack) ServiceID() string { return t.serviceID }
func (t *PersistedTrack) Track() Track      { return t.track }

// SetTrack replaces the cached track data.
func (t *PersistedTrack) SetTrack(tr Track) { t.track = tr }

func (t *PersistedTrack) Validate() error {
	switch {
	case t.service == "":
		return fmt.Errorf("service is required")
	case t.serviceID == "":
		return fmt.Errorf("service_id is required")
	case t.track.URI == "":
		return fmt.Errorf("uri is required")
	case t.track.DurationMs < 0:
		return fmt.Errorf("duration must not be negative")
	}
	return nil
}

// ArrangementStatus is the lifecycle state of a publish.
type ArrangementStatus string

const (
	ArrangementPending   ArrangementStatus = "pending"
	ArrangementPublished ArrangementStatus = "published"
	ArrangementFailed    ArrangementStatus = "failed"
)

// Arrangement records one publish of an allocation as a new playlist.
type Arrangement struct {
	record
	sourcePlaylistID string
	targetPlaylistID string
	name             string
	description      string
	public           bool
	tracksTotal      int
	blocksTotal      int
	plan             string
	status           ArrangementStatus
	errorMessage     string
	completedAt      *time.Time
}

// NewArrangement starts a pending arrangement. plan is the serialized block plan.
func NewArrangement(sequence int, sourcePlaylistID, name, description string, public bool, tracksTotal, blocksTotal int, plan string) *Arrangement {
	return &Arrangement{
		record:           newRecord(sequence),
		sourcePlaylistID: sourcePlaylistID,
		name:             name,
		description:      description,
		public:           public,
		tracksTotal:      tracksTotal,
		blocksTotal:      blocksTotal,
		plan:             plan,
		status:           ArrangementPending,
	}
}

func (a *Arrangement) SourcePlaylistID() string      { return a.sourcePlaylistID }
func (a *Arrangement) TargetPlaylistID() string      { return a.targetPlaylistID }
func (a *Arrangement) Name() string                  { return a.name }
func (a *Arrangement) Description() string           { return a.description }
func (a *Arrangement) Public() bool                  { return a.public }
func (a *Arrangement) TracksTotal() int              { return a.tracksTotal }
func (a *Arrangement) BlocksTotal() int              { return a.blocksTotal }
func (a *Arrangement) Plan() string                  { return a.plan }
func (a *Arrangement) Status() ArrangementStatus     { return a.status }
func (a *Arrangement) ErrorMessage() string          { return a.errorMessage }
func (a *Arrangement) CompletedAt() *time.Time       { return a.completedAt }
func (a *Arrangement) SetTargetPlaylistID(id string) { a.targetPlaylistID = id }
func (a *Arrangement) SetCompletedAt(t *time.Time)   { a.completedAt = t }

// SetStatus moves the arrangement to status, recording msg for failures.
func (a *Arrangement) SetStatus(status ArrangementStatus, msg string) {
	a.status = status
	a.errorMessage = msg
}

// MarkPublished completes the arrangement with the created playlist's ID.
func (a *Arrangement) MarkPublished(targetPlaylistID string) {
	now := time.Now()
	a.targetPlaylistID = targetPlaylistID
	a.status = ArrangementPublished
	a.errorMessage = ""
	a.completedAt = &now
}

// MarkFailed completes the arrangement with err.
func (a *Arrangement) MarkFailed(err error) {
	now := time.Now()
	a.status = ArrangementFailed
	if err != nil {
		a.errorMessage = err.Error()
	}
	a.completedAt = &now
}

func (a *Arrangement) Validate() error {
	switch {
	case a.sourcePlaylistID == "":
		return fmt.Errorf("source_playlist_id is required")
	case a.name == "":
		return fmt.Errorf("name is required")
	case a.tracksTotal < 0:
		return fmt.Errorf("tracks_total must not be negative")
	}

	switch a.status {
	case ArrangementPending, ArrangementPublished, ArrangementFailed:
	default:
		return fmt.Errorf("invalid status: %q", a.status)
	}

	if a.status == ArrangementPublished && a.targetPlaylistID == "" {
		return fmt.Errorf("published arrangements need a target_playlist_id")
	}
	return nil
}
