package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/blockify/internal/models"
	"github.com/desertthunder/blockify/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testTrack(id string) models.Track {
	return models.Track{
		ID:           id,
		Name:         "Track " + id,
		Artists:      []string{"Artist " + id, "Guest"},
		ArtistIDs:    []string{"artist-" + id, "guest"},
		Album:        "Album",
		DurationMs:   200000,
		URI:          "spotify:track:" + id,
		Popularity:   65,
		Energy:       0.7,
		Danceability: 0.4,
		Valence:      0.3,
		Tempo:        120.5,
		Key:          9,
		Genre:        "shoegaze",
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "playlists")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "nonexistent"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestPlaylistRepository(t *testing.T) {
	newPlaylist := func(serviceID string) *models.PersistedPlaylist {
		return models.NewPersistedPlaylist(0, "spotify", serviceID, models.Playlist{
			ID: serviceID, Name: "Playlist " + serviceID, Owner: "me", TrackCount: 10, Public: true,
		})
	}

	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPlaylistRepository(db)

		p := newPlaylist("pl1")
		if err := repo.Create(p); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if p.ID() == "" {
			t.Fatal("playlist ID should be set after creation")
		}

		got, err := repo.GetByServiceID("spotify", "pl1")
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if got.ID() != p.ID() {
			t.Errorf("expected row %s, got %s", p.ID(), got.ID())
		}
		if got.Playlist().Name != "Playlist pl1" || got.Playlist().Owner != "me" || !got.Playlist().Public {
			t.Errorf("unexpected playlist: %+v", got.Playlist())
		}
		if got.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", got.Sequence())
		}
	})

	t.Run("Validation", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPlaylistRepository(db)

		p := models.NewPersistedPlaylist(0, "spotify", "pl1", models.Playlist{})
		if err := repo.Create(p); err == nil {
			t.Fatal("expected validation error for empty name")
		}
	})

	t.Run("Duplicate Service ID", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPlaylistRepository(db)

		if err := repo.Create(newPlaylist("pl1")); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if err := repo.Create(newPlaylist("pl1")); err == nil {
			t.Fatal("expected unique constraint error")
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPlaylistRepository(db)

		first := newPlaylist("pl1")
		if err := repo.Upsert(first); err != nil {
			t.Fatalf("failed to upsert playlist: %v", err)
		}

		second := newPlaylist("pl1")
		second.SetPlaylist(models.Playlist{ID: "pl1", Name: "Renamed", TrackCount: 3})
		if err := repo.Upsert(second); err != nil {
			t.Fatalf("failed to upsert playlist: %v", err)
		}

		if second.ID() != first.ID() {
			t.Errorf("expected upsert to reuse row %s, got %s", first.ID(), second.ID())
		}

		got, err := repo.GetByServiceID("spotify", "pl1")
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if got.Playlist().Name != "Renamed" || got.Playlist().TrackCount != 3 {
			t.Errorf("expected updated playlist, got %+v", got.Playlist())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPlaylistRepository(db)

		p := newPlaylist("pl1")
		if err := repo.Create(p); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if err := repo.Delete(p.ID()); err != nil {
			t.Fatalf("failed to delete playlist: %v", err)
		}

		if _, err := repo.GetByServiceID("spotify", "pl1"); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
		if err := repo.Delete(p.ID()); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound on second delete, got %v", err)
		}
		if err := repo.Update(p); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound when updating deleted playlist, got %v", err)
		}

		again := newPlaylist("pl1")
		if err := repo.Upsert(again); err != nil {
			t.Fatalf("failed to upsert deleted playlist: %v", err)
		}
		if again.ID() != p.ID() {
			t.Errorf("expected deleted row %s to be restored, got %s", p.ID(), again.ID())
		}
		if _, err := repo.GetByServiceID("spotify", "pl1"); err != nil {
			t.Errorf("expected restored playlist, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewPlaylistRepository(db)

		for _, id := range []string{"a", "b", "c"} {
			if err := repo.Create(newPlaylist(id)); err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
		}
		other := models.NewPersistedPlaylist(0, "other", "z", models.Playlist{ID: "z", Name: "Z"})
		if err := repo.Create(other); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(all) != 4 {
			t.Errorf("expected 4 playlists, got %d", len(all))
		}

		spotify, err := repo.List(map[string]any{"service": "spotify"})
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(spotify) != 3 || spotify[0].ServiceID() != "a" || spotify[2].ServiceID() != "c" {
			t.Errorf("expected spotify playlists in sequence order, got %d", len(spotify))
		}
	})
}

func TestTrackRepository(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTrackRepository(db)

		track := models.NewPersistedTrack(0, "spotify", "t1", testTrack("t1"))
		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		got, err := repo.GetByServiceID("spotify", "t1")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}

		want := testTrack("t1")
		tr := got.Track()
		if tr.Name != want.Name || tr.URI != want.URI || tr.DurationMs != want.DurationMs {
			t.Errorf("unexpected track identity: %+v", tr)
		}
		if tr.Energy != want.Energy || tr.Tempo != want.Tempo || tr.Key != want.Key || tr.Genre != want.Genre {
			t.Errorf("unexpected features: %+v", tr)
		}
		if len(tr.Artists) != 2 || tr.Artists[1] != "Guest" || tr.FirstArtistID() != "artist-t1" {
			t.Errorf("unexpected artists: %v %v", tr.Artists, tr.ArtistIDs)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTrackRepository(db)

		tr := testTrack("t1")
		tr.URI = ""
		if err := repo.Create(models.NewPersistedTrack(0, "spotify", "t1", tr)); err == nil {
			t.Fatal("expected validation error for missing uri")
		}
	})

	t.Run("Upsert Updates Features", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTrackRepository(db)

		if err := repo.Upsert(models.NewPersistedTrack(0, "spotify", "t1", testTrack("t1"))); err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}

		changed := testTrack("t1")
		changed.Energy = 0.1
		changed.Genre = "ambient"
		if err := repo.Upsert(models.NewPersistedTrack(0, "spotify", "t1", changed)); err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}

		tracks, err := repo.List(map[string]any{"service": "spotify"})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}
		if tracks[0].Track().Energy != 0.1 || tracks[0].Track().Genre != "ambient" {
			t.Errorf("expected updated features, got %+v", tracks[0].Track())
		}

		byGenre, err := repo.List(map[string]any{"genre": "shoegaze"})
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(byGenre) != 0 {
			t.Errorf("expected no shoegaze tracks, got %d", len(byGenre))
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTrackRepository(db)

		if _, err := repo.GetByServiceID("spotify", "missing"); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})
}

func TestCatalogCache(t *testing.T) {
	t.Run("Save and Load", func(t *testing.T) {
		db := setupTestDB(t)
		cache := NewCatalogCache(db, "spotify")

		export := &models.PlaylistExport{
			Playlist: models.Playlist{ID: "pl1", Name: "Mix", TrackCount: 4},
			Tracks:   []models.Track{testTrack("a"), testTrack("b"), testTrack("a"), testTrack("c")},
		}

		if err := cache.SaveCatalog(export); err != nil {
			t.Fatalf("failed to save catalog: %v", err)
		}

		got, err := cache.LoadCatalog("pl1")
		if err != nil {
			t.Fatalf("failed to load catalog: %v", err)
		}

		if got.Playlist.Name != "Mix" {
			t.Errorf("expected playlist name Mix, got %s", got.Playlist.Name)
		}

		ids := make([]string, 0, len(got.Tracks))
		for _, tr := range got.Tracks {
			ids = append(ids, tr.ID)
		}
		want := []string{"a", "b", "a", "c"}
		if len(ids) != len(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
			}
		}

		tracks, err := NewTrackRepository(db).List(nil)
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 3 {
			t.Errorf("expected duplicate tracks stored once, got %d rows", len(tracks))
		}
	})

	t.Run("Save Replaces Order", func(t *testing.T) {
		db := setupTestDB(t)
		cache := NewCatalogCache(db, "spotify")

		first := &models.PlaylistExport{
			Playlist: models.Playlist{ID: "pl1", Name: "Mix"},
			Tracks:   []models.Track{testTrack("a"), testTrack("b")},
		}
		second := &models.PlaylistExport{
			Playlist: models.Playlist{ID: "pl1", Name: "Mix"},
			Tracks:   []models.Track{testTrack("c")},
		}

		if err := cache.SaveCatalog(first); err != nil {
			t.Fatalf("failed to save catalog: %v", err)
		}
		if err := cache.SaveCatalog(second); err != nil {
			t.Fatalf("failed to save catalog: %v", err)
		}

		got, err := cache.LoadCatalog("pl1")
		if err != nil {
			t.Fatalf("failed to load catalog: %v", err)
		}
		if len(got.Tracks) != 1 || got.Tracks[0].ID != "c" {
			t.Errorf("expected only track c, got %+v", got.Tracks)
		}

		playlists, err := cache.Playlists()
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(playlists) != 1 {
			t.Errorf("expected 1 cached playlist, got %d", len(playlists))
		}
	})

	t.Run("Forget", func(t *testing.T) {
		db := setupTestDB(t)
		cache := NewCatalogCache(db, "spotify")

		mix := &models.PlaylistExport{
			Playlist: models.Playlist{ID: "pl1", Name: "Mix"},
			Tracks:   []models.Track{testTrack("a"), testTrack("b"), testTrack("a")},
		}
		other := &models.PlaylistExport{
			Playlist: models.Playlist{ID: "pl2", Name: "Other"},
			Tracks:   []models.Track{testTrack("b")},
		}
		for _, export := range []*models.PlaylistExport{mix, other} {
			if err := cache.SaveCatalog(export); err != nil {
				t.Fatalf("failed to save catalog: %v", err)
			}
		}

		removed, err := cache.Forget("pl1")
		if err != nil {
			t.Fatalf("failed to forget playlist: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected only track a removed, got %d", removed)
		}

		if _, err := cache.LoadCatalog("pl1"); !errors.Is(err, shared.ErrNotCached) {
			t.Errorf("expected ErrNotCached, got %v", err)
		}
		kept, err := cache.LoadCatalog("pl2")
		if err != nil {
			t.Fatalf("failed to load remaining catalog: %v", err)
		}
		if len(kept.Tracks) != 1 || kept.Tracks[0].ID != "b" {
			t.Errorf("expected shared track b to survive, got %+v", kept.Tracks)
		}

		if _, err := cache.Forget("pl1"); !errors.Is(err, shared.ErrNotCached) {
			t.Errorf("expected ErrNotCached on second forget, got %v", err)
		}

		if err := cache.SaveCatalog(mix); err != nil {
			t.Fatalf("failed to cache forgotten playlist again: %v", err)
		}
		again, err := cache.LoadCatalog("pl1")
		if err != nil {
			t.Fatalf("failed to load recached catalog: %v", err)
		}
		if len(again.Tracks) != 3 {
			t.Errorf("expected 3 tracks after recaching, got %d", len(again.Tracks))
		}
	})

	t.Run("Not Cached", func(t *testing.T) {
		db := setupTestDB(t)
		cache := NewCatalogCache(db, "spotify")

		if _, err := cache.LoadCatalog("missing"); !errors.Is(err, shared.ErrNotCached) {
			t.Errorf("expected ErrNotCached, got %v", err)
		}
		if err := cache.SaveCatalog(nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestGenreRepository(t *testing.T) {
	t.Run("Put and Get", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGenreRepository(db, 0)

		if _, err := repo.Get("artist1"); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound, got %v", err)
		}

		if err := repo.Put("artist1", []string{"post-rock"}); err != nil {
			t.Fatalf("failed to put genres: %v", err)
		}
		if err := repo.Put("artist1", []string{"math rock", "emo"}); err != nil {
			t.Fatalf("failed to replace genres: %v", err)
		}

		genres, err := repo.Get("artist1")
		if err != nil {
			t.Fatalf("failed to get genres: %v", err)
		}
		if len(genres) != 2 || genres[0] != "math rock" {
			t.Errorf("unexpected genres: %v", genres)
		}
	})

	t.Run("Empty Artist", func(t *testing.T) {
		db := setupTestDB(t)
		if err := NewGenreRepository(db, 0).Put("", []string{"x"}); err == nil {
			t.Error("expected error for empty artist id")
		}
	})

	t.Run("Expired", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGenreRepository(db, time.Nanosecond)

		if err := repo.Put("artist1", []string{"house"}); err != nil {
			t.Fatalf("failed to put genres: %v", err)
		}
		time.Sleep(time.Millisecond)

		if _, err := repo.Get("artist1"); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected expired entry to be missing, got %v", err)
		}
	})

	t.Run("Purge", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGenreRepository(db, 0)

		for _, id := range []string{"a", "b"} {
			if err := repo.Put(id, []string{"jazz"}); err != nil {
				t.Fatalf("failed to put genres: %v", err)
			}
		}

		n, err := repo.Purge(time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("failed to purge: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 purged entries, got %d", n)
		}
	})
}

func TestArrangementRepository(t *testing.T) {
	newArrangement := func() *models.Arrangement {
		return models.NewArrangement(0, "pl1", "Blocks", "B1(1h): energy(desc)", false, 12, 2, `{"name":"Blocks"}`)
	}

	t.Run("Create Pending", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewArrangementRepository(db)

		a := newArrangement()
		if err := repo.Create(a); err != nil {
			t.Fatalf("failed to create arrangement: %v", err)
		}

		got, err := repo.Get(a.ID())
		if err != nil {
			t.Fatalf("failed to get arrangement: %v", err)
		}
		if got.Status() != models.ArrangementPending {
			t.Errorf("expected pending, got %s", got.Status())
		}
		if got.TargetPlaylistID() != "" || got.CompletedAt() != nil {
			t.Errorf("expected no target or completion, got %q %v", got.TargetPlaylistID(), got.CompletedAt())
		}
		if got.Plan() != `{"name":"Blocks"}` || got.TracksTotal() != 12 || got.BlocksTotal() != 2 {
			t.Errorf("unexpected arrangement: %+v", got)
		}
	})

	t.Run("Mark Published", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewArrangementRepository(db)

		a := newArrangement()
		if err := repo.Create(a); err != nil {
			t.Fatalf("failed to create arrangement: %v", err)
		}

		a.MarkPublished("new1")
		if err := repo.Update(a); err != nil {
			t.Fatalf("failed to update arrangement: %v", err)
		}

		got, err := repo.Get(a.ID())
		if err != nil {
			t.Fatalf("failed to get arrangement: %v", err)
		}
		if got.Status() != models.ArrangementPublished || got.TargetPlaylistID() != "new1" {
			t.Errorf("expected published to new1, got %s %q", got.Status(), got.TargetPlaylistID())
		}
		if got.CompletedAt() == nil {
			t.Error("expected completion time")
		}
	})

	t.Run("Mark Failed", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewArrangementRepository(db)

		a := newArrangement()
		if err := repo.Create(a); err != nil {
			t.Fatalf("failed to create arrangement: %v", err)
		}

		a.MarkFailed(errors.New("upstream exploded"))
		if err := repo.Update(a); err != nil {
			t.Fatalf("failed to update arrangement: %v", err)
		}

		failed, err := repo.List(map[string]any{"status": models.ArrangementFailed})
		if err != nil {
			t.Fatalf("failed to list arrangements: %v", err)
		}
		if len(failed) != 1 || failed[0].ErrorMessage() != "upstream exploded" {
			t.Errorf("expected one failed arrangement, got %d", len(failed))
		}
	})

	t.Run("List Newest First", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewArrangementRepository(db)

		var ids []string
		for range 3 {
			a := newArrangement()
			if err := repo.Create(a); err != nil {
				t.Fatalf("failed to create arrangement: %v", err)
			}
			ids = append(ids, a.ID())
		}

		got, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list arrangements: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 arrangements, got %d", len(got))
		}
		if got[0].ID() != ids[2] || got[1].ID() != ids[1] {
			t.Errorf("expected newest first")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewArrangementRepository(db)

		a := newArrangement()
		if err := repo.Create(a); err != nil {
			t.Fatalf("failed to create arrangement: %v", err)
		}
		if err := repo.Delete(a.ID()); err != nil {
			t.Fatalf("failed to delete arrangement: %v", err)
		}
		if _, err := repo.Get(a.ID()); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewArrangementRepository(db)

		a := models.NewArrangement(0, "", "Blocks", "", false, 0, 0, "")
		if err := repo.Create(a); err == nil {
			t.Error("expected validation error for missing source playlist")
		}
	})
}
