package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/blockify/internal/shared"
	"golang.org/x/time/rate"
)

// CacheOpts configures [ArrangeEngine.CacheMany].
type CacheOpts struct {
	NumWorkers int     // Concurrent workers (default: 3, max: 10)
	RateLimit  float64 // Playlists started per second (default: 2)
}

// CachedPlaylist is the outcome for one playlist of a bulk cache run.
type CachedPlaylist struct {
	PlaylistID   string
	PlaylistName string
	Tracks       int
	Error        error
}

// CacheResult summarizes a bulk cache run.
type CacheResult struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []CachedPlaylist
}

// CacheMany fetches and caches several playlists concurrently so they can later be previewed offline.
//
// Playlists are dispatched through a limiter to a fixed worker pool; individual failures are reported in the result
// and do not stop the run.
func (e *ArrangeEngine) CacheMany(ctx context.Context, ids []string, opts CacheOpts, progress chan<- ProgressUpdate) (*CacheResult, error) {
	if e.cache == nil {
		return nil, fmt.Errorf("%w: no cache configured", shared.ErrNotCached)
	}
	if e.service == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}

	result := &CacheResult{Total: len(ids), Results: make([]CachedPlaylist, 0, len(ids))}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan string)
	results := make(chan CachedPlaylist, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				results <- e.cacheOne(ctx, id)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			e.sendProgress(progress, cachingPlaylistUpdate(i+1, len(ids), id))
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error == nil {
			result.Succeeded++
			e.sendProgress(progress, cacheCompletedUpdate(completed, len(ids), res.PlaylistName, res.Tracks))
		} else {
			result.Failed++
			e.sendProgress(progress, cacheFailedUpdate(completed, len(ids), res.PlaylistID, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *ArrangeEngine) cacheOne(ctx context.Context, id string) CachedPlaylist {
	res := CachedPlaylist{PlaylistID: id, PlaylistName: fmt.Sprintf("Unknown (%s)", id)}

	export, err := e.fetch(ctx, id, nil)
	if err != nil {
		res.Error = err
		return res
	}

	if err := e.cache.SaveCatalog(export); err != nil {
		res.Error = fmt.Errorf("failed to cache catalog: %w", err)
		return res
	}

	res.PlaylistName = export.Playlist.Name
	res.Tracks = len(export.Tracks)
	return res
}
