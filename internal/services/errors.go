package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/blockify/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// classify maps a client error onto the shared taxonomy:
// rejected or unrefreshable credentials become [shared.ErrAuthRequired]; everything else an [shared.UpstreamError].
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var se spotify.Error
	if errors.As(err, &se) {
		if se.Status == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w: %s", op, shared.ErrAuthRequired, se.Message)
		}
		return fmt.Errorf("%s: %w", op, &shared.UpstreamError{Status: se.Status, Message: se.Message})
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%s: %w: %v", op, shared.ErrAuthRequired, re)
	}

	return fmt.Errorf("%s: %w", op, &shared.UpstreamError{Message: err.Error()})
}

// notFound marks 404 responses for playlist lookups with [shared.ErrPlaylistNotFound].
func notFound(err error) error {
	if ue, ok := shared.AsUpstream(err); ok && ue.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", shared.ErrPlaylistNotFound, err)
	}
	return err
}
