package service

import (
	"context"

	"tracklist/logger"
	"tracklist/model"
)

// PlaylistCache is the read cache the services keep in sync. cache.PlaylistCache
// and cache.Nop implement it.
//
// Get returns a generation along with a miss. Set must be given that
// generation and stores nothing if any invalidation happened in between.
type PlaylistCache interface {
	Get(ctx context.Context, playlistID string) (*model.Playlist, int64, error)
	Set(ctx context.Context, p *model.Playlist, gen int64) (bool, error)
	Invalidate(ctx context.Context, playlistIDs ...string) error
	InvalidateTrack(ctx context.Context, trackID string) error
}

// Cache failures never fail a request; the database stays the source of truth.

func invalidatePlaylists(ctx context.Context, c PlaylistCache, ids ...string) {
	if err := c.Invalidate(ctx, ids...); err != nil {
		logger.Warn("failed to invalidate playlist cache",
			logger.Strings("playlistIds", ids),
			logger.ErrorField(err))
	}
}

func invalidateTrack(ctx context.Context, c PlaylistCache, trackID string) {
	if err := c.InvalidateTrack(ctx, trackID); err != nil {
		logger.Warn("failed to invalidate track cache entries",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
	}
}
