package service

import (
	"context"
	"errors"

	"tracklist/logger"
	"tracklist/model"
	"tracklist/repository"
)

// PlaylistService 歌单应用服务
//
// Every mutation runs load, change, save. When the save loses a version race
// the whole cycle is repeated on a fresh copy, up to maxAttempts times.
type PlaylistService struct {
	playlists   repository.PlaylistRepository
	tracks      repository.TrackRepository
	cache       PlaylistCache
	maxAttempts int
}

// NewPlaylistService 创建歌单服务
func NewPlaylistService(playlists repository.PlaylistRepository, tracks repository.TrackRepository, cache PlaylistCache, maxAttempts int) *PlaylistService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PlaylistService{
		playlists:   playlists,
		tracks:      tracks,
		cache:       cache,
		maxAttempts: maxAttempts,
	}
}

func (s *PlaylistService) CreatePlaylist(ctx context.Context, name string, isPublic bool) (*model.Playlist, error) {
	p := model.NewPlaylist(name, isPublic)
	if err := s.playlists.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("playlist created", logger.String("playlistId", p.ID()), logger.String("name", p.Name()))
	return p, nil
}

func (s *PlaylistService) ListPlaylists(ctx context.Context) ([]*model.Playlist, error) {
	return s.playlists.List(ctx)
}

// GetPlaylist reads through the cache. The generation is taken before the
// database load, so a fill racing a write is dropped by the cache.
func (s *PlaylistService) GetPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	cached, gen, cacheErr := s.cache.Get(ctx, id)
	if cacheErr != nil {
		logger.Warn("playlist cache read failed", logger.String("playlistId", id), logger.ErrorField(cacheErr))
	}
	if cached != nil {
		return cached, nil
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cacheErr != nil {
		return p, nil
	}

	stored, err := s.cache.Set(ctx, p, gen)
	if err != nil {
		logger.Warn("playlist cache write failed", logger.String("playlistId", id), logger.ErrorField(err))
	} else if !stored {
		logger.Debug("playlist cache fill skipped after concurrent invalidation", logger.String("playlistId", id))
	}
	return p, nil
}

// GetPlaylistTracks returns the ordered tracks of a playlist.
func (s *PlaylistService) GetPlaylistTracks(ctx context.Context, id string) ([]model.Track, error) {
	p, err := s.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Tracks(), nil
}

func (s *PlaylistService) UpdatePlaylist(ctx context.Context, id, name string, isPublic bool) (*model.Playlist, error) {
	return s.mutate(ctx, id, func(p *model.Playlist) error {
		p.Rename(name)
		p.SetVisibility(isPublic)
		return nil
	})
}

// DeletePlaylist removes the playlist. Its tracks are not touched.
func (s *PlaylistService) DeletePlaylist(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.playlists.Delete(ctx, id); err != nil {
		return err
	}
	invalidatePlaylists(ctx, s.cache, id)
	logger.Info("playlist deleted", logger.String("playlistId", id))
	return nil
}

// AddTrack appends a track. Adding a track that is already present leaves
// the playlist unchanged.
func (s *PlaylistService) AddTrack(ctx context.Context, playlistID, trackID string) (*model.Playlist, error) {
	return s.mutate(ctx, playlistID, func(p *model.Playlist) error {
		track, err := s.track(ctx, trackID)
		if err != nil {
			return err
		}
		return p.AddTrack(track)
	})
}

// AddTrackAtPosition inserts a track at position.
func (s *PlaylistService) AddTrackAtPosition(ctx context.Context, playlistID, trackID string, position int) (*model.Playlist, error) {
	return s.mutate(ctx, playlistID, func(p *model.Playlist) error {
		track, err := s.track(ctx, trackID)
		if err != nil {
			return err
		}
		return p.InsertTrackAt(track, position)
	})
}

// AddTracks inserts several tracks, appending when position is nil. Every id
// is resolved before the playlist is touched, so one unknown id rejects the
// whole request.
func (s *PlaylistService) AddTracks(ctx context.Context, playlistID string, trackIDs []string, position *int) (*model.Playlist, error) {
	return s.mutate(ctx, playlistID, func(p *model.Playlist) error {
		found, err := s.tracks.GetByIDs(ctx, trackIDs)
		if err != nil {
			return err
		}

		tracks := make([]*model.Track, 0, len(trackIDs))
		for _, id := range trackIDs {
			t, ok := found[id]
			if !ok {
				return &model.NotFoundError{Kind: model.KindTrack, ID: id}
			}
			tracks = append(tracks, t)
		}
		return p.InsertTracks(tracks, position)
	})
}

// RemoveTrack removes a track from the playlist.
func (s *PlaylistService) RemoveTrack(ctx context.Context, playlistID, trackID string) (*model.Playlist, error) {
	return s.mutate(ctx, playlistID, func(p *model.Playlist) error {
		if !p.RemoveTrackByID(trackID) {
			return &model.NotFoundError{Kind: model.KindPlaylistTrack, ID: trackID}
		}
		return nil
	})
}

func (s *PlaylistService) load(ctx context.Context, id string) (*model.Playlist, error) {
	p, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &model.NotFoundError{Kind: model.KindPlaylist, ID: id}
	}
	return p, nil
}

func (s *PlaylistService) track(ctx context.Context, id string) (*model.Track, error) {
	t, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &model.NotFoundError{Kind: model.KindTrack, ID: id}
	}
	return t, nil
}

// mutate loads the playlist, applies change and saves it, retrying from a
// fresh load on version conflicts. Errors from change are returned as-is
// and never retried.
func (s *PlaylistService) mutate(ctx context.Context, id string, change func(p *model.Playlist) error) (*model.Playlist, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		p, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := change(p); err != nil {
			return nil, err
		}

		err = s.playlists.Save(ctx, p)
		if err == nil {
			invalidatePlaylists(ctx, s.cache, id)
			return p, nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			return nil, err
		}

		logger.Warn("playlist version conflict, retrying",
			logger.String("playlistId", id),
			logger.Int("attempt", attempt),
			logger.Int("maxAttempts", s.maxAttempts))

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, &model.ConflictError{ID: id, Attempts: s.maxAttempts}
}
