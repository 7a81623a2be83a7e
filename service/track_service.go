package service

import (
	"context"

	"tracklist/logger"
	"tracklist/model"
	"tracklist/repository"
)

// TrackUpdate carries the fields of an update request. A nil Duration leaves
// the stored duration unchanged.
type TrackUpdate struct {
	Title    string
	Artist   string
	Duration *int
}

// TrackService 歌曲应用服务
type TrackService struct {
	tracks repository.TrackRepository
	cache  PlaylistCache
}

// NewTrackService 创建歌曲服务
func NewTrackService(tracks repository.TrackRepository, cache PlaylistCache) *TrackService {
	return &TrackService{tracks: tracks, cache: cache}
}

func (s *TrackService) CreateTrack(ctx context.Context, title, artist string, duration int) (*model.Track, error) {
	track := model.NewTrack(title, artist, duration)
	if err := s.tracks.Create(ctx, track); err != nil {
		return nil, err
	}
	logger.Info("track created", logger.String("trackId", track.ID()), logger.String("title", track.Title))
	return track, nil
}

func (s *TrackService) ListTracks(ctx context.Context) ([]*model.Track, error) {
	return s.tracks.List(ctx)
}

// GetTrack returns the track or a NotFoundError.
func (s *TrackService) GetTrack(ctx context.Context, id string) (*model.Track, error) {
	track, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, &model.NotFoundError{Kind: model.KindTrack, ID: id}
	}
	return track, nil
}

// UpdateTrack changes the track in place. Every playlist that contains it
// sees the new values, so their cached snapshots are dropped.
func (s *TrackService) UpdateTrack(ctx context.Context, id string, upd TrackUpdate) (*model.Track, error) {
	track, err := s.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}

	track.Title = upd.Title
	track.Artist = upd.Artist
	if upd.Duration != nil {
		track.Duration = *upd.Duration
	}

	if err := s.tracks.Update(ctx, track); err != nil {
		return nil, err
	}
	invalidateTrack(ctx, s.cache, id)

	logger.Info("track updated", logger.String("trackId", id))
	return track, nil
}

// DeleteTrack removes the track and detaches it from every playlist.
func (s *TrackService) DeleteTrack(ctx context.Context, id string) error {
	if _, err := s.GetTrack(ctx, id); err != nil {
		return err
	}

	affected, err := s.tracks.Delete(ctx, id)
	if err != nil {
		return err
	}
	invalidateTrack(ctx, s.cache, id)
	if len(affected) > 0 {
		invalidatePlaylists(ctx, s.cache, affected...)
	}

	logger.Info("track deleted",
		logger.String("trackId", id),
		logger.Int("detachedFromPlaylists", len(affected)))
	return nil
}
