package repository

import (
	"context"

	"tracklist/model"
)

// TrackRepository 歌曲数据访问接口
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	Update(ctx context.Context, track *model.Track) error
	// GetByID returns (nil, nil) when the track does not exist.
	GetByID(ctx context.Context, id string) (*model.Track, error)
	// GetByIDs returns the tracks that exist, keyed by id. Missing ids are
	// simply absent from the map.
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.Track, error)
	List(ctx context.Context) ([]*model.Track, error)
	// Delete removes the track and every playlist entry that refers to it.
	// It returns the ids of the playlists that lost an entry; each of them
	// has its version bumped.
	Delete(ctx context.Context, id string) ([]string, error)
}

// PlaylistRepository 歌单数据访问接口
type PlaylistRepository interface {
	Create(ctx context.Context, playlist *model.Playlist) error
	// Save writes name, visibility and track order if the stored version
	// still equals playlist.Version(). On success the version is bumped on
	// both sides. A stale version yields model.ErrVersionConflict.
	Save(ctx context.Context, playlist *model.Playlist) error
	// GetByID returns (nil, nil) when the playlist does not exist.
	GetByID(ctx context.Context, id string) (*model.Playlist, error)
	List(ctx context.Context) ([]*model.Playlist, error)
	Delete(ctx context.Context, id string) error
}
