package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tracklist/model"
)

// gormPlaylistRepository GORM 实现
type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository 创建 GORM 歌单仓库
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

// Create inserts the playlist row and its entries.
func (r *gormPlaylistRepository) Create(ctx context.Context, playlist *model.Playlist) error {
	playlist.Stamp(now())
	playlist.SetVersion(0)

	rec := &playlistRecord{
		ID:        playlist.ID(),
		Name:      playlist.Name(),
		IsPublic:  playlist.IsPublic(),
		Version:   0,
		CreatedAt: playlist.CreatedAt(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return insertEntries(tx, playlist)
	})
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	return nil
}

// Save 按版本号更新歌单，并整体重写歌曲顺序
func (r *gormPlaylistRepository) Save(ctx context.Context, playlist *model.Playlist) error {
	next := playlist.Version() + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&playlistRecord{}).
			Where("id = ? AND version = ?", playlist.ID(), playlist.Version()).
			Updates(map[string]interface{}{
				"name":       playlist.Name(),
				"is_public":  playlist.IsPublic(),
				"version":    next,
				"updated_at": now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&playlistRecord{}).Where("id = ?", playlist.ID()).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return &model.NotFoundError{Kind: model.KindPlaylist, ID: playlist.ID()}
			}
			return model.ErrVersionConflict
		}

		if err := tx.Where("playlist_id = ?", playlist.ID()).Delete(&playlistTrackRecord{}).Error; err != nil {
			return err
		}
		return insertEntries(tx, playlist)
	})
	if err != nil {
		if errors.Is(err, model.ErrVersionConflict) || errors.Is(err, model.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to save playlist %s: %w", playlist.ID(), err)
	}

	playlist.SetVersion(next)
	return nil
}

func insertEntries(tx *gorm.DB, playlist *model.Playlist) error {
	tracks := playlist.Tracks()
	if len(tracks) == 0 {
		return nil
	}

	entries := make([]playlistTrackRecord, 0, len(tracks))
	for i := range tracks {
		entries = append(entries, playlistTrackRecord{
			PlaylistID: playlist.ID(),
			TrackID:    tracks[i].ID(),
			Position:   i,
		})
	}
	return tx.CreateInBatches(entries, 200).Error
}

// GetByID 根据ID获取歌单及其有序歌曲
func (r *gormPlaylistRepository) GetByID(ctx context.Context, id string) (*model.Playlist, error) {
	var rec playlistRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get playlist %s: %w", id, err)
	}

	tracks, err := r.loadTracks(ctx, []string{rec.ID})
	if err != nil {
		return nil, err
	}
	return restore(&rec, tracks[rec.ID]), nil
}

// List returns every playlist, oldest first.
func (r *gormPlaylistRepository) List(ctx context.Context) ([]*model.Playlist, error) {
	var recs []playlistRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	if len(recs) == 0 {
		return []*model.Playlist{}, nil
	}

	ids := make([]string, 0, len(recs))
	for i := range recs {
		ids = append(ids, recs[i].ID)
	}
	tracks, err := r.loadTracks(ctx, ids)
	if err != nil {
		return nil, err
	}

	playlists := make([]*model.Playlist, 0, len(recs))
	for i := range recs {
		playlists = append(playlists, restore(&recs[i], tracks[recs[i].ID]))
	}
	return playlists, nil
}

// loadTracks resolves the ordered tracks of the given playlists with two
// queries: entries, then the referenced tracks.
func (r *gormPlaylistRepository) loadTracks(ctx context.Context, playlistIDs []string) (map[string][]model.Track, error) {
	var entries []playlistTrackRecord
	if err := r.db.WithContext(ctx).
		Where("playlist_id IN ?", playlistIDs).
		Order("playlist_id ASC, position ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load playlist entries: %w", err)
	}

	result := make(map[string][]model.Track, len(playlistIDs))
	if len(entries) == 0 {
		return result, nil
	}

	trackIDs := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.TrackID]; !ok {
			seen[e.TrackID] = struct{}{}
			trackIDs = append(trackIDs, e.TrackID)
		}
	}

	var recs []trackRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", trackIDs).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load playlist tracks: %w", err)
	}
	byID := make(map[string]*trackRecord, len(recs))
	for i := range recs {
		byID[recs[i].ID] = &recs[i]
	}

	for _, e := range entries {
		rec, ok := byID[e.TrackID]
		if !ok {
			continue
		}
		result[e.PlaylistID] = append(result[e.PlaylistID], *rec.toModel())
	}
	return result, nil
}

func restore(rec *playlistRecord, tracks []model.Track) *model.Playlist {
	return model.RestorePlaylist(rec.ID, rec.Name, rec.IsPublic, rec.CreatedAt, rec.Version, tracks)
}

// Delete removes the playlist and its entries. Tracks are left untouched.
func (r *gormPlaylistRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&playlistTrackRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&playlistRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete playlist %s: %w", id, err)
	}
	return nil
}
