package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tracklist/model"
)

// gormTrackRepository GORM 实现
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 歌曲仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// Create stamps the creation time and inserts the track.
func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	track.Stamp(now())
	if err := r.db.WithContext(ctx).Create(newTrackRecord(track)).Error; err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

// Update writes the mutable fields. Identity and creation time never change.
// A track that no longer exists yields a NotFoundError.
func (r *gormTrackRepository) Update(ctx context.Context, track *model.Track) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&trackRecord{}).
			Where("id = ?", track.ID()).
			Updates(map[string]interface{}{
				"title":      track.Title,
				"artist":     track.Artist,
				"duration":   track.Duration,
				"updated_at": now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		// MySQL reports 0 rows when nothing changed, so tell that apart
		// from a missing row.
		var count int64
		if err := tx.Model(&trackRecord{}).Where("id = ?", track.ID()).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return &model.NotFoundError{Kind: model.KindTrack, ID: track.ID()}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update track %s: %w", track.ID(), err)
	}
	return nil
}

// GetByID 根据ID获取歌曲
func (r *gormTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	var rec trackRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get track %s: %w", id, err)
	}
	return rec.toModel(), nil
}

func (r *gormTrackRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.Track, error) {
	result := make(map[string]*model.Track, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var recs []trackRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to get tracks: %w", err)
	}
	for i := range recs {
		result[recs[i].ID] = recs[i].toModel()
	}
	return result, nil
}

// List returns every track, oldest first.
func (r *gormTrackRepository) List(ctx context.Context) ([]*model.Track, error) {
	var recs []trackRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	tracks := make([]*model.Track, 0, len(recs))
	for i := range recs {
		tracks = append(tracks, recs[i].toModel())
	}
	return tracks, nil
}

// Delete removes the track, its playlist entries and bumps the version of
// every playlist that referenced it, in one transaction.
func (r *gormTrackRepository) Delete(ctx context.Context, id string) ([]string, error) {
	var affected []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&playlistTrackRecord{}).
			Where("track_id = ?", id).
			Pluck("playlist_id", &affected).Error; err != nil {
			return err
		}

		if len(affected) > 0 {
			if err := tx.Where("track_id = ?", id).Delete(&playlistTrackRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&playlistRecord{}).
				Where("id IN ?", affected).
				Updates(map[string]interface{}{
					"version":    gorm.Expr("version + ?", 1),
					"updated_at": now(),
				}).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", id).Delete(&trackRecord{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete track %s: %w", id, err)
	}
	return affected, nil
}
