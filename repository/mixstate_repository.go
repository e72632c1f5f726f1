package repository

import (
	"context"

	"StemFM/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MixStateRepository 混音状态持久层接口。
// 同一 (user, song, track) 只保留一条记录，后写覆盖先写。
type MixStateRepository interface {
	Save(ctx context.Context, st *model.TrackMixState) error
	GetBySong(ctx context.Context, userID, songID int64) ([]*model.TrackMixState, error)
	Get(ctx context.Context, userID, songID, trackID int64) (*model.TrackMixState, error)
}

// gormMixStateRepository GORM 实现
type gormMixStateRepository struct {
	db *gorm.DB
}

// NewGormMixStateRepository 创建 GORM 混音状态仓库
func NewGormMixStateRepository(db *gorm.DB) MixStateRepository {
	return &gormMixStateRepository{db: db}
}

// Save 写入或覆盖一条混音状态
func (r *gormMixStateRepository) Save(ctx context.Context, st *model.TrackMixState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "song_id"}, {Name: "track_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"volume", "mute", "solo", "updated_at"}),
		}).
		Create(st).Error
}

// GetBySong 取某用户在某首歌下的全部混音状态
func (r *gormMixStateRepository) GetBySong(ctx context.Context, userID, songID int64) ([]*model.TrackMixState, error) {
	var states []*model.TrackMixState
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Find(&states).Error
	if err != nil {
		return nil, err
	}
	return states, nil
}

// Get 取单条混音状态，不存在时返回 (nil, nil)
func (r *gormMixStateRepository) Get(ctx context.Context, userID, songID, trackID int64) (*model.TrackMixState, error) {
	var st model.TrackMixState
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND song_id = ? AND track_id = ?", userID, songID, trackID).
		First(&st).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}
