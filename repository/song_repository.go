package repository

import (
	"context"

	"StemFM/model"

	"gorm.io/gorm"
)

// SongRepository 歌曲与分轨数据访问接口
type SongRepository interface {
	Create(ctx context.Context, song *model.Song) error
	GetByID(ctx context.Context, id int64) (*model.Song, error)
	List(ctx context.Context) ([]*model.Song, error)
}

// gormSongRepository GORM 实现
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository 创建 GORM 歌曲仓库
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

// Create 创建歌曲（级联写入分轨）
func (r *gormSongRepository) Create(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Create(song).Error
}

// GetByID 根据ID获取歌曲，分轨按 position 预加载
func (r *gormSongRepository) GetByID(ctx context.Context, id int64) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).
		Preload("Tracks", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&song, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &song, nil
}

// List 列出全部歌曲（不带分轨）
func (r *gormSongRepository) List(ctx context.Context) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).Order("id ASC").Find(&songs).Error
	if err != nil {
		return nil, err
	}
	return songs, nil
}
