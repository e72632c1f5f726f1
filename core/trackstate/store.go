// Package trackstate 维护每个 (用户, 歌曲, 音轨) 的混音偏好：
// MySQL 持久化 + Redis 实时同步，写入采用直写策略。
package trackstate

import (
	"context"
	"time"

	"StemFM/cache"
	"StemFM/logger"
	"StemFM/model"
	"StemFM/repository"
)

// Store 混音状态存储。repo 为持久层，c 为实时同步层，
// 两者都可为 nil（降级为纯内存，测试场景）。
type Store struct {
	repo repository.MixStateRepository
	c    *cache.MixStateCache
}

// NewStore 创建混音状态存储
func NewStore(repo repository.MixStateRepository, c *cache.MixStateCache) *Store {
	return &Store{repo: repo, c: c}
}

// Load 加载某用户在整首歌下的混音状态。
// 没有记录的音轨合成默认状态（音量 1.0、不静音、不独奏）并落库，
// 之后读取到的就是持久化过的值。
func (s *Store) Load(ctx context.Context, userID int64, song *model.Song) (map[int64]model.TrackMixState, error) {
	states := make(map[int64]model.TrackMixState, len(song.Tracks))

	if s.repo != nil {
		saved, err := s.repo.GetBySong(ctx, userID, song.ID)
		if err != nil {
			return nil, err
		}
		for _, st := range saved {
			states[st.TrackID] = *st
		}
	}

	for _, track := range song.Tracks {
		if _, ok := states[track.ID]; ok {
			continue
		}
		def := model.DefaultMixState(userID, song.ID, track.ID)
		states[track.ID] = *def
		if s.repo != nil {
			if err := s.repo.Save(ctx, def); err != nil {
				logger.Warn("默认混音状态落库失败",
					logger.Int64("userId", userID),
					logger.Int64("songId", song.ID),
					logger.Int64("trackId", track.ID),
					logger.ErrorField(err))
			}
		}
	}
	return states, nil
}

// Save 直写一条混音状态：先落库，再推到同步层。
// 同步层失败只记日志，持久化结果决定返回值。
func (s *Store) Save(ctx context.Context, userID, songID, trackID int64, st model.TrackMixState) error {
	st.UserID = userID
	st.SongID = songID
	st.TrackID = trackID
	st.UpdatedAt = time.Now()

	if s.repo != nil {
		if err := s.repo.Save(ctx, &st); err != nil {
			return err
		}
	}
	if s.c != nil {
		if err := s.c.SetTrackState(ctx, userID, songID, &st); err != nil {
			logger.Warn("混音状态推送失败",
				logger.Int64("userId", userID),
				logger.Int64("songId", songID),
				logger.Int64("trackId", trackID),
				logger.ErrorField(err))
		}
	}
	return nil
}

// Subscribe 订阅整首歌的混音状态推送。无同步层时返回空操作。
func (s *Store) Subscribe(ctx context.Context, userID, songID int64, cb func(map[int64]model.TrackMixState)) (func(), error) {
	if s.c == nil {
		return func() {}, nil
	}
	return s.c.Subscribe(ctx, userID, songID, cb)
}
