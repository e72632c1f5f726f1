package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"StemFM/logger"
	"StemFM/model"

	"github.com/go-redis/redis/v8"
)

const (
	mixStateKey     = "mixstate:%d:%d"        // Hash: trackID -> TrackMixState JSON (userID, songID)
	mixStateChannel = "mixstate:%d:%d:events" // Pub/Sub: 整首歌的混音状态 map
	mixStateTTL     = 24 * time.Hour
)

// MixStateCache 混音状态的共享文档层。
// MySQL 是持久层，这里是各设备之间的实时同步面：每次直写后
// 把整首歌的最新 map 发布给订阅者。
type MixStateCache struct {
	client *redis.Client
}

// NewMixStateCache 创建混音状态缓存
func NewMixStateCache(client *redis.Client) *MixStateCache {
	return &MixStateCache{client: client}
}

// SetTrackState 写入单条音轨的混音状态并发布整首歌的最新 map
func (c *MixStateCache) SetTrackState(ctx context.Context, userID, songID int64, st *model.TrackMixState) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	key := fmt.Sprintf(mixStateKey, userID, songID)
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal mix state: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(st.TrackID, 10), data)
	pipe.Expire(ctx, key, mixStateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// 发布整首歌的最新状态，订阅端整体重放
	states, err := c.GetSongStates(ctx, userID, songID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(states)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, fmt.Sprintf(mixStateChannel, userID, songID), payload).Err()
}

// GetSongStates 取整首歌的混音状态
func (c *MixStateCache) GetSongStates(ctx context.Context, userID, songID int64) (map[int64]model.TrackMixState, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	key := fmt.Sprintf(mixStateKey, userID, songID)
	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	states := make(map[int64]model.TrackMixState, len(result))
	for field, data := range result {
		trackID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		var st model.TrackMixState
		if err := json.Unmarshal([]byte(data), &st); err == nil {
			states[trackID] = st
		}
	}
	return states, nil
}

// Subscribe 订阅整首歌的混音状态变化，返回取消订阅函数
func (c *MixStateCache) Subscribe(ctx context.Context, userID, songID int64, cb func(map[int64]model.TrackMixState)) (func(), error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	pubsub := c.client.Subscribe(ctx, fmt.Sprintf(mixStateChannel, userID, songID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe mix state channel: %w", err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var states map[int64]model.TrackMixState
			if err := json.Unmarshal([]byte(msg.Payload), &states); err != nil {
				logger.Warn("解析混音状态推送失败",
					logger.Int64("userId", userID),
					logger.Int64("songId", songID),
					logger.ErrorField(err))
				continue
			}
			cb(states)
		}
	}()

	return func() { pubsub.Close() }, nil
}
