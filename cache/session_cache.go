package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StemFM/logger"
	"StemFM/model"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKey     = "session:%s"        // JSON: model.SessionState
	sessionChannel = "session:%s:events" // Pub/Sub: 会话快照推送
	sessionTTL     = 24 * time.Hour
)

// SessionCache 排练会话的共享文档。管理端无条件覆盖文档，
// 跟随端订阅 events 频道做对齐。
type SessionCache struct {
	client *redis.Client
}

// NewSessionCache 创建会话缓存
func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{client: client}
}

// SetSession 覆盖写入会话文档并推送快照
func (c *SessionCache) SetSession(ctx context.Context, st *model.SessionState) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(sessionKey, st.SessionID), data, sessionTTL)
	pipe.Publish(ctx, fmt.Sprintf(sessionChannel, st.SessionID), data)
	_, err = pipe.Exec(ctx)
	return err
}

// GetSession 读取会话文档，不存在时返回 (nil, nil)
func (c *SessionCache) GetSession(ctx context.Context, sessionID string) (*model.SessionState, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(sessionKey, sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st model.SessionState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &st, nil
}

// DeleteSession 删除会话文档（管理端离开时调用）
func (c *SessionCache) DeleteSession(ctx context.Context, sessionID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, fmt.Sprintf(sessionKey, sessionID)).Err()
}

// Subscribe 订阅会话快照推送，返回取消订阅函数
func (c *SessionCache) Subscribe(ctx context.Context, sessionID string, cb func(*model.SessionState)) (func(), error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	pubsub := c.client.Subscribe(ctx, fmt.Sprintf(sessionChannel, sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe session channel: %w", err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var st model.SessionState
			if err := json.Unmarshal([]byte(msg.Payload), &st); err != nil {
				logger.Warn("解析会话推送失败",
					logger.String("sessionId", sessionID),
					logger.ErrorField(err))
				continue
			}
			cb(&st)
		}
	}()

	return func() { pubsub.Close() }, nil
}
