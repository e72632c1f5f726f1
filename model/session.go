package model

import "time"

// SessionState 共享听歌会话文档。
// 同一时刻只有一个管理端作为唯一写者，其余设备只读订阅。
type SessionState struct {
	SessionID     string            `json:"sessionId"`
	AdminDeviceID string            `json:"adminDeviceId"`
	CreatedAt     time.Time         `json:"createdAt"`
	Snapshot      TransportSnapshot `json:"snapshot"`
}

// SessionRole 本设备在会话中的角色
type SessionRole string

const (
	RoleNone     SessionRole = "none"
	RoleAdmin    SessionRole = "admin"
	RoleFollower SessionRole = "follower"
)
