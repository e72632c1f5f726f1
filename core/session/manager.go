// Package session 实现排练会话同步：管理端把播放快照无条件覆盖写入
// 共享文档，跟随端订阅文档推送并对齐本地播放。
package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"StemFM/config"
	"StemFM/core/clock"
	"StemFM/core/transport"
	"StemFM/logger"
	"StemFM/model"

	"github.com/google/uuid"
)

var (
	ErrAlreadyInSession = errors.New("设备已在会话中")
	ErrSessionNotFound  = errors.New("会话不存在")
)

// DocStore 会话文档存储
type DocStore interface {
	SetSession(ctx context.Context, st *model.SessionState) error
	GetSession(ctx context.Context, sessionID string) (*model.SessionState, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Subscribe(ctx context.Context, sessionID string, cb func(*model.SessionState)) (func(), error)
}

// Manager 会话管理器。一台设备同一时刻只有一个角色：
// 管理端发布快照，跟随端对齐快照，两者互斥。
type Manager struct {
	store    DocStore
	tp       *transport.Transport
	deviceID string
	clk      clock.Clock
	tuning   func() config.SyncTuning

	mu          sync.Mutex
	role        model.SessionRole
	sessionID   string
	createdAt   time.Time
	unsubscribe func()
	lastApplied time.Time
}

// NewManager 创建会话管理器并挂接播放状态变化回调。
// tuningFn 可为 nil（使用默认节流参数）。
func NewManager(store DocStore, tp *transport.Transport, deviceID string, clk clock.Clock, tuningFn func() config.SyncTuning) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if tuningFn == nil {
		tuningFn = func() config.SyncTuning {
			return config.SyncTuning{
				FollowerDebounceMs: 100,
				SeekToleranceSec:   0.1,
				ClickWindowMs:      300,
				ProgressTickMs:     50,
			}
		}
	}
	m := &Manager{
		store:    store,
		tp:       tp,
		deviceID: deviceID,
		clk:      clk,
		tuning:   tuningFn,
		role:     model.RoleNone,
	}
	tp.OnChange(m.onTransportChanged)
	return m
}

// Role 当前角色
func (m *Manager) Role() model.SessionRole {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// SessionID 当前会话ID，未加入时为空
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Create 创建会话并成为管理端。
// 初始文档写入管理端当前的播放快照而非全停状态：歌曲播到一半时创建的
// 会话，跟随端加入后不必等下一次传输变更就能立即对齐。
func (m *Manager) Create(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.role != model.RoleNone {
		m.mu.Unlock()
		return "", ErrAlreadyInSession
	}
	sessionID := uuid.NewString()
	m.role = model.RoleAdmin
	m.sessionID = sessionID
	m.createdAt = m.clk.Now()
	m.mu.Unlock()

	st := &model.SessionState{
		SessionID:     sessionID,
		AdminDeviceID: m.deviceID,
		CreatedAt:     m.createdAt,
		Snapshot:      m.tp.Snapshot(),
	}
	if err := m.store.SetSession(ctx, st); err != nil {
		m.mu.Lock()
		m.role = model.RoleNone
		m.sessionID = ""
		m.mu.Unlock()
		return "", err
	}

	logger.Info("创建会话",
		logger.String("sessionId", sessionID),
		logger.String("deviceId", m.deviceID))
	return sessionID, nil
}

// Join 加入会话成为跟随端。重复加入同一会话是幂等空操作。
func (m *Manager) Join(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.role == model.RoleFollower && m.sessionID == sessionID {
		m.mu.Unlock()
		return nil
	}
	if m.role != model.RoleNone {
		m.mu.Unlock()
		return ErrAlreadyInSession
	}
	m.mu.Unlock()

	st, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if st == nil {
		return ErrSessionNotFound
	}

	unsub, err := m.store.Subscribe(ctx, sessionID, m.reconcile)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.role = model.RoleFollower
	m.sessionID = sessionID
	m.unsubscribe = unsub
	m.lastApplied = time.Time{}
	m.mu.Unlock()

	logger.Info("加入会话",
		logger.String("sessionId", sessionID),
		logger.String("deviceId", m.deviceID))

	// 入会立即对齐一次
	m.reconcile(st)
	return nil
}

// Leave 离开会话。管理端离开即删除文档结束会话（不做权限移交），
// 跟随端离开只取消订阅。未在会话中时是幂等空操作。
func (m *Manager) Leave(ctx context.Context) error {
	m.mu.Lock()
	role := m.role
	sessionID := m.sessionID
	unsub := m.unsubscribe
	m.role = model.RoleNone
	m.sessionID = ""
	m.unsubscribe = nil
	m.mu.Unlock()

	switch role {
	case model.RoleAdmin:
		if err := m.store.DeleteSession(ctx, sessionID); err != nil {
			return err
		}
	case model.RoleFollower:
		if unsub != nil {
			unsub()
		}
	default:
		return nil
	}

	logger.Info("离开会话",
		logger.String("sessionId", sessionID),
		logger.String("deviceId", m.deviceID))
	return nil
}

// State 读取当前会话的文档
func (m *Manager) State(ctx context.Context) (*model.SessionState, error) {
	m.mu.Lock()
	sessionID := m.sessionID
	m.mu.Unlock()
	if sessionID == "" {
		return nil, nil
	}
	return m.store.GetSession(ctx, sessionID)
}

// onTransportChanged 管理端路径：每次播放状态变化都整体覆盖会话文档。
// 写失败只记日志，下一次变化会带上最新快照重写。
func (m *Manager) onTransportChanged(snap model.TransportSnapshot) {
	m.mu.Lock()
	if m.role != model.RoleAdmin {
		m.mu.Unlock()
		return
	}
	st := &model.SessionState{
		SessionID:     m.sessionID,
		AdminDeviceID: m.deviceID,
		CreatedAt:     m.createdAt,
		Snapshot:      snap,
	}
	m.mu.Unlock()

	if err := m.store.SetSession(context.Background(), st); err != nil {
		logger.Warn("会话快照发布失败",
			logger.String("sessionId", st.SessionID),
			logger.ErrorField(err))
	}
}

// reconcile 跟随端路径：按节流窗口对齐远端快照。
// 两次生效调整之间至少间隔一个节流窗口，窗口内的推送直接丢弃，
// 下一次推送自带完整状态，不会丢失信息。
func (m *Manager) reconcile(st *model.SessionState) {
	tuning := m.tuning()
	debounce := time.Duration(tuning.FollowerDebounceMs) * time.Millisecond
	now := m.clk.Now()

	m.mu.Lock()
	if m.role != model.RoleFollower {
		m.mu.Unlock()
		return
	}
	if !m.lastApplied.IsZero() && now.Sub(m.lastApplied) < debounce {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	local := m.tp.Snapshot()
	remote := st.Snapshot
	applied := false
	ctx := context.Background()

	if remote.IsPlaying != local.IsPlaying {
		var err error
		if remote.IsPlaying {
			err = m.tp.Play(ctx)
		} else {
			err = m.tp.Pause(ctx)
		}
		if err != nil {
			logger.Warn("跟随播放状态失败", logger.ErrorField(err))
		} else {
			applied = true
		}
	}

	if math.Abs(remote.SeekPosition-local.SeekPosition) > tuning.SeekToleranceSec {
		if err := m.tp.Seek(ctx, remote.SeekPosition); err != nil {
			logger.Warn("跟随进度失败", logger.ErrorField(err))
		} else {
			applied = true
		}
	}

	if applied {
		m.mu.Lock()
		m.lastApplied = now
		m.mu.Unlock()
	}
}
