// Package mixer 把每条音轨的 {音量, 静音, 独奏} 解析为有效增益并下发到通道。
package mixer

import (
	"context"
	"sync"
	"time"

	"StemFM/core/clock"
	"StemFM/core/playback"
	"StemFM/logger"
	"StemFM/model"
)

// Saver 混音状态的直写存储。
// 每次混音变更都会异步写入一次，失败只记日志（后台写入对用户静默）。
type Saver interface {
	Save(ctx context.Context, userID, songID, trackID int64, st model.TrackMixState) error
}

// Mixer 音轨混音器
type Mixer struct {
	pc     *playback.Context
	saver  Saver
	userID int64

	mu       sync.Mutex
	pending  map[int64]clock.Timer // 点击分类的待定定时器
	clk      clock.Clock
	clickWin time.Duration
	onChange []func()
}

// New 创建混音器。saver 可为 nil（无持久化，测试场景）。
func New(pc *playback.Context, saver Saver, userID int64, clk clock.Clock, clickWindow time.Duration) *Mixer {
	if clk == nil {
		clk = clock.New()
	}
	if clickWindow <= 0 {
		clickWindow = 300 * time.Millisecond
	}
	return &Mixer{
		pc:       pc,
		saver:    saver,
		userID:   userID,
		pending:  make(map[int64]clock.Timer),
		clk:      clk,
		clickWin: clickWindow,
	}
}

// OnChange 注册混音变更回调（onMixChanged）
func (m *Mixer) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *Mixer) notify() {
	m.mu.Lock()
	fns := make([]func(), len(m.onChange))
	copy(fns, m.onChange)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// EffectiveGains 解析全部音轨的有效增益。
// 规则：静音恒为 0；存在任一独奏时，只有独奏音轨出声；否则按音量出声。
func (m *Mixer) EffectiveGains() map[int64]float64 {
	mix := m.pc.MixMap()
	anySolo := false
	for _, t := range m.pc.Song().Tracks {
		if st, ok := mix[t.ID]; ok && st.Solo {
			anySolo = true
			break
		}
	}

	gains := make(map[int64]float64, len(m.pc.Song().Tracks))
	for _, t := range m.pc.Song().Tracks {
		st, ok := mix[t.ID]
		if !ok {
			st = model.TrackMixState{Volume: 1.0}
		}
		switch {
		case st.Mute:
			gains[t.ID] = 0
		case anySolo && !st.Solo:
			gains[t.ID] = 0
		default:
			gains[t.ID] = st.Volume
		}
	}
	return gains
}

// SetVolume 更新音量并只重算该通道的增益
func (m *Mixer) SetVolume(ctx context.Context, trackID int64, v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	st := m.pc.Mix(trackID)
	st.Volume = v
	m.pc.SetMix(trackID, st)

	m.applyOne(ctx, trackID)
	m.enqueueSave(trackID, st)
	m.notify()
}

// ToggleMute 切换静音。静音影响全局独奏解析，所有通道重算增益。
func (m *Mixer) ToggleMute(ctx context.Context, trackID int64) {
	st := m.pc.Mix(trackID)
	st.Mute = !st.Mute
	m.pc.SetMix(trackID, st)

	m.ApplyAll(ctx)
	m.enqueueSave(trackID, st)
	m.notify()
}

// ToggleSolo 切换独奏。独奏影响全局解析，所有通道重算增益。
func (m *Mixer) ToggleSolo(ctx context.Context, trackID int64) {
	st := m.pc.Mix(trackID)
	st.Solo = !st.Solo
	m.pc.SetMix(trackID, st)

	m.ApplyAll(ctx)
	m.enqueueSave(trackID, st)
	m.notify()
}

// ApplyAll 重算并下发全部通道的增益
func (m *Mixer) ApplyAll(ctx context.Context) {
	gains := m.EffectiveGains()
	for trackID, gain := range gains {
		m.setGain(ctx, trackID, gain)
	}
}

// applyOne 重算并下发单个通道的增益
func (m *Mixer) applyOne(ctx context.Context, trackID int64) {
	gains := m.EffectiveGains()
	if gain, ok := gains[trackID]; ok {
		m.setGain(ctx, trackID, gain)
	}
}

// setGain 下发增益，失败忽略：混音状态是权威，音频通道允许短暂滞后
func (m *Mixer) setGain(ctx context.Context, trackID int64, gain float64) {
	h, ok := m.pc.Handle(trackID)
	if !ok {
		return
	}
	if err := h.SetGain(ctx, gain); err != nil {
		logger.Debug("下发增益失败，忽略",
			logger.Int64("trackId", trackID),
			logger.Float64("gain", gain),
			logger.ErrorField(err))
	}
}

// enqueueSave 异步直写混音状态，失败只记日志
func (m *Mixer) enqueueSave(trackID int64, st model.TrackMixState) {
	if m.saver == nil {
		return
	}
	songID := m.pc.Song().ID
	userID := m.userID
	go func() {
		if err := m.saver.Save(context.Background(), userID, songID, trackID, st); err != nil {
			logger.Warn("混音状态写入失败",
				logger.Int64("userId", userID),
				logger.Int64("songId", songID),
				logger.Int64("trackId", trackID),
				logger.ErrorField(err))
		}
	}()
}

// ApplyRemote 应用远端推送的整首歌混音状态。
// 订阅生效后远端存储是权威，本地未保存的改动会被覆盖。
func (m *Mixer) ApplyRemote(ctx context.Context, states map[int64]model.TrackMixState) {
	for trackID, st := range states {
		m.pc.SetMix(trackID, st)
	}
	m.ApplyAll(ctx)
	m.notify()
}
