package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StemFM/core/clock"
	"StemFM/model"
)

// SimEngine 时钟驱动的模拟引擎。
// 位置随真实（或注入的假）时钟按倍速推进，到达时长后停住。
// 无界面运行时作为缺省引擎，测试里配合假时钟和故障注入使用。
type SimEngine struct {
	clk clock.Clock

	mu      sync.Mutex
	handles map[int64]*SimHandle
	loadErr map[int64]error
	gainErr map[int64]error
}

// NewSimEngine 创建模拟引擎，clk 为 nil 时使用真实时钟
func NewSimEngine(clk clock.Clock) *SimEngine {
	if clk == nil {
		clk = clock.New()
	}
	return &SimEngine{
		clk:     clk,
		handles: make(map[int64]*SimHandle),
		loadErr: make(map[int64]error),
		gainErr: make(map[int64]error),
	}
}

// FailLoad 注入指定音轨的加载失败
func (e *SimEngine) FailLoad(trackID int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadErr[trackID] = err
}

// FailGain 注入指定音轨的 SetGain 失败
func (e *SimEngine) FailGain(trackID int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gainErr[trackID] = err
}

// Load 加载音轨资源
func (e *SimEngine) Load(_ context.Context, res model.TrackResource) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadErr[res.TrackID]; err != nil {
		return nil, err
	}

	h := &SimHandle{
		clk:      e.clk,
		trackID:  res.TrackID,
		duration: res.Duration,
		rate:     1.0,
		gain:     1.0,
		loaded:   true,
		gainErr:  e.gainErr[res.TrackID],
		calls:    make(map[string]int),
	}
	e.handles[res.TrackID] = h
	return h, nil
}

// Handle 返回已加载的模拟句柄（测试检查用）
func (e *SimEngine) Handle(trackID int64) *SimHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[trackID]
}

// SimHandle 模拟通道句柄
type SimHandle struct {
	clk     clock.Clock
	trackID int64
	gainErr error

	mu       sync.Mutex
	loaded   bool
	playing  bool
	base     float64 // 锚点位置（秒）
	anchor   time.Time
	rate     float64
	gain     float64
	duration float64
	calls    map[string]int
}

// positionLocked 按时钟推算当前位置，需持有锁
func (h *SimHandle) positionLocked() float64 {
	pos := h.base
	if h.playing {
		pos += h.clk.Now().Sub(h.anchor).Seconds() * h.rate
	}
	if pos < 0 {
		pos = 0
	}
	if pos > h.duration {
		pos = h.duration
	}
	return pos
}

func (h *SimHandle) checkLoadedLocked() error {
	if !h.loaded {
		return fmt.Errorf("channel %d not loaded", h.trackID)
	}
	return nil
}

func (h *SimHandle) Play(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["play"]++
	if err := h.checkLoadedLocked(); err != nil {
		return err
	}
	if !h.playing {
		h.anchor = h.clk.Now()
		h.playing = true
	}
	return nil
}

func (h *SimHandle) Pause(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["pause"]++
	if err := h.checkLoadedLocked(); err != nil {
		return err
	}
	h.base = h.positionLocked()
	h.playing = false
	return nil
}

func (h *SimHandle) Stop(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["stop"]++
	if err := h.checkLoadedLocked(); err != nil {
		return err
	}
	h.base = 0
	h.playing = false
	return nil
}

func (h *SimHandle) SetPosition(_ context.Context, seconds float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["setPosition"]++
	if err := h.checkLoadedLocked(); err != nil {
		return err
	}
	h.base = seconds
	h.anchor = h.clk.Now()
	return nil
}

func (h *SimHandle) SetRate(_ context.Context, rate float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["setRate"]++
	if err := h.checkLoadedLocked(); err != nil {
		return err
	}
	h.base = h.positionLocked()
	h.anchor = h.clk.Now()
	h.rate = rate
	return nil
}

func (h *SimHandle) SetGain(_ context.Context, gain float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["setGain"]++
	if h.gainErr != nil {
		return h.gainErr
	}
	if err := h.checkLoadedLocked(); err != nil {
		return err
	}
	h.gain = gain
	return nil
}

func (h *SimHandle) Status(_ context.Context) (Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["status"]++
	if err := h.checkLoadedLocked(); err != nil {
		return Status{}, err
	}
	return Status{Loaded: true, Position: h.positionLocked(), Duration: h.duration}, nil
}

func (h *SimHandle) Unload(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["unload"]++
	h.loaded = false
	h.playing = false
	return nil
}

// Gain 当前增益（测试检查用）
func (h *SimHandle) Gain() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gain
}

// Rate 当前倍速（测试检查用）
func (h *SimHandle) Rate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

// Calls 某操作被调用的次数（测试检查用）
func (h *SimHandle) Calls(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[op]
}

// Loaded 是否仍处于加载状态（测试检查用）
func (h *SimHandle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}
