// Package transport 实现播放传输状态机。
// 它驱动当前歌曲的全部通道一起走 Idle → Loading → Ready ⇄ Playing ⇄ Paused
// 的状态迁移，并用固定周期的进度轮询判定整曲结束。
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"StemFM/core/channel"
	"StemFM/core/playback"
	"StemFM/logger"
	"StemFM/model"
)

var (
	// ErrNoSong 当前没有已加载的歌曲
	ErrNoSong = errors.New("没有已加载的歌曲")
	// ErrSuperseded 加载过程中被切歌取代，结果已丢弃
	ErrSuperseded = errors.New("加载已被切歌取代")
	// ErrBadSpeed 倍速必须为正
	ErrBadSpeed = errors.New("倍速必须为正数")
)

// Transport 播放传输
type Transport struct {
	engine channel.Engine

	mu       sync.Mutex
	pc       *playback.Context
	status   model.TransportStatus
	seekPos  float64
	duration float64
	speed    float64
	seeking  bool // 进度轮询必须跳过用户拖动期间的 tick
	finished bool
	gen      int64 // 加载代数，切歌的身份守卫

	pollEvery time.Duration
	pollStop  chan struct{}

	onChange   []func(model.TransportSnapshot)
	onFinished []func()
}

// New 创建传输，pollEvery 为进度轮询周期
func New(engine channel.Engine, pollEvery time.Duration) *Transport {
	if pollEvery <= 0 {
		pollEvery = 50 * time.Millisecond
	}
	return &Transport{
		engine:    engine,
		status:    model.TransportIdle,
		speed:     1.0,
		pollEvery: pollEvery,
	}
}

// OnChange 注册传输状态变更回调（onTransportChanged）
func (t *Transport) OnChange(fn func(model.TransportSnapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// OnFinished 注册整曲结束回调（队列控制器消费）
func (t *Transport) OnFinished(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFinished = append(t.onFinished, fn)
}

// Context 当前播放上下文，未加载时为 nil
func (t *Transport) Context() *playback.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pc
}

// Snapshot 当前传输状态快照
func (t *Transport) Snapshot() model.TransportSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Transport) snapshotLocked() model.TransportSnapshot {
	snap := model.TransportSnapshot{
		Status:        t.status,
		SeekPosition:  t.seekPos,
		Duration:      t.duration,
		IsPlaying:     t.status == model.TransportPlaying || t.status == model.TransportSeeking,
		PlaybackSpeed: t.speed,
		Finished:      t.finished,
	}
	if t.pc != nil {
		snap.SongID = t.pc.Song().ID
		snap.LoadedTrackIDs = t.pc.LoadedTrackIDs()
		snap.ActiveTrackIDs = t.pc.ActiveTrackIDs()
		snap.SoloedTrackIDs = t.pc.SoloedTrackIDs()
	}
	return snap
}

func (t *Transport) notify() {
	t.mu.Lock()
	snap := t.snapshotLocked()
	fns := make([]func(model.TransportSnapshot), len(t.onChange))
	copy(fns, t.onChange)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Load 加载歌曲：先并行卸载上一首的通道（尽力而为），再并行加载每条音轨。
// 全部通道落定（成功或失败都算落定）后进入 Ready；失败的通道标记为不可用，
// 本次加载生命周期内不再参与任何扇出。加载期间发生切歌时结果被丢弃。
func (t *Transport) Load(ctx context.Context, song *model.Song, resources []model.TrackResource, mix map[int64]*model.TrackMixState) (*playback.Context, error) {
	t.mu.Lock()
	t.gen++
	myGen := t.gen
	old := t.pc
	t.pc = nil
	t.status = model.TransportLoading
	t.seekPos = 0
	t.duration = 0
	t.speed = 1.0
	t.seeking = false
	t.finished = false
	t.stopPollLocked()
	t.mu.Unlock()
	t.notify()

	// 卸载上一首的通道，失败只记日志
	if old != nil {
		results := fanOut(ctx, old.Handles(), func(ctx context.Context, h channel.Handle) error {
			return h.Unload(ctx)
		})
		logFanFailures("unload", results)
	}

	// 并行加载每条音轨
	type loadResult struct {
		trackID int64
		h       channel.Handle
		err     error
	}
	ch := make(chan loadResult, len(resources))
	var wg sync.WaitGroup
	for _, res := range resources {
		wg.Add(1)
		go func(res model.TrackResource) {
			defer wg.Done()
			h, err := t.engine.Load(ctx, res)
			ch <- loadResult{trackID: res.TrackID, h: h, err: err}
		}(res)
	}
	wg.Wait()
	close(ch)

	handles := make(map[int64]channel.Handle)
	failed := make(map[int64]bool)
	for r := range ch {
		if r.err != nil {
			// 加载失败的通道本曲生命周期内不再重试
			failed[r.trackID] = true
			logger.Warn("音轨加载失败，本曲内排除该通道",
				logger.Int64("songId", song.ID),
				logger.Int64("trackId", r.trackID),
				logger.ErrorField(r.err))
			continue
		}
		handles[r.trackID] = r.h
	}

	t.mu.Lock()
	if t.gen != myGen {
		// 加载期间被切歌取代，丢弃结果
		t.mu.Unlock()
		results := fanOut(ctx, handles, func(ctx context.Context, h channel.Handle) error {
			return h.Unload(ctx)
		})
		logFanFailures("unload-superseded", results)
		return nil, ErrSuperseded
	}

	pc := playback.NewContext(song, handles, failed, mix)
	t.pc = pc
	t.status = model.TransportReady
	t.startPollLocked()
	t.mu.Unlock()
	t.notify()

	logger.Info("歌曲加载完成",
		logger.Int64("songId", song.ID),
		logger.Int("loaded", len(handles)),
		logger.Int("failed", len(failed)))

	return pc, nil
}

// Unload 卸载当前歌曲（切歌/退出时调用），通道卸载尽力而为
func (t *Transport) Unload(ctx context.Context) {
	t.mu.Lock()
	t.gen++
	old := t.pc
	t.pc = nil
	t.status = model.TransportIdle
	t.seekPos = 0
	t.duration = 0
	t.seeking = false
	t.finished = false
	t.stopPollLocked()
	t.mu.Unlock()

	if old != nil {
		results := fanOut(ctx, old.Handles(), func(ctx context.Context, h channel.Handle) error {
			return h.Unload(ctx)
		})
		logFanFailures("unload", results)
	}
	t.notify()
}

// Play 从 Ready/Paused/Finished 开始播放。
// 对每条激活通道并行下发 设位置 → 设倍速 → 播放 三连，整个批次不因
// 个别通道失败而阻塞。
func (t *Transport) Play(ctx context.Context) error {
	t.mu.Lock()
	if t.pc == nil {
		t.mu.Unlock()
		return ErrNoSong
	}
	switch t.status {
	case model.TransportReady, model.TransportPaused, model.TransportFinished, model.TransportPlaying:
	default:
		t.mu.Unlock()
		return ErrNoSong
	}
	pc := t.pc
	pos := t.seekPos
	speed := t.speed
	t.status = model.TransportPlaying
	t.finished = false
	t.mu.Unlock()

	active := activeHandles(pc)
	results := fanOut(ctx, active, func(ctx context.Context, h channel.Handle) error {
		if err := h.SetPosition(ctx, pos); err != nil {
			return err
		}
		if err := h.SetRate(ctx, speed); err != nil {
			return err
		}
		return h.Play(ctx)
	})
	logFanFailures("play", results)

	t.notify()
	return nil
}

// Pause 并行暂停所有通道
func (t *Transport) Pause(ctx context.Context) error {
	t.mu.Lock()
	if t.pc == nil {
		t.mu.Unlock()
		return ErrNoSong
	}
	pc := t.pc
	t.status = model.TransportPaused
	t.mu.Unlock()

	results := fanOut(ctx, pc.Handles(), func(ctx context.Context, h channel.Handle) error {
		return h.Pause(ctx)
	})
	logFanFailures("pause", results)

	t.notify()
	return nil
}

// Seek 拖动进度。设置 seeking 守卫让进度轮询跳过拖动期间的 tick，
// 向所有已加载通道扇出新位置（尽力而为），随后更新本地进度并清除守卫。
func (t *Transport) Seek(ctx context.Context, seconds float64) error {
	t.mu.Lock()
	if t.pc == nil {
		t.mu.Unlock()
		return ErrNoSong
	}
	pc := t.pc
	wasPlaying := t.status == model.TransportPlaying
	if wasPlaying {
		t.status = model.TransportSeeking
	}
	t.seeking = true
	t.mu.Unlock()

	results := fanOut(ctx, pc.Handles(), func(ctx context.Context, h channel.Handle) error {
		return h.SetPosition(ctx, seconds)
	})
	logFanFailures("seek", results)

	t.mu.Lock()
	t.seekPos = seconds
	t.seeking = false
	if wasPlaying && t.status == model.TransportSeeking {
		t.status = model.TransportPlaying
	}
	t.mu.Unlock()

	t.notify()
	return nil
}

// SetSpeed 设置倍速并扇出到所有通道
func (t *Transport) SetSpeed(ctx context.Context, speed float64) error {
	if speed <= 0 {
		return ErrBadSpeed
	}
	t.mu.Lock()
	if t.pc == nil {
		t.mu.Unlock()
		return ErrNoSong
	}
	pc := t.pc
	t.speed = speed
	t.mu.Unlock()

	results := fanOut(ctx, pc.Handles(), func(ctx context.Context, h channel.Handle) error {
		return h.SetRate(ctx, speed)
	})
	logFanFailures("setSpeed", results)

	t.notify()
	return nil
}

// Restart 停止所有通道、位置归零并重新播放（Finished → Playing 的路径）
func (t *Transport) Restart(ctx context.Context) error {
	t.mu.Lock()
	if t.pc == nil {
		t.mu.Unlock()
		return ErrNoSong
	}
	pc := t.pc
	t.seekPos = 0
	t.finished = false
	t.status = model.TransportReady
	t.mu.Unlock()

	results := fanOut(ctx, pc.Handles(), func(ctx context.Context, h channel.Handle) error {
		return h.Stop(ctx)
	})
	logFanFailures("restart-stop", results)

	return t.Play(ctx)
}

// activeHandles 加载成功且未静音的通道
func activeHandles(pc *playback.Context) map[int64]channel.Handle {
	out := make(map[int64]channel.Handle)
	for _, id := range pc.ActiveTrackIDs() {
		if h, ok := pc.Handle(id); ok {
			out[id] = h
		}
	}
	return out
}

// ========== 进度轮询 ==========

func (t *Transport) startPollLocked() {
	if t.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	t.pollStop = stop
	go t.pollLoop(stop)
}

func (t *Transport) stopPollLocked() {
	if t.pollStop != nil {
		close(t.pollStop)
		t.pollStop = nil
	}
}

func (t *Transport) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(t.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.pollOnce(context.Background())
		}
	}
}

// pollOnce 一次进度 tick：读取所有激活通道的位置/时长，
// 用第一条激活音轨更新进度条位置，并判定整曲是否结束。
// 拖动守卫生效期间直接跳过，避免覆盖用户操作。
func (t *Transport) pollOnce(ctx context.Context) {
	t.mu.Lock()
	if t.pc == nil || t.seeking || t.status != model.TransportPlaying {
		t.mu.Unlock()
		return
	}
	pc := t.pc
	myGen := t.gen
	t.mu.Unlock()

	activeIDs := pc.ActiveTrackIDs()
	// 没有激活音轨的歌曲永远不会结束
	if len(activeIDs) == 0 {
		return
	}

	first := true
	var firstPos, firstDur float64
	allEnded := true
	for _, id := range activeIDs {
		h, ok := pc.Handle(id)
		if !ok {
			continue
		}
		st, err := h.Status(ctx)
		if err != nil {
			allEnded = false
			continue
		}
		if first {
			first = false
			firstPos = st.Position
			firstDur = st.Duration
		}
		if st.Duration <= 0 || st.Position < st.Duration {
			allEnded = false
		}
	}
	if first {
		// 一个通道都没读到
		return
	}

	t.mu.Lock()
	// 轮询期间可能发生了切歌或拖动，重新校验再写
	if t.gen != myGen || t.seeking || t.status != model.TransportPlaying {
		t.mu.Unlock()
		return
	}
	t.seekPos = firstPos
	t.duration = firstDur
	var finishedFns []func()
	if allEnded {
		t.status = model.TransportFinished
		t.finished = true
		finishedFns = make([]func(), len(t.onFinished))
		copy(finishedFns, t.onFinished)
	}
	t.mu.Unlock()

	if allEnded {
		t.notify()
		for _, fn := range finishedFns {
			fn()
		}
	} else {
		t.notify()
	}
}
