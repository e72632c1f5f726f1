// Package queue 在传输层之上实现歌曲队列的自动推进。
package queue

import (
	"context"
	"errors"
	"sync"

	"StemFM/core/transport"
	"StemFM/logger"
	"StemFM/model"
)

var (
	// ErrEmptyQueue 队列为空
	ErrEmptyQueue = errors.New("队列为空")
	// ErrIndexOutOfRange 目标序号越界
	ErrIndexOutOfRange = errors.New("目标序号越界")
)

// SongLoader 整首歌的加载入口：取歌曲、解析音轨资源、取混音状态并
// 完成传输层加载。由上层的播放服务实现。
type SongLoader interface {
	LoadSong(ctx context.Context, songID int64) error
}

// Controller 队列控制器。
// 持有有序歌曲列表、当前序号和循环模式，消费传输层的 Finished 事件
// 决定是重播、推进还是收尾。
type Controller struct {
	tp     *transport.Transport
	loader SongLoader

	mu           sync.Mutex
	songIDs      []int64
	idx          int
	mode         model.QueueMode
	repeatSingle bool
	repeatQueue  bool
	status       model.QueueStatus
	autoStart    bool // 一次性标志：仅 Finished 驱动的推进路径置位
	onComplete   []func()
}

// New 创建队列控制器并挂接传输层的 Finished 事件
func New(tp *transport.Transport, loader SongLoader) *Controller {
	c := &Controller{
		tp:     tp,
		loader: loader,
		status: model.QueueIdle,
	}
	tp.OnFinished(c.handleFinished)
	return c
}

// OnComplete 注册队列播完回调（onQueueComplete）
func (c *Controller) OnComplete(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = append(c.onComplete, fn)
}

// Snapshot 队列状态快照
func (c *Controller) Snapshot() model.QueueSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, len(c.songIDs))
	copy(ids, c.songIDs)
	return model.QueueSnapshot{
		SongIDs:      ids,
		CurrentIndex: c.idx,
		Mode:         c.mode,
		RepeatSingle: c.repeatSingle,
		RepeatQueue:  c.repeatQueue,
		Status:       c.status,
	}
}

// SetRepeat 设置循环模式
func (c *Controller) SetRepeat(single, queue bool) {
	c.mu.Lock()
	c.repeatSingle = single
	c.repeatQueue = queue
	c.mu.Unlock()
}

// Start 从歌单或列表视图开始播放。
// Playlist 模式在传输层就绪后自动开始播放，FilteredList 模式只加载。
func (c *Controller) Start(ctx context.Context, songIDs []int64, mode model.QueueMode, startIndex int) error {
	if len(songIDs) == 0 {
		return ErrEmptyQueue
	}
	if startIndex < 0 || startIndex >= len(songIDs) {
		return ErrIndexOutOfRange
	}

	c.mu.Lock()
	c.songIDs = make([]int64, len(songIDs))
	copy(c.songIDs, songIDs)
	c.idx = startIndex
	c.mode = mode
	c.status = model.QueuePlaying
	c.autoStart = false
	c.mu.Unlock()

	return c.loadCurrent(ctx, mode == model.QueueModePlaylist)
}

// Next 切到下一首。切歌总是先完整卸载当前通道再加载目标歌曲。
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	if len(c.songIDs) == 0 {
		c.mu.Unlock()
		return ErrEmptyQueue
	}
	target := c.idx + 1
	if target >= len(c.songIDs) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	c.idx = target
	c.mu.Unlock()

	return c.loadCurrent(ctx, c.consumeAutoStart())
}

// Previous 切到上一首
func (c *Controller) Previous(ctx context.Context) error {
	c.mu.Lock()
	if len(c.songIDs) == 0 {
		c.mu.Unlock()
		return ErrEmptyQueue
	}
	target := c.idx - 1
	if target < 0 {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	c.idx = target
	c.mu.Unlock()

	return c.loadCurrent(ctx, c.consumeAutoStart())
}

// JumpTo 跳到指定序号
func (c *Controller) JumpTo(ctx context.Context, i int) error {
	c.mu.Lock()
	if len(c.songIDs) == 0 {
		c.mu.Unlock()
		return ErrEmptyQueue
	}
	if i < 0 || i >= len(c.songIDs) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	c.idx = i
	c.mu.Unlock()

	return c.loadCurrent(ctx, c.consumeAutoStart())
}

// consumeAutoStart 消费一次性自动开播标志。
// Playlist 模式下导航总是自动开播；FilteredList 模式只有
// Finished 驱动的推进才开播。
func (c *Controller) consumeAutoStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	auto := c.autoStart
	c.autoStart = false
	return auto || c.mode == model.QueueModePlaylist
}

// loadCurrent 加载当前序号的歌曲，必要时自动开播
func (c *Controller) loadCurrent(ctx context.Context, autoPlay bool) error {
	c.mu.Lock()
	if c.idx < 0 || c.idx >= len(c.songIDs) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	songID := c.songIDs[c.idx]
	c.mu.Unlock()

	if err := c.loader.LoadSong(ctx, songID); err != nil {
		return err
	}
	if autoPlay {
		return c.tp.Play(ctx)
	}
	return nil
}

// handleFinished 消费传输层的整曲结束事件。
// 单曲循环重播当前曲；还有下一首则置位一次性标志并推进；
// 队列循环回到头部；否则进入 Complete 并通知一次，之后不再加载。
func (c *Controller) handleFinished() {
	c.mu.Lock()
	if c.status != model.QueuePlaying {
		c.mu.Unlock()
		return
	}
	repeatSingle := c.repeatSingle
	repeatQueue := c.repeatQueue
	hasNext := c.idx+1 < len(c.songIDs)
	c.mu.Unlock()

	ctx := context.Background()

	switch {
	case repeatSingle:
		if err := c.tp.Restart(ctx); err != nil {
			logger.Warn("单曲循环重播失败", logger.ErrorField(err))
		}

	case hasNext:
		c.mu.Lock()
		c.idx++
		c.autoStart = true
		c.mu.Unlock()
		if err := c.loadCurrent(ctx, c.consumeAutoStart()); err != nil {
			logger.Warn("自动切到下一首失败", logger.ErrorField(err))
		}

	case repeatQueue:
		c.mu.Lock()
		c.idx = 0
		c.autoStart = true
		c.mu.Unlock()
		if err := c.loadCurrent(ctx, c.consumeAutoStart()); err != nil {
			logger.Warn("队列循环回到头部失败", logger.ErrorField(err))
		}

	default:
		c.mu.Lock()
		c.status = model.QueueComplete
		fns := make([]func(), len(c.onComplete))
		copy(fns, c.onComplete)
		c.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}
