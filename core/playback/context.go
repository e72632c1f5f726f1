// Package playback 持有"当前歌曲"的播放上下文。
// 上下文是显式构造、显式销毁的值：随歌曲加载创建，随切歌销毁，
// 混音器和传输层都只操作传入的上下文，不依赖任何环境全局状态。
package playback

import (
	"sync"

	"StemFM/core/channel"
	"StemFM/model"
)

// Context 当前歌曲的播放上下文。
// 每台设备同一时刻最多存在一个实例。
type Context struct {
	song *model.Song

	mu      sync.RWMutex
	handles map[int64]channel.Handle // 加载成功的通道
	failed  map[int64]bool           // 加载失败的音轨，本次加载生命周期内不再参与扇出
	mix     map[int64]*model.TrackMixState
}

// NewContext 创建播放上下文。
// handles 为加载成功的通道，failed 为加载失败的音轨集合，
// mix 为从状态存储取回（或默认合成）的混音状态。
func NewContext(song *model.Song, handles map[int64]channel.Handle, failed map[int64]bool, mix map[int64]*model.TrackMixState) *Context {
	if handles == nil {
		handles = make(map[int64]channel.Handle)
	}
	if failed == nil {
		failed = make(map[int64]bool)
	}
	if mix == nil {
		mix = make(map[int64]*model.TrackMixState)
	}
	return &Context{song: song, handles: handles, failed: failed, mix: mix}
}

// Song 当前歌曲（播放期间只读）
func (c *Context) Song() *model.Song {
	return c.song
}

// Handle 取指定音轨的通道，加载失败的音轨返回 false
func (c *Context) Handle(trackID int64) (channel.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handles[trackID]
	return h, ok
}

// Handles 所有可用通道的副本
func (c *Context) Handles() map[int64]channel.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]channel.Handle, len(c.handles))
	for id, h := range c.handles {
		out[id] = h
	}
	return out
}

// Failed 指定音轨是否加载失败
func (c *Context) Failed(trackID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failed[trackID]
}

// LoadedTrackIDs 按歌曲内顺序返回加载成功的音轨ID
func (c *Context) LoadedTrackIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, 0, len(c.handles))
	for _, t := range c.song.Tracks {
		if _, ok := c.handles[t.ID]; ok {
			out = append(out, t.ID)
		}
	}
	return out
}

// Mix 取指定音轨的混音状态，缺失时返回默认值
func (c *Context) Mix(trackID int64) model.TrackMixState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if st, ok := c.mix[trackID]; ok {
		return *st
	}
	return *model.DefaultMixState(0, c.song.ID, trackID)
}

// SetMix 覆盖指定音轨的混音状态
func (c *Context) SetMix(trackID int64, st model.TrackMixState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := st
	c.mix[trackID] = &cp
}

// MixMap 全部混音状态的副本
func (c *Context) MixMap() map[int64]model.TrackMixState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]model.TrackMixState, len(c.mix))
	for id, st := range c.mix {
		out[id] = *st
	}
	return out
}

// ActiveTrackIDs 未静音且加载成功的音轨，按歌曲内顺序。
// 传输层用它决定进度与结束判定的参与者。
func (c *Context) ActiveTrackIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, 0, len(c.handles))
	for _, t := range c.song.Tracks {
		if _, ok := c.handles[t.ID]; !ok {
			continue
		}
		if st, ok := c.mix[t.ID]; ok && st.Mute {
			continue
		}
		out = append(out, t.ID)
	}
	return out
}

// SoloedTrackIDs 处于独奏的音轨，按歌曲内顺序
func (c *Context) SoloedTrackIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []int64
	for _, t := range c.song.Tracks {
		if st, ok := c.mix[t.ID]; ok && st.Solo {
			out = append(out, t.ID)
		}
	}
	return out
}
