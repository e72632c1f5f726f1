package mixer

import (
	"context"

	"StemFM/core/clock"
)

// Click 单触点点击分类。
// UI 每条音轨只有一个点击目标，需要区分"静音"（双击）和"独奏"（单击）：
// 首次点击启动窗口定时器；窗口内出现第二次点击则取消定时器并切换静音；
// 定时器到期且无第二次点击则切换独奏。
func (m *Mixer) Click(ctx context.Context, trackID int64) {
	m.mu.Lock()
	if t, ok := m.pending[trackID]; ok {
		delete(m.pending, trackID)
		if !t.Stop() {
			// 定时器恰好已触发，独奏走的是定时器路径；
			// 这次按下不能再算第二次点击，按新的首次点击重新开窗
			m.armLocked(trackID)
			m.mu.Unlock()
			return
		}
		// 窗口内的第二次点击 → 静音
		m.mu.Unlock()
		m.ToggleMute(ctx, trackID)
		return
	}

	m.armLocked(trackID)
	m.mu.Unlock()
}

// armLocked 启动点击窗口定时器，需持有锁。
// 回调只清理自己对应的表项，迟到的回调不得误删重新开窗的定时器。
func (m *Mixer) armLocked(trackID int64) {
	var t clock.Timer
	t = m.clk.AfterFunc(m.clickWin, func() {
		m.mu.Lock()
		if m.pending[trackID] != t {
			m.mu.Unlock()
			return
		}
		delete(m.pending, trackID)
		m.mu.Unlock()
		// 窗口到期无第二次点击 → 独奏
		m.ToggleSolo(context.Background(), trackID)
	})
	m.pending[trackID] = t
}
