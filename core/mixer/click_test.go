package mixer

import (
	"context"
	"testing"
	"time"

	"StemFM/core/clock"
)

func TestSingleClickTogglesSolo(t *testing.T) {
	clk := clock.NewFake()
	m, _ := newTestMixer(t, clk)
	ctx := context.Background()

	m.Click(ctx, 1)
	// 窗口未到期前什么都不发生
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 1.0, 3: 1.0})

	clk.Advance(300 * time.Millisecond)
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 0, 3: 0})
}

func TestDoubleClickTogglesMute(t *testing.T) {
	clk := clock.NewFake()
	m, _ := newTestMixer(t, clk)
	ctx := context.Background()

	m.Click(ctx, 2)
	clk.Advance(100 * time.Millisecond)
	m.Click(ctx, 2)

	checkGains(t, m, map[int64]float64{1: 1.0, 2: 0, 3: 1.0})

	// 定时器已取消，窗口走完不再触发独奏
	clk.Advance(time.Second)
	if got := m.EffectiveGains(); got[1] != 1.0 || got[3] != 1.0 {
		t.Errorf("gains = %v, solo must not fire after double click", got)
	}
}

func TestClicksOnDifferentTracksAreIndependent(t *testing.T) {
	clk := clock.NewFake()
	m, _ := newTestMixer(t, clk)
	ctx := context.Background()

	m.Click(ctx, 1)
	m.Click(ctx, 2)
	clk.Advance(300 * time.Millisecond)

	// 两条音轨各自独奏
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 1.0, 3: 0})
}

// firedTimer 模拟恰在按下瞬间已触发的窗口定时器
type firedTimer struct{}

func (firedTimer) Stop() bool { return false }

func TestClickRacingExpiredTimerStartsNewWindow(t *testing.T) {
	clk := clock.NewFake()
	m, _ := newTestMixer(t, clk)
	ctx := context.Background()

	// 定时器已触发、独奏已生效，但表项还没来得及清理
	m.ToggleSolo(ctx, 2)
	m.mu.Lock()
	m.pending[2] = firedTimer{}
	m.mu.Unlock()

	m.Click(ctx, 2)

	// 这次按下不得叠加成静音，独奏保持
	checkGains(t, m, map[int64]float64{1: 0, 2: 1.0, 3: 0})

	// 它作为新的首次点击重新开窗：窗口到期切回独奏关
	clk.Advance(300 * time.Millisecond)
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 1.0, 3: 1.0})
}

func TestSecondClickAfterWindowStartsNewClassification(t *testing.T) {
	clk := clock.NewFake()
	m, _ := newTestMixer(t, clk)
	ctx := context.Background()

	m.Click(ctx, 1)
	clk.Advance(300 * time.Millisecond) // 独奏开
	m.Click(ctx, 1)
	clk.Advance(300 * time.Millisecond) // 独奏关

	checkGains(t, m, map[int64]float64{1: 1.0, 2: 1.0, 3: 1.0})
}
