// Package clock 提供可注入的时钟抽象。
// 点击分类、跟随端去抖等小状态机依赖定时器，通过注入时钟可以
// 在测试中确定性地推进时间，不需要真实休眠。
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer 可取消的定时任务
type Timer interface {
	// Stop 取消定时任务，已触发的返回 false
	Stop() bool
}

// Clock 时钟抽象
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// ========== 真实时钟 ==========

type realClock struct{}

// New 返回基于 time 包的真实时钟
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ========== 假时钟（测试用） ==========

// Fake 手动推进的假时钟
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clk     *Fake
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

// NewFake 创建假时钟，起始时间任意固定值
func NewFake() *Fake {
	return &Fake{now: time.Unix(1700000000, 0)}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance 推进时钟并触发到期的定时任务（按到期先后顺序）
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	deadline := c.now

	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.when.After(deadline) {
			t.fired = true
			due = append(due, t)
		} else if !t.stopped && !t.fired {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	sort.Slice(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
	c.mu.Unlock()

	// 回调在锁外执行，允许回调里再注册定时器
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
