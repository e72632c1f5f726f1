package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	clk := NewFake()
	var order []int
	clk.AfterFunc(200*time.Millisecond, func() { order = append(order, 2) })
	clk.AfterFunc(100*time.Millisecond, func() { order = append(order, 1) })
	clk.AfterFunc(500*time.Millisecond, func() { order = append(order, 3) })

	clk.Advance(300 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}

	clk.Advance(300 * time.Millisecond)
	if len(order) != 3 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestFakeTimerStop(t *testing.T) {
	clk := NewFake()
	fired := false
	timer := clk.AfterFunc(100*time.Millisecond, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop before firing should return true")
	}
	clk.Advance(time.Second)
	if fired {
		t.Error("stopped timer must not fire")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}
}

func TestFakeTimerRearmInCallback(t *testing.T) {
	clk := NewFake()
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			clk.AfterFunc(10*time.Millisecond, tick)
		}
	}
	clk.AfterFunc(10*time.Millisecond, tick)

	clk.Advance(10 * time.Millisecond)
	clk.Advance(10 * time.Millisecond)
	clk.Advance(10 * time.Millisecond)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestFakeNow(t *testing.T) {
	clk := NewFake()
	before := clk.Now()
	clk.Advance(42 * time.Second)
	if got := clk.Now().Sub(before); got != 42*time.Second {
		t.Errorf("elapsed = %v, want 42s", got)
	}
}
