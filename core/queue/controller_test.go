package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"StemFM/core/channel"
	"StemFM/core/clock"
	"StemFM/core/transport"
	"StemFM/model"
)

// fakeLoader 直接往传输层装一首单音轨歌曲，并记录加载顺序
type fakeLoader struct {
	tp *transport.Transport

	mu     sync.Mutex
	loaded []int64
}

func (l *fakeLoader) LoadSong(ctx context.Context, songID int64) error {
	l.mu.Lock()
	l.loaded = append(l.loaded, songID)
	l.mu.Unlock()

	song := &model.Song{
		ID:     songID,
		Tracks: []model.Track{{ID: songID * 10, SongID: songID, Name: "Mix", Position: 0, Duration: 60}},
	}
	resources := []model.TrackResource{{TrackID: songID * 10, Duration: 60}}
	_, err := l.tp.Load(ctx, song, resources, nil)
	return err
}

func (l *fakeLoader) loads() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int64, len(l.loaded))
	copy(out, l.loaded)
	return out
}

func newTestController(t *testing.T) (*Controller, *transport.Transport, *fakeLoader) {
	t.Helper()
	eng := channel.NewSimEngine(clock.NewFake())
	tp := transport.New(eng, time.Hour)
	loader := &fakeLoader{tp: tp}
	return New(tp, loader), tp, loader
}

func TestStartPlaylistAutoPlays(t *testing.T) {
	c, tp, loader := newTestController(t)

	if err := c.Start(context.Background(), []int64{1, 2, 3}, model.QueueModePlaylist, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := loader.loads(); len(got) != 1 || got[0] != 1 {
		t.Errorf("loads = %v, want [1]", got)
	}
	if snap := tp.Snapshot(); !snap.IsPlaying {
		t.Errorf("transport = %+v, playlist start should auto play", snap)
	}
	if snap := c.Snapshot(); snap.Status != model.QueuePlaying || snap.CurrentIndex != 0 {
		t.Errorf("queue = %+v, want playing at index 0", snap)
	}
}

func TestStartFilteredListOnlyLoads(t *testing.T) {
	c, tp, _ := newTestController(t)

	if err := c.Start(context.Background(), []int64{1, 2}, model.QueueModeFilteredList, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap := tp.Snapshot(); snap.IsPlaying || snap.Status != model.TransportReady {
		t.Errorf("transport = %+v, filtered list start must not auto play", snap)
	}
}

func TestStartValidation(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	if err := c.Start(ctx, nil, model.QueueModePlaylist, 0); err != ErrEmptyQueue {
		t.Errorf("empty start = %v, want ErrEmptyQueue", err)
	}
	if err := c.Start(ctx, []int64{1}, model.QueueModePlaylist, 3); err != ErrIndexOutOfRange {
		t.Errorf("bad index = %v, want ErrIndexOutOfRange", err)
	}
}

func TestFinishedAdvancesToNext(t *testing.T) {
	c, tp, loader := newTestController(t)
	ctx := context.Background()

	c.Start(ctx, []int64{1, 2}, model.QueueModeFilteredList, 0)
	c.handleFinished()

	if got := loader.loads(); len(got) != 2 || got[1] != 2 {
		t.Errorf("loads = %v, want [1 2]", got)
	}
	// 自动推进总是接着播，即使是 FilteredList 模式
	if snap := tp.Snapshot(); !snap.IsPlaying {
		t.Errorf("transport = %+v, auto advance should play", snap)
	}
	if snap := c.Snapshot(); snap.CurrentIndex != 1 {
		t.Errorf("index = %d, want 1", snap.CurrentIndex)
	}
}

func TestManualNextInFilteredListDoesNotAutoPlay(t *testing.T) {
	c, tp, _ := newTestController(t)
	ctx := context.Background()

	c.Start(ctx, []int64{1, 2}, model.QueueModeFilteredList, 0)
	if err := c.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if snap := tp.Snapshot(); snap.IsPlaying {
		t.Errorf("transport = %+v, manual next in filtered list must not auto play", snap)
	}
}

func TestManualNextInPlaylistAutoPlays(t *testing.T) {
	c, tp, _ := newTestController(t)
	ctx := context.Background()

	c.Start(ctx, []int64{1, 2}, model.QueueModePlaylist, 0)
	if err := c.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if snap := tp.Snapshot(); !snap.IsPlaying {
		t.Errorf("transport = %+v, playlist next should auto play", snap)
	}
}

func TestNavigationBounds(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	c.Start(ctx, []int64{1, 2}, model.QueueModePlaylist, 0)
	if err := c.Previous(ctx); err != ErrIndexOutOfRange {
		t.Errorf("Previous at head = %v, want ErrIndexOutOfRange", err)
	}
	if err := c.JumpTo(ctx, 5); err != ErrIndexOutOfRange {
		t.Errorf("JumpTo(5) = %v, want ErrIndexOutOfRange", err)
	}
	c.Next(ctx)
	if err := c.Next(ctx); err != ErrIndexOutOfRange {
		t.Errorf("Next at tail = %v, want ErrIndexOutOfRange", err)
	}
}

func TestRepeatSingleRestartsCurrent(t *testing.T) {
	c, tp, loader := newTestController(t)
	ctx := context.Background()

	c.Start(ctx, []int64{1, 2}, model.QueueModePlaylist, 0)
	c.SetRepeat(true, false)
	c.handleFinished()

	// 不加载下一首，重播当前曲
	if got := loader.loads(); len(got) != 1 {
		t.Errorf("loads = %v, repeat single must not advance", got)
	}
	if snap := tp.Snapshot(); !snap.IsPlaying || snap.SongID != 1 {
		t.Errorf("transport = %+v, want replaying song 1", snap)
	}
	if snap := c.Snapshot(); snap.CurrentIndex != 0 {
		t.Errorf("index = %d, want 0", snap.CurrentIndex)
	}
}

func TestRepeatQueueWrapsToHead(t *testing.T) {
	c, _, loader := newTestController(t)
	ctx := context.Background()

	c.Start(ctx, []int64{1, 2}, model.QueueModePlaylist, 1)
	c.SetRepeat(false, true)
	c.handleFinished()

	got := loader.loads()
	if len(got) != 2 || got[1] != 1 {
		t.Errorf("loads = %v, want wrap to song 1", got)
	}
	if snap := c.Snapshot(); snap.CurrentIndex != 0 {
		t.Errorf("index = %d, want 0", snap.CurrentIndex)
	}
}

func TestQueueCompletesExactlyOnce(t *testing.T) {
	c, _, loader := newTestController(t)
	ctx := context.Background()

	completed := 0
	c.OnComplete(func() { completed++ })

	c.Start(ctx, []int64{1, 2}, model.QueueModePlaylist, 0)
	c.handleFinished() // 1 → 2
	c.handleFinished() // 2 结束，队列收尾

	if snap := c.Snapshot(); snap.Status != model.QueueComplete {
		t.Errorf("status = %v, want complete", snap.Status)
	}
	if completed != 1 {
		t.Errorf("complete callbacks = %d, want 1", completed)
	}

	// 收尾后的 Finished 事件不再加载任何歌
	before := len(loader.loads())
	c.handleFinished()
	if got := loader.loads(); len(got) != before {
		t.Errorf("loads after complete = %v, want no further loads", got)
	}
	if completed != 1 {
		t.Errorf("complete callbacks = %d after extra event, want 1", completed)
	}
}
