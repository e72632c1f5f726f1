package mixer

import (
	"context"
	"testing"
	"time"

	"StemFM/core/channel"
	"StemFM/core/clock"
	"StemFM/core/playback"
	"StemFM/model"
)

func newTestMixer(t *testing.T, clk clock.Clock) (*Mixer, *channel.SimEngine) {
	t.Helper()
	song := &model.Song{
		ID: 7,
		Tracks: []model.Track{
			{ID: 1, SongID: 7, Name: "Drums", Position: 0, Duration: 120},
			{ID: 2, SongID: 7, Name: "Bass", Position: 1, Duration: 120},
			{ID: 3, SongID: 7, Name: "Vocals", Position: 2, Duration: 120},
		},
	}
	eng := channel.NewSimEngine(clk)
	handles := make(map[int64]channel.Handle)
	for _, tr := range song.Tracks {
		h, err := eng.Load(context.Background(), model.TrackResource{TrackID: tr.ID, Duration: tr.Duration})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		handles[tr.ID] = h
	}
	pc := playback.NewContext(song, handles, nil, nil)
	return New(pc, nil, 1, clk, 300*time.Millisecond), eng
}

func checkGains(t *testing.T, m *Mixer, want map[int64]float64) {
	t.Helper()
	got := m.EffectiveGains()
	for id, w := range want {
		if got[id] != w {
			t.Errorf("gain[%d] = %v, want %v", id, got[id], w)
		}
	}
}

func TestDefaultGains(t *testing.T) {
	m, _ := newTestMixer(t, clock.NewFake())
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 1.0, 3: 1.0})
}

func TestMuteSilencesTrack(t *testing.T) {
	m, eng := newTestMixer(t, clock.NewFake())
	ctx := context.Background()

	m.ToggleMute(ctx, 2)
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 0, 3: 1.0})
	if g := eng.Handle(2).Gain(); g != 0 {
		t.Errorf("channel 2 gain = %v, want 0", g)
	}

	// 再切一次恢复
	m.ToggleMute(ctx, 2)
	checkGains(t, m, map[int64]float64{2: 1.0})
}

func TestSoloSilencesOthers(t *testing.T) {
	m, eng := newTestMixer(t, clock.NewFake())
	ctx := context.Background()

	m.SetVolume(ctx, 1, 0.8)
	m.ToggleSolo(ctx, 1)
	checkGains(t, m, map[int64]float64{1: 0.8, 2: 0, 3: 0})

	// 第二条也独奏，两条都出声
	m.ToggleSolo(ctx, 2)
	checkGains(t, m, map[int64]float64{1: 0.8, 2: 1.0, 3: 0})

	if g := eng.Handle(3).Gain(); g != 0 {
		t.Errorf("channel 3 gain = %v, want 0", g)
	}
}

func TestMuteBeatsSolo(t *testing.T) {
	m, _ := newTestMixer(t, clock.NewFake())
	ctx := context.Background()

	m.ToggleSolo(ctx, 1)
	m.ToggleMute(ctx, 1)
	// 静音优先于独奏：独奏声部自己也哑了，其余声部仍被独奏压制
	checkGains(t, m, map[int64]float64{1: 0, 2: 0, 3: 0})
}

func TestMutedTrackStaysSilentAcrossSolos(t *testing.T) {
	m, eng := newTestMixer(t, clock.NewFake())
	ctx := context.Background()

	// 先静音 2
	m.ToggleMute(ctx, 2)
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 0, 3: 1.0})

	// 独奏 1：2 保持静音，3 被独奏压制
	m.ToggleSolo(ctx, 1)
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 0, 3: 0})

	// 再独奏 3：1、3 同响，2 仍然静音
	m.ToggleSolo(ctx, 3)
	checkGains(t, m, map[int64]float64{1: 1.0, 2: 0, 3: 1.0})
	if g := eng.Handle(2).Gain(); g != 0 {
		t.Errorf("channel 2 gain = %v, want 0", g)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	m, eng := newTestMixer(t, clock.NewFake())
	ctx := context.Background()

	m.SetVolume(ctx, 1, 1.7)
	checkGains(t, m, map[int64]float64{1: 1.0})

	m.SetVolume(ctx, 1, -0.3)
	checkGains(t, m, map[int64]float64{1: 0})
	if g := eng.Handle(1).Gain(); g != 0 {
		t.Errorf("channel 1 gain = %v, want 0", g)
	}
}

func TestGainFailureIgnored(t *testing.T) {
	clk := clock.NewFake()
	song := &model.Song{
		ID: 7,
		Tracks: []model.Track{
			{ID: 1, SongID: 7, Name: "Drums", Position: 0, Duration: 60},
			{ID: 2, SongID: 7, Name: "Bass", Position: 1, Duration: 60},
		},
	}
	eng := channel.NewSimEngine(clk)
	eng.FailGain(2, context.DeadlineExceeded)
	handles := make(map[int64]channel.Handle)
	for _, tr := range song.Tracks {
		h, _ := eng.Load(context.Background(), model.TrackResource{TrackID: tr.ID, Duration: tr.Duration})
		handles[tr.ID] = h
	}
	m := New(playback.NewContext(song, handles, nil, nil), nil, 1, clk, 0)

	// 下发失败不影响混音状态本身
	m.ToggleSolo(context.Background(), 2)
	checkGains(t, m, map[int64]float64{1: 0, 2: 1.0})
}

type recordingSaver struct {
	ch chan model.TrackMixState
}

func (s *recordingSaver) Save(_ context.Context, _, _, _ int64, st model.TrackMixState) error {
	s.ch <- st
	return nil
}

func TestChangesAreSaved(t *testing.T) {
	clk := clock.NewFake()
	song := &model.Song{
		ID:     7,
		Tracks: []model.Track{{ID: 1, SongID: 7, Name: "Drums", Position: 0, Duration: 60}},
	}
	eng := channel.NewSimEngine(clk)
	h, _ := eng.Load(context.Background(), model.TrackResource{TrackID: 1, Duration: 60})
	saver := &recordingSaver{ch: make(chan model.TrackMixState, 1)}
	m := New(playback.NewContext(song, map[int64]channel.Handle{1: h}, nil, nil), saver, 1, clk, 0)

	m.SetVolume(context.Background(), 1, 0.42)

	select {
	case st := <-saver.ch:
		if st.Volume != 0.42 {
			t.Errorf("saved volume = %v, want 0.42", st.Volume)
		}
	case <-time.After(time.Second):
		t.Fatal("save was not enqueued")
	}
}

func TestApplyRemoteOverridesLocal(t *testing.T) {
	m, eng := newTestMixer(t, clock.NewFake())
	ctx := context.Background()

	m.SetVolume(ctx, 1, 0.9)
	m.ApplyRemote(ctx, map[int64]model.TrackMixState{
		1: {TrackID: 1, Volume: 0.5},
		2: {TrackID: 2, Volume: 1.0, Mute: true},
		3: {TrackID: 3, Volume: 1.0},
	})

	checkGains(t, m, map[int64]float64{1: 0.5, 2: 0, 3: 1.0})
	if g := eng.Handle(1).Gain(); g != 0.5 {
		t.Errorf("channel 1 gain = %v, want 0.5", g)
	}
}
