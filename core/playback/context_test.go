package playback

import (
	"context"
	"testing"

	"StemFM/core/channel"
	"StemFM/core/clock"
	"StemFM/model"
)

func newTestContext(t *testing.T) (*Context, *channel.SimEngine) {
	t.Helper()
	song := &model.Song{
		ID:    7,
		Title: "排练曲",
		Tracks: []model.Track{
			{ID: 1, SongID: 7, Name: "Drums", Position: 0, Duration: 120},
			{ID: 2, SongID: 7, Name: "Bass", Position: 1, Duration: 120},
			{ID: 3, SongID: 7, Name: "Vocals", Position: 2, Duration: 120},
		},
	}
	eng := channel.NewSimEngine(clock.NewFake())
	handles := make(map[int64]channel.Handle)
	for _, tr := range song.Tracks {
		h, err := eng.Load(context.Background(), model.TrackResource{TrackID: tr.ID, Duration: tr.Duration})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		handles[tr.ID] = h
	}
	return NewContext(song, handles, nil, nil), eng
}

func TestLoadedTrackIDsFollowSongOrder(t *testing.T) {
	pc, _ := newTestContext(t)
	got := pc.LoadedTrackIDs()
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("LoadedTrackIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("LoadedTrackIDs[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestActiveTrackIDsExcludeMuted(t *testing.T) {
	pc, _ := newTestContext(t)

	st := pc.Mix(2)
	st.Mute = true
	pc.SetMix(2, st)

	got := pc.ActiveTrackIDs()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("ActiveTrackIDs = %v, want [1 3]", got)
	}
}

func TestMixDefaultsToFullVolume(t *testing.T) {
	pc, _ := newTestContext(t)
	st := pc.Mix(1)
	if st.Volume != 1.0 || st.Mute || st.Solo {
		t.Errorf("default mix = %+v, want volume 1.0, no mute, no solo", st)
	}
}

func TestSoloedTrackIDs(t *testing.T) {
	pc, _ := newTestContext(t)

	st := pc.Mix(3)
	st.Solo = true
	pc.SetMix(3, st)

	got := pc.SoloedTrackIDs()
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("SoloedTrackIDs = %v, want [3]", got)
	}
}

func TestFailedTracksNotLoaded(t *testing.T) {
	song := &model.Song{
		ID: 7,
		Tracks: []model.Track{
			{ID: 1, SongID: 7, Name: "Drums", Position: 0},
			{ID: 2, SongID: 7, Name: "Bass", Position: 1},
		},
	}
	eng := channel.NewSimEngine(clock.NewFake())
	h, _ := eng.Load(context.Background(), model.TrackResource{TrackID: 1, Duration: 60})
	pc := NewContext(song, map[int64]channel.Handle{1: h}, map[int64]bool{2: true}, nil)

	if !pc.Failed(2) {
		t.Error("track 2 should be marked failed")
	}
	got := pc.LoadedTrackIDs()
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("LoadedTrackIDs = %v, want [1]", got)
	}
	if got := pc.ActiveTrackIDs(); len(got) != 1 || got[0] != 1 {
		t.Errorf("ActiveTrackIDs = %v, want [1]", got)
	}
}
