package trackstate

import (
	"context"
	"sync"
	"testing"

	"StemFM/model"
)

// memMixStateRepo 内存版持久层，key 为 (user, song, track)
type memMixStateRepo struct {
	mu   sync.Mutex
	rows map[[3]int64]model.TrackMixState
}

func newMemMixStateRepo() *memMixStateRepo {
	return &memMixStateRepo{rows: make(map[[3]int64]model.TrackMixState)}
}

func (r *memMixStateRepo) Save(_ context.Context, st *model.TrackMixState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[[3]int64{st.UserID, st.SongID, st.TrackID}] = *st
	return nil
}

func (r *memMixStateRepo) GetBySong(_ context.Context, userID, songID int64) ([]*model.TrackMixState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.TrackMixState
	for k, st := range r.rows {
		if k[0] == userID && k[1] == songID {
			cp := st
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMixStateRepo) Get(_ context.Context, userID, songID, trackID int64) (*model.TrackMixState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rows[[3]int64{userID, songID, trackID}]
	if !ok {
		return nil, nil
	}
	cp := st
	return &cp, nil
}

func testSong() *model.Song {
	return &model.Song{
		ID: 7,
		Tracks: []model.Track{
			{ID: 1, SongID: 7, Name: "Drums", Position: 0},
			{ID: 2, SongID: 7, Name: "Bass", Position: 1},
		},
	}
}

func TestLoadSynthesizesAndPersistsDefaults(t *testing.T) {
	repo := newMemMixStateRepo()
	store := NewStore(repo, nil)
	ctx := context.Background()

	states, err := store.Load(ctx, 1, testSong())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("states = %v, want 2 entries", states)
	}
	for _, id := range []int64{1, 2} {
		st := states[id]
		if st.Volume != 1.0 || st.Mute || st.Solo {
			t.Errorf("default state[%d] = %+v, want volume 1.0", id, st)
		}
	}

	// 默认值落库：第二次加载读到的是持久化的记录
	saved, _ := repo.GetBySong(ctx, 1, 7)
	if len(saved) != 2 {
		t.Errorf("persisted rows = %d, want 2", len(saved))
	}
}

func TestSaveRoundTrip(t *testing.T) {
	repo := newMemMixStateRepo()
	store := NewStore(repo, nil)
	ctx := context.Background()

	if err := store.Save(ctx, 1, 7, 2, model.TrackMixState{Volume: 0.42, Mute: true, Solo: false}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	states, err := store.Load(ctx, 1, testSong())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := states[2]
	if st.Volume != 0.42 || !st.Mute || st.Solo {
		t.Errorf("state = %+v, want {0.42 true false}", st)
	}
	// 另一条音轨不受影响，仍是合成的默认值
	if st := states[1]; st.Volume != 1.0 || st.Mute {
		t.Errorf("state[1] = %+v, want defaults", st)
	}
}

func TestSaveStampsIdentity(t *testing.T) {
	repo := newMemMixStateRepo()
	store := NewStore(repo, nil)
	ctx := context.Background()

	if err := store.Save(ctx, 3, 7, 1, model.TrackMixState{Volume: 0.5}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st, _ := repo.Get(ctx, 3, 7, 1)
	if st == nil {
		t.Fatal("row not persisted under (3, 7, 1)")
	}
	if st.UserID != 3 || st.SongID != 7 || st.TrackID != 1 {
		t.Errorf("identity = (%d, %d, %d), want (3, 7, 1)", st.UserID, st.SongID, st.TrackID)
	}
	if st.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped")
	}
}

func TestStatesAreScopedPerUser(t *testing.T) {
	repo := newMemMixStateRepo()
	store := NewStore(repo, nil)
	ctx := context.Background()

	store.Save(ctx, 1, 7, 1, model.TrackMixState{Volume: 0.2})
	store.Save(ctx, 2, 7, 1, model.TrackMixState{Volume: 0.9})

	a, _ := store.Load(ctx, 1, testSong())
	b, _ := store.Load(ctx, 2, testSong())
	if a[1].Volume != 0.2 || b[1].Volume != 0.9 {
		t.Errorf("user 1 = %v, user 2 = %v, states must be per user", a[1].Volume, b[1].Volume)
	}
}
