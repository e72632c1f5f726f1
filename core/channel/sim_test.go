package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"StemFM/core/clock"
	"StemFM/model"
)

func TestSimHandlePositionAdvances(t *testing.T) {
	clk := clock.NewFake()
	eng := NewSimEngine(clk)
	ctx := context.Background()

	h, err := eng.Load(ctx, model.TrackResource{TrackID: 1, StreamURL: "stems/1/1.m4a", Duration: 100})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := h.Play(ctx); err != nil {
		t.Fatalf("Play: %v", err)
	}
	clk.Advance(10 * time.Second)

	st, err := h.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Position != 10 {
		t.Errorf("position = %v, want 10", st.Position)
	}

	// 暂停后位置不再推进
	if err := h.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clk.Advance(5 * time.Second)
	st, _ = h.Status(ctx)
	if st.Position != 10 {
		t.Errorf("position after pause = %v, want 10", st.Position)
	}
}

func TestSimHandleRate(t *testing.T) {
	clk := clock.NewFake()
	eng := NewSimEngine(clk)
	ctx := context.Background()

	h, _ := eng.Load(ctx, model.TrackResource{TrackID: 1, Duration: 100})
	h.Play(ctx)
	clk.Advance(4 * time.Second)
	if err := h.SetRate(ctx, 2.0); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	clk.Advance(3 * time.Second)

	st, _ := h.Status(ctx)
	if st.Position != 10 {
		t.Errorf("position = %v, want 10 (4s@1x + 3s@2x)", st.Position)
	}
}

func TestSimHandleClampsToDuration(t *testing.T) {
	clk := clock.NewFake()
	eng := NewSimEngine(clk)
	ctx := context.Background()

	h, _ := eng.Load(ctx, model.TrackResource{TrackID: 1, Duration: 8})
	h.Play(ctx)
	clk.Advance(20 * time.Second)

	st, _ := h.Status(ctx)
	if st.Position != 8 {
		t.Errorf("position = %v, want clamped to 8", st.Position)
	}
}

func TestSimHandleStopResets(t *testing.T) {
	clk := clock.NewFake()
	eng := NewSimEngine(clk)
	ctx := context.Background()

	h, _ := eng.Load(ctx, model.TrackResource{TrackID: 1, Duration: 100})
	h.Play(ctx)
	clk.Advance(10 * time.Second)
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st, _ := h.Status(ctx)
	if st.Position != 0 {
		t.Errorf("position after stop = %v, want 0", st.Position)
	}
}

func TestSimEngineFailLoad(t *testing.T) {
	eng := NewSimEngine(clock.NewFake())
	wantErr := errors.New("decode failed")
	eng.FailLoad(2, wantErr)

	if _, err := eng.Load(context.Background(), model.TrackResource{TrackID: 2, Duration: 10}); err != wantErr {
		t.Errorf("Load err = %v, want %v", err, wantErr)
	}
}

func TestSimHandleUnloaded(t *testing.T) {
	eng := NewSimEngine(clock.NewFake())
	ctx := context.Background()

	h, _ := eng.Load(ctx, model.TrackResource{TrackID: 1, Duration: 10})
	if err := h.Unload(ctx); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if err := h.Play(ctx); err == nil {
		t.Error("Play after Unload should fail")
	}
}
