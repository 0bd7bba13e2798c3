package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rmarchant/rebal-backend/internal/config"
	"github.com/rmarchant/rebal-backend/internal/engine"
	"github.com/rmarchant/rebal-backend/internal/models"
	"github.com/rmarchant/rebal-backend/internal/scheduler"
)

type fakeRunner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRunner) RunTick(_ context.Context, _ *config.Runtime) (models.TickResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return models.TickResult{}, f.err
	}
	return models.TickResult{Ok: true, Message: "within band, no trade"}, nil
}

type fakeReader struct {
	cfg *config.Runtime
	err error
}

func (f *fakeReader) Read() (*config.Runtime, error) {
	return f.cfg, f.err
}

func paused(p bool) *config.Runtime {
	return &config.Runtime{Paused: p, PollMinutes: 5}
}

func TestTicker_StartStop(t *testing.T) {
	runner := &fakeRunner{}
	tick := scheduler.NewTicker(runner, &fakeReader{cfg: paused(false)}, time.Hour)

	tick.Start()
	if !tick.Running() {
		t.Fatal("expected running after Start")
	}

	// The first tick fires immediately on startup.
	time.Sleep(100 * time.Millisecond)
	if runner.calls.Load() != 1 {
		t.Fatalf("expected the startup tick, got %d calls", runner.calls.Load())
	}

	tick.Stop()
	if tick.Running() {
		t.Fatal("expected not running after Stop")
	}
}

func TestTicker_FiresOnInterval(t *testing.T) {
	runner := &fakeRunner{}
	tick := scheduler.NewTicker(runner, &fakeReader{cfg: paused(false)}, 30*time.Millisecond)

	tick.Start()
	defer tick.Stop()

	time.Sleep(110 * time.Millisecond)
	if n := runner.calls.Load(); n < 3 {
		t.Fatalf("expected at least 3 ticks over ~3 intervals, got %d", n)
	}
}

func TestTicker_SkipsWhenPaused(t *testing.T) {
	runner := &fakeRunner{}
	tick := scheduler.NewTicker(runner, &fakeReader{cfg: paused(true)}, 20*time.Millisecond)

	tick.Start()
	defer tick.Stop()

	time.Sleep(80 * time.Millisecond)
	if n := runner.calls.Load(); n != 0 {
		t.Fatalf("paused config must skip the engine entirely, got %d calls", n)
	}
}

func TestTicker_ToleratesBusyEngine(t *testing.T) {
	runner := &fakeRunner{err: engine.ErrBusy}
	tick := scheduler.NewTicker(runner, &fakeReader{cfg: paused(false)}, 20*time.Millisecond)

	tick.Start()
	defer tick.Stop()

	time.Sleep(80 * time.Millisecond)
	if n := runner.calls.Load(); n < 2 {
		t.Fatalf("busy results must not stop the loop, got %d calls", n)
	}
}

func TestTicker_DoubleStartIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	tick := scheduler.NewTicker(runner, &fakeReader{cfg: paused(true)}, time.Hour)

	tick.Start()
	tick.Start()
	tick.Stop()
	if tick.Running() {
		t.Fatal("expected stopped after single Stop")
	}
	tick.Stop() // second Stop must not panic
}
