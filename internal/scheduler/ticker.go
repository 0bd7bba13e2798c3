package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rmarchant/rebal-backend/internal/config"
	"github.com/rmarchant/rebal-backend/internal/engine"
	"github.com/rmarchant/rebal-backend/internal/models"
)

// A full tick may wait on balances, probes, a firm quote and a mined
// approval; bound the whole thing well under two poll intervals.
const tickTimeout = 5 * time.Minute

// TickRunner is the engine surface the scheduler drives.
type TickRunner interface {
	RunTick(ctx context.Context, cfg *config.Runtime) (models.TickResult, error)
}

// ConfigReader returns a validated runtime config snapshot.
type ConfigReader interface {
	Read() (*config.Runtime, error)
}

// Ticker triggers one engine tick per poll interval. The engine's own lock
// serializes against on-demand ticks from the API; a busy engine just means
// this interval is skipped.
type Ticker struct {
	runner   TickRunner
	cfgs     ConfigReader
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewTicker(runner TickRunner, cfgs ConfigReader, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Ticker{runner: runner, cfgs: cfgs, interval: interval}
}

func (t *Ticker) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		fmt.Println("[SCHEDULER] Already running")
		return
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		// First tick immediately on startup.
		t.runOnce()

		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				t.runOnce()
			}
		}
	}()

	fmt.Printf("[SCHEDULER] Started (tick every %s)\n", t.interval)
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.stopCh)
	t.running = false
	fmt.Println("[SCHEDULER] Stopped")
}

func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Ticker) runOnce() {
	cfg, err := t.cfgs.Read()
	if err != nil {
		fmt.Printf("[SCHEDULER] Config read failed, skipping tick: %v\n", err)
		return
	}
	if cfg.Paused {
		fmt.Println("[SCHEDULER] Paused, skipping tick")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	res, err := t.runner.RunTick(ctx, cfg)
	if err != nil {
		if errors.Is(err, engine.ErrBusy) {
			fmt.Println("[SCHEDULER] Previous tick still running, skipping")
			return
		}
		fmt.Printf("[SCHEDULER] Tick failed: %v\n", err)
		return
	}

	status := "OK"
	if !res.Ok {
		status = "ERR"
	}
	fmt.Printf("[TICK] %s: %s\n", status, res.Message)
}
