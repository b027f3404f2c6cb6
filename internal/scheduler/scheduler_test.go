package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/identity"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/snapshot"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/utils"
)

func newEngine(t *testing.T, clock *utils.FixedClock) *tracker.Engine {
	t.Helper()
	store, err := snapshot.Open(snapshot.NewMemoryBackend())
	if err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	policy := pipeline.DefaultPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	engine := tracker.New(store, ledger.NewMemory(), identity.Static("u1"), tracker.Options{
		Clock:    clock,
		Location: time.UTC,
		Policy:   policy,
	})
	t.Cleanup(engine.Drain)
	return engine
}

func TestTicksWithinADayRollOverOnce(t *testing.T) {
	clock := &utils.FixedClock{T: time.Date(2024, 3, 10, 23, 58, 0, 0, time.UTC)}
	s := New(newEngine(t, clock), DefaultConfig())
	ctx := context.Background()

	// The first tick starts tracking; the rest of the day is a no-op
	for i := 0; i < 4; i++ {
		if _, ran, err := s.Tick(ctx); err != nil || !ran {
			t.Fatalf("tick %d: ran=%v err=%v", i, ran, err)
		}
		clock.Advance(30 * time.Second)
	}
	if s.Rollovers() != 1 {
		t.Fatalf("rollovers = %d, want 1", s.Rollovers())
	}

	// Crossing midnight triggers exactly one more rollover
	for i := 0; i < 4; i++ {
		res, _, err := s.Tick(ctx)
		if err != nil {
			t.Fatalf("tick failed: %v", err)
		}
		if res.Rolled && res.To != "2024-03-11" {
			t.Errorf("rolled to %s, want 2024-03-11", res.To)
		}
		clock.Advance(30 * time.Second)
	}
	if s.Rollovers() != 2 {
		t.Errorf("rollovers = %d, want 2", s.Rollovers())
	}
	if s.State() != Idle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

type blockingEngine struct {
	entered   chan struct{}
	release   chan struct{}
	rollovers atomic.Int32
	reconcile atomic.Int32
	err       error
}

func (b *blockingEngine) Rollover(ctx context.Context) (tracker.RolloverResult, error) {
	b.rollovers.Add(1)
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	return tracker.RolloverResult{Rolled: true}, b.err
}

func (b *blockingEngine) Reconcile(ctx context.Context) (tracker.ReconcileResult, error) {
	b.reconcile.Add(1)
	return tracker.ReconcileResult{}, nil
}

func TestTickWhileRollingOverIsSkipped(t *testing.T) {
	engine := &blockingEngine{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(engine, DefaultConfig())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Tick(ctx)
	}()
	<-engine.entered

	if s.State() != RollingOver {
		t.Errorf("state = %s, want rolling-over", s.State())
	}
	if _, ran, _ := s.Tick(ctx); ran {
		t.Error("concurrent tick should be skipped")
	}

	close(engine.release)
	<-done
	if engine.rollovers.Load() != 1 {
		t.Errorf("rollover calls = %d, want 1", engine.rollovers.Load())
	}
	if s.State() != Idle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

func TestTickWithoutIdentityIsQuiet(t *testing.T) {
	s := New(&blockingEngine{err: tracker.ErrNoIdentity}, DefaultConfig())
	if _, _, err := s.Tick(context.Background()); err != nil {
		t.Errorf("Tick() = %v, want nil", err)
	}

	failing := New(&blockingEngine{err: errors.New("disk full")}, DefaultConfig())
	if _, _, err := failing.Tick(context.Background()); err == nil {
		t.Error("expected rollover errors to surface")
	}
}

func TestRunTicksAndReconciles(t *testing.T) {
	engine := &blockingEngine{}
	s := New(engine, Config{TickInterval: 5 * time.Millisecond, ReconcileInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if engine.rollovers.Load() < 2 {
		t.Errorf("expected several ticks, got %d", engine.rollovers.Load())
	}
	if engine.reconcile.Load() < 1 {
		t.Error("expected at least one reconciliation")
	}
}
