// Package scheduler drives the once-per-day rollover and the periodic
// reconciliation pass from a single ticker loop.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
)

type State int32

const (
	Idle State = iota
	RollingOver
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RollingOver:
		return "rolling-over"
	default:
		return "unknown"
	}
}

// Engine is the part of tracker.Engine the scheduler drives
type Engine interface {
	Rollover(ctx context.Context) (tracker.RolloverResult, error)
	Reconcile(ctx context.Context) (tracker.ReconcileResult, error)
}

type Config struct {
	TickInterval      time.Duration
	ReconcileInterval time.Duration // 0 disables reconciliation
}

func DefaultConfig() Config {
	return Config{
		TickInterval:      constants.DefaultTickInterval,
		ReconcileInterval: constants.DefaultReconcileInterval,
	}
}

type Scheduler struct {
	engine Engine
	cfg    Config

	state       atomic.Int32
	reconciling atomic.Bool
	rollovers   atomic.Int64
	wg          sync.WaitGroup
}

func New(engine Engine, cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = constants.DefaultTickInterval
	}
	return &Scheduler{engine: engine, cfg: cfg}
}

// State returns the current scheduler state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Rollovers returns how many ticks moved the day forward
func (s *Scheduler) Rollovers() int64 {
	return s.rollovers.Load()
}

// Tick runs one rollover check. A tick that arrives while another is still
// rolling over is skipped and reports ran == false.
func (s *Scheduler) Tick(ctx context.Context) (res tracker.RolloverResult, ran bool, err error) {
	if !s.state.CompareAndSwap(int32(Idle), int32(RollingOver)) {
		logger.Debug("Rollover already in progress, skipping tick")
		return res, false, nil
	}
	defer s.state.Store(int32(Idle))

	res, err = s.engine.Rollover(ctx)
	if errors.Is(err, tracker.ErrNoIdentity) {
		logger.Debug("No signed-in user, skipping tick")
		return res, true, nil
	}
	if err != nil {
		logger.Error("Rollover failed", "error", err)
		return res, true, err
	}
	if res.Rolled {
		s.rollovers.Add(1)
	}
	return res, true, nil
}

// Reconcile starts a reconciliation pass unless one is already running
func (s *Scheduler) Reconcile(ctx context.Context) bool {
	if !s.reconciling.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.reconciling.Store(false)

		res, err := s.engine.Reconcile(ctx)
		if err != nil && !errors.Is(err, tracker.ErrNoIdentity) {
			logger.Warn("Reconciliation incomplete", "checked", res.Checked, "failed", res.Failed, "error", err)
		}
	}()
	return true
}

// Run ticks immediately and then every TickInterval until ctx is done.
// Reconciliation runs on its own interval from the same loop.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("Scheduler started", "tick", s.cfg.TickInterval, "reconcile", s.cfg.ReconcileInterval)
	defer logger.Info("Scheduler stopped")
	defer s.wg.Wait()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	var reconcile <-chan time.Time
	if s.cfg.ReconcileInterval > 0 {
		t := time.NewTicker(s.cfg.ReconcileInterval)
		defer t.Stop()
		reconcile = t.C
		s.Reconcile(ctx)
	}

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		case <-reconcile:
			s.Reconcile(ctx)
		}
	}
}
