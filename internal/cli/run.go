package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/lockfile"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/scheduler"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
)

type RunCmd struct{}

// Run keeps the day rolled over and the ledger reconciled until interrupted
func (c *RunCmd) Run(ctx *Context) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctx.Open(sigCtx); err != nil {
		return err
	}

	lock, err := lockfile.Acquire(ctx.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release lockfile", "error", err)
		}
	}()

	if adopted, err := ctx.Engine.Hydrate(sigCtx); err != nil && !errors.Is(err, tracker.ErrNoIdentity) {
		logger.Warn("Initial pull failed", "error", err)
	} else if adopted > 0 {
		logger.Info("Pulled remote state", "entities", adopted)
	}

	sched := scheduler.New(ctx.Engine, ctx.Config.SchedulerConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx.Store.Run(sigCtx, ctx.Config.FlushInterval)
	}()
	go func() {
		defer wg.Done()
		sched.Run(sigCtx)
	}()

	ctx.printf("betteru running (pid %d); press Ctrl+C to stop\n", os.Getpid())
	wg.Wait()
	ctx.printf("Stopped after %d rollover(s)\n", sched.Rollovers())
	return nil
}
