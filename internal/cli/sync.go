package cli

import (
	"context"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/scheduler"
)

type RolloverCmd struct{}

func (c *RolloverCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	sched := scheduler.New(ctx.Engine, ctx.Config.SchedulerConfig())
	res, _, err := sched.Tick(bg)
	if err != nil {
		return err
	}
	for _, w := range res.Writes {
		if err := ctx.settle(bg, w); err != nil {
			return err
		}
	}

	switch {
	case !res.Rolled:
		ctx.printf("Already up to date for %s\n", res.To)
	case res.From == "":
		ctx.printf("Started tracking on %s\n", res.To)
	case res.Gap:
		ctx.printf("Rolled over %s -> %s (missed days, streak reset)\n", res.From, res.To)
	default:
		ctx.printf("Rolled over %s -> %s (streak %d)\n", res.From, res.To, res.Streak.CurrentStreak)
	}
	return nil
}

type ReconcileCmd struct{}

func (c *ReconcileCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	res, err := ctx.Engine.Reconcile(bg)
	ctx.printf("Checked %d, in sync %d, pushed %d, failed %d\n", res.Checked, res.InSync, res.Pushed, res.Failed)
	return err
}

type PullCmd struct{}

func (c *PullCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}

	adopted, err := ctx.Engine.Hydrate(bg)
	if err != nil {
		return err
	}
	if adopted == 0 {
		ctx.println("Nothing to pull; local state wins.")
		return nil
	}
	ctx.printf("Pulled %d entities from the ledger\n", adopted)
	return nil
}
