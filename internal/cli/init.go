package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/backup"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
)

type InitCmd struct {
	Force bool `help:"Delete the existing local snapshot before initialization."`
	Pull  bool `help:"Adopt the signed-in user's remote state for anything missing locally." default:"true" negatable:""`
}

func (c *InitCmd) Run(ctx *Context) error {
	bg := context.Background()
	path := ctx.Config.SnapshotPath

	if c.Force {
		if _, err := os.Stat(path); err == nil {
			if err := ctx.Close(); err != nil {
				return fmt.Errorf("failed to close existing snapshot: %w", err)
			}
			saved, err := backup.NewManager(path).Create(bg)
			if err != nil {
				return fmt.Errorf("failed to back up existing snapshot: %w", err)
			}
			ctx.printf("Backed up existing snapshot to: %s\n", saved)
			for _, p := range []string{path, path + "-wal", path + "-shm"} {
				if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to delete existing snapshot: %w", err)
				}
			}
			ctx.printf("Deleted existing snapshot at: %s\n", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing snapshot: %w", err)
		}
	}

	if ctx.Engine == nil {
		if err := ctx.open(bg); err != nil {
			return err
		}
	}
	ctx.printf("Initialized betteru snapshot at: %s\n", path)

	if err := ctx.Ledger.Migrate(bg); err != nil {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}
	ctx.printf("Ledger schema up to date (%s)\n", ctx.Ledger.Driver())

	if !c.Pull {
		return nil
	}
	adopted, err := ctx.Engine.Hydrate(bg)
	switch {
	case errors.Is(err, tracker.ErrNoIdentity):
		ctx.println("No user set; skipping remote pull (use --user or BETTERU_USER)")
	case err != nil:
		ctx.printf("⚠ Remote pull incomplete: %v\n", err)
	case adopted > 0:
		ctx.printf("Pulled %d entities from the ledger\n", adopted)
	}
	return nil
}
