package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/backup"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/keyring"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/lockfile"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	bg := context.Background()
	ctx.println("Running diagnostics...")
	ctx.println()

	hasError := false
	fail := func(name string, err error) {
		ctx.printf("❌ %s: FAIL\n", name)
		ctx.printf("   Error: %v\n", err)
		hasError = true
	}

	// Check 1: configuration
	if err := ctx.Config.Validate(); err != nil {
		fail("Configuration", err)
	} else {
		ctx.printf("✓ Configuration: OK\n")
	}
	for _, w := range ctx.Config.Warnings {
		ctx.printf("   Note: %s\n", w)
	}

	// Check 2: clock and timezone
	if err := checkClockTimezone(ctx); err != nil {
		fail("Clock/timezone", err)
	} else {
		ctx.printf("✓ Clock/timezone: OK\n")
	}

	// Check 3: keyring (only needed for a remote ledger)
	if ctx.Config.LedgerDriver == constants.DriverSQLite {
		ctx.printf("⊘ OS keyring: SKIPPED (sqlite ledger)\n")
	} else if !keyring.IsAvailable() {
		ctx.printf("⚠ OS keyring: WARNING\n")
		ctx.printf("   %v; use BETTERU_LEDGER_DSN with .pgpass instead\n", keyring.ErrKeyringUnavailable)
	} else {
		ctx.printf("✓ OS keyring: OK\n")
	}

	// Check 4: storage opens
	opened := false
	if err := ctx.Open(bg); err != nil {
		fail("Storage", err)
	} else {
		ctx.printf("✓ Storage: OK\n")
		opened = true
	}

	if opened {
		// Check 5: snapshot schema
		if err := ctx.Backend.Validate(bg); err != nil {
			fail("Snapshot schema", err)
		} else {
			ctx.printf("✓ Snapshot schema: OK\n")
		}

		// Check 6: ledger reachable and migrated
		if err := checkLedger(bg, ctx); err != nil {
			fail("Ledger", err)
		} else {
			ctx.printf("✓ Ledger: OK (%s)\n", ctx.Ledger.Driver())
		}

		// Check 7: unflushed snapshot keys (warning only)
		if dirty := ctx.Store.Dirty(); len(dirty) > 0 {
			ctx.printf("⚠ Snapshot flushed: WARNING\n")
			ctx.printf("   %d key(s) not yet persisted: %v\n", len(dirty), dirty)
		} else {
			ctx.printf("✓ Snapshot flushed: OK\n")
		}

		// Check 8: pending remote writes (warning only)
		pending, err := ctx.Engine.Pending()
		switch {
		case errors.Is(err, tracker.ErrNoIdentity):
			ctx.printf("⊘ Pending writes: SKIPPED (no user set)\n")
		case err != nil:
			fail("Pending writes", err)
		case len(pending) > 0:
			ctx.printf("⚠ Pending writes: WARNING\n")
			for _, p := range pending {
				ctx.printf("   %s %s: %d failure(s), last: %s\n", p.Entity, p.Day, p.Failures, p.LastError)
			}
			ctx.printf("   Run 'betteru reconcile' to push them\n")
		default:
			ctx.printf("✓ Pending writes: OK\n")
		}
	} else {
		ctx.printf("⊘ Snapshot schema: SKIPPED (storage not available)\n")
		ctx.printf("⊘ Ledger: SKIPPED (storage not available)\n")
	}

	// Check 9: backups present (warning only)
	if backups, err := backup.NewManager(ctx.Config.SnapshotPath).List(); err != nil {
		ctx.printf("⚠ Backups present: WARNING\n")
		ctx.printf("   failed to list backups: %v\n", err)
	} else if len(backups) == 0 {
		ctx.printf("⚠ Backups present: WARNING\n")
		ctx.printf("   no backups found - consider creating one with 'betteru backup create'\n")
	} else {
		ctx.printf("✓ Backups present: OK (latest %s)\n", backups[0].Timestamp.Format("2006-01-02 15:04"))
	}

	// Check 10: rollover daemon (informational)
	if pid := lockfile.Running(ctx.LockPath()); pid != 0 {
		ctx.printf("✓ Rollover daemon: running (pid %d)\n", pid)
	} else {
		ctx.printf("ℹ Rollover daemon: not running (start it with 'betteru run')\n")
	}

	ctx.println()
	if hasError {
		ctx.println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	ctx.println("All diagnostics passed!")
	return nil
}

func checkLedger(ctx context.Context, c *Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.Config.RemoteTimeout)
	defer cancel()

	if err := c.Ledger.Ping(ctx); err != nil {
		return err
	}
	version, err := c.Ledger.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger schema version: %w", err)
	}
	if version == 0 {
		return errors.New("ledger schema missing, run 'betteru init'")
	}
	return nil
}

func checkClockTimezone(ctx *Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}

	loc, err := ctx.Config.Location()
	if err != nil {
		return err
	}
	if loc == time.UTC {
		ctx.printf("   Note: day boundaries follow UTC\n")
	}
	return nil
}
