package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/utils"
)

type DebugCmd struct {
	Paths  *DebugPathsCmd  `cmd:"" help:"Show snapshot, ledger, lockfile and log paths."`
	Dump   *DebugDumpCmd   `cmd:"" help:"Dump an entity's local and remote state as JSON."`
	Outbox *DebugOutboxCmd `cmd:"" help:"Dump writes waiting to reach the ledger as JSON."`
}

type DebugPathsCmd struct{}

func (cmd *DebugPathsCmd) Run(ctx *Context) error {
	ledgerDSN := ctx.Config.LedgerDSN
	if ctx.Config.LedgerDriver == constants.DriverSQLite {
		if dsn, err := ctx.Config.ResolveLedgerDSN(); err == nil {
			ledgerDSN = dsn
		}
	} else {
		ledgerDSN = maskPassword(ledgerDSN)
	}

	// Output in machine-readable format
	return ctx.printJSON(map[string]string{
		"config_dir": ctx.Config.ConfigDir,
		"snapshot":   ctx.Config.SnapshotPath,
		"ledger":     ledgerDSN,
		"lockfile":   ctx.LockPath(),
		"log":        filepath.Join(ctx.Config.ConfigDir, "logs", constants.AppName+".log"),
	})
}

type DebugDumpCmd struct {
	Entity string `arg:"" enum:"calories,water,stats,streak,mood" help:"Entity to dump (calories, water, stats, streak or mood)."`
	Date   string `help:"Day of the remote row for per-day entities (YYYY-MM-DD, default: the active day)." default:""`
}

func (cmd *DebugDumpCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Open(bg); err != nil {
		return err
	}
	st, err := ctx.Engine.Snapshot()
	if err != nil {
		return err
	}

	day := cmd.Date
	if day == "" {
		day = st.Today
		if cmd.Entity != constants.KeyMood && st.Stats.LastResetDate != "" {
			day = st.Stats.LastResetDate
		}
	} else if _, err := utils.ParseDay(day); err != nil {
		return fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", day)
	}

	var local any
	var table ledger.Table
	switch cmd.Entity {
	case constants.KeyCalories, constants.KeyWater:
		local = st.Counter(models.CounterKind(cmd.Entity))
		table = ledger.TableConsumption
	case constants.KeyStats:
		local = st.Stats
		table = ledger.TableStats
	case constants.KeyStreak:
		local = st.Streak
		table = ledger.TableStreak
	case constants.KeyMood:
		local = models.MoodsForDay(st.Moods, day)
		table = ledger.TableMood
	default:
		return fmt.Errorf("unknown entity %q", cmd.Entity)
	}

	out := map[string]any{
		"entity": cmd.Entity,
		"user":   st.UserID,
		"day":    table.RowDay(day),
		"local":  local,
	}

	rctx, cancel := context.WithTimeout(bg, ctx.Config.RemoteTimeout)
	defer cancel()
	rec, err := ctx.Ledger.GetDaily(rctx, table, st.UserID, day)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		out["remote"] = nil
	case err != nil:
		out["remote_error"] = err.Error()
	case table == ledger.TableConsumption:
		out["remote"] = rec.Fields[cmd.Entity]
		out["remote_updated_at"] = rec.UpdatedAt
	default:
		out["remote"] = rec.Fields
		out["remote_updated_at"] = rec.UpdatedAt
	}
	return ctx.printJSON(out)
}

type DebugOutboxCmd struct{}

func (cmd *DebugOutboxCmd) Run(ctx *Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}
	pending, err := ctx.Engine.Pending()
	if err != nil {
		return err
	}
	return ctx.printJSON(pending)
}

func (c *Context) printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	c.println(string(jsonBytes))
	return nil
}
