package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/config"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/identity"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/snapshot"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
)

// ErrNotInitialized is returned by commands that need storage before 'betteru init' ran
var ErrNotInitialized = errors.New("storage not initialized, run 'betteru init' first")

// Context is shared by every command. Storage is opened lazily so commands
// like keyring and doctor work before init.
type Context struct {
	Config   *config.Config
	Identity identity.Provider
	In       io.Reader
	Out      io.Writer

	Backend *snapshot.SQLiteBackend
	Store   *snapshot.Store
	Ledger  *ledger.SQLClient
	Engine  *tracker.Engine
}

// NewContext builds a Context for cfg, signed in as cfg.User when set
func NewContext(cfg *config.Config) *Context {
	return &Context{
		Config:   cfg,
		Identity: identity.Static(cfg.User),
		In:       os.Stdin,
		Out:      os.Stdout,
	}
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

// Initialized reports whether the local snapshot exists
func (c *Context) Initialized() bool {
	_, err := os.Stat(c.Config.SnapshotPath)
	return err == nil
}

// Open opens the snapshot store and the ledger and builds the engine
func (c *Context) Open(ctx context.Context) error {
	if c.Engine != nil {
		return nil
	}
	if !c.Initialized() {
		return ErrNotInitialized
	}
	return c.open(ctx)
}

func (c *Context) open(ctx context.Context) error {
	loc, err := c.Config.Location()
	if err != nil {
		return err
	}

	backend, err := snapshot.OpenSQLite(ctx, c.Config.SnapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	store, err := snapshot.Open(backend)
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	dsn, err := c.Config.ResolveLedgerDSN()
	if err != nil {
		store.Close()
		return err
	}
	client, err := ledger.Open(c.Config.LedgerDriver, dsn)
	if err != nil {
		store.Close()
		return err
	}

	c.Backend = backend
	c.Store = store
	c.Ledger = client
	c.Engine = tracker.New(store, client, c.Identity, tracker.Options{
		Location: loc,
		Policy:   c.Config.RetryPolicy(),
	})
	logger.Debug("Opened storage", "snapshot", c.Config.SnapshotPath, "ledger", c.Config.LedgerDriver)
	return nil
}

// Close waits for in-flight remote writes and flushes the snapshot
func (c *Context) Close() error {
	if c.Engine != nil {
		c.Engine.Drain()
		c.Engine = nil
	}
	var errs []error
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
		c.Store = nil
		c.Backend = nil
	}
	if c.Ledger != nil {
		errs = append(errs, c.Ledger.Close())
		c.Ledger = nil
	}
	return errors.Join(errs...)
}

// LockPath is where the rollover daemon keeps its pid
func (c *Context) LockPath() string {
	return filepath.Join(c.Config.ConfigDir, constants.LockfileName)
}

// settle waits for a write and reports its remote outcome. Only a write
// that was never applied locally is an error; a failed remote write stays
// in the outbox for the next reconcile.
func (c *Context) settle(ctx context.Context, w *pipeline.Write) error {
	err := w.Wait(ctx)
	if !w.Applied() {
		return err
	}
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrRejected):
		c.printf("⚠ Saved locally; the ledger rejected the update: %v\n", err)
	default:
		c.printf("⚠ Saved locally; sync pending: %v\n", err)
	}
	return nil
}

// Prepare opens storage and catches the day up before a mutation, the same
// check the scheduler runs on every tick
func (c *Context) Prepare(ctx context.Context) error {
	if err := c.Open(ctx); err != nil {
		return err
	}
	res, err := c.Engine.Rollover(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrNoIdentity) {
			return err
		}
		return fmt.Errorf("rollover failed: %w", err)
	}
	for _, w := range res.Writes {
		if err := c.settle(ctx, w); err != nil {
			return err
		}
	}
	if res.Rolled && res.From != "" {
		c.printf("New day %s (streak %d)\n", res.To, res.Streak.CurrentStreak)
	}
	return nil
}
