package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/backup"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/lockfile"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Back up the local snapshot." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List available snapshot backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore the local snapshot from a backup."`
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	if !ctx.Initialized() {
		return ErrNotInitialized
	}
	// Unflushed keys would be missing from the copy
	if ctx.Store != nil {
		if err := ctx.Store.Flush(); err != nil {
			return err
		}
	}

	mgr := backup.NewManager(ctx.Config.SnapshotPath)
	path, err := mgr.Create(context.Background())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	ctx.printf("✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	mgr := backup.NewManager(ctx.Config.SnapshotPath)
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.println("No backups found.")
		ctx.printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), backup.MaxBackups)
	for _, b := range backups {
		ctx.printf("  %s  %s  (%.1f KB)\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	ctx.printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	if pid := lockfile.Running(ctx.LockPath()); pid != 0 {
		return fmt.Errorf("%w (pid %d); stop it before restoring", lockfile.ErrAlreadyRunning, pid)
	}

	mgr := backup.NewManager(ctx.Config.SnapshotPath)

	path := c.BackupFile
	if !filepath.IsAbs(path) {
		if candidate := filepath.Join(mgr.Dir(), path); fileExists(candidate) {
			path = candidate
		}
	}
	if !fileExists(path) {
		return fmt.Errorf("backup file not found: %s", path)
	}

	if !c.Yes {
		ctx.println("⚠ WARNING: This will replace your local snapshot with the backup.")
		ctx.println("A backup of the current snapshot will be created before restoring.")
		ctx.printf("\nRestore from: %s\n", filepath.Base(path))
		ctx.printf("Continue? [y/N]: ")

		// EOF without an answer cancels
		response, _ := bufio.NewReader(ctx.In).ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			ctx.println("Restore cancelled.")
			return nil
		}
	}

	// The snapshot file is replaced underneath any open connection
	if err := ctx.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	previous, err := mgr.Restore(context.Background(), path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if previous != "" {
		ctx.printf("Saved the previous snapshot as: %s\n", filepath.Base(previous))
	}
	ctx.println("✓ Snapshot restored. Run 'betteru reconcile' to push it to the ledger.")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
