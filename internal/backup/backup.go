// Package backup keeps rotating copies of the local snapshot database. The
// ledger is the remote copy of record; these protect the unsynced local state.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
)

const (
	// MaxBackups is the maximum number of backups to keep
	MaxBackups = 14
	// DirName is the backup directory, created next to the snapshot
	DirName    = "backups"
	filePrefix = "snapshot-"
	fileSuffix = ".db"
	stampFmt   = "20060102-150405"
)

// ErrNoSnapshot is returned when there is nothing to back up
var ErrNoSnapshot = errors.New("snapshot does not exist")

// Info describes one backup file
type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Manager creates, lists and restores snapshot backups
type Manager struct {
	snapshotPath string
	dir          string
	now          func() time.Time
}

// NewManager returns a Manager for the snapshot database at snapshotPath
func NewManager(snapshotPath string) *Manager {
	return &Manager{
		snapshotPath: snapshotPath,
		dir:          filepath.Join(filepath.Dir(snapshotPath), DirName),
		now:          time.Now,
	}
}

// Dir returns the backup directory
func (m *Manager) Dir() string {
	return m.dir
}

// Create writes a consistent copy of the snapshot and rotates old backups
func (m *Manager) Create(ctx context.Context) (string, error) {
	path, err := m.create(ctx)
	if err != nil {
		return "", err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate old backups", "error", err)
	}
	return path, nil
}

func (m *Manager) create(ctx context.Context) (string, error) {
	if _, err := os.Stat(m.snapshotPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNoSnapshot, m.snapshotPath)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return "", err
	}

	src, err := sql.Open("sqlite", m.snapshotPath)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer src.Close()

	if err := verify(ctx, src); err != nil {
		return "", fmt.Errorf("snapshot appears to be corrupted: %w", err)
	}
	// VACUUM INTO folds the WAL into a clean single-file copy
	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("failed to back up snapshot: %w", err)
	}

	logger.Info("Snapshot backed up", "path", path)
	return path, nil
}

// nextPath picks a unique file name for the current second
func (m *Manager) nextPath() (string, error) {
	stamp := m.now().Format(stampFmt)
	path := filepath.Join(m.dir, filePrefix+stamp+fileSuffix)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if n > 100 {
			return "", errors.New("failed to generate unique backup filename")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s-%d%s", filePrefix, stamp, n, fileSuffix))
	}
}

// List returns the available backups, newest first
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if len(stamp) > len(stampFmt) {
			// drop the -N collision counter
			stamp = stamp[:len(stampFmt)]
		}
		ts, err := time.ParseInLocation(stampFmt, stamp, time.Local)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(m.dir, name),
			Timestamp: ts,
			Size:      info.Size(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Path > backups[j].Path
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// rotate removes backups beyond MaxBackups
func (m *Manager) rotate() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// Restore replaces the snapshot with backupPath. The current snapshot is
// backed up first (without rotation) so a restore can be undone. The snapshot
// must not be open.
func (m *Manager) Restore(ctx context.Context, backupPath string) (string, error) {
	if _, err := os.Stat(backupPath); err != nil {
		return "", fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	db, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return "", fmt.Errorf("backup file is invalid: %w", err)
	}
	err = verify(ctx, db)
	db.Close()
	if err != nil {
		return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var previous string
	if _, err := os.Stat(m.snapshotPath); err == nil {
		previous, err = m.create(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to back up current snapshot before restore: %w", err)
		}
	}

	tmp := m.snapshotPath + ".restore.tmp"
	if err := copyFile(backupPath, tmp); err != nil {
		return "", fmt.Errorf("failed to copy backup file: %w", err)
	}
	// Stale WAL files would be replayed over the restored database
	for _, p := range []string{m.snapshotPath + "-wal", m.snapshotPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			os.Remove(tmp)
			return "", fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to restore snapshot: %w", err)
	}

	logger.Info("Snapshot restored", "from", backupPath, "previous", previous)
	return previous, nil
}

// verify checks that db is a readable snapshot database
func verify(ctx context.Context, db *sql.DB) error {
	var count int
	return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv").Scan(&count)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}
