package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/snapshot"
)

func setupTestSnapshot(t *testing.T, values map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snapshot.db")
	backend, err := snapshot.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to create snapshot: %v", err)
	}
	for k, v := range values {
		if err := backend.Save(k, []byte(v)); err != nil {
			t.Fatalf("failed to save %s: %v", k, err)
		}
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("failed to close snapshot: %v", err)
	}
	return path
}

func readSnapshot(t *testing.T, path string) map[string][]byte {
	t.Helper()

	backend, err := snapshot.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	defer backend.Close()
	values, err := backend.LoadAll()
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	return values
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreate(t *testing.T) {
	path := setupTestSnapshot(t, map[string]string{"user/u1/water": `{"consumed":0.5,"goal":2}`})

	mgr := NewManager(path)
	backupPath, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if filepath.Dir(backupPath) != mgr.Dir() {
		t.Errorf("backup written to %s, want dir %s", backupPath, mgr.Dir())
	}

	values := readSnapshot(t, backupPath)
	if string(values["user/u1/water"]) != `{"consumed":0.5,"goal":2}` {
		t.Errorf("backup content mismatch: %q", values["user/u1/water"])
	}
}

func TestCreateWithoutSnapshot(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestCreateUniqueNamesWithinOneSecond(t *testing.T) {
	path := setupTestSnapshot(t, nil)
	mgr := NewManager(path)
	mgr.now = fixedNow(time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local))

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		p, err := mgr.Create(context.Background())
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if seen[p] {
			t.Fatalf("duplicate backup path %s", p)
		}
		seen[p] = true
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Errorf("expected 3 backups, got %d", len(backups))
	}
}

func TestListNewestFirstAndRotation(t *testing.T) {
	path := setupTestSnapshot(t, nil)
	mgr := NewManager(path)

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
	for i := 0; i < MaxBackups+3; i++ {
		mgr.now = fixedNow(start.Add(time.Duration(i) * time.Hour))
		if _, err := mgr.Create(context.Background()); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	// Unrelated files are ignored
	if err := os.WriteFile(filepath.Join(mgr.Dir(), "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("expected %d backups after rotation, got %d", MaxBackups, len(backups))
	}
	newest := start.Add(time.Duration(MaxBackups+2) * time.Hour)
	if !backups[0].Timestamp.Equal(newest) {
		t.Errorf("newest backup = %v, want %v", backups[0].Timestamp, newest)
	}
	for i := 1; i < len(backups); i++ {
		if backups[i].Timestamp.After(backups[i-1].Timestamp) {
			t.Errorf("backups not sorted newest first at %d", i)
		}
	}
}

func TestRestore(t *testing.T) {
	path := setupTestSnapshot(t, map[string]string{"user/u1/stats": `{"workouts_total":1}`})
	mgr := NewManager(path)
	mgr.now = fixedNow(time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local))

	first, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Change the snapshot after the backup
	backend, err := snapshot.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.Save("user/u1/stats", []byte(`{"workouts_total":7}`)); err != nil {
		t.Fatal(err)
	}
	backend.Close()

	mgr.now = fixedNow(time.Date(2024, 3, 10, 10, 0, 0, 0, time.Local))
	previous, err := mgr.Restore(context.Background(), first)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if got := string(readSnapshot(t, path)["user/u1/stats"]); got != `{"workouts_total":1}` {
		t.Errorf("restored stats = %s", got)
	}
	if got := string(readSnapshot(t, previous)["user/u1/stats"]); got != `{"workouts_total":7}` {
		t.Errorf("pre-restore backup stats = %s", got)
	}
}

func TestRestoreRejectsInvalidBackup(t *testing.T) {
	path := setupTestSnapshot(t, nil)
	mgr := NewManager(path)

	bogus := filepath.Join(t.TempDir(), "bogus.db")
	if err := os.WriteFile(bogus, []byte("not a database"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.db")},
		{name: "not sqlite", path: bogus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mgr.Restore(context.Background(), tt.path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
