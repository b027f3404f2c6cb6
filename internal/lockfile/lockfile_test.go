package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ps "github.com/mitchellh/go-ps"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func withProcesses(t *testing.T, self int, procs map[int]string) {
	t.Helper()
	oldFind, oldPid := findProcessFunc, getpidFunc
	t.Cleanup(func() { findProcessFunc, getpidFunc = oldFind, oldPid })

	getpidFunc = func() int { return self }
	findProcessFunc = func(pid int) (ps.Process, error) {
		exe, ok := procs[pid]
		if !ok {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: exe}, nil
	}
}

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "betteru.lock")
	withProcesses(t, 100, map[int]string{100: "betteru"})

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if got := Running(path); got != 100 {
		t.Errorf("Running() = %d, want 100", got)
	}

	if _, err := Acquire(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Acquire() error = %v, want ErrAlreadyRunning", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lockfile should be removed")
	}
}

func TestAcquireTakesOverStaleLock(t *testing.T) {
	tests := []struct {
		name    string
		content string
		procs   map[int]string
	}{
		{"dead process", "4242", map[int]string{}},
		{"pid reused by another program", "4242", map[int]string{4242: "postgres"}},
		{"garbage", "not-a-pid", map[int]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "betteru.lock")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			withProcesses(t, 7, tt.procs)

			lock, err := Acquire(path)
			if err != nil {
				t.Fatalf("Acquire() failed: %v", err)
			}
			defer lock.Release()

			data, _ := os.ReadFile(path)
			if string(data) != "7" {
				t.Errorf("lockfile holds %q, want 7", data)
			}
		})
	}
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "betteru.lock")
	withProcesses(t, 1, map[int]string{1: "betteru"})

	lock, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("2"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("another daemon's lockfile must not be removed")
	}
}
