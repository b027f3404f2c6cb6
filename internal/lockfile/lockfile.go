// Package lockfile keeps a single rollover daemon running per config dir.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

// ErrAlreadyRunning is returned when a live daemon holds the lock
var ErrAlreadyRunning = errors.New("betteru daemon is already running")

type Lock struct {
	path string
	pid  int
}

// Acquire writes the current pid to path. A lockfile left by a process that
// is gone (or is not betteru) is taken over.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	if pid, err := readPID(path); err == nil {
		if alive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		logger.Warn("Removing stale lockfile", "path", path, "pid", pid)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
	} else if !os.IsNotExist(err) {
		logger.Warn("Replacing unreadable lockfile", "path", path, "error", err)
		_ = os.Remove(path)
	}

	pid := getpidFunc()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to create lockfile: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return &Lock{path: path, pid: pid}, nil
}

// Release removes the lockfile if this process still owns it
func (l *Lock) Release() error {
	pid, err := readPID(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != l.pid {
		return nil
	}
	return os.Remove(l.path)
}

// Running returns the pid of the daemon holding path, or 0
func Running(path string) int {
	pid, err := readPID(path)
	if err != nil || !alive(pid) {
		return 0
	}
	return pid
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid process ID in lockfile: %w", err)
	}
	return pid, nil
}

func alive(pid int) bool {
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return false
	}
	return strings.HasPrefix(process.Executable(), constants.AppName)
}
