package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// ErrRepoLocked is returned when another run holds the repo lock.
var ErrRepoLocked = errors.New("repository is locked by another run")

// lockInfo is the debugging payload written into the lock file.
type lockInfo struct {
	PID       int       `json:"pid"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RunLock is the single-writer guard for one repository root. Scan and apply
// against one root are exclusive: a second concurrent run fails fast with
// ErrRepoLocked instead of racing on offsets and backups.
type RunLock struct {
	path   string
	locked bool
}

// NewRunLock builds a lock for the given repository root. The lock file
// lives inside the run-state directory.
func NewRunLock(repoPath m.Path) *RunLock {
	return &RunLock{path: filepath.Join(string(repoPath), StateDirName, "lock")}
}

// Acquire takes the lock, cleaning up a stale lock left by a dead process.
func (l *RunLock) Acquire(runID string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			info := lockInfo{PID: os.Getpid(), RunID: runID, CreatedAt: time.Now().UTC()}

			encodeErr := json.NewEncoder(file).Encode(info)
			closeErr := file.Close()

			if encodeErr != nil || closeErr != nil {
				_ = os.Remove(l.path)
				return fmt.Errorf("write lock file: %w", errors.Join(encodeErr, closeErr))
			}

			l.locked = true

			return nil
		}

		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}

		if !l.stale() {
			return fmt.Errorf("%w (lock file: %s)", ErrRepoLocked, l.path)
		}

		// Stale lock from a crashed process: remove and retry once.
		if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("remove stale lock: %w", removeErr)
		}
	}

	return fmt.Errorf("%w (lock file: %s)", ErrRepoLocked, l.path)
}

// Release drops the lock. Safe to call when not held.
func (l *RunLock) Release() error {
	if !l.locked {
		return nil
	}

	l.locked = false

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}

	return nil
}

// stale reports whether the current lock file belongs to a dead process.
// Unreadable lock files are treated as live to err on the safe side.
func (l *RunLock) stale() bool {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}

	var info lockInfo
	if err := json.Unmarshal(raw, &info); err != nil || info.PID <= 0 {
		return false
	}

	if info.PID == os.Getpid() {
		return false
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return true
	}

	// Signal 0 probes process existence without delivering anything.
	return process.Signal(syscall.Signal(0)) != nil
}
