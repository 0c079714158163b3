// Package pidtrack records the PIDs of host processes created by sessions so
// that hosts left behind by a crashed program can be killed later without
// touching hosts the user started by hand.
//
// One file per session lives under <dir>/pids/<session>.pid. All access is
// serialized across processes with a file lock.
package pidtrack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"
)

// Killer terminates a PID if it still belongs to a host process.
type Killer interface {
	TerminateHost(pid int32) (bool, error)
}

// Tracker manages PID tracking files.
type Tracker struct {
	dir  string
	mu   sync.Mutex // flock does not exclude goroutines sharing one Flock
	lock *flock.Flock
}

// New returns a Tracker rooted at dir.
func New(dir string) *Tracker {
	return &Tracker{
		dir:  filepath.Join(dir, "pids"),
		lock: flock.New(filepath.Join(dir, "pids.lock")),
	}
}

func (t *Tracker) pidFile(sessionID string) string {
	return filepath.Join(t.dir, sessionID+".pid")
}

func (t *Tracker) withLock(fn func() error) error {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("creating pids directory: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("locking pids directory: %w", err)
	}
	defer t.lock.Unlock()
	return fn()
}

// Track records pid for sessionID.
func (t *Tracker) Track(sessionID string, pid int32) error {
	return t.withLock(func() error {
		return os.WriteFile(t.pidFile(sessionID), []byte(strconv.Itoa(int(pid))+"\n"), 0644)
	})
}

// Untrack removes the record for sessionID. Missing records are ignored.
func (t *Tracker) Untrack(sessionID string) error {
	return t.withLock(func() error {
		err := os.Remove(t.pidFile(sessionID))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
}

// List returns the tracked PIDs by session ID. Corrupt files are removed.
func (t *Tracker) List() (map[string]int32, error) {
	var out map[string]int32
	err := t.withLock(func() error {
		var err error
		out, err = t.listLocked()
		return err
	})
	return out, err
}

func (t *Tracker) listLocked() (map[string]int32, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("read pids dir: %w", err)
	}
	out := make(map[string]int32, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pid") {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".pid")
		path := filepath.Join(t.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
		if err != nil || pid <= 0 {
			_ = os.Remove(path)
			continue
		}
		out[sessionID] = int32(pid)
	}
	return out, nil
}

// KillTracked terminates every tracked PID that is still a host process and
// drops its record. Records whose process is gone or reused are dropped too.
// Records whose kill failed are kept for a later attempt.
func (t *Tracker) KillTracked(k Killer) (int, error) {
	var (
		killed int
		errs   error
	)
	err := t.withLock(func() error {
		tracked, err := t.listLocked()
		if err != nil {
			return err
		}
		for sessionID, pid := range tracked {
			ok, err := k.TerminateHost(pid)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s (PID %d): %w", sessionID, pid, err))
				continue
			}
			if ok {
				killed++
			}
			_ = os.Remove(t.pidFile(sessionID))
		}
		return nil
	})
	return killed, multierr.Append(err, errs)
}
