package process

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/logging"
)

// DefaultHostName is the executable name of the spreadsheet host.
const DefaultHostName = "EXCEL.EXE"

var (
	// ErrProcessResolution is returned when a handle cannot be mapped to a PID.
	ErrProcessResolution = errors.New("cannot resolve host process")
	// ErrNoWindow is returned when the host window has no owning process.
	ErrNoWindow = errors.New("no process owns window")
	// ErrStillRunning is returned when a killed process outlives the kill wait.
	ErrStillRunning = errors.New("process still running after kill")
)

// Inspector finds, correlates and terminates host processes.
type Inspector struct {
	name     string
	table    Table
	window   func(hwnd uintptr) (int32, error)
	killWait time.Duration
	logger   *logging.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithTable replaces the live process table.
func WithTable(t Table) Option {
	return func(i *Inspector) { i.table = t }
}

// WithWindowResolver replaces the window-handle to PID lookup.
func WithWindowResolver(fn func(hwnd uintptr) (int32, error)) Option {
	return func(i *Inspector) { i.window = fn }
}

// WithKillWait bounds how long Terminate waits for a killed process to exit.
// Zero disables waiting.
func WithKillWait(d time.Duration) Option {
	return func(i *Inspector) { i.killWait = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(i *Inspector) { i.logger = l }
}

// NewInspector returns an Inspector for the host executable name.
func NewInspector(name string, opts ...Option) *Inspector {
	if name == "" {
		name = DefaultHostName
	}
	i := &Inspector{
		name:     name,
		table:    SystemTable{},
		window:   pidFromWindow,
		killWait: 5 * time.Second,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// hosts lists the host processes. Entries whose name cannot be read (access
// denied, exited mid-scan) are skipped.
func (i *Inspector) hosts() ([]Proc, error) {
	procs, err := i.table.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var out []Proc
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(name, i.name) {
			out = append(out, p)
		}
	}
	return out, nil
}

// IsHostRunning reports whether at least one host process exists.
func (i *Inspector) IsHostRunning() (bool, error) {
	hosts, err := i.hosts()
	if err != nil {
		return false, err
	}
	return len(hosts) > 0, nil
}

// KillAllHostInstances kills every host process and returns how many were
// terminated. Processes that exit or deny access between listing and killing
// are skipped.
func (i *Inspector) KillAllHostInstances() (int, error) {
	hosts, err := i.hosts()
	if err != nil {
		return 0, err
	}
	killed := 0
	for _, p := range hosts {
		if err := p.Kill(); err != nil {
			i.logger.Debug("Skipping host process", zap.Int32("pid", p.PID()), zap.Error(err))
			continue
		}
		killed++
	}
	if killed > 0 {
		i.logger.Info("Killed host instances", zap.Int("count", killed))
	}
	return killed, nil
}

// ResolveProcessID correlates app with its backing PID through the host's
// top-level window.
func (i *Inspector) ResolveProcessID(app host.Application) (int32, error) {
	hwnd, err := app.Hwnd()
	if err != nil {
		return 0, fmt.Errorf("%w: read window handle: %w", ErrProcessResolution, err)
	}
	pid, err := i.window(hwnd)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProcessResolution, err)
	}
	return pid, nil
}

// Terminate force-kills pid and waits for it to leave the process table.
// A process that no longer exists is not an error.
func (i *Inspector) Terminate(pid int32) error {
	p, err := i.table.Find(pid)
	if errors.Is(err, ErrNoSuchProcess) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		if _, ferr := i.table.Find(pid); errors.Is(ferr, ErrNoSuchProcess) {
			return nil
		}
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	i.logger.Info("Terminated host process", zap.Int32("pid", pid))
	return i.waitGone(pid)
}

// TerminateHost kills pid only if it is still a host process, guarding
// against PID reuse. It reports whether a process was killed.
func (i *Inspector) TerminateHost(pid int32) (bool, error) {
	p, err := i.table.Find(pid)
	if errors.Is(err, ErrNoSuchProcess) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err != nil || !strings.EqualFold(name, i.name) {
		return false, nil
	}
	if err := i.Terminate(pid); err != nil {
		return false, err
	}
	return true, nil
}

func (i *Inspector) waitGone(pid int32) error {
	if i.killWait <= 0 {
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = i.killWait

	err := backoff.Retry(func() error {
		_, err := i.table.Find(pid)
		switch {
		case errors.Is(err, ErrNoSuchProcess):
			return nil
		case err != nil:
			return backoff.Permanent(err)
		default:
			return ErrStillRunning
		}
	}, b)
	if err != nil {
		return fmt.Errorf("wait for process %d: %w", pid, err)
	}
	return nil
}

// OpenFiles returns the paths held open by every host process.
func (i *Inspector) OpenFiles() ([]string, error) {
	hosts, err := i.hosts()
	if err != nil {
		return nil, err
	}
	var (
		files []string
		errs  error
	)
	for _, p := range hosts {
		paths, err := p.OpenFiles()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("open files of %d: %w", p.PID(), err))
			continue
		}
		files = append(files, paths...)
	}
	return files, errs
}
