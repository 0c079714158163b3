package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/safexl/safexl/internal/addins"
	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/infrastructure/monitoring"
	"github.com/safexl/safexl/internal/logging"
	"github.com/safexl/safexl/internal/shared/id"
	"github.com/safexl/safexl/internal/snapshot"
	"github.com/safexl/safexl/internal/window"
)

// Config controls one session. It is immutable once the session starts.
type Config struct {
	// TerminateOnExit kills the host process at teardown instead of quitting
	// or presenting it. When set, MaximizeOnExit and LoadAddinsOnStart have
	// no effect.
	TerminateOnExit bool
	// MaximizeOnExit selects maximized (true) or minimized (false) windows
	// for the documents left open after teardown.
	MaximizeOnExit bool
	// LoadAddinsOnStart loads the user's installed add-ins at creation.
	LoadAddinsOnStart bool
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{MaximizeOnExit: true}
}

// ProcessInspector resolves and kills the process behind a handle.
type ProcessInspector interface {
	host.PIDResolver
	Terminate(pid int32) error
}

// Runtime is the process-wide automation runtime.
type Runtime interface {
	Acquire() error
	Release()
}

// Tracker records host PIDs created by sessions.
type Tracker interface {
	Track(sessionID string, pid int32) error
	Untrack(sessionID string) error
}

// Manager creates sessions. It is safe for concurrent use; each session owns
// its own host instance.
type Manager struct {
	loader    *addins.Loader
	inspector ProcessInspector
	runtime   Runtime
	tracker   Tracker
	metrics   *monitoring.Metrics
	logger    *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRuntime sets the automation runtime. The default is a private
// host.Runtime.
func WithRuntime(r Runtime) Option {
	return func(m *Manager) { m.runtime = r }
}

// WithTracker records the PID of every terminate-on-exit host.
func WithTracker(t Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager creating hosts through factory.
func NewManager(factory host.Factory, inspector ProcessInspector, opts ...Option) *Manager {
	m := &Manager{inspector: inspector}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	if m.runtime == nil {
		m.runtime = host.NewRuntime()
	}
	m.logger = m.logger.Named("session")
	m.loader = addins.NewLoader(factory, m.logger)
	return m
}

// Session is one live host instance and its pre-session document snapshot.
type Session struct {
	id      id.SessionID
	cfg     Config
	handle  *host.Handle
	pre     snapshot.Snapshot
	mgr     *Manager
	logger  *logging.Logger
	tracked bool
	started time.Time

	once sync.Once
}

// Open creates a host instance and snapshots its open documents. The caller
// must call Close exactly once; further calls are no-ops.
func (m *Manager) Open(cfg Config) (*Session, error) {
	if err := m.runtime.Acquire(); err != nil {
		m.metrics.RecordError("create")
		return nil, err
	}

	// Add-ins are pointless on a host that will be killed.
	loadAddins := cfg.LoadAddinsOnStart && !cfg.TerminateOnExit
	h, err := m.loader.CreateHandle(loadAddins)
	if err != nil {
		m.runtime.Release()
		m.metrics.RecordError("create")
		if !errors.Is(err, ErrHostUnavailable) {
			err = fmt.Errorf("%w: %w", ErrHostUnavailable, err)
		}
		return nil, err
	}

	pre, err := snapshot.Take(h.App())
	if err != nil {
		m.metrics.RecordError("snapshot")
		m.discard(h)
		return nil, fmt.Errorf("pre-session snapshot: %w", err)
	}

	sid := id.NewSessionID()
	s := &Session{
		id:      sid,
		cfg:     cfg,
		handle:  h,
		pre:     pre,
		mgr:     m,
		logger:  m.logger.With(zap.String("session_id", sid.String())),
		started: time.Now(),
	}
	if cfg.TerminateOnExit && m.tracker != nil {
		s.track()
	}

	m.metrics.SessionOpened()
	s.logger.Info("Session opened",
		zap.Bool("terminate_on_exit", cfg.TerminateOnExit),
		zap.Bool("addins", h.AddinsLoaded()),
		zap.Int("preexisting_documents", pre.Len()))
	return s, nil
}

// discard tears down a handle that never reached the caller.
func (m *Manager) discard(h *host.Handle) {
	pid, err := h.ProcessID(m.inspector)
	h.App().Release()
	if err == nil {
		if err := m.inspector.Terminate(pid); err != nil {
			m.logger.Warn("Failed to kill host after aborted start", zap.Int32("pid", pid), zap.Error(err))
		}
	}
	m.runtime.Release()
}

func (s *Session) track() {
	pid, err := s.handle.ProcessID(s.mgr.inspector)
	if err == nil {
		err = s.mgr.tracker.Track(s.id.String(), pid)
	}
	if err != nil {
		s.logger.Warn("PID tracking unavailable", zap.Error(err))
		return
	}
	s.tracked = true
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id.String() }

// Handle returns the handle for caller work.
func (s *Session) Handle() *host.Handle { return s.handle }

// Close runs teardown. Only the first call does any work; later calls return
// nil.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() { err = s.teardown() })
	return err
}

func (s *Session) teardown() error {
	var (
		app  = s.handle.App()
		errs error
	)

	closeFailed := false
	post, err := snapshot.Take(app)
	if err != nil {
		closeFailed = true
		errs = multierr.Append(errs, fmt.Errorf("post-session snapshot: %w", err))
	} else {
		created := snapshot.Diff(post, s.pre)
		closed, err := snapshot.CloseAll(app, created)
		failed := len(multierr.Errors(err))
		s.mgr.metrics.DocumentsClosedAdd(closed, failed)
		if err != nil {
			closeFailed = true
			errs = multierr.Append(errs, err)
		}
		s.logger.Debug("Closed session documents", zap.Int("closed", closed), zap.Int("failed", failed))
	}

	var (
		pid    int32
		pidErr error
	)
	if s.cfg.TerminateOnExit {
		pid, pidErr = s.handle.ProcessID(s.mgr.inspector)
	} else {
		errs = multierr.Append(errs, s.present(closeFailed))
	}

	app.Release()

	killFailed := false
	if s.cfg.TerminateOnExit {
		switch {
		case pidErr != nil:
			killFailed = true
			if !errors.Is(pidErr, ErrProcessResolution) {
				pidErr = fmt.Errorf("%w: %w", ErrProcessResolution, pidErr)
			}
			errs = multierr.Append(errs, pidErr)
		default:
			if err := s.mgr.inspector.Terminate(pid); err != nil {
				killFailed = true
				errs = multierr.Append(errs, fmt.Errorf("terminate host %d: %w", pid, err))
			} else {
				s.mgr.metrics.HostsTerminatedAdd(monitoring.ReasonSession, 1)
			}
		}
	}

	// Keep the record of a host that survived so it can be killed later.
	if s.tracked && !killFailed {
		if err := s.mgr.tracker.Untrack(s.id.String()); err != nil {
			s.logger.Warn("Failed to remove PID record", zap.Error(err))
		}
	}

	s.mgr.runtime.Release()
	s.mgr.metrics.SessionClosed(time.Since(s.started))

	if errs == nil {
		s.logger.Info("Session closed")
		return nil
	}
	s.mgr.metrics.RecordError("teardown")
	s.logger.Error("Session teardown failed", zap.Error(errs))
	return &TeardownError{SessionID: s.id.String(), Err: errs}
}

// present leaves a surviving host in a usable state. It quits when only
// startup-path documents remain; otherwise it shows the host and the
// documents that were open before.
func (s *Session) present(closeFailed bool) error {
	app := s.handle.App()
	remaining, err := snapshot.Take(app)
	if err != nil {
		return fmt.Errorf("list remaining documents: %w", err)
	}
	if !closeFailed {
		visible, err := window.Presentable(app, remaining)
		if err != nil {
			return err
		}
		if visible.Len() == 0 {
			if err := app.Quit(); err != nil {
				return fmt.Errorf("quit host: %w", err)
			}
			return nil
		}
	}
	// A host that stays up must never be left hidden.
	if err := app.SetVisible(true); err != nil {
		return fmt.Errorf("show host: %w", err)
	}
	state := window.ExitState(s.cfg.MaximizeOnExit)
	if err := window.ApplyTo(app, snapshot.Intersect(remaining, s.pre), state); err != nil {
		return fmt.Errorf("apply window state %s: %w", state, err)
	}
	return nil
}

// Run opens a session, calls body with its handle and tears the session down
// on every exit path, including a panic or runtime.Goexit in body. A body
// error is returned unchanged; if teardown fails too, the result is a
// *SuppressedError.
func Run[T any](m *Manager, cfg Config, body func(*host.Handle) (T, error)) (result T, err error) {
	s, err := m.Open(cfg)
	if err != nil {
		return result, err
	}

	// Covers panics and runtime.Goexit, where body never returns.
	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		if terr := s.Close(); terr != nil {
			s.logger.Error("Teardown failed after abnormal exit", zap.Error(terr))
		}
		if r != nil {
			panic(r)
		}
	}()

	result, err = body(s.handle)
	returned = true
	if err != nil {
		s.logger.Debug("Session body failed", zap.Error(err))
	}
	return result, combine(err, s.Close())
}

// Do is Run for bodies without a result.
func (m *Manager) Do(cfg Config, body func(*host.Handle) error) error {
	_, err := Run(m, cfg, func(h *host.Handle) (struct{}, error) {
		return struct{}{}, body(h)
	})
	return err
}
