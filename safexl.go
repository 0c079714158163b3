package safexl

import (
	"go.uber.org/zap"

	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/infrastructure/config"
	"github.com/safexl/safexl/internal/infrastructure/monitoring"
	"github.com/safexl/safexl/internal/logging"
	"github.com/safexl/safexl/internal/pidtrack"
	"github.com/safexl/safexl/internal/process"
	"github.com/safexl/safexl/internal/session"
	"github.com/safexl/safexl/internal/snapshot"
	"github.com/safexl/safexl/internal/window"
)

type (
	// Handle is the host handle passed to session bodies. Raw returns the
	// underlying *ole.IDispatch for arbitrary automation calls.
	Handle = host.Handle
	// Worksheet measures a worksheet. See WrapWorksheet.
	Worksheet = host.Worksheet
	// Snapshot is a set of document full names.
	Snapshot = snapshot.Snapshot
	// WindowState is a document window presentation state.
	WindowState = window.State
	// Metrics collects session metrics. See NewMetrics.
	Metrics = monitoring.Metrics
	// SuppressedError carries a teardown failure behind a body error.
	SuppressedError = session.SuppressedError
	// TeardownError aggregates the failures of one teardown.
	TeardownError = session.TeardownError
)

// Window states.
const (
	Maximized = window.Maximized
	Minimized = window.Minimized
	Normal    = window.Normal
)

// Session errors, for use with errors.Is.
var (
	ErrHostUnavailable   = session.ErrHostUnavailable
	ErrDocumentClose     = session.ErrDocumentClose
	ErrProcessResolution = session.ErrProcessResolution
)

// NewMetrics registers session metrics on reg.
var NewMetrics = monitoring.NewMetrics

// comRuntime is shared by every session of the process.
var comRuntime = host.NewRuntime()

// Option configures Application and Run.
type Option func(*options)

type options struct {
	cfg        *config.Config
	session    session.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	factory    host.Factory
	inspect    session.ProcessInspector
	runtime    session.Runtime
	noTracking bool
}

// WithMaximize selects maximized (true, the default) or minimized windows for
// a host that stays open. Ignored when the host is terminated.
func WithMaximize(maximize bool) Option {
	return func(o *options) { o.session.MaximizeOnExit = maximize }
}

// WithAddins loads the user's installed add-ins into the new host. Ignored
// when the host is terminated.
func WithAddins(load bool) Option {
	return func(o *options) { o.session.LoadAddinsOnStart = load }
}

// WithLogger logs session events to l. The default, and a nil l, discards
// them.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			o.logger = logging.NewNop()
			return
		}
		o.logger = &logging.Logger{Logger: l}
	}
}

// WithMetrics records session metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithoutPIDTracking disables the on-disk record of terminated hosts.
func WithoutPIDTracking() Option {
	return func(o *options) { o.noTracking = true }
}

func newOptions(terminateOnExit bool, opts []Option) *options {
	o := &options{
		cfg:     config.LoadOrDefault(),
		session: session.DefaultConfig(),
		logger:  logging.NewNop(),
		runtime: comRuntime,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.session.TerminateOnExit = terminateOnExit
	if o.factory == nil {
		o.factory = host.NewOLEFactory(o.cfg.Host.ProgID)
	}
	if o.inspect == nil {
		o.inspect = newInspector(o.cfg, o.logger)
	}
	return o
}

func (o *options) manager() *session.Manager {
	mopts := []session.Option{
		session.WithRuntime(o.runtime),
		session.WithLogger(o.logger),
		session.WithMetrics(o.metrics),
	}
	if o.cfg.State.TrackPIDs && !o.noTracking {
		if dir, err := o.cfg.StateDir(); err == nil {
			mopts = append(mopts, session.WithTracker(pidtrack.New(dir)))
		} else {
			o.logger.Warn("PID tracking disabled", zap.Error(err))
		}
	}
	return session.NewManager(o.factory, o.inspect, mopts...)
}

func newInspector(cfg *config.Config, logger *logging.Logger) *process.Inspector {
	return process.NewInspector(cfg.Host.ProcessName,
		process.WithKillWait(cfg.Host.KillWait),
		process.WithLogger(logger),
	)
}

// Application runs body against a new host instance and tears the instance
// down afterwards. With terminateOnExit the host process is killed once the
// documents body created are closed.
func Application(terminateOnExit bool, body func(*Handle) error, opts ...Option) error {
	o := newOptions(terminateOnExit, opts)
	return o.manager().Do(o.session, body)
}

// Run is Application for bodies that produce a value.
func Run[T any](terminateOnExit bool, body func(*Handle) (T, error), opts ...Option) (T, error) {
	o := newOptions(terminateOnExit, opts)
	return session.Run(o.manager(), o.session, body)
}
