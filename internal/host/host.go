package host

import (
	"errors"
	"sync"
)

// ErrUnavailable is returned when the automation host cannot be created,
// e.g. it is not installed or automation is disabled.
var ErrUnavailable = errors.New("automation host unavailable")

// Application is one running host instance.
type Application interface {
	// Documents returns the documents currently open in the instance.
	Documents() ([]Document, error)
	// Quit asks the host to exit. The host may stay resident afterwards.
	Quit() error
	// Hwnd returns the top-level window handle of the instance.
	Hwnd() (uintptr, error)
	SetVisible(visible bool) error
	SetDisplayAlerts(enabled bool) error
	// StartupPath returns the directory whose documents are opened on startup
	// (PERSONAL.XLSB and friends).
	StartupPath() (string, error)
	AddIns() ([]AddIn, error)
	// Raw returns the underlying automation object for untyped calls.
	Raw() any
	// Release drops every reference this wrapper holds on the host.
	Release()
}

// Document is one open workbook.
type Document interface {
	// FullName is the document identity: its path, or "BookN" before saving.
	FullName() (string, error)
	Close(saveChanges bool) error
	Windows() ([]Window, error)
}

// Window is one window of a document.
type Window interface {
	SetVisible(visible bool) error
	SetState(state int32) error
}

// AddIn is one registered add-in.
type AddIn interface {
	Name() (string, error)
	Installed() (bool, error)
	SetInstalled(installed bool) error
}

// Worksheet is the subset of a sheet used by the measurement helpers.
type Worksheet interface {
	// CurrentRegion returns the row and column count of the contiguous
	// region around the anchor cell (e.g. "A1").
	CurrentRegion(anchor string) (rows, cols int, err error)
}

// Factory creates new host instances.
type Factory interface {
	Create() (Application, error)
}

// PIDResolver maps an application to the PID of its backing process.
type PIDResolver interface {
	ResolveProcessID(app Application) (int32, error)
}

// Handle is the application handle yielded to session bodies. The add-in mode
// is fixed at creation; the PID is resolved on first use and cached.
type Handle struct {
	app    Application
	addins bool

	mu  sync.Mutex
	pid int32
}

// NewHandle wraps app. addinsLoaded records whether add-ins were loaded at
// creation.
func NewHandle(app Application, addinsLoaded bool) *Handle {
	return &Handle{app: app, addins: addinsLoaded}
}

// App returns the typed application.
func (h *Handle) App() Application { return h.app }

// Raw returns the underlying automation object.
func (h *Handle) Raw() any { return h.app.Raw() }

// AddinsLoaded reports whether add-ins were loaded when the handle was created.
func (h *Handle) AddinsLoaded() bool { return h.addins }

// ProcessID returns the PID backing the handle, resolving it through r the
// first time.
func (h *Handle) ProcessID(r PIDResolver) (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pid != 0 {
		return h.pid, nil
	}
	pid, err := r.ResolveProcessID(h.app)
	if err != nil {
		return 0, err
	}
	h.pid = pid
	return pid, nil
}
