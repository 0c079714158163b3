// Package hosttest provides an in-memory automation host for tests.
package hosttest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/safexl/safexl/internal/host"
)

// ErrClosed is returned when a closed document is used.
var ErrClosed = errors.New("document already closed")

// App is a fake host instance. Exported fields inject failures or expose
// observed state; guard concurrent access with the methods.
type App struct {
	mu sync.Mutex

	docs     []*Document
	nextBook int

	HwndValue    uintptr
	HwndErr      error
	DocumentsErr error
	QuitErr      error
	Startup      string
	AddInList    []*AddIn

	Visible          bool
	DisplayAlerts    bool
	AlertsHistory    []bool
	QuitCalls        int
	ReleaseCalls     int
	DocumentsQueries int
}

// New returns an empty fake instance with alerts enabled.
func New() *App {
	return &App{DisplayAlerts: true, HwndValue: 0x1001}
}

// Add creates a new unsaved document named BookN, the way the host does.
func (a *App) Add() *Document {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextBook++
	return a.openLocked(fmt.Sprintf("Book%d", a.nextBook))
}

// Open opens a document with the given full name.
func (a *App) Open(fullName string) *Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openLocked(fullName)
}

func (a *App) openLocked(name string) *Document {
	d := &Document{app: a, name: name, WindowList: []*Window{{}}}
	a.docs = append(a.docs, d)
	return d
}

// Names returns the full names of the open documents in open order.
func (a *App) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, len(a.docs))
	for i, d := range a.docs {
		out[i] = d.name
	}
	return out
}

func (a *App) remove(d *Document) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, cur := range a.docs {
		if cur == d {
			a.docs = append(a.docs[:i], a.docs[i+1:]...)
			return
		}
	}
}

func (a *App) Documents() ([]host.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.DocumentsQueries++
	if a.DocumentsErr != nil {
		return nil, a.DocumentsErr
	}
	out := make([]host.Document, len(a.docs))
	for i, d := range a.docs {
		out[i] = d
	}
	return out, nil
}

func (a *App) Quit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.QuitCalls++
	return a.QuitErr
}

func (a *App) Hwnd() (uintptr, error) {
	return a.HwndValue, a.HwndErr
}

func (a *App) SetVisible(visible bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Visible = visible
	return nil
}

func (a *App) SetDisplayAlerts(enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.DisplayAlerts = enabled
	a.AlertsHistory = append(a.AlertsHistory, enabled)
	return nil
}

func (a *App) StartupPath() (string, error) { return a.Startup, nil }

func (a *App) AddIns() ([]host.AddIn, error) {
	out := make([]host.AddIn, len(a.AddInList))
	for i, ai := range a.AddInList {
		out[i] = ai
	}
	return out, nil
}

func (a *App) Raw() any { return a }

func (a *App) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ReleaseCalls++
}

// Document is a fake open workbook.
type Document struct {
	app  *App
	name string

	CloseErr   error
	WindowList []*Window

	closed       bool
	CloseCalls   int
	SavedOnClose bool
}

func (d *Document) FullName() (string, error) {
	if d.closed {
		return "", ErrClosed
	}
	return d.name, nil
}

// Close removes the document from its host unless CloseErr is set.
func (d *Document) Close(saveChanges bool) error {
	d.CloseCalls++
	if d.closed {
		return ErrClosed
	}
	if d.CloseErr != nil {
		return d.CloseErr
	}
	d.closed = true
	d.SavedOnClose = saveChanges
	d.app.remove(d)
	return nil
}

// Closed reports whether the document was closed.
func (d *Document) Closed() bool { return d.closed }

func (d *Document) Windows() ([]host.Window, error) {
	out := make([]host.Window, len(d.WindowList))
	for i, w := range d.WindowList {
		out[i] = w
	}
	return out, nil
}

// Window is a fake document window.
type Window struct {
	Visible bool
	State   int32
	Touched bool
}

func (w *Window) SetVisible(visible bool) error {
	w.Visible = visible
	w.Touched = true
	return nil
}

func (w *Window) SetState(state int32) error {
	w.State = state
	w.Touched = true
	return nil
}

// AddIn is a fake add-in that records every Installed write.
type AddIn struct {
	AddInName string
	On        bool
	Writes    []bool
}

func (a *AddIn) Name() (string, error)    { return a.AddInName, nil }
func (a *AddIn) Installed() (bool, error) { return a.On, nil }

func (a *AddIn) SetInstalled(installed bool) error {
	a.On = installed
	a.Writes = append(a.Writes, installed)
	return nil
}

// Factory hands out a preconfigured App, or Err.
type Factory struct {
	App     *App
	Err     error
	Created int
}

func (f *Factory) Create() (host.Application, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.Created++
	if f.App == nil {
		f.App = New()
	}
	return f.App, nil
}

// Resolver resolves every application to PID, or fails with Err.
type Resolver struct {
	PID   int32
	Err   error
	Calls int
}

func (r *Resolver) ResolveProcessID(host.Application) (int32, error) {
	r.Calls++
	return r.PID, r.Err
}

// Sheet is a fake worksheet with a fixed current region.
type Sheet struct {
	Rows, Cols int
	Err        error
	Anchor     string
}

func (s *Sheet) CurrentRegion(anchor string) (int, int, error) {
	s.Anchor = anchor
	return s.Rows, s.Cols, s.Err
}
