// Package window applies a presentation state to document windows.
package window

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/snapshot"
)

// State is a host window state (XlWindowState).
type State int32

const (
	// Maximized fills the host frame (xlMaximized).
	Maximized State = -4137
	// Minimized collapses the window to its title bar (xlMinimized).
	Minimized State = -4140
	// Normal restores the window's own size (xlNormal).
	Normal State = -4143
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Maximized:
		return "maximized"
	case Minimized:
		return "minimized"
	case Normal:
		return "normal"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ExitState maps the maximize-on-exit option to a state.
func ExitState(maximize bool) State {
	if maximize {
		return Maximized
	}
	return Minimized
}

// ApplyState makes the host visible and applies state to every window of
// every open document. It is a no-op when no documents are open.
func ApplyState(app host.Application, state State) error {
	return apply(app, state, func(string) bool { return true })
}

// ApplyTo is ApplyState restricted to the documents whose identity is in only.
func ApplyTo(app host.Application, only snapshot.Snapshot, state State) error {
	if only.Len() == 0 {
		return nil
	}
	return apply(app, state, only.Contains)
}

func apply(app host.Application, state State, include func(id string) bool) error {
	docs, err := app.Documents()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	// Documents opened from the startup path (PERSONAL.XLSB) stay hidden.
	startup, err := app.StartupPath()
	if err != nil {
		return fmt.Errorf("read startup path: %w", err)
	}
	if err := app.SetVisible(true); err != nil {
		return fmt.Errorf("show application: %w", err)
	}

	var errs error
	for _, d := range docs {
		name, err := d.FullName()
		if err != nil {
			continue
		}
		if !include(name) || underStartup(name, startup) {
			continue
		}
		windows, err := d.Windows()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("windows of %q: %w", name, err))
			continue
		}
		for _, w := range windows {
			errs = multierr.Append(errs, w.SetVisible(true))
			errs = multierr.Append(errs, w.SetState(int32(state)))
		}
	}
	return errs
}

// Presentable returns the documents of docs a user would see, leaving out
// those opened from the host's startup path.
func Presentable(app host.Application, docs snapshot.Snapshot) (snapshot.Snapshot, error) {
	startup, err := app.StartupPath()
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("read startup path: %w", err)
	}
	var keep []string
	for _, id := range docs.IDs() {
		if !underStartup(id, startup) {
			keep = append(keep, id)
		}
	}
	return snapshot.New(keep...), nil
}

func underStartup(name, startup string) bool {
	return startup != "" && strings.Contains(name, startup)
}
