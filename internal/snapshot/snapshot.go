// Package snapshot records which documents are open in a host instance and
// closes the ones that were opened since an earlier snapshot.
package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/safexl/safexl/internal/host"
)

// ErrCloseFailed marks a document that could not be closed.
var ErrCloseFailed = errors.New("close document failed")

// Snapshot is an immutable set of document identities (full names).
type Snapshot struct {
	ids map[string]struct{}
}

// New builds a snapshot from identities.
func New(ids ...string) Snapshot {
	s := Snapshot{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Take enumerates the documents currently open in app.
func Take(app host.Application) (Snapshot, error) {
	docs, err := app.Documents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("list documents: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		name, err := d.FullName()
		if err != nil {
			return Snapshot{}, fmt.Errorf("read document name: %w", err)
		}
		ids = append(ids, name)
	}
	return New(ids...), nil
}

// Len returns the number of identities.
func (s Snapshot) Len() int { return len(s.ids) }

// Contains reports whether id is in the snapshot.
func (s Snapshot) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the identities in sorted order.
func (s Snapshot) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Diff returns the identities in a that are not in b.
func Diff(a, b Snapshot) Snapshot {
	out := Snapshot{ids: make(map[string]struct{})}
	for id := range a.ids {
		if !b.Contains(id) {
			out.ids[id] = struct{}{}
		}
	}
	return out
}

// Intersect returns the identities present in both a and b.
func Intersect(a, b Snapshot) Snapshot {
	out := Snapshot{ids: make(map[string]struct{})}
	for id := range a.ids {
		if b.Contains(id) {
			out.ids[id] = struct{}{}
		}
	}
	return out
}

// CloseAll closes, without saving, every open document of app whose identity
// is in docs. Identities that are no longer open are skipped. A failure on one
// document does not stop the others; all failures are returned together.
// It returns the number of documents closed.
func CloseAll(app host.Application, docs Snapshot) (int, error) {
	if docs.Len() == 0 {
		return 0, nil
	}
	open, err := app.Documents()
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	var (
		closed int
		errs   error
	)
	for _, d := range open {
		name, err := d.FullName()
		if err != nil || !docs.Contains(name) {
			continue
		}
		if err := closeDiscarding(app, d); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w %q: %w", ErrCloseFailed, name, err))
			continue
		}
		closed++
	}
	return closed, errs
}

// closeDiscarding closes d with alerts off so an unsaved-changes prompt
// cannot block, then turns alerts back on.
func closeDiscarding(app host.Application, d host.Document) (err error) {
	if err := app.SetDisplayAlerts(false); err != nil {
		return fmt.Errorf("disable alerts: %w", err)
	}
	defer func() {
		err = multierr.Append(err, app.SetDisplayAlerts(true))
	}()
	return d.Close(false)
}
