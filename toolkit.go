package safexl

import (
	"github.com/go-ole/go-ole"

	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/infrastructure/config"
	"github.com/safexl/safexl/internal/logging"
	"github.com/safexl/safexl/internal/process"
	"github.com/safexl/safexl/internal/sheet"
	"github.com/safexl/safexl/internal/snapshot"
	"github.com/safexl/safexl/internal/window"
)

func defaultInspector() *process.Inspector {
	return newInspector(config.LoadOrDefault(), logging.NewNop())
}

// IsHostRunning reports whether any host process is running.
func IsHostRunning() (bool, error) {
	return defaultInspector().IsHostRunning()
}

// KillAllHostInstances kills every host process, including ones the user
// started, and returns how many were killed.
func KillAllHostInstances() (int, error) {
	return defaultInspector().KillAllHostInstances()
}

// OpenFiles lists the files held open by host processes.
func OpenFiles() ([]string, error) {
	return defaultInspector().OpenFiles()
}

// ListOpenDocuments snapshots the documents open in h.
func ListOpenDocuments(h *Handle) (Snapshot, error) {
	return snapshot.Take(h.App())
}

// NewDocuments returns the documents open in h that are not in since.
func NewDocuments(h *Handle, since Snapshot) (Snapshot, error) {
	now, err := snapshot.Take(h.App())
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot.Diff(now, since), nil
}

// CloseDocuments closes the documents in docs without saving. Documents that
// are already closed are skipped.
func CloseDocuments(h *Handle, docs Snapshot) (int, error) {
	return snapshot.CloseAll(h.App(), docs)
}

// ApplyWindowState shows h and sets every document window to state.
func ApplyWindowState(h *Handle, state WindowState) error {
	return window.ApplyState(h.App(), state)
}

// WrapWorksheet adapts a worksheet dispatch for LastUsedRow and
// LastUsedColumn. The caller keeps ownership of disp.
func WrapWorksheet(disp *ole.IDispatch) Worksheet {
	return host.NewWorksheet(disp)
}

// LastUsedRow returns the number of rows in the data block around A1.
func LastUsedRow(ws Worksheet) (int, error) { return sheet.LastUsedRow(ws) }

// LastUsedColumn returns the number of columns in the data block around A1.
func LastUsedColumn(ws Worksheet) (int, error) { return sheet.LastUsedColumn(ws) }

// SanitizeSheetName makes name acceptable as a worksheet name.
func SanitizeSheetName(name string) (string, error) { return sheet.SanitizeName(name) }
