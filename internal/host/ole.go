package host

import (
	"fmt"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// DefaultProgID is the ProgID of the spreadsheet host.
const DefaultProgID = "Excel.Application"

// OLEFactory creates host instances through COM automation.
// The COM runtime must already be initialized (see Runtime).
type OLEFactory struct {
	ProgID string
}

// NewOLEFactory returns a factory for progID, falling back to DefaultProgID.
func NewOLEFactory(progID string) *OLEFactory {
	if progID == "" {
		progID = DefaultProgID
	}
	return &OLEFactory{ProgID: progID}
}

// Create starts a new host instance.
func (f *OLEFactory) Create() (Application, error) {
	unknown, err := oleutil.CreateObject(f.ProgID)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrUnavailable, f.ProgID, err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("%w: query IDispatch on %s: %w", ErrUnavailable, f.ProgID, err)
	}
	return &oleApplication{refs: &refSet{}, disp: disp}, nil
}

// refSet keeps every IDispatch handed out for one application so they can be
// released together.
type refSet struct {
	mu    sync.Mutex
	disps []*ole.IDispatch
}

func (r *refSet) add(d *ole.IDispatch) *ole.IDispatch {
	r.mu.Lock()
	r.disps = append(r.disps, d)
	r.mu.Unlock()
	return d
}

func (r *refSet) releaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.disps) - 1; i >= 0; i-- {
		r.disps[i].Release()
	}
	r.disps = nil
}

func getDispatch(refs *refSet, disp *ole.IDispatch, name string, params ...interface{}) (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(disp, name, params...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return refs.add(v.ToIDispatch()), nil
}

func getInt(disp *ole.IDispatch, name string) (int, error) {
	v, err := oleutil.GetProperty(disp, name)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", name, err)
	}
	defer v.Clear()
	return int(v.Val), nil
}

func getString(disp *ole.IDispatch, name string) (string, error) {
	v, err := oleutil.GetProperty(disp, name)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", name, err)
	}
	defer v.Clear()
	return v.ToString(), nil
}

func putProperty(disp *ole.IDispatch, name string, value interface{}) error {
	v, err := oleutil.PutProperty(disp, name, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	v.Clear()
	return nil
}

// items enumerates a 1-based automation collection.
func items(refs *refSet, collection *ole.IDispatch) ([]*ole.IDispatch, error) {
	count, err := getInt(collection, "Count")
	if err != nil {
		return nil, err
	}
	out := make([]*ole.IDispatch, 0, count)
	for i := 1; i <= count; i++ {
		item, err := getDispatch(refs, collection, "Item", i)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

type oleApplication struct {
	refs *refSet
	disp *ole.IDispatch
	once sync.Once
}

func (a *oleApplication) Documents() ([]Document, error) {
	books, err := getDispatch(a.refs, a.disp, "Workbooks")
	if err != nil {
		return nil, err
	}
	list, err := items(a.refs, books)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(list))
	for i, d := range list {
		docs[i] = &oleDocument{refs: a.refs, disp: d}
	}
	return docs, nil
}

func (a *oleApplication) Quit() error {
	v, err := oleutil.CallMethod(a.disp, "Quit")
	if err != nil {
		return fmt.Errorf("quit: %w", err)
	}
	v.Clear()
	return nil
}

func (a *oleApplication) Hwnd() (uintptr, error) {
	hwnd, err := getInt(a.disp, "Hwnd")
	if err != nil {
		return 0, err
	}
	return uintptr(hwnd), nil
}

func (a *oleApplication) SetVisible(visible bool) error {
	return putProperty(a.disp, "Visible", visible)
}

func (a *oleApplication) SetDisplayAlerts(enabled bool) error {
	return putProperty(a.disp, "DisplayAlerts", enabled)
}

func (a *oleApplication) StartupPath() (string, error) {
	return getString(a.disp, "StartupPath")
}

func (a *oleApplication) AddIns() ([]AddIn, error) {
	coll, err := getDispatch(a.refs, a.disp, "AddIns")
	if err != nil {
		return nil, err
	}
	list, err := items(a.refs, coll)
	if err != nil {
		return nil, err
	}
	out := make([]AddIn, len(list))
	for i, d := range list {
		out[i] = &oleAddIn{disp: d}
	}
	return out, nil
}

func (a *oleApplication) Raw() any { return a.disp }

func (a *oleApplication) Release() {
	a.once.Do(func() {
		a.refs.releaseAll()
		a.disp.Release()
	})
}

type oleDocument struct {
	refs *refSet
	disp *ole.IDispatch
}

func (d *oleDocument) FullName() (string, error) {
	return getString(d.disp, "FullName")
}

func (d *oleDocument) Close(saveChanges bool) error {
	v, err := oleutil.CallMethod(d.disp, "Close", saveChanges)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	v.Clear()
	return nil
}

func (d *oleDocument) Windows() ([]Window, error) {
	coll, err := getDispatch(d.refs, d.disp, "Windows")
	if err != nil {
		return nil, err
	}
	list, err := items(d.refs, coll)
	if err != nil {
		return nil, err
	}
	out := make([]Window, len(list))
	for i, w := range list {
		out[i] = &oleWindow{disp: w}
	}
	return out, nil
}

type oleWindow struct {
	disp *ole.IDispatch
}

func (w *oleWindow) SetVisible(visible bool) error {
	return putProperty(w.disp, "Visible", visible)
}

func (w *oleWindow) SetState(state int32) error {
	return putProperty(w.disp, "WindowState", state)
}

type oleAddIn struct {
	disp *ole.IDispatch
}

func (a *oleAddIn) Name() (string, error) {
	return getString(a.disp, "Name")
}

func (a *oleAddIn) Installed() (bool, error) {
	v, err := oleutil.GetProperty(a.disp, "Installed")
	if err != nil {
		return false, fmt.Errorf("get Installed: %w", err)
	}
	defer v.Clear()
	installed, _ := v.Value().(bool)
	return installed, nil
}

func (a *oleAddIn) SetInstalled(installed bool) error {
	return putProperty(a.disp, "Installed", installed)
}

// NewWorksheet wraps a raw worksheet dispatch obtained through Raw.
// The caller keeps ownership of disp.
func NewWorksheet(disp *ole.IDispatch) Worksheet {
	return &oleWorksheet{disp: disp}
}

type oleWorksheet struct {
	disp *ole.IDispatch
}

func (w *oleWorksheet) CurrentRegion(anchor string) (int, int, error) {
	refs := &refSet{}
	defer refs.releaseAll()

	cell, err := getDispatch(refs, w.disp, "Range", anchor)
	if err != nil {
		return 0, 0, err
	}
	region, err := getDispatch(refs, cell, "CurrentRegion")
	if err != nil {
		return 0, 0, err
	}
	rows, err := getDispatch(refs, region, "Rows")
	if err != nil {
		return 0, 0, err
	}
	cols, err := getDispatch(refs, region, "Columns")
	if err != nil {
		return 0, 0, err
	}
	nrows, err := getInt(rows, "Count")
	if err != nil {
		return 0, 0, err
	}
	ncols, err := getInt(cols, "Count")
	if err != nil {
		return 0, 0, err
	}
	return nrows, ncols, nil
}
