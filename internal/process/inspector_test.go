package process

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/safexl/safexl/internal/host/hosttest"
)

type mockTable struct {
	mock.Mock
}

func (m *mockTable) Processes() ([]Proc, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Proc), args.Error(1)
}

func (m *mockTable) Find(pid int32) (Proc, error) {
	args := m.Called(pid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Proc), args.Error(1)
}

type fakeProc struct {
	pid     int32
	name    string
	nameErr error
	killErr error
	files   []string
	killed  int
}

func (p *fakeProc) PID() int32 { return p.pid }

func (p *fakeProc) Name() (string, error) { return p.name, p.nameErr }

func (p *fakeProc) Kill() error {
	p.killed++
	return p.killErr
}

func (p *fakeProc) OpenFiles() ([]string, error) { return p.files, nil }

func newTestInspector(table Table) *Inspector {
	return NewInspector("EXCEL.EXE", WithTable(table), WithKillWait(0))
}

func TestIsHostRunning(t *testing.T) {
	tests := []struct {
		name  string
		procs []Proc
		want  bool
	}{
		{"no processes", []Proc{}, false},
		{"other processes only", []Proc{&fakeProc{pid: 1, name: "explorer.exe"}}, false},
		{"host present", []Proc{&fakeProc{pid: 1, name: "explorer.exe"}, &fakeProc{pid: 2, name: "EXCEL.EXE"}}, true},
		{"case insensitive", []Proc{&fakeProc{pid: 2, name: "excel.exe"}}, true},
		{"unreadable entries skipped", []Proc{&fakeProc{pid: 3, nameErr: errors.New("access denied")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := new(mockTable)
			table.On("Processes").Return(tt.procs, nil)

			running, err := newTestInspector(table).IsHostRunning()
			require.NoError(t, err)
			assert.Equal(t, tt.want, running)
		})
	}
}

func TestIsHostRunningListError(t *testing.T) {
	table := new(mockTable)
	table.On("Processes").Return(nil, errors.New("boom"))

	_, err := newTestInspector(table).IsHostRunning()
	assert.Error(t, err)
}

func TestKillAllHostInstancesNoneRunning(t *testing.T) {
	table := new(mockTable)
	table.On("Processes").Return([]Proc{&fakeProc{pid: 10, name: "notepad.exe"}}, nil)

	n, err := newTestInspector(table).KillAllHostInstances()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestKillAllHostInstances(t *testing.T) {
	a := &fakeProc{pid: 1, name: "EXCEL.EXE"}
	b := &fakeProc{pid: 2, name: "EXCEL.EXE", killErr: errors.New("access denied")}
	c := &fakeProc{pid: 3, name: "EXCEL.EXE"}
	other := &fakeProc{pid: 4, name: "WINWORD.EXE"}

	table := new(mockTable)
	table.On("Processes").Return([]Proc{a, b, c, other}, nil)

	n, err := newTestInspector(table).KillAllHostInstances()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, a.killed)
	assert.Equal(t, 1, b.killed)
	assert.Equal(t, 1, c.killed)
	assert.Zero(t, other.killed)
}

func TestResolveProcessID(t *testing.T) {
	app := hosttest.New()
	app.HwndValue = 0xBEEF

	var seen uintptr
	insp := NewInspector("", WithWindowResolver(func(hwnd uintptr) (int32, error) {
		seen = hwnd
		return 777, nil
	}))

	pid, err := insp.ResolveProcessID(app)
	require.NoError(t, err)
	assert.Equal(t, int32(777), pid)
	assert.Equal(t, uintptr(0xBEEF), seen)
}

func TestResolveProcessIDFailures(t *testing.T) {
	t.Run("hwnd unreadable", func(t *testing.T) {
		app := hosttest.New()
		app.HwndErr = errors.New("rpc server unavailable")

		_, err := NewInspector("").ResolveProcessID(app)
		assert.ErrorIs(t, err, ErrProcessResolution)
	})

	t.Run("window has no owner", func(t *testing.T) {
		insp := NewInspector("", WithWindowResolver(func(uintptr) (int32, error) {
			return 0, ErrNoWindow
		}))

		_, err := insp.ResolveProcessID(hosttest.New())
		assert.ErrorIs(t, err, ErrProcessResolution)
		assert.ErrorIs(t, err, ErrNoWindow)
	})
}

func TestTerminateIsIdempotent(t *testing.T) {
	table := new(mockTable)
	table.On("Find", int32(99)).Return(nil, ErrNoSuchProcess)

	assert.NoError(t, newTestInspector(table).Terminate(99))
	assert.NoError(t, newTestInspector(table).Terminate(99))
}

func TestTerminateKills(t *testing.T) {
	p := &fakeProc{pid: 5, name: "EXCEL.EXE"}
	table := new(mockTable)
	table.On("Find", int32(5)).Return(p, nil).Once()
	table.On("Find", int32(5)).Return(nil, ErrNoSuchProcess)

	insp := NewInspector("EXCEL.EXE", WithTable(table), WithKillWait(time.Second))
	require.NoError(t, insp.Terminate(5))
	assert.Equal(t, 1, p.killed)
	table.AssertExpectations(t)
}

func TestTerminateKillRaceTreatedAsGone(t *testing.T) {
	p := &fakeProc{pid: 6, name: "EXCEL.EXE", killErr: errors.New("process exited")}
	table := new(mockTable)
	table.On("Find", int32(6)).Return(p, nil).Once()
	table.On("Find", int32(6)).Return(nil, ErrNoSuchProcess)

	assert.NoError(t, newTestInspector(table).Terminate(6))
}

func TestTerminateKillFailure(t *testing.T) {
	p := &fakeProc{pid: 7, name: "EXCEL.EXE", killErr: errors.New("access denied")}
	table := new(mockTable)
	table.On("Find", int32(7)).Return(p, nil)

	assert.Error(t, newTestInspector(table).Terminate(7))
}

func TestTerminateWaitTimesOut(t *testing.T) {
	p := &fakeProc{pid: 8, name: "EXCEL.EXE"}
	table := new(mockTable)
	table.On("Find", int32(8)).Return(p, nil)

	insp := NewInspector("EXCEL.EXE", WithTable(table), WithKillWait(50*time.Millisecond))
	err := insp.Terminate(8)
	assert.ErrorIs(t, err, ErrStillRunning)
}

func TestTerminateHostGuardsAgainstPIDReuse(t *testing.T) {
	reused := &fakeProc{pid: 11, name: "chrome.exe"}
	table := new(mockTable)
	table.On("Find", int32(11)).Return(reused, nil)

	killed, err := newTestInspector(table).TerminateHost(11)
	require.NoError(t, err)
	assert.False(t, killed)
	assert.Zero(t, reused.killed)
}

func TestTerminateHost(t *testing.T) {
	p := &fakeProc{pid: 12, name: "EXCEL.EXE"}
	table := new(mockTable)
	table.On("Find", int32(12)).Return(p, nil)
	table.On("Find", int32(13)).Return(nil, ErrNoSuchProcess)

	insp := newTestInspector(table)

	killed, err := insp.TerminateHost(12)
	require.NoError(t, err)
	assert.True(t, killed)

	killed, err = insp.TerminateHost(13)
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestOpenFiles(t *testing.T) {
	table := new(mockTable)
	table.On("Processes").Return([]Proc{
		&fakeProc{pid: 1, name: "EXCEL.EXE", files: []string{`C:\a.xlsx`}},
		&fakeProc{pid: 2, name: "EXCEL.EXE", files: []string{`C:\b.xlsx`, `C:\~tmp.tmp`}},
		&fakeProc{pid: 3, name: "other.exe", files: []string{`C:\c.txt`}},
	}, nil)

	files, err := newTestInspector(table).OpenFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\a.xlsx`, `C:\b.xlsx`, `C:\~tmp.tmp`}, files)
}
