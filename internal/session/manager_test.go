package session_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/host/hosttest"
	"github.com/safexl/safexl/internal/infrastructure/monitoring"
	"github.com/safexl/safexl/internal/pidtrack"
	"github.com/safexl/safexl/internal/session"
	"github.com/safexl/safexl/internal/window"
)

var errBoom = errors.New("boom")

// fakeInspector models one host process that lives until terminated.
type fakeInspector struct {
	hosttest.Resolver
	alive        bool
	TerminateErr error
	Kills        []int32
}

func (f *fakeInspector) Terminate(pid int32) error {
	f.Kills = append(f.Kills, pid)
	if f.TerminateErr != nil {
		return f.TerminateErr
	}
	f.alive = false
	return nil
}

type fixture struct {
	app       *hosttest.App
	factory   *hosttest.Factory
	inspector *fakeInspector
	runtime   *host.Runtime
	mgr       *session.Manager
}

func newFixture(t *testing.T, opts ...session.Option) *fixture {
	t.Helper()
	app := hosttest.New()
	f := &fixture{
		app:       app,
		factory:   &hosttest.Factory{App: app},
		inspector: &fakeInspector{Resolver: hosttest.Resolver{PID: 4242}, alive: true},
		runtime:   host.NewRuntimeWith(func() error { return nil }, func() {}),
	}
	opts = append([]session.Option{session.WithRuntime(f.runtime)}, opts...)
	f.mgr = session.NewManager(f.factory, f.inspector, opts...)
	return f
}

func TestDefaultConfig(t *testing.T) {
	cfg := session.DefaultConfig()
	assert.False(t, cfg.TerminateOnExit)
	assert.True(t, cfg.MaximizeOnExit)
	assert.False(t, cfg.LoadAddinsOnStart)
}

func TestDo_TerminateOnExitKillsHost(t *testing.T) {
	f := newFixture(t)

	var created []*hosttest.Document
	err := f.mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error {
		assert.Same(t, f.app, h.Raw())
		created = append(created, f.app.Add(), f.app.Add())
		return nil
	})
	require.NoError(t, err)

	for _, d := range created {
		assert.True(t, d.Closed())
		assert.False(t, d.SavedOnClose)
	}
	assert.False(t, f.inspector.alive, "host process should be gone")
	assert.Equal(t, []int32{4242}, f.inspector.Kills)
	assert.Zero(t, f.app.QuitCalls)
	assert.Equal(t, 1, f.app.ReleaseCalls)
	assert.Zero(t, f.runtime.Refs())
}

func TestDo_BodyErrorKeepsPreexistingDocuments(t *testing.T) {
	f := newFixture(t)
	pre := f.app.Open(`C:\data\budget.xlsx`)

	var created *hosttest.Document
	err := f.mgr.Do(session.Config{MaximizeOnExit: true}, func(h *host.Handle) error {
		created = f.app.Add()
		return errBoom
	})

	require.Error(t, err)
	assert.Same(t, errBoom, err, "body error must propagate unchanged")
	assert.True(t, created.Closed())
	assert.False(t, pre.Closed())
	assert.Equal(t, []string{`C:\data\budget.xlsx`}, f.app.Names())
	assert.Empty(t, f.inspector.Kills)
	assert.Zero(t, f.app.QuitCalls)

	w := pre.WindowList[0]
	assert.True(t, w.Visible)
	assert.Equal(t, int32(window.Maximized), w.State)
	assert.True(t, f.app.Visible)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t)

	s, err := f.mgr.Open(session.Config{TerminateOnExit: true})
	require.NoError(t, err)
	d := f.app.Add()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, 1, d.CloseCalls)
	assert.Len(t, f.inspector.Kills, 1)
	assert.Equal(t, 1, f.app.ReleaseCalls)
	assert.Zero(t, f.runtime.Refs())
}

func TestDo_OnlySessionDocumentsAreClosed(t *testing.T) {
	f := newFixture(t)
	keep := f.app.Open(`C:\keep.xlsx`)
	gone := f.app.Open(`C:\gone.xlsx`)

	var made []*hosttest.Document
	err := f.mgr.Do(session.Config{}, func(h *host.Handle) error {
		made = append(made, f.app.Add(), f.app.Add())
		// A pre-existing document closed by the caller is simply gone.
		return gone.Close(false)
	})
	require.NoError(t, err)

	assert.False(t, keep.Closed())
	assert.Zero(t, keep.CloseCalls)
	assert.Equal(t, 1, gone.CloseCalls)
	for _, d := range made {
		assert.True(t, d.Closed())
	}
	assert.Equal(t, []string{`C:\keep.xlsx`}, f.app.Names())
	assert.Equal(t, int32(window.Minimized), keep.WindowList[0].State)
}

func TestDo_BodyErrorWinsOverTeardownError(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.Do(session.Config{}, func(h *host.Handle) error {
		f.app.Add().CloseErr = errors.New("host not responding")
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, session.ErrDocumentClose)

	var supp *session.SuppressedError
	require.ErrorAs(t, err, &supp)
	assert.Same(t, errBoom, supp.Err)
	assert.ErrorIs(t, supp.Suppressed, session.ErrDocumentClose)
	assert.ErrorIs(t, session.Suppressed(err), session.ErrDocumentClose)
}

func TestDo_TerminateIgnoresCosmeticOptions(t *testing.T) {
	f := newFixture(t)
	addin := &hosttest.AddIn{AddInName: "Analysis ToolPak", On: true}
	f.app.AddInList = []*hosttest.AddIn{addin}
	pre := f.app.Open(`C:\pre.xlsx`)

	cfg := session.Config{TerminateOnExit: true, MaximizeOnExit: false, LoadAddinsOnStart: true}
	err := f.mgr.Do(cfg, func(h *host.Handle) error {
		assert.False(t, h.AddinsLoaded())
		f.app.Add()
		return nil
	})
	require.NoError(t, err)

	assert.Empty(t, addin.Writes)
	assert.False(t, pre.WindowList[0].Touched)
	assert.False(t, f.app.Visible)
	assert.Zero(t, f.app.QuitCalls)
	assert.Len(t, f.inspector.Kills, 1)
}

func TestDo_LoadsAddinsWhenKept(t *testing.T) {
	f := newFixture(t)
	addin := &hosttest.AddIn{AddInName: "Solver", On: true}
	f.app.AddInList = []*hosttest.AddIn{addin}

	err := f.mgr.Do(session.Config{LoadAddinsOnStart: true}, func(h *host.Handle) error {
		assert.True(t, h.AddinsLoaded())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, addin.Writes)
}

func TestDo_QuitsWhenNothingRemains(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.Do(session.Config{}, func(h *host.Handle) error {
		f.app.Add()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.app.QuitCalls)
	assert.Empty(t, f.app.Names())
	assert.Empty(t, f.inspector.Kills)
}

func TestDo_TeardownErrorReturnedWhenBodySucceeds(t *testing.T) {
	f := newFixture(t)

	var stuck *hosttest.Document
	err := f.mgr.Do(session.Config{}, func(h *host.Handle) error {
		stuck = f.app.Add()
		stuck.CloseErr = errors.New("rpc server unavailable")
		f.app.Add()
		return nil
	})

	require.ErrorIs(t, err, session.ErrDocumentClose)
	var te *session.TeardownError
	require.ErrorAs(t, err, &te)
	assert.NotEmpty(t, te.SessionID)
	assert.Nil(t, session.Suppressed(err))

	// The other document was still closed and the host was not quit.
	assert.Equal(t, []string{"Book1"}, f.app.Names())
	assert.Zero(t, f.app.QuitCalls)
	assert.Zero(t, f.runtime.Refs())
}

func TestDo_HostUnavailable(t *testing.T) {
	f := newFixture(t)
	f.factory.Err = errors.New("class not registered")

	called := false
	err := f.mgr.Do(session.DefaultConfig(), func(h *host.Handle) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, session.ErrHostUnavailable)
	assert.False(t, called)
	assert.Zero(t, f.runtime.Refs())
}

func TestOpen_RuntimeFailure(t *testing.T) {
	f := newFixture(t, session.WithRuntime(host.NewRuntimeWith(
		func() error { return errors.New("CoInitializeEx failed") },
		func() {},
	)))

	_, err := f.mgr.Open(session.DefaultConfig())
	require.ErrorIs(t, err, host.ErrUnavailable)
	assert.Zero(t, f.factory.Created)
}

func TestOpen_SnapshotFailureDiscardsHost(t *testing.T) {
	f := newFixture(t)
	f.app.DocumentsErr = errors.New("call rejected")

	_, err := f.mgr.Open(session.DefaultConfig())
	require.Error(t, err)
	assert.Equal(t, 1, f.app.ReleaseCalls)
	assert.Equal(t, []int32{4242}, f.inspector.Kills)
	assert.Zero(t, f.runtime.Refs())
}

func TestDo_ProcessResolutionFailure(t *testing.T) {
	f := newFixture(t)
	f.inspector.Err = errors.New("window has no owner")

	err := f.mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error {
		f.app.Add()
		return nil
	})

	require.ErrorIs(t, err, session.ErrProcessResolution)
	assert.Zero(t, f.app.QuitCalls, "no silent fallback to quit")
	assert.Empty(t, f.inspector.Kills)
	assert.Empty(t, f.app.Names())
}

func TestDo_PanicRunsTeardown(t *testing.T) {
	f := newFixture(t)

	var d *hosttest.Document
	assert.PanicsWithValue(t, "bad cell", func() {
		_ = f.mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error {
			d = f.app.Add()
			panic("bad cell")
		})
	})

	assert.True(t, d.Closed())
	assert.Len(t, f.inspector.Kills, 1)
	assert.Zero(t, f.runtime.Refs())
}

func TestDo_GoexitRunsTeardown(t *testing.T) {
	f := newFixture(t)

	var d *hosttest.Document
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error {
			d = f.app.Add()
			runtime.Goexit()
			return nil
		})
	}()
	<-done

	require.NotNil(t, d)
	assert.True(t, d.Closed())
	assert.Empty(t, f.app.Names())
	assert.Equal(t, []int32{4242}, f.inspector.Kills)
	assert.Equal(t, 1, f.app.ReleaseCalls)
	assert.Zero(t, f.runtime.Refs())
}

func TestDo_QuitsWhenOnlyStartupDocumentsRemain(t *testing.T) {
	f := newFixture(t)
	f.app.Startup = `C:\XLSTART`
	personal := f.app.Open(`C:\XLSTART\PERSONAL.XLSB`)

	err := f.mgr.Do(session.Config{}, func(h *host.Handle) error {
		f.app.Add()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.app.QuitCalls)
	assert.False(t, personal.Closed())
	assert.False(t, personal.WindowList[0].Touched)
	assert.Empty(t, f.inspector.Kills)
}

func TestDo_FailedCloseLeavesHostVisible(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.Do(session.Config{}, func(h *host.Handle) error {
		f.app.Add().CloseErr = errBoom
		return nil
	})

	require.ErrorIs(t, err, session.ErrDocumentClose)
	assert.Zero(t, f.app.QuitCalls)
	assert.True(t, f.app.Visible, "a host holding an unclosed document must not stay hidden")
	assert.Equal(t, []string{"Book1"}, f.app.Names())
	assert.Empty(t, f.inspector.Kills)
}

func TestRun_ReturnsBodyResult(t *testing.T) {
	f := newFixture(t)

	n, err := session.Run(f.mgr, session.Config{TerminateOnExit: true}, func(h *host.Handle) (int, error) {
		f.app.Add()
		f.app.Add()
		return len(f.app.Names()), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDo_TracksTerminatedHosts(t *testing.T) {
	tracker := pidtrack.New(t.TempDir())
	f := newFixture(t, session.WithTracker(tracker))

	err := f.mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error {
		pids, err := tracker.List()
		require.NoError(t, err)
		assert.Len(t, pids, 1)
		return nil
	})
	require.NoError(t, err)

	pids, err := tracker.List()
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestDo_KeepsRecordWhenKillFails(t *testing.T) {
	tracker := pidtrack.New(t.TempDir())
	f := newFixture(t, session.WithTracker(tracker))
	f.inspector.TerminateErr = errors.New("access denied")

	err := f.mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error { return nil })
	require.Error(t, err)

	pids, err := tracker.List()
	require.NoError(t, err)
	require.Len(t, pids, 1)
	for _, pid := range pids {
		assert.Equal(t, int32(4242), pid)
	}
}

func TestDo_KeptHostsAreNotTracked(t *testing.T) {
	tracker := pidtrack.New(t.TempDir())
	f := newFixture(t, session.WithTracker(tracker))
	f.app.Open(`C:\pre.xlsx`)

	require.NoError(t, f.mgr.Do(session.Config{}, func(h *host.Handle) error {
		pids, err := tracker.List()
		require.NoError(t, err)
		assert.Empty(t, pids)
		return nil
	}))
	assert.Zero(t, f.inspector.Calls)
}

func TestDo_RecordsMetrics(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, session.WithMetrics(m))

	require.NoError(t, f.mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error {
		f.app.Add()
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
		return nil
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HostsTerminated.WithLabelValues(monitoring.ReasonSession)))
}
