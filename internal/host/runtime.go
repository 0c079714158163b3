package host

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"
)

// sFalse is the HRESULT returned when COM is already initialized on the thread.
const sFalse = 0x00000001

// Runtime reference-counts process-wide COM initialization. The first Acquire
// initializes the multithreaded apartment on a dedicated OS thread; the last
// Release uninitializes it on that same thread.
type Runtime struct {
	init   func() error
	uninit func()

	mu   sync.Mutex
	refs int
	stop chan struct{}
	done chan struct{}
}

// NewRuntime returns a Runtime backed by CoInitializeEx / CoUninitialize.
func NewRuntime() *Runtime {
	return NewRuntimeWith(coInitialize, ole.CoUninitialize)
}

// NewRuntimeWith returns a Runtime using custom init and uninit hooks.
func NewRuntimeWith(init func() error, uninit func()) *Runtime {
	return &Runtime{init: init, uninit: uninit}
}

func coInitialize() error {
	err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED)
	if err == nil {
		return nil
	}
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) && oleErr.Code() == sFalse {
		return nil
	}
	return err
}

// Acquire takes a reference, initializing COM if this is the first one.
func (r *Runtime) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs > 0 {
		r.refs++
		return nil
	}

	ready := make(chan error, 1)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		if err := r.init(); err != nil {
			ready <- err
			return
		}
		ready <- nil
		<-stop
		r.uninit()
	}()

	if err := <-ready; err != nil {
		<-done
		return fmt.Errorf("%w: initialize COM: %w", ErrUnavailable, err)
	}
	r.stop, r.done = stop, done
	r.refs = 1
	return nil
}

// Release drops a reference, uninitializing COM when it was the last one.
// Releasing without a matching Acquire is a no-op.
func (r *Runtime) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs == 0 {
		return
	}
	r.refs--
	if r.refs > 0 {
		return
	}
	close(r.stop)
	<-r.done
	r.stop, r.done = nil, nil
}

// Refs returns the number of outstanding references.
func (r *Runtime) Refs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}
