// Package session runs caller work against a freshly created automation host
// and guarantees the host is cleaned up afterwards.
//
// A session is a scoped acquisition:
//  1. Create the host (optionally loading add-ins)
//  2. Snapshot the documents already open
//  3. Run the caller's body with the raw handle
//  4. Teardown, exactly once, on every exit path: close the documents the
//     body created, then either kill the host process or quit/present it
//
// Documents open before the session are never closed by teardown.
//
// Errors from the body always win. If teardown also fails while a body error
// is pending, the teardown error is attached as a suppressed error.
//
// Example Usage:
//
//	mgr := session.NewManager(host.NewOLEFactory(""), process.NewInspector(""))
//	err := mgr.Do(session.Config{TerminateOnExit: true}, func(h *host.Handle) error {
//	    books, _ := oleutil.GetProperty(h.Raw().(*ole.IDispatch), "Workbooks")
//	    ...
//	})
//
// The manager never changes host settings such as screen updating or
// calculation mode on the caller's behalf. Host calls are blocking; a hung
// host hangs the calling goroutine.
package session
