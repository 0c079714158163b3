// Package host provides a capability-typed view of a spreadsheet automation host.
//
// The automation object model is dynamically dispatched; this package exposes
// only the operations the session lifecycle needs (documents, windows,
// add-ins, quit, window handle) and hands everything else back to the caller
// untyped through Raw.
//
// Components:
//   - Application, Document, Window, AddIn, Worksheet: narrow host interfaces
//   - Handle: one running host instance plus its lazily resolved PID
//   - OLEFactory: creates Excel.Application (or any ProgID) through go-ole
//   - Runtime: reference-counted COM initialization shared by all sessions
//
// Example Usage:
//
//	rt := host.NewRuntime()
//	if err := rt.Acquire(); err != nil {
//	    return err
//	}
//	defer rt.Release()
//
//	app, err := host.NewOLEFactory("Excel.Application").Create()
package host
