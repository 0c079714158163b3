// Package safexl runs automation work against a spreadsheet host and makes
// sure the host never outlives the work.
//
// Application starts a new host instance, hands its handle to the body and,
// however the body exits, closes every document the body created. With
// terminateOnExit the host process is then killed; otherwise it is quit when
// empty or left visible with its original documents.
//
//	err := safexl.Application(true, func(h *safexl.Handle) error {
//	    app := h.Raw().(*ole.IDispatch)
//	    books := oleutil.MustGetProperty(app, "Workbooks").ToIDispatch()
//	    defer books.Release()
//	    _, err := oleutil.CallMethod(books, "Add")
//	    return err
//	})
//
// Errors returned by the body are returned unchanged. A teardown failure that
// happens while a body error is pending is attached as a *SuppressedError.
//
// Configuration is read from the environment (SAFEXL_PROG_ID,
// SAFEXL_PROCESS_NAME, SAFEXL_KILL_WAIT, SAFEXL_STATE_DIR, SAFEXL_TRACK_PIDS).
package safexl
