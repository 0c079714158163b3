package session

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/process"
	"github.com/safexl/safexl/internal/snapshot"
)

// Sentinels for the session failure taxonomy. They alias the component
// sentinels so either can be used with errors.Is.
var (
	// ErrHostUnavailable means no handle could be created; teardown never ran.
	ErrHostUnavailable = host.ErrUnavailable
	// ErrDocumentClose means a session-created document could not be closed.
	ErrDocumentClose = snapshot.ErrCloseFailed
	// ErrProcessResolution means the host PID could not be found for killing.
	ErrProcessResolution = process.ErrProcessResolution
)

// TeardownError aggregates every failure seen during one teardown.
type TeardownError struct {
	SessionID string
	Err       error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("session %s teardown: %v", e.SessionID, e.Err)
}

// Unwrap exposes each individual failure to errors.Is and errors.As.
func (e *TeardownError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

// SuppressedError is returned when the body failed and teardown failed too.
// Unwrap yields only the body error.
type SuppressedError struct {
	Err        error
	Suppressed error
}

func (e *SuppressedError) Error() string {
	return fmt.Sprintf("%v (suppressed: %v)", e.Err, e.Suppressed)
}

func (e *SuppressedError) Unwrap() error { return e.Err }

// combine applies the precedence rule: the body error is primary.
func combine(bodyErr, teardownErr error) error {
	switch {
	case bodyErr == nil:
		return teardownErr
	case teardownErr == nil:
		return bodyErr
	default:
		return &SuppressedError{Err: bodyErr, Suppressed: teardownErr}
	}
}

// Suppressed returns the teardown error attached to err, if any.
func Suppressed(err error) error {
	var s *SuppressedError
	if errors.As(err, &s) {
		return s.Suppressed
	}
	return nil
}
