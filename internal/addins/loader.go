// Package addins creates host handles with or without the user's installed
// add-ins loaded.
//
// A host started through automation does not load installed add-ins. When
// loading is requested, each installed add-in is switched off and on again,
// which makes the host load it. The cost grows with the number of add-ins.
package addins

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/safexl/safexl/internal/host"
	"github.com/safexl/safexl/internal/logging"
)

// Loader creates application handles.
type Loader struct {
	factory host.Factory
	logger  *logging.Logger
}

// NewLoader returns a Loader over factory.
func NewLoader(factory host.Factory, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{factory: factory, logger: logger}
}

// CreateHandle starts a host instance. The add-in mode is fixed for the
// lifetime of the returned handle. A failure to reload an add-in is logged
// and does not fail creation.
func (l *Loader) CreateHandle(loadAddins bool) (*host.Handle, error) {
	app, err := l.factory.Create()
	if err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}
	if loadAddins {
		if err := Reload(app); err != nil {
			l.logger.Warn("Some add-ins could not be loaded", zap.Error(err))
		}
	}
	return host.NewHandle(app, loadAddins), nil
}

// Reload toggles every installed add-in off and on.
func Reload(app host.Application) error {
	list, err := app.AddIns()
	if err != nil {
		return fmt.Errorf("list add-ins: %w", err)
	}
	var errs error
	for _, ai := range list {
		installed, err := ai.Installed()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !installed {
			continue
		}
		if err := ai.SetInstalled(false); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, ai.SetInstalled(true))
	}
	return errs
}
