package sources

import (
	"errors"
	"fmt"
	"net"

	"github.com/csmith/likesync/model"
)

// classify marks network failures as transient. Other errors are returned as-is.
func classify(err error) error {
	if err == nil || errors.Is(err, model.ErrTransient) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}

	return err
}

// classifyLogin treats a failed login as an authentication problem, unless it
// was caused by the network.
func classifyLogin(service string, err error) error {
	if err == nil {
		return nil
	}

	if classified := classify(err); errors.Is(classified, model.ErrTransient) {
		return classified
	}

	if errors.Is(err, model.ErrAuth) {
		return fmt.Errorf("%s login: %w", service, err)
	}

	return fmt.Errorf("%w: %s login: %w", model.ErrAuth, service, err)
}
