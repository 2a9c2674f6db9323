package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/minisc/minisc/internal/cloud"
)

// WaitError turns a poll failure into an error. A deadline hit while the
// parent context is still live is reported as cloud.ErrTimeout; anything
// else, including cancellation of the parent, is wrapped unchanged.
func WaitError(what string, parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w: waiting for %s: %w", cloud.ErrTimeout, what, err)
	}
	return fmt.Errorf("waiting for %s: %w", what, err)
}
