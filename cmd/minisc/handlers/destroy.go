package handlers

import (
	"context"
	"errors"
	"fmt"
)

// errNotConfirmed is returned when the operator declines or cannot confirm.
var errNotConfirmed = errors.New("not confirmed")

// Destroy handles the destroy command.
//
// It removes every resource tagged with the cluster tag in dependency
// order. Failures are reported per resource and the command can be run
// again to finish an interrupted teardown.
func Destroy(ctx context.Context, flags ClusterFlags, yes bool) error {
	svc, cfg, done, err := setup(flags, nil)
	if err != nil {
		return err
	}
	defer done()

	if !yes {
		if !stdinIsTerminal() {
			return fmt.Errorf("%w: pass --yes to destroy without a prompt", errNotConfirmed)
		}
		ok, err := confirm(ctx,
			fmt.Sprintf("Destroy cluster %s?", cfg.ClusterTag),
			fmt.Sprintf("Every %s resource tagged %s in %s will be deleted.", cfg.Provider, cfg.ClusterTag, cfg.Region))
		if err != nil {
			return err
		}
		if !ok {
			return errNotConfirmed
		}
	}

	res, err := svc.Teardown(ctx, cfg)
	if res != nil {
		fmt.Fprint(stdout, renderTeardown(cfg.ClusterTag, res))
	}
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}
	return nil
}
