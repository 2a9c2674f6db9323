package handlers

import (
	"context"
	"fmt"

	"github.com/minisc/minisc/internal/cluster"
	"github.com/minisc/minisc/internal/config"
)

// DeployFlags are the deploy command's inputs.
type DeployFlags struct {
	ClusterFlags
	Component    string
	Workers      int
	InstanceType string
	JoinToken    string
}

// Deploy handles the deploy command.
//
// It provisions the network, security boundary and head node, then waits
// for the join token and launches the workers. --component narrows this to
// the head node (master) or to workers joining an existing head node.
func Deploy(ctx context.Context, flags DeployFlags) error {
	svc, cfg, done, err := setup(flags.ClusterFlags, func(cfg *config.Config) {
		if flags.Workers > 0 {
			cfg.Workers.Count = flags.Workers
		}
		if flags.InstanceType != "" {
			cfg.Head.InstanceType = flags.InstanceType
			cfg.Workers.InstanceType = flags.InstanceType
		}
	})
	if err != nil {
		return err
	}
	defer done()

	if flags.Component == cluster.ComponentWorkers && stdinIsTerminal() {
		ok, err := confirm(ctx,
			fmt.Sprintf("Join workers to the head node of %s?", cfg.ClusterTag),
			"Workers attach to an existing head node. Deploy it first with --component master.")
		if err != nil {
			return err
		}
		if !ok {
			return errNotConfirmed
		}
	}

	var tokens cluster.TokenSource
	if flags.Component != cluster.ComponentHead {
		tokens = tokenSource(flags.JoinToken)
	}

	dep, err := svc.Deploy(ctx, cfg, flags.Component, tokens)
	if dep != nil {
		fmt.Fprint(stdout, renderDeployment(dep))
	}
	if err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}

	if flags.Component == cluster.ComponentHead && dep.Head != nil {
		fmt.Fprintf(stdout, "  Next: run %q on %s, then\n", joinCommandHint, dep.Head.Address())
		fmt.Fprintf(stdout, "        minisc deploy --component workers --cluster-tag %s --join-token <token>\n\n", dep.ClusterTag)
	}
	return nil
}
