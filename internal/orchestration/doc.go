// Package orchestration drives a cluster through its lifecycle.
//
// An [Orchestrator] owns one cluster tag and moves it along a fixed chain of
// states:
//
//	Empty -> NetworkReady -> SecurityReady -> HeadRunning -> AwaitingJoinToken -> WorkersRunning
//
// with Aborted reachable from every non-terminal state. Between the head and
// the workers the workflow suspends until an operator submits the join token
// printed on the head node, or aborts.
//
// # Usage
//
//	orch := orchestration.New(pctx, renderer)
//	if err := orch.ProvisionHead(ctx); err != nil {
//	    return err
//	}
//	go promptForToken(orch)
//	if err := orch.ProvisionWorkers(ctx); err != nil {
//	    return err
//	}
//
// Steps for one tag are serialized across orchestrators in the process. The
// lock is held per step and released while waiting for the token.
package orchestration
