package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moby/locker"

	"github.com/minisc/minisc/internal/bootscript"
	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/inventory"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/provisioning/compute"
	"github.com/minisc/minisc/internal/provisioning/infrastructure"
)

// ErrAborted is returned by ProvisionWorkers when the operator aborts.
var ErrAborted = errors.New("workflow aborted")

// TagLocks serializes work on one cluster tag within the process. Deploy
// steps and teardown both hold it.
var TagLocks = locker.New()

// Inventory persists cluster records. *inventory.Store implements it.
type Inventory interface {
	Update(ctx context.Context, tag string, fn func(*inventory.Record)) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInventory records every transition in inv.
func WithInventory(inv Inventory) Option {
	return func(o *Orchestrator) {
		o.inventory = inv
	}
}

// WithLocker replaces TagLocks.
func WithLocker(l *locker.Locker) Option {
	return func(o *Orchestrator) {
		o.locks = l
	}
}

// Orchestrator runs the lifecycle of one cluster.
type Orchestrator struct {
	pctx      *provisioning.Context
	network   *infrastructure.Provisioner
	nodes     *compute.Provisioner
	inventory Inventory
	locks     *locker.Locker

	mu      sync.Mutex
	state   State
	reason  string
	tokens  chan cloud.JoinToken
	aborted chan struct{}
}

// New creates an orchestrator for the cluster described by pctx.Config.
func New(pctx *provisioning.Context, renderer *bootscript.Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pctx:    pctx,
		network: infrastructure.NewProvisioner(),
		nodes:   compute.NewProvisioner(renderer),
		locks:   TagLocks,
		state:   StateEmpty,
		tokens:  make(chan cloud.JoinToken, 1),
		aborted: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reason returns why the workflow aborted, or "".
func (o *Orchestrator) Reason() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}

// Provisioning returns the shared provisioning state.
func (o *Orchestrator) Provisioning() *provisioning.State {
	return o.pctx.State
}

// ProvisionHead ensures network and security boundary, launches the head
// node and waits for it to run. It ends in AwaitingJoinToken.
func (o *Orchestrator) ProvisionHead(ctx context.Context) error {
	if err := o.step(ctx, StateNetworkReady, o.network.ProvisionNetwork); err != nil {
		return err
	}
	if err := o.step(ctx, StateSecurityReady, o.network.ProvisionSecurity); err != nil {
		return err
	}
	if err := o.step(ctx, StateHeadRunning, o.nodes.ProvisionHead); err != nil {
		return err
	}
	return o.transition(ctx, StateAwaitingJoinToken, "")
}

// AttachExisting prepares a workers-only deploy against a cluster whose head
// node already runs. Network and security are re-ensured, which creates
// nothing when they exist. It fails with cloud.ErrNotFound when the cluster
// has no head node.
func (o *Orchestrator) AttachExisting(ctx context.Context) error {
	if err := o.step(ctx, StateNetworkReady, o.network.ProvisionNetwork); err != nil {
		return err
	}
	if err := o.step(ctx, StateSecurityReady, o.network.ProvisionSecurity); err != nil {
		return err
	}
	if err := o.step(ctx, StateHeadRunning, locateHead); err != nil {
		return err
	}
	return o.transition(ctx, StateAwaitingJoinToken, "")
}

func locateHead(pctx *provisioning.Context) error {
	tag := pctx.Config.ClusterTag
	heads, err := pctx.Infra.ListInstances(pctx, tag, cloud.RoleHead)
	if err != nil {
		return fmt.Errorf("failed to look up head node: %w", err)
	}
	if len(heads) == 0 {
		return fmt.Errorf("%w: cluster %s has no head node", cloud.ErrNotFound, tag)
	}
	running, err := compute.WaitForRunning(pctx, heads[:1])
	if err != nil {
		return fmt.Errorf("head node %s: %w", heads[0].InstanceID, err)
	}
	pctx.State.Head = &running[0]
	pctx.Observer.Printf("[orchestration] Attached to head node %s at %s", running[0].InstanceID, running[0].Address())
	return nil
}

// SubmitJoinToken hands the operator's token to a waiting ProvisionWorkers.
// It never blocks and is only valid while awaiting the token.
func (o *Orchestrator) SubmitJoinToken(token cloud.JoinToken) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateAwaitingJoinToken {
		return fmt.Errorf("%w: cannot accept a join token in state %s", cloud.ErrInvalidState, o.state)
	}
	if token == "" {
		return errors.New("join token is empty")
	}
	select {
	case o.tokens <- token:
		return nil
	default:
		return fmt.Errorf("%w: a join token was already submitted", cloud.ErrInvalidState)
	}
}

// Abort stops the workflow and wakes a waiting ProvisionWorkers.
func (o *Orchestrator) Abort(reason string) error {
	return o.abort(o.pctx, reason)
}

// ProvisionWorkers waits for the join token, bounded by Timeouts.JoinToken,
// then launches the workers and waits for them to run. It ends in
// WorkersRunning.
func (o *Orchestrator) ProvisionWorkers(ctx context.Context) error {
	if s := o.State(); s != StateAwaitingJoinToken {
		return fmt.Errorf("%w: workers need state %s, have %s", cloud.ErrInvalidState, StateAwaitingJoinToken, s)
	}

	token, err := o.awaitToken(ctx)
	if err != nil {
		if !errors.Is(err, ErrAborted) {
			_ = o.abort(ctx, err.Error())
		}
		return err
	}

	return o.step(ctx, StateWorkersRunning, func(pctx *provisioning.Context) error {
		pctx.State.JoinToken = token
		return o.nodes.ProvisionWorkers(pctx)
	})
}

func (o *Orchestrator) awaitToken(ctx context.Context) (cloud.JoinToken, error) {
	timer := time.NewTimer(o.pctx.Timeouts.JoinToken)
	defer timer.Stop()

	o.pctx.Observer.Printf("[orchestration] Waiting up to %s for the join token", o.pctx.Timeouts.JoinToken)
	select {
	case token := <-o.tokens:
		return token, nil
	case <-o.aborted:
		return "", fmt.Errorf("%w: %s", ErrAborted, o.Reason())
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for join token: %w", ctx.Err())
	case <-timer.C:
		return "", fmt.Errorf("%w: no join token after %s", cloud.ErrTimeout, o.pctx.Timeouts.JoinToken)
	}
}

// step runs fn under the tag lock and moves to next on success. A failure
// moves the workflow to Aborted.
func (o *Orchestrator) step(ctx context.Context, next State, fn func(*provisioning.Context) error) error {
	if err := checkTransition(o.State(), next); err != nil {
		return err
	}

	tag := o.pctx.Config.ClusterTag
	o.locks.Lock(tag)
	defer func() { _ = o.locks.Unlock(tag) }()

	pctx := o.pctx.WithContext(ctx)
	start := time.Now()
	err := fn(pctx)
	pctx.Metrics.ObservePhase(tag, string(next), time.Since(start), err)
	if err != nil {
		_ = o.abort(ctx, err.Error())
		return err
	}
	return o.transition(ctx, next, "")
}

func (o *Orchestrator) abort(ctx context.Context, reason string) error {
	o.mu.Lock()
	if o.state.Terminal() {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot abort in state %s", cloud.ErrInvalidState, state)
	}
	o.reason = reason
	o.mu.Unlock()

	if err := o.transition(ctx, StateAborted, reason); err != nil {
		return err
	}
	close(o.aborted)
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, next State, reason string) error {
	o.mu.Lock()
	from := o.state
	if err := checkTransition(from, next); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = next
	o.mu.Unlock()

	tag := o.pctx.Config.ClusterTag
	provisioning.LogStateChange(o.pctx.Observer, string(from), string(next))
	o.pctx.Metrics.SetState(tag, string(next), stateNames())
	o.record(ctx, next, reason)
	return nil
}

// record persists the transition. Inventory failures are reported, never
// fatal to the workflow.
func (o *Orchestrator) record(ctx context.Context, st State, reason string) {
	if o.inventory == nil {
		return
	}
	// the workflow ctx may be what just failed
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	err := o.inventory.Update(ctx, o.pctx.Config.ClusterTag, func(rec *inventory.Record) {
		fillRecord(rec, o.pctx, st, reason)
	})
	if err != nil {
		o.pctx.Observer.Printf("[orchestration] Warning: failed to record state %s: %v", st, err)
	}
}

func fillRecord(rec *inventory.Record, pctx *provisioning.Context, st State, reason string) {
	rec.Provider = pctx.Infra.Provider()
	rec.Region = pctx.Config.Region
	rec.State = string(st)
	rec.Reason = reason

	ps := pctx.State
	if t := ps.Topology; t != nil {
		rec.NetworkID = t.NetworkID
		rec.SubnetID = t.SubnetID
		rec.RouteTableID = t.RouteTableID
		rec.GatewayID = t.GatewayID
		if t.Region != "" {
			rec.Region = t.Region
		}
	}
	if b := ps.Boundary; b != nil {
		rec.SecurityGroupID = b.ID
	}
	if h := ps.Head; h != nil {
		rec.HeadInstanceID = h.InstanceID
		rec.HeadAddress = h.Address()
	}
	if len(ps.Workers) > 0 {
		rec.WorkerIDs = rec.WorkerIDs[:0]
		for _, w := range ps.Workers {
			rec.WorkerIDs = append(rec.WorkerIDs, w.InstanceID)
		}
	}
}
