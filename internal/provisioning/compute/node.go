package compute

import (
	"errors"
	"fmt"
	"os"

	"github.com/minisc/minisc/internal/bootscript"
	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/util/labels"
	"github.com/minisc/minisc/internal/util/naming"
)

const phase = "compute"

var (
	// ErrNoHead is returned when workers are requested before a head node
	// has an address.
	ErrNoHead = errors.New("head node has no address yet")

	// ErrNoJoinToken is returned when workers are requested without a token.
	ErrNoJoinToken = errors.New("join token is required to launch workers")
)

// HeadSpec builds the head node spec from configuration.
func HeadSpec(cfg *config.Config) (cloud.NodeSpec, error) {
	spec := cloud.NodeSpec{
		Role:      cloud.RoleHead,
		SizeClass: cfg.Head.InstanceType,
		Image:     cfg.Head.Image.Filter(),
		Count:     1,
		KeyName:   cfg.SSH.KeyName,
		AdminUser: cfg.SSH.User,
	}
	return withPublicKey(spec, cfg.SSH.PublicKeyPath)
}

// WorkerSpec builds the worker pool spec from configuration.
func WorkerSpec(cfg *config.Config) (cloud.NodeSpec, error) {
	spec := cloud.NodeSpec{
		Role:      cloud.RoleWorker,
		SizeClass: cfg.Workers.InstanceType,
		Image:     cfg.Workers.Image.Filter(),
		Count:     cfg.Workers.Count,
		KeyName:   cfg.SSH.KeyName,
		AdminUser: cfg.SSH.User,
	}
	return withPublicKey(spec, cfg.SSH.PublicKeyPath)
}

func withPublicKey(spec cloud.NodeSpec, path string) (cloud.NodeSpec, error) {
	if path == "" {
		return spec, nil
	}
	// #nosec G304
	key, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("failed to read SSH public key: %w", err)
	}
	spec.PublicKey = string(key)
	return spec, nil
}

// LaunchHead launches exactly one head node into subnetID guarded by
// boundary. It returns without waiting for the node to run. When the
// cluster already has a head node, that node is returned instead.
func (p *Provisioner) LaunchHead(ctx *provisioning.Context, boundary *cloud.SecurityBoundary, subnetID string, spec cloud.NodeSpec) (*cloud.ProvisionedNode, error) {
	tag := ctx.Config.ClusterTag
	name := naming.Node(tag, string(cloud.RoleHead))

	existing, err := ctx.Infra.ListInstances(ctx, tag, cloud.RoleHead)
	if err != nil {
		return nil, fmt.Errorf("failed to look up head node: %w", err)
	}
	if len(existing) > 0 {
		head := existing[0]
		provisioning.LogResourceExists(ctx.Observer, phase, "instance", name, head.InstanceID)
		ctx.Metrics.CountResource(tag, "instance", provisioning.ActionExists)
		ctx.State.Head = &head
		return &head, nil
	}

	if spec.BootScript == "" {
		spec.BootScript, err = p.renderer.Render(cloud.RoleHead, p.values(ctx, "", ""))
		if err != nil {
			return nil, err
		}
	}
	spec.Count = 1

	nodes, err := p.launch(ctx, boundary, subnetID, spec, name, spec.Count)
	if err != nil {
		return nil, err
	}
	head := nodes[0]
	ctx.State.Head = &head
	return &head, nil
}

// LaunchWorkers launches count workers that join the head node with token.
// All workers share one boot script and one provider launch call. Workers
// already running for the cluster count toward count.
func (p *Provisioner) LaunchWorkers(ctx *provisioning.Context, boundary *cloud.SecurityBoundary, subnetID string, spec cloud.NodeSpec, count int, token cloud.JoinToken) ([]cloud.ProvisionedNode, error) {
	tag := ctx.Config.ClusterTag
	name := naming.Node(tag, string(cloud.RoleWorker))

	if count < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", config.ErrInvalidConfig, count)
	}
	if token == "" {
		return nil, ErrNoJoinToken
	}
	controller := controllerAddress(ctx.State.Head)
	if controller == "" {
		return nil, ErrNoHead
	}

	existing, err := ctx.Infra.ListInstances(ctx, tag, cloud.RoleWorker)
	if err != nil {
		return nil, fmt.Errorf("failed to look up workers: %w", err)
	}
	if len(existing) >= count {
		ctx.Observer.Printf("[%s] %d workers already present for %s", phase, len(existing), tag)
		ctx.State.Workers = existing
		return existing, nil
	}

	spec.BootScript, err = p.renderer.Render(cloud.RoleWorker, p.values(ctx, token, controller))
	if err != nil {
		return nil, err
	}
	spec.Count = count - len(existing)

	nodes, err := p.launch(ctx, boundary, subnetID, spec, name, count)
	if err != nil {
		return nil, err
	}
	workers := mergeNodes(existing, nodes)
	ctx.State.Workers = workers
	return workers, nil
}

// mergeNodes appends launched to existing, skipping instances already
// listed. Providers that resize a pool return the whole pool.
func mergeNodes(existing, launched []cloud.ProvisionedNode) []cloud.ProvisionedNode {
	seen := make(map[string]bool, len(existing))
	out := make([]cloud.ProvisionedNode, 0, len(existing)+len(launched))
	for _, n := range existing {
		seen[n.InstanceID] = true
		out = append(out, n)
	}
	for _, n := range launched {
		if seen[n.InstanceID] {
			continue
		}
		seen[n.InstanceID] = true
		out = append(out, n)
	}
	return out
}

func (p *Provisioner) launch(ctx *provisioning.Context, boundary *cloud.SecurityBoundary, subnetID string, spec cloud.NodeSpec, name string, total int) ([]cloud.ProvisionedNode, error) {
	tag := ctx.Config.ClusterTag

	image, err := SelectImage(ctx, spec.Image)
	if err != nil {
		return nil, err
	}
	ctx.Observer.Printf("[%s] Using image %s (%s) for %s", phase, image.ID, image.Name, spec.Role)

	req := cloud.LaunchRequest{
		Name:            name,
		Role:            spec.Role,
		ImageID:         image.ID,
		SizeClass:       spec.SizeClass,
		Count:           spec.Count,
		Total:           total,
		SubnetID:        subnetID,
		SecurityGroupID: boundary.ID,
		BootScript:      spec.BootScript,
		KeyName:         spec.KeyName,
		AdminUser:       spec.AdminUser,
		PublicKey:       spec.PublicKey,
		Labels: labels.NewLabelBuilder(tag).
			Merge(ctx.Config.Tags).
			WithRole(string(spec.Role)).
			WithName(name).
			Build(),
	}

	provisioning.LogResourceCreating(ctx.Observer, phase, "instance", fmt.Sprintf("%s x%d", name, spec.Count))
	nodes, err := ctx.Infra.RunInstances(ctx, req)
	if err != nil {
		ctx.Metrics.CountResource(tag, "instance", provisioning.ActionFailed)
		return nil, fmt.Errorf("failed to launch %s: %w", spec.Role, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("provider launched no %s instances", spec.Role)
	}
	for _, n := range nodes {
		provisioning.LogResourceCreated(ctx.Observer, phase, "instance", name, n.InstanceID)
		ctx.Metrics.CountResource(tag, "instance", provisioning.ActionCreated)
	}
	return nodes, nil
}

func (p *Provisioner) values(ctx *provisioning.Context, token cloud.JoinToken, controller string) bootscript.Values {
	cfg := ctx.Config
	networkCIDR := cfg.Network.CIDR
	if ctx.State.Topology != nil && ctx.State.Topology.CIDR != "" {
		networkCIDR = ctx.State.Topology.CIDR
	}
	return bootscript.Values{
		NetworkCIDR:       networkCIDR,
		AdminUser:         cfg.SSH.User,
		KubernetesVersion: cfg.Kubernetes.Version,
		PodCIDR:           cfg.Kubernetes.PodCIDR,
		CNIManifest:       cfg.Kubernetes.CNIManifest,
		JoinToken:         token,
		ControllerAddress: controller,
	}
}

// controllerAddress is the address workers reach the API server on. Workers
// share the head's subnet, so the private address is preferred.
func controllerAddress(head *cloud.ProvisionedNode) string {
	if head == nil {
		return ""
	}
	if head.PrivateAddress != "" {
		return head.PrivateAddress
	}
	return head.PublicAddress
}
