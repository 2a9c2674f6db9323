package cluster

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/moby/locker"

	"github.com/minisc/minisc/internal/addons/helm"
	"github.com/minisc/minisc/internal/bootscript"
	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/inventory"
	"github.com/minisc/minisc/internal/orchestration"
	"github.com/minisc/minisc/internal/platform/s3"
	"github.com/minisc/minisc/internal/platform/ssh"
	"github.com/minisc/minisc/internal/provider"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/provisioning/destroy"
)

// Components accepted by Deploy.
const (
	ComponentAll     = "all"
	ComponentHead    = "master"
	ComponentWorkers = "workers"
)

// ErrNoToken is returned when a workers deploy has no way to get a token.
var ErrNoToken = errors.New("a join token is required to deploy workers")

// InfraFactory builds the infrastructure manager for a configuration.
type InfraFactory func(ctx context.Context, cfg *config.Config) (cloud.InfrastructureManager, error)

// ShellDialer opens a remote shell.
type ShellDialer func(ctx context.Context, cfg *ssh.Config) (helm.Shell, error)

// InventoryFactory opens the inventory for a configuration. It returns nil
// when the inventory is disabled.
type InventoryFactory func(ctx context.Context, cfg *config.Config) (*inventory.Store, error)

// TokenSource supplies the join token once the head node runs.
type TokenSource func(ctx context.Context, head cloud.ProvisionedNode) (cloud.JoinToken, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token cloud.JoinToken) TokenSource {
	return func(context.Context, cloud.ProvisionedNode) (cloud.JoinToken, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithInfraFactory replaces provider.New.
func WithInfraFactory(f InfraFactory) Option {
	return func(m *Manager) { m.newInfra = f }
}

// WithShellDialer replaces the SSH dialer.
func WithShellDialer(d ShellDialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithInventoryFactory replaces the S3 backed inventory.
func WithInventoryFactory(f InventoryFactory) Option {
	return func(m *Manager) { m.openInventory = f }
}

// WithTimeouts replaces the environment derived wait bounds.
func WithTimeouts(t *config.Timeouts) Option {
	return func(m *Manager) { m.timeouts = t }
}

// WithLocker replaces orchestration.TagLocks for deploys and teardowns.
func WithLocker(l *locker.Locker) Option {
	return func(m *Manager) { m.locks = l }
}

// WithMetrics shares a metrics set across every workflow of the manager.
func WithMetrics(metrics *provisioning.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// Manager runs cluster workflows.
type Manager struct {
	logger        logr.Logger
	newInfra      InfraFactory
	dial          ShellDialer
	openInventory InventoryFactory
	timeouts      *config.Timeouts
	metrics       *provisioning.Metrics
	locks         *locker.Locker
}

// NewManager creates a manager that logs to logger.
func NewManager(logger logr.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:        logger,
		newInfra:      provider.New,
		dial:          dialSSH,
		openInventory: openS3Inventory,
		timeouts:      config.LoadTimeouts(),
		metrics:       provisioning.NewMetrics(),
		locks:         orchestration.TagLocks,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Metrics returns the metrics shared by the manager's workflows.
func (m *Manager) Metrics() *provisioning.Metrics {
	return m.metrics
}

// Deployment describes the outcome of Deploy.
type Deployment struct {
	Provider   string
	ClusterTag string
	State      orchestration.State
	Head       *cloud.ProvisionedNode
	Workers    []cloud.ProvisionedNode
}

// Deploy provisions the requested component. Worker deploys take the join
// token from tokens, which runs while the orchestrator waits for it.
func (m *Manager) Deploy(ctx context.Context, cfg *config.Config, component string, tokens TokenSource) (*Deployment, error) {
	switch component {
	case ComponentAll, ComponentHead, ComponentWorkers:
	default:
		return nil, fmt.Errorf("%w: unknown component %q", config.ErrInvalidConfig, component)
	}
	if component != ComponentHead && tokens == nil {
		return nil, ErrNoToken
	}

	pctx, err := m.context(ctx, cfg)
	if err != nil {
		return nil, err
	}
	renderer, err := bootscript.NewRenderer(cfg.Boot.HeadTemplate, cfg.Boot.WorkerTemplate)
	if err != nil {
		return nil, err
	}
	opts := []orchestration.Option{orchestration.WithLocker(m.locks)}
	if inv := m.inventory(ctx, cfg); inv != nil {
		opts = append(opts, orchestration.WithInventory(inv))
	}
	orch := orchestration.New(pctx, renderer, opts...)

	if component == ComponentWorkers {
		err = orch.AttachExisting(ctx)
	} else {
		err = orch.ProvisionHead(ctx)
	}
	if err == nil && component != ComponentHead {
		err = joinWorkers(ctx, orch, tokens)
	}

	state := orch.Provisioning()
	return &Deployment{
		Provider:   pctx.Infra.Provider(),
		ClusterTag: cfg.ClusterTag,
		State:      orch.State(),
		Head:       state.Head,
		Workers:    state.Workers,
	}, err
}

// joinWorkers asks tokens for the join token while ProvisionWorkers waits
// for it. A failing ProvisionWorkers cancels the token request.
func joinWorkers(ctx context.Context, orch *orchestration.Orchestrator, tokens TokenSource) error {
	tokenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := orch.ProvisionWorkers(ctx)
		if err != nil {
			cancel()
		}
		done <- err
	}()

	token, err := tokens(tokenCtx, *orch.Provisioning().Head)
	if err == nil {
		err = orch.SubmitJoinToken(token)
	}
	if err != nil {
		_ = orch.Abort(err.Error())
		if werr := <-done; werr != nil && !errors.Is(werr, orchestration.ErrAborted) {
			return werr
		}
		return fmt.Errorf("failed to obtain join token: %w", err)
	}
	return <-done
}

// Teardown removes every resource of cfg.ClusterTag. The inventory record is
// deleted once nothing is left. It holds the tag's lock throughout, so it
// never runs between the steps of a deploy on the same tag.
func (m *Manager) Teardown(ctx context.Context, cfg *config.Config) (*destroy.Result, error) {
	pctx, err := m.context(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m.locks.Lock(cfg.ClusterTag)
	defer func() { _ = m.locks.Unlock(cfg.ClusterTag) }()

	destroyer := destroy.NewProvisioner()
	if err := provisioning.RunPhases(pctx, []provisioning.Phase{destroyer}); err != nil {
		if destroyer.Last == nil {
			return nil, err
		}
		return destroyer.Last, err
	}
	res := destroyer.Last

	if inv := m.inventory(ctx, cfg); inv != nil {
		if err := inv.Delete(ctx, cfg.ClusterTag); err != nil {
			pctx.Observer.Printf("[cluster] Warning: %v", err)
		}
	}
	return res, nil
}

// ClusterInfo reports nodes, releases and pods as seen from the head node.
func (m *Manager) ClusterInfo(ctx context.Context, cfg *config.Config) (*helm.ClusterInfo, error) {
	shell, err := m.headShell(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = shell.Close() }()
	return helm.Collect(ctx, shell)
}

// InstallCharts installs the configured Helm charts on the head node.
func (m *Manager) InstallCharts(ctx context.Context, cfg *config.Config) (*helm.Report, error) {
	shell, err := m.headShell(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = shell.Close() }()

	installer := helm.NewInstaller(shell, provisioning.NewLogObserver(m.logger), m.timeouts)
	return installer.Setup(ctx, cfg.Helm)
}

func (m *Manager) context(ctx context.Context, cfg *config.Config) (*provisioning.Context, error) {
	infra, err := m.newInfra(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	pctx := provisioning.NewContext(ctx, cfg, infra, m.logger)
	pctx.Timeouts = m.timeouts
	pctx.Metrics = m.metrics
	return pctx, nil
}

// inventory opens the configured inventory. Failures are logged and the
// workflow runs without one.
func (m *Manager) inventory(ctx context.Context, cfg *config.Config) *inventory.Store {
	if !cfg.Inventory.Enabled() || m.openInventory == nil {
		return nil
	}
	inv, err := m.openInventory(ctx, cfg)
	if err != nil {
		m.logger.Error(err, "inventory unavailable", "bucket", cfg.Inventory.Bucket)
		return nil
	}
	return inv
}

func (m *Manager) headShell(ctx context.Context, cfg *config.Config) (helm.Shell, error) {
	infra, err := m.newInfra(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	heads, err := infra.ListInstances(ctx, cfg.ClusterTag, cloud.RoleHead)
	if err != nil {
		return nil, fmt.Errorf("failed to look up head node: %w", err)
	}
	if len(heads) == 0 || heads[0].Address() == "" {
		return nil, fmt.Errorf("%w: cluster %s has no reachable head node", cloud.ErrNotFound, cfg.ClusterTag)
	}

	if cfg.SSH.PrivateKeyPath == "" {
		return nil, fmt.Errorf("%w: ssh.private_key_path is required to reach the head node", config.ErrInvalidConfig)
	}
	// #nosec G304
	key, err := os.ReadFile(cfg.SSH.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	return m.dial(ctx, &ssh.Config{
		Host:       heads[0].Address(),
		User:       cfg.SSH.User,
		PrivateKey: key,
	})
}

func dialSSH(ctx context.Context, cfg *ssh.Config) (helm.Shell, error) {
	session, err := ssh.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func openS3Inventory(ctx context.Context, cfg *config.Config) (*inventory.Store, error) {
	region := cfg.Inventory.Region
	if region == "" {
		region = cfg.Region
	}
	opts := s3.Options{Region: region, Endpoint: cfg.Inventory.Endpoint}
	if cfg.Provider == cloud.ProviderAWS {
		opts.AccessKey = cfg.AWS.AccessKeyID
		opts.SecretKey = cfg.AWS.SecretAccessKey
	}

	client, err := s3.NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx, cfg.Inventory.Bucket); err != nil {
		return nil, err
	}
	return inventory.NewStore(client, cfg.Inventory.Bucket), nil
}
