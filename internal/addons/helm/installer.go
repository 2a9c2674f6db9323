package helm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/platform/ssh"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/util/retry"
)

// ErrNotReady is returned when helm never answers on the head node.
var ErrNotReady = errors.New("helm is not ready on the head node")

// Shell runs commands on a remote host.
type Shell interface {
	Run(ctx context.Context, command string) (ssh.Result, error)
	Close() error
}

var (
	dnsLabel = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]{0,61}[a-z0-9])?$`)
	chartRef = regexp.MustCompile(`^[a-z0-9][-a-z0-9_.]*/[a-z0-9][-a-z0-9_.]*$`)
)

// Installer drives helm on the head node.
type Installer struct {
	shell    Shell
	log      provisioning.Logger
	attempts int
	interval time.Duration
}

// NewInstaller creates an installer. A nil timeouts uses the environment
// defaults.
func NewInstaller(shell Shell, log provisioning.Logger, timeouts *config.Timeouts) *Installer {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	return &Installer{
		shell:    shell,
		log:      log,
		attempts: timeouts.ShellReadyAttempts,
		interval: timeouts.ShellReadyInterval,
	}
}

// Setup waits for helm, adds every repository and installs every chart.
// Repository failures abort; chart failures are collected in the report.
func (i *Installer) Setup(ctx context.Context, cfg config.HelmConfig) (*Report, error) {
	if err := i.WaitReady(ctx); err != nil {
		return nil, err
	}
	if err := i.AddRepos(ctx, cfg.Repos); err != nil {
		return nil, err
	}
	report := i.InstallCharts(ctx, cfg.Charts)

	releases, err := i.ListReleases(ctx)
	if err != nil {
		i.log.Printf("[helm] Could not list releases: %v", err)
	} else {
		report.Releases = releases
	}
	return report, nil
}

// WaitReady polls "helm version" until it succeeds.
func (i *Installer) WaitReady(ctx context.Context) error {
	i.log.Printf("[helm] Waiting for helm on the head node...")
	err := retry.Poll(ctx, i.interval, i.attempts, func(ctx context.Context) (bool, error) {
		res, err := i.shell.Run(ctx, "helm version")
		if err != nil {
			return false, err
		}
		return res.OK(), nil
	})
	switch {
	case errors.Is(err, retry.ErrPollExhausted):
		return fmt.Errorf("%w after %d attempts", ErrNotReady, i.attempts)
	case err != nil:
		return fmt.Errorf("failed to check helm: %w", err)
	}
	return nil
}

// AddRepos registers repositories and refreshes their indexes. A repository
// that is already registered is not an error.
func (i *Installer) AddRepos(ctx context.Context, repos []config.HelmRepo) error {
	for _, repo := range repos {
		if err := validateRepo(repo); err != nil {
			return err
		}
		i.log.Printf("[helm] Adding repository %s", repo.Name)
		res, err := i.shell.Run(ctx, fmt.Sprintf("helm repo add %s %s", repo.Name, repo.URL))
		if err := commandError("add repository "+repo.Name, res, err); err != nil && !alreadyExists(res) {
			return err
		}
	}

	res, err := i.shell.Run(ctx, "helm repo update")
	return commandError("update repositories", res, err)
}

// InstallCharts installs each chart in order, creating its namespace first
// when requested. A release that already exists is skipped.
func (i *Installer) InstallCharts(ctx context.Context, charts []config.HelmChart) *Report {
	report := &Report{}
	for idx, chart := range charts {
		if ctx.Err() != nil {
			report.fail(chart.Release, ctx.Err())
			continue
		}
		if err := validateChart(chart); err != nil {
			report.fail(chart.Release, err)
			continue
		}

		if chart.CreateNamespace {
			i.log.Printf("[helm] Creating namespace %s", chart.Namespace)
			res, err := i.shell.Run(ctx, "kubectl create namespace "+chart.Namespace)
			if err := commandError("create namespace "+chart.Namespace, res, err); err != nil && !alreadyExists(res) {
				report.fail(chart.Release, err)
				continue
			}
		}

		i.log.Printf("[helm] Installing %s (%d/%d)", chart.Release, idx+1, len(charts))
		res, err := i.shell.Run(ctx, installCommand(chart))
		switch {
		case err == nil && !res.OK() && nameInUse(res):
			report.Skipped = append(report.Skipped, chart.Release)
		case err == nil && res.OK():
			report.Installed = append(report.Installed, chart.Release)
		default:
			report.fail(chart.Release, commandError("install "+chart.Release, res, err))
		}
	}
	return report
}

// ListReleases returns the output of "helm list -A".
func (i *Installer) ListReleases(ctx context.Context) (string, error) {
	res, err := i.shell.Run(ctx, "helm list -A")
	if err := commandError("list releases", res, err); err != nil {
		return "", err
	}
	return res.Stdout, nil
}

func installCommand(chart config.HelmChart) string {
	return fmt.Sprintf("helm install %s %s --namespace %s", chart.Release, chart.Chart, chart.Namespace)
}

// commandError folds a transport error and a non-zero exit into one error.
func commandError(what string, res ssh.Result, err error) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if !res.OK() {
		return fmt.Errorf("failed to %s: exit status %d: %s", what, res.ExitStatus, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func alreadyExists(res ssh.Result) bool {
	s := strings.ToLower(res.Stderr)
	return strings.Contains(s, "already exists")
}

func nameInUse(res ssh.Result) bool {
	return strings.Contains(res.Stderr, "cannot re-use a name that is still in use")
}

func validateRepo(repo config.HelmRepo) error {
	if !dnsLabel.MatchString(repo.Name) {
		return fmt.Errorf("invalid repository name %q", repo.Name)
	}
	u, err := url.Parse(repo.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid repository URL %q for %s", repo.URL, repo.Name)
	}
	if strings.ContainsAny(repo.URL, " '\";&|`$") {
		return fmt.Errorf("invalid repository URL %q for %s", repo.URL, repo.Name)
	}
	return nil
}

func validateChart(chart config.HelmChart) error {
	var errs error
	if !dnsLabel.MatchString(chart.Release) {
		errs = multierr.Append(errs, fmt.Errorf("invalid release name %q", chart.Release))
	}
	if !chartRef.MatchString(chart.Chart) {
		errs = multierr.Append(errs, fmt.Errorf("invalid chart reference %q", chart.Chart))
	}
	if !dnsLabel.MatchString(chart.Namespace) {
		errs = multierr.Append(errs, fmt.Errorf("invalid namespace %q", chart.Namespace))
	}
	return errs
}
