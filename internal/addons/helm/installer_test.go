package helm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/platform/ssh"
	testutil "github.com/minisc/minisc/internal/testing"
)

var (
	ok     = ssh.Result{}
	failed = ssh.Result{ExitStatus: 1, Stderr: "boom\n"}
)

func newInstaller(shell *testutil.MockShell) *Installer {
	return NewInstaller(shell, testutil.NewRecordingObserver(), config.FastTimeouts())
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	t.Run("ready after retries", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm version").Return(failed, nil).Twice()
		shell.On("Run", mock.Anything, "helm version").Return(ok, nil).Once()

		require.NoError(t, newInstaller(shell).WaitReady(context.Background()))
		shell.AssertNumberOfCalls(t, "Run", 3)
	})

	t.Run("never ready", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm version").Return(failed, nil)

		err := newInstaller(shell).WaitReady(context.Background())
		require.ErrorIs(t, err, ErrNotReady)
		assert.Contains(t, err.Error(), "after 3 attempts")
		shell.AssertNumberOfCalls(t, "Run", 3)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm version").Return(ssh.Result{}, errors.New("connection reset"))

		err := newInstaller(shell).WaitReady(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotReady)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestAddRepos(t *testing.T) {
	t.Parallel()

	repos := []config.HelmRepo{
		{Name: "bitnami", URL: "https://charts.bitnami.com/bitnami"},
		{Name: "kubernetes-dashboard", URL: "https://kubernetes.github.io/dashboard/"},
	}

	t.Run("adds then updates", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm repo add bitnami https://charts.bitnami.com/bitnami").Return(ok, nil).Once()
		shell.On("Run", mock.Anything, "helm repo add kubernetes-dashboard https://kubernetes.github.io/dashboard/").Return(ok, nil).Once()
		shell.On("Run", mock.Anything, "helm repo update").Return(ok, nil).Once()

		require.NoError(t, newInstaller(shell).AddRepos(context.Background(), repos))
		shell.AssertExpectations(t)
	})

	t.Run("existing repository tolerated", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		exists := ssh.Result{ExitStatus: 1, Stderr: `Error: repository name (bitnami) already exists`}
		shell.On("Run", mock.Anything, "helm repo add bitnami https://charts.bitnami.com/bitnami").Return(exists, nil).Once()
		shell.On("Run", mock.Anything, "helm repo update").Return(ok, nil).Once()

		require.NoError(t, newInstaller(shell).AddRepos(context.Background(), repos[:1]))
	})

	t.Run("add failure aborts", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm repo add bitnami https://charts.bitnami.com/bitnami").Return(failed, nil).Once()

		err := newInstaller(shell).AddRepos(context.Background(), repos)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "add repository bitnami")
		assert.Contains(t, err.Error(), "boom")
		shell.AssertNumberOfCalls(t, "Run", 1)
	})

	t.Run("update failure", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, mock.MatchedBy(func(cmd string) bool { return cmd != "helm repo update" })).Return(ok, nil)
		shell.On("Run", mock.Anything, "helm repo update").Return(failed, nil)

		err := newInstaller(shell).AddRepos(context.Background(), repos)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "update repositories")
	})

	t.Run("invalid repository rejected before running", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}

		err := newInstaller(shell).AddRepos(context.Background(), []config.HelmRepo{{Name: "x", URL: "https://a.example/; rm -rf /"}})
		require.Error(t, err)
		shell.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})
}

func TestInstallCharts(t *testing.T) {
	t.Parallel()

	t.Run("default charts", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, mock.Anything).Return(ok, nil)

		report := newInstaller(shell).InstallCharts(context.Background(), config.DefaultHelmCharts)
		require.NoError(t, report.Err())
		assert.Equal(t, []string{"metrics-server", "nginx-ingress", "prometheus", "kubernetes-dashboard"}, report.Installed)

		var commands []string
		for _, c := range shell.Calls {
			commands = append(commands, c.Arguments.String(1))
		}
		assert.Equal(t, []string{
			"helm install metrics-server bitnami/metrics-server --namespace kube-system",
			"kubectl create namespace ingress-nginx",
			"helm install nginx-ingress bitnami/nginx-ingress-controller --namespace ingress-nginx",
			"kubectl create namespace monitoring",
			"helm install prometheus bitnami/kube-prometheus --namespace monitoring",
			"kubectl create namespace kubernetes-dashboard",
			"helm install kubernetes-dashboard kubernetes-dashboard/kubernetes-dashboard --namespace kubernetes-dashboard",
		}, commands)
	})

	t.Run("failures reported and remaining charts installed", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "kubectl create namespace monitoring").Return(failed, nil)
		shell.On("Run", mock.Anything, "helm install metrics-server bitnami/metrics-server --namespace kube-system").Return(failed, nil)
		shell.On("Run", mock.Anything, mock.Anything).Return(ok, nil)

		report := newInstaller(shell).InstallCharts(context.Background(), config.DefaultHelmCharts)
		assert.Equal(t, []string{"nginx-ingress", "kubernetes-dashboard"}, report.Installed)
		require.Len(t, report.Failed, 2)
		assert.Equal(t, "metrics-server", report.Failed[0].Release)
		assert.Equal(t, "prometheus", report.Failed[1].Release)
		shell.AssertNotCalled(t, "Run", mock.Anything, "helm install prometheus bitnami/kube-prometheus --namespace monitoring")

		err := report.Err()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "metrics-server: failed to install metrics-server")
		assert.Contains(t, err.Error(), "prometheus: failed to create namespace monitoring")
	})

	t.Run("existing namespace and release tolerated", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "kubectl create namespace monitoring").
			Return(ssh.Result{ExitStatus: 1, Stderr: `Error from server (AlreadyExists): namespaces "monitoring" already exists`}, nil)
		shell.On("Run", mock.Anything, mock.Anything).
			Return(ssh.Result{ExitStatus: 1, Stderr: "Error: INSTALLATION FAILED: cannot re-use a name that is still in use"}, nil)

		report := newInstaller(shell).InstallCharts(context.Background(), []config.HelmChart{
			{Release: "prometheus", Chart: "bitnami/kube-prometheus", Namespace: "monitoring", CreateNamespace: true},
		})
		require.NoError(t, report.Err())
		assert.Equal(t, []string{"prometheus"}, report.Skipped)
		assert.Empty(t, report.Installed)
	})

	t.Run("invalid chart", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}

		report := newInstaller(shell).InstallCharts(context.Background(), []config.HelmChart{
			{Release: "Bad Name", Chart: "no-repo", Namespace: "default"},
		})
		require.Len(t, report.Failed, 1)
		assert.Contains(t, report.Err().Error(), "invalid release name")
		assert.Contains(t, report.Err().Error(), "invalid chart reference")
		shell.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report := newInstaller(shell).InstallCharts(ctx, config.DefaultHelmCharts)
		assert.Len(t, report.Failed, len(config.DefaultHelmCharts))
		assert.ErrorIs(t, report.Err(), context.Canceled)
	})
}

func TestSetup(t *testing.T) {
	t.Parallel()

	t.Run("full run", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm list -A").Return(ssh.Result{Stdout: "NAME\nmetrics-server\n"}, nil)
		shell.On("Run", mock.Anything, mock.Anything).Return(ok, nil)

		report, err := newInstaller(shell).Setup(context.Background(), config.HelmConfig{
			Repos:  config.DefaultHelmRepos,
			Charts: config.DefaultHelmCharts[:1],
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"metrics-server"}, report.Installed)
		assert.Equal(t, "NAME\nmetrics-server\n", report.Releases)
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm version").Return(failed, nil)

		report, err := newInstaller(shell).Setup(context.Background(), config.HelmConfig{Charts: config.DefaultHelmCharts})
		require.ErrorIs(t, err, ErrNotReady)
		assert.Nil(t, report)
		shell.AssertNotCalled(t, "Run", mock.Anything, "helm repo update")
	})

	t.Run("listing failure is not fatal", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "helm list -A").Return(failed, nil)
		shell.On("Run", mock.Anything, mock.Anything).Return(ok, nil)

		report, err := newInstaller(shell).Setup(context.Background(), config.HelmConfig{})
		require.NoError(t, err)
		assert.Empty(t, report.Releases)
	})
}

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("all listings", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "kubectl get nodes").Return(ssh.Result{Stdout: "nodes"}, nil)
		shell.On("Run", mock.Anything, "helm list -A").Return(ssh.Result{Stdout: "releases"}, nil)
		shell.On("Run", mock.Anything, "kubectl get pods -A").Return(ssh.Result{Stdout: "pods"}, nil)

		info, err := Collect(context.Background(), shell)
		require.NoError(t, err)
		assert.Equal(t, &ClusterInfo{Nodes: "nodes", Releases: "releases", Pods: "pods"}, info)
	})

	t.Run("partial", func(t *testing.T) {
		t.Parallel()
		shell := &testutil.MockShell{}
		shell.On("Run", mock.Anything, "kubectl get nodes").Return(ssh.Result{Stdout: "nodes"}, nil)
		shell.On("Run", mock.Anything, "helm list -A").Return(failed, nil)
		shell.On("Run", mock.Anything, "kubectl get pods -A").Return(ssh.Result{Stdout: "pods"}, nil)

		info, err := Collect(context.Background(), shell)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `run "helm list -A"`)
		assert.Equal(t, "nodes", info.Nodes)
		assert.Equal(t, "pods", info.Pods)
	})
}
