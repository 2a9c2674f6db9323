package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/provisioning"
	testutil "github.com/minisc/minisc/internal/testing"
	"github.com/minisc/minisc/internal/util/labels"
)

func mockContext(t *testing.T, mock *cloud.MockClient) *provisioning.Context {
	t.Helper()
	return testutil.NewProvisioningContext(testutil.TestContext(t), testutil.MinimalConfig(), mock, nil)
}

func TestEnsureNetwork_CreatesTopology(t *testing.T) {
	t.Parallel()
	fx := testutil.NewFixture(t, testutil.MinimalConfig())

	topology, err := EnsureNetwork(fx.Ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, topology.NetworkID)
	assert.NotEmpty(t, topology.SubnetID)
	assert.NotEmpty(t, topology.RouteTableID)
	assert.NotEmpty(t, topology.GatewayID)
	assert.Equal(t, topology.NetworkID, topology.SubnetNetworkID)
	assert.Equal(t, "10.0.0.0/16", topology.CIDR)
	assert.Equal(t, "10.0.1.0/24", topology.SubnetCIDR)
	assert.Equal(t, "fake-region-1", topology.Region)
	assert.Same(t, topology, fx.Ctx.State.Topology)

	assert.True(t, fx.Provider.DNSEnabled(topology.NetworkID))
	assert.GreaterOrEqual(t, fx.Provider.Calls("GetNetwork"), 2, "new network should be polled until available")
	assert.Len(t, fx.Observer.EventsOfType(provisioning.EventResourceCreated), 1)
}

func TestEnsureNetwork_Idempotent(t *testing.T) {
	t.Parallel()
	fx := testutil.NewFixture(t, testutil.MinimalConfig())

	first, err := EnsureNetwork(fx.Ctx)
	require.NoError(t, err)
	count := fx.Provider.ResourceCount()

	second, err := EnsureNetwork(fx.Ctx)
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, count, fx.Provider.ResourceCount())
	assert.Equal(t, 1, fx.Provider.Calls("CreateNetwork"))
	assert.Equal(t, 1, fx.Provider.NetworkCount("test-cluster"))
	assert.Len(t, fx.Observer.EventsOfType(provisioning.EventResourceExists), 1)
}

func TestEnsureNetwork_SeparateTagsDoNotShare(t *testing.T) {
	t.Parallel()
	fx := testutil.NewFixture(t, testutil.MinimalConfig())

	a, err := EnsureNetwork(fx.Ctx)
	require.NoError(t, err)

	other := testutil.NewProvisioningContext(fx.Ctx, testutil.NewConfigBuilder().WithClusterTag("other").Build(), fx.Provider, nil)
	b, err := EnsureNetwork(other)
	require.NoError(t, err)

	assert.NotEqual(t, a.NetworkID, b.NetworkID)
	assert.NotEqual(t, a.SubnetID, b.SubnetID)
	assert.Equal(t, b.NetworkID, b.SubnetNetworkID)
}

func TestEnsureNetwork_TagsResources(t *testing.T) {
	t.Parallel()
	var networkTags, subnetTags map[string]string
	mock := &cloud.MockClient{
		CreateNetworkFunc: func(_ context.Context, tag, cidr string, l map[string]string) (*cloud.Network, error) {
			networkTags = l
			return &cloud.Network{ID: "vpc-1", Name: tag, CIDR: cidr, State: cloud.NetworkAvailable}, nil
		},
		EnsureSubnetFunc: func(_ context.Context, _, networkID, cidr string, l map[string]string) (*cloud.Subnet, error) {
			subnetTags = l
			return &cloud.Subnet{ID: "subnet-1", NetworkID: networkID, CIDR: cidr}, nil
		},
	}
	cfg := testutil.NewConfigBuilder().WithTags(map[string]string{"team": "platform"}).Build()
	ctx := testutil.NewProvisioningContext(testutil.TestContext(t), cfg, mock, nil)

	_, err := EnsureNetwork(ctx)
	require.NoError(t, err)

	assert.Equal(t, "test-cluster", networkTags[labels.KeyCluster])
	assert.Equal(t, labels.ManagedByMinisc, networkTags[labels.KeyManagedBy])
	assert.Equal(t, "test-cluster-vnet", networkTags[labels.KeyName])
	assert.Equal(t, "platform", networkTags["team"])
	assert.Equal(t, "test-cluster-subnet", subnetTags[labels.KeyName])
}

func TestEnsureNetwork_CIDRMismatch(t *testing.T) {
	t.Parallel()
	created := false
	mock := &cloud.MockClient{
		FindNetworkFunc: func(_ context.Context, tag string) (*cloud.Network, error) {
			return &cloud.Network{ID: "vpc-old", Name: tag, CIDR: "10.1.0.0/16", State: cloud.NetworkAvailable}, nil
		},
		CreateNetworkFunc: func(context.Context, string, string, map[string]string) (*cloud.Network, error) {
			created = true
			return nil, errors.New("unexpected")
		},
	}

	_, err := EnsureNetwork(mockContext(t, mock))
	require.ErrorIs(t, err, ErrCIDRMismatch)
	assert.Contains(t, err.Error(), "vpc-old")
	assert.False(t, created)
}

func TestEnsureNetwork_SubnetParentMismatch(t *testing.T) {
	t.Parallel()
	mock := &cloud.MockClient{
		EnsureSubnetFunc: func(_ context.Context, _, _, cidr string, _ map[string]string) (*cloud.Subnet, error) {
			return &cloud.Subnet{ID: "subnet-x", NetworkID: "vpc-elsewhere", CIDR: cidr}, nil
		},
	}

	ctx := mockContext(t, mock)
	_, err := EnsureNetwork(ctx)
	require.ErrorIs(t, err, ErrSubnetParent)
	assert.Nil(t, ctx.State.Topology)
}

func TestEnsureNetwork_NeverAvailable(t *testing.T) {
	t.Parallel()
	mock := &cloud.MockClient{
		CreateNetworkFunc: func(_ context.Context, tag, cidr string, _ map[string]string) (*cloud.Network, error) {
			return &cloud.Network{ID: "vpc-1", Name: tag, CIDR: cidr, State: cloud.NetworkPending}, nil
		},
		GetNetworkFunc: func(_ context.Context, id string) (*cloud.Network, error) {
			return &cloud.Network{ID: id, State: cloud.NetworkPending}, nil
		},
	}
	ctx := mockContext(t, mock)
	ctx.Timeouts.NetworkAvailable = 20 * time.Millisecond

	_, err := EnsureNetwork(ctx)
	require.ErrorIs(t, err, cloud.ErrTimeout)
}

func TestEnsureNetwork_Cancelled(t *testing.T) {
	t.Parallel()
	parent, cancel := context.WithCancel(context.Background())
	mock := &cloud.MockClient{
		CreateNetworkFunc: func(_ context.Context, tag, cidr string, _ map[string]string) (*cloud.Network, error) {
			return &cloud.Network{ID: "vpc-1", Name: tag, CIDR: cidr, State: cloud.NetworkPending}, nil
		},
		GetNetworkFunc: func(_ context.Context, id string) (*cloud.Network, error) {
			cancel()
			return &cloud.Network{ID: id, State: cloud.NetworkPending}, nil
		},
	}
	ctx := testutil.NewProvisioningContext(parent, testutil.MinimalConfig(), mock, nil)

	_, err := EnsureNetwork(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, cloud.ErrTimeout)
}

func TestEnsureNetwork_ProviderErrorKeepsOperation(t *testing.T) {
	t.Parallel()
	mock := &cloud.MockClient{
		CreateNetworkFunc: func(context.Context, string, string, map[string]string) (*cloud.Network, error) {
			return nil, cloud.NewOperationError("CreateVpc", cloud.ErrQuotaOrPermission, errors.New("VpcLimitExceeded: maximum number of VPCs reached"))
		},
	}

	_, err := EnsureNetwork(mockContext(t, mock))
	require.ErrorIs(t, err, cloud.ErrQuotaOrPermission)
	assert.Equal(t, "CreateVpc", cloud.OperationName(err))
	assert.Contains(t, err.Error(), "VpcLimitExceeded")
}

func TestEnsureNetwork_StepFailuresAbort(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	tests := []struct {
		name    string
		mock    func(*cloud.MockClient)
		wantMsg string
	}{
		{
			name: "dns",
			mock: func(m *cloud.MockClient) {
				m.EnableNetworkDNSFunc = func(context.Context, string) error { return boom }
			},
			wantMsg: "failed to enable DNS",
		},
		{
			name: "gateway",
			mock: func(m *cloud.MockClient) {
				m.EnsureInternetGatewayFunc = func(context.Context, string, string, map[string]string) (*cloud.Gateway, error) { return nil, boom }
			},
			wantMsg: "failed to ensure internet gateway",
		},
		{
			name: "subnet",
			mock: func(m *cloud.MockClient) {
				m.EnsureSubnetFunc = func(context.Context, string, string, string, map[string]string) (*cloud.Subnet, error) { return nil, boom }
			},
			wantMsg: "failed to ensure subnet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			routeCalled := false
			mock := &cloud.MockClient{
				EnsureRouteTableFunc: func(context.Context, string, string, string, string, map[string]string) (*cloud.RouteTable, error) {
					routeCalled = true
					return &cloud.RouteTable{ID: "rtb-1"}, nil
				},
			}
			tt.mock(mock)

			_, err := EnsureNetwork(mockContext(t, mock))
			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.False(t, routeCalled, "later steps must not run after a failure")
		})
	}
}

func TestEnsureNetwork_AzureStyleNoGateway(t *testing.T) {
	t.Parallel()
	var gatewayArg string
	mock := &cloud.MockClient{
		ProviderName: cloud.ProviderAzure,
		EnsureInternetGatewayFunc: func(_ context.Context, _, networkID string, _ map[string]string) (*cloud.Gateway, error) {
			return &cloud.Gateway{AttachedNetworkIDs: []string{networkID}}, nil
		},
		EnsureRouteTableFunc: func(_ context.Context, _, networkID, subnetID, gatewayID string, _ map[string]string) (*cloud.RouteTable, error) {
			gatewayArg = gatewayID
			return &cloud.RouteTable{ID: "rt-1", NetworkID: networkID, AssociationIDs: []string{subnetID}}, nil
		},
	}

	topology, err := EnsureNetwork(mockContext(t, mock))
	require.NoError(t, err)
	assert.Empty(t, topology.GatewayID)
	assert.Empty(t, gatewayArg)
}
