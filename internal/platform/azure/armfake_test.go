package azure

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	azfake "github.com/Azure/azure-sdk-for-go/sdk/azcore/fake"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	computefake "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6/fake"
	networkfake "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6/fake"
	resourcesfake "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources/fake"
	"github.com/stretchr/testify/require"

	"github.com/minisc/minisc/internal/config"
)

const (
	testSubscription = "0000"
	testGroup        = "demo-rg"
	testLocation     = "westeurope"
	testGroupID      = "/subscriptions/" + testSubscription + "/resourceGroups/" + testGroup
	testNetworkRP    = testGroupID + "/providers/Microsoft.Network"
	testComputeRP    = testGroupID + "/providers/Microsoft.Compute"
)

// armServers holds one fake ARM server per client the Client uses. Tests
// set the handlers they expect to be called before using the client.
type armServers struct {
	groups      resourcesfake.ResourceGroupsServer
	resources   resourcesfake.Server
	vnets       networkfake.VirtualNetworksServer
	subnets     networkfake.SubnetsServer
	routeTables networkfake.RouteTablesServer
	nsgs        networkfake.SecurityGroupsServer
	publicIPs   networkfake.PublicIPAddressesServer
	nics        networkfake.InterfacesServer
	vms         computefake.VirtualMachinesServer
	scaleSets   computefake.VirtualMachineScaleSetsServer
	scaleSetVMs computefake.VirtualMachineScaleSetVMsServer
	images      computefake.VirtualMachineImagesServer

	calls armCalls
}

// armRouter hands each request to the fake server of the client that sent
// it, keyed by the client half of the API name ARM clients put on the
// request context.
type armRouter map[string]policy.Transporter

func (r armRouter) Do(req *http.Request) (*http.Response, error) {
	api, _ := req.Context().Value(azruntime.CtxAPINameKey{}).(string)
	client, _, _ := strings.Cut(api, ".")
	tr, ok := r[client]
	if !ok {
		return nil, fmt.Errorf("no fake server for %q", api)
	}
	return tr.Do(req)
}

func newFakeClient(t *testing.T, s *armServers) *Client {
	t.Helper()
	router := armRouter{
		"ResourceGroupsClient":            resourcesfake.NewResourceGroupsServerTransport(&s.groups),
		"Client":                          resourcesfake.NewServerTransport(&s.resources),
		"VirtualNetworksClient":           networkfake.NewVirtualNetworksServerTransport(&s.vnets),
		"SubnetsClient":                   networkfake.NewSubnetsServerTransport(&s.subnets),
		"RouteTablesClient":               networkfake.NewRouteTablesServerTransport(&s.routeTables),
		"SecurityGroupsClient":            networkfake.NewSecurityGroupsServerTransport(&s.nsgs),
		"PublicIPAddressesClient":         networkfake.NewPublicIPAddressesServerTransport(&s.publicIPs),
		"InterfacesClient":                networkfake.NewInterfacesServerTransport(&s.nics),
		"VirtualMachinesClient":           computefake.NewVirtualMachinesServerTransport(&s.vms),
		"VirtualMachineScaleSetsClient":   computefake.NewVirtualMachineScaleSetsServerTransport(&s.scaleSets),
		"VirtualMachineScaleSetVMsClient": computefake.NewVirtualMachineScaleSetVMsServerTransport(&s.scaleSetVMs),
		"VirtualMachineImagesClient":      computefake.NewVirtualMachineImagesServerTransport(&s.images),
	}
	opts := &arm.ClientOptions{
		ClientOptions:         policy.ClientOptions{Transport: router},
		DisableRPRegistration: true,
	}
	c, err := newClient(testSubscription, &azfake.TokenCredential{}, testGroup, testLocation, config.FastTimeouts(), opts)
	require.NoError(t, err)
	return c
}

// armCalls records which fake handlers ran. Handlers may run concurrently.
type armCalls struct {
	mu    sync.Mutex
	names []string
}

func (c *armCalls) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
}

func (c *armCalls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.names {
		if v == name {
			n++
		}
	}
	return n
}

func notFound(errResp *azfake.ErrorResponder) {
	errResp.SetResponseError(http.StatusNotFound, "ResourceNotFound")
}
