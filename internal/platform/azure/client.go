package azure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/util/labels"
)

// minPollFrequency is the lowest frequency PollUntilDone accepts.
const minPollFrequency = time.Second

// Client manages one resource group in one location.
type Client struct {
	groups      *armresources.ResourceGroupsClient
	resources   *armresources.Client
	vnets       *armnetwork.VirtualNetworksClient
	subnets     *armnetwork.SubnetsClient
	routeTables *armnetwork.RouteTablesClient
	nsgs        *armnetwork.SecurityGroupsClient
	publicIPs   *armnetwork.PublicIPAddressesClient
	nics        *armnetwork.InterfacesClient
	vms         *armcompute.VirtualMachinesClient
	scaleSets   *armcompute.VirtualMachineScaleSetsClient
	scaleSetVMs *armcompute.VirtualMachineScaleSetVMsClient
	images      *armcompute.VirtualMachineImagesClient

	resourceGroup string
	location      string
	timeouts      *config.Timeouts
}

var _ cloud.InfrastructureManager = (*Client)(nil)

// NewClient authenticates with the configured service principal and builds
// the ARM clients.
func NewClient(_ context.Context, cfg *config.Config) (*Client, error) {
	az := cfg.Azure
	cred, err := azidentity.NewClientSecretCredential(az.TenantID, az.ClientID, az.ClientSecret, nil)
	if err != nil {
		return nil, cloud.NewOperationError("NewClientSecretCredential", cloud.ErrProviderAuth, err)
	}
	return newClient(az.SubscriptionID, cred, az.ResourceGroup, cfg.Region, config.LoadTimeouts(), nil)
}

func newClient(subscriptionID string, cred azcore.TokenCredential, resourceGroup, location string, timeouts *config.Timeouts, opts *arm.ClientOptions) (*Client, error) {
	c := &Client{resourceGroup: resourceGroup, location: location, timeouts: timeouts}

	var err error
	if c.groups, err = armresources.NewResourceGroupsClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create resource group client: %w", err)
	}
	if c.resources, err = armresources.NewClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create resources client: %w", err)
	}
	if c.vnets, err = armnetwork.NewVirtualNetworksClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create vnet client: %w", err)
	}
	if c.subnets, err = armnetwork.NewSubnetsClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create subnet client: %w", err)
	}
	if c.routeTables, err = armnetwork.NewRouteTablesClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create route table client: %w", err)
	}
	if c.nsgs, err = armnetwork.NewSecurityGroupsClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create security group client: %w", err)
	}
	if c.publicIPs, err = armnetwork.NewPublicIPAddressesClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create public IP client: %w", err)
	}
	if c.nics, err = armnetwork.NewInterfacesClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create NIC client: %w", err)
	}
	if c.vms, err = armcompute.NewVirtualMachinesClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create VM client: %w", err)
	}
	if c.scaleSets, err = armcompute.NewVirtualMachineScaleSetsClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create scale set client: %w", err)
	}
	if c.scaleSetVMs, err = armcompute.NewVirtualMachineScaleSetVMsClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create scale set VM client: %w", err)
	}
	if c.images, err = armcompute.NewVirtualMachineImagesClient(subscriptionID, cred, opts); err != nil {
		return nil, fmt.Errorf("create image client: %w", err)
	}
	return c, nil
}

func (c *Client) Provider() string { return cloud.ProviderAzure }

func (c *Client) Region() string { return c.location }

func (c *Client) pollOptions() *azruntime.PollUntilDoneOptions {
	freq := c.timeouts.PollInterval
	if freq < minPollFrequency {
		freq = minPollFrequency
	}
	return &azruntime.PollUntilDoneOptions{Frequency: freq}
}

// wait blocks on a long-running operation started by a Begin* call.
func wait[T any](ctx context.Context, c *Client, op string, poller *azruntime.Poller[T], err error) (T, error) {
	var zero T
	if err != nil {
		return zero, wrap(op, err)
	}
	resp, err := poller.PollUntilDone(ctx, c.pollOptions())
	if err != nil {
		return zero, wrap(op, err)
	}
	return resp, nil
}

// ensure returns the existing resource from get, or calls create when get
// reports it missing.
func ensure[T any](ctx context.Context, get, create func(ctx context.Context) (T, error)) (T, error) {
	existing, err := get(ctx)
	if err == nil {
		return existing, nil
	}
	if !cloud.IsNotFound(err) {
		var zero T
		return zero, err
	}
	return create(ctx)
}

// Azure tag names may not contain '/', so label keys are stored with '_'.
func tagKey(label string) string {
	return strings.ReplaceAll(label, "/", "_")
}

func toTags(lbls map[string]string) map[string]*string {
	tags := make(map[string]*string, len(lbls))
	for k, v := range lbls {
		tags[tagKey(k)] = to.Ptr(v)
	}
	return tags
}

func tagValue(tags map[string]*string, label string) string {
	if v, ok := tags[tagKey(label)]; ok && v != nil {
		return *v
	}
	return ""
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ownedBy reports whether tags mark a resource as part of the cluster.
func ownedBy(tags map[string]*string, clusterTag string) bool {
	return tagValue(tags, labels.KeyCluster) == clusterTag
}
