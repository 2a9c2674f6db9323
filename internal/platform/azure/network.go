package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/naming"
)

const defaultRouteName = "default-internet"

// ensureResourceGroup creates the cluster resource group when missing.
func (c *Client) ensureResourceGroup(ctx context.Context, lbls map[string]string) error {
	_, err := ensure(ctx,
		func(ctx context.Context) (armresources.ResourceGroup, error) {
			resp, err := c.groups.Get(ctx, c.resourceGroup, nil)
			return resp.ResourceGroup, wrap("GetResourceGroup", err)
		},
		func(ctx context.Context) (armresources.ResourceGroup, error) {
			resp, err := c.groups.CreateOrUpdate(ctx, c.resourceGroup, armresources.ResourceGroup{
				Location: to.Ptr(c.location),
				Tags:     toTags(lbls),
			}, nil)
			return resp.ResourceGroup, wrap("CreateResourceGroup", err)
		})
	return err
}

// FindNetwork returns the cluster virtual network, or nil when it does not
// exist yet.
func (c *Client) FindNetwork(ctx context.Context, tag string) (*cloud.Network, error) {
	resp, err := c.vnets.Get(ctx, c.resourceGroup, naming.Network(tag), nil)
	if err != nil {
		if err = wrap("GetVirtualNetwork", err); cloud.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toNetwork(&resp.VirtualNetwork), nil
}

// CreateNetwork creates the resource group if needed and then the virtual
// network.
func (c *Client) CreateNetwork(ctx context.Context, tag, cidr string, lbls map[string]string) (*cloud.Network, error) {
	if err := c.ensureResourceGroup(ctx, lbls); err != nil {
		return nil, err
	}

	poller, err := c.vnets.BeginCreateOrUpdate(ctx, c.resourceGroup, naming.Network(tag), armnetwork.VirtualNetwork{
		Location: to.Ptr(c.location),
		Tags:     toTags(lbls),
		Properties: &armnetwork.VirtualNetworkPropertiesFormat{
			AddressSpace: &armnetwork.AddressSpace{
				AddressPrefixes: []*string{to.Ptr(cidr)},
			},
		},
	}, nil)
	resp, err := wait(ctx, c, "CreateVirtualNetwork", poller, err)
	if err != nil {
		return nil, err
	}
	return toNetwork(&resp.VirtualNetwork), nil
}

// GetNetwork reads a virtual network by resource ID.
func (c *Client) GetNetwork(ctx context.Context, id string) (*cloud.Network, error) {
	rid, err := arm.ParseResourceID(id)
	if err != nil {
		return nil, cloud.NewOperationError("GetVirtualNetwork", cloud.ErrNotFound, err)
	}
	resp, err := c.vnets.Get(ctx, rid.ResourceGroupName, rid.Name, nil)
	if err != nil {
		return nil, wrap("GetVirtualNetwork", err)
	}
	return toNetwork(&resp.VirtualNetwork), nil
}

// EnableNetworkDNS is a no-op: Azure provides name resolution inside every
// virtual network.
func (c *Client) EnableNetworkDNS(_ context.Context, _ string) error {
	return nil
}

// EnsureInternetGateway returns a gateway with an empty ID. Azure subnets
// reach the internet through the platform's default route.
func (c *Client) EnsureInternetGateway(_ context.Context, _, networkID string, _ map[string]string) (*cloud.Gateway, error) {
	return &cloud.Gateway{AttachedNetworkIDs: []string{networkID}}, nil
}

// EnsureSubnet finds or creates the cluster subnet. Subnets carry no tags in
// ARM; they are found by name inside the cluster network.
func (c *Client) EnsureSubnet(ctx context.Context, tag, networkID, cidr string, _ map[string]string) (*cloud.Subnet, error) {
	vnet, err := arm.ParseResourceID(networkID)
	if err != nil {
		return nil, cloud.NewOperationError("EnsureSubnet", cloud.ErrNotFound, err)
	}
	name := naming.Subnet(tag)

	subnet, err := ensure(ctx,
		func(ctx context.Context) (armnetwork.Subnet, error) {
			resp, err := c.subnets.Get(ctx, vnet.ResourceGroupName, vnet.Name, name, nil)
			return resp.Subnet, wrap("GetSubnet", err)
		},
		func(ctx context.Context) (armnetwork.Subnet, error) {
			poller, err := c.subnets.BeginCreateOrUpdate(ctx, vnet.ResourceGroupName, vnet.Name, name, armnetwork.Subnet{
				Properties: &armnetwork.SubnetPropertiesFormat{
					AddressPrefix: to.Ptr(cidr),
				},
			}, nil)
			resp, err := wait(ctx, c, "CreateSubnet", poller, err)
			return resp.Subnet, err
		})
	if err != nil {
		return nil, err
	}
	return toSubnet(&subnet, networkID), nil
}

// EnsureRouteTable finds or creates the cluster route table with a default
// route to the internet and associates it with the subnet.
func (c *Client) EnsureRouteTable(ctx context.Context, tag, _, subnetID, _ string, lbls map[string]string) (*cloud.RouteTable, error) {
	name := naming.RouteTable(tag)
	table, err := ensure(ctx,
		func(ctx context.Context) (armnetwork.RouteTable, error) {
			resp, err := c.routeTables.Get(ctx, c.resourceGroup, name, nil)
			return resp.RouteTable, wrap("GetRouteTable", err)
		},
		func(ctx context.Context) (armnetwork.RouteTable, error) {
			poller, err := c.routeTables.BeginCreateOrUpdate(ctx, c.resourceGroup, name, armnetwork.RouteTable{
				Location:   to.Ptr(c.location),
				Tags:       toTags(lbls),
				Properties: &armnetwork.RouteTablePropertiesFormat{Routes: []*armnetwork.Route{defaultRoute()}},
			}, nil)
			resp, err := wait(ctx, c, "CreateRouteTable", poller, err)
			return resp.RouteTable, err
		})
	if err != nil {
		return nil, err
	}

	if !hasDefaultRoute(&table) {
		if table.Properties == nil {
			table.Properties = &armnetwork.RouteTablePropertiesFormat{}
		}
		table.Properties.Routes = append(table.Properties.Routes, defaultRoute())
		poller, err := c.routeTables.BeginCreateOrUpdate(ctx, c.resourceGroup, name, table, nil)
		resp, err := wait(ctx, c, "UpdateRouteTable", poller, err)
		if err != nil {
			return nil, err
		}
		table = resp.RouteTable
	}

	if err := c.setSubnetRouteTable(ctx, subnetID, table.ID); err != nil {
		return nil, err
	}

	result := toRouteTable(&table)
	if !containsFold(result.AssociationIDs, subnetID) {
		result.AssociationIDs = append(result.AssociationIDs, subnetID)
	}
	return result, nil
}

// setSubnetRouteTable points the subnet at routeTableID, or clears the
// association when routeTableID is nil.
func (c *Client) setSubnetRouteTable(ctx context.Context, subnetID string, routeTableID *string) error {
	rid, err := arm.ParseResourceID(subnetID)
	if err == nil && rid.Parent == nil {
		err = fmt.Errorf("no parent network in %q", subnetID)
	}
	if err != nil {
		return cloud.NewOperationError("GetSubnet", cloud.ErrNotFound, err)
	}
	rg, vnetName := rid.ResourceGroupName, rid.Parent.Name

	resp, err := c.subnets.Get(ctx, rg, vnetName, rid.Name, nil)
	if err != nil {
		return wrap("GetSubnet", err)
	}
	subnet := resp.Subnet
	if subnet.Properties == nil {
		subnet.Properties = &armnetwork.SubnetPropertiesFormat{}
	}

	current := subnet.Properties.RouteTable
	switch {
	case routeTableID == nil && current == nil:
		return nil
	case routeTableID != nil && current != nil && strings.EqualFold(str(current.ID), str(routeTableID)):
		return nil
	case routeTableID == nil:
		subnet.Properties.RouteTable = nil
	default:
		subnet.Properties.RouteTable = &armnetwork.RouteTable{ID: routeTableID}
	}

	poller, err := c.subnets.BeginCreateOrUpdate(ctx, rg, vnetName, rid.Name, subnet, nil)
	_, err = wait(ctx, c, "UpdateSubnet", poller, err)
	return err
}

func defaultRoute() *armnetwork.Route {
	return &armnetwork.Route{
		Name: to.Ptr(defaultRouteName),
		Properties: &armnetwork.RoutePropertiesFormat{
			AddressPrefix: to.Ptr("0.0.0.0/0"),
			NextHopType:   to.Ptr(armnetwork.RouteNextHopTypeInternet),
		},
	}
}

func hasDefaultRoute(rt *armnetwork.RouteTable) bool {
	if rt.Properties == nil {
		return false
	}
	for _, r := range rt.Properties.Routes {
		if r == nil || r.Properties == nil {
			continue
		}
		if str(r.Properties.AddressPrefix) == "0.0.0.0/0" && r.Properties.NextHopType != nil &&
			*r.Properties.NextHopType == armnetwork.RouteNextHopTypeInternet {
			return true
		}
	}
	return false
}

func toNetwork(vnet *armnetwork.VirtualNetwork) *cloud.Network {
	nw := &cloud.Network{
		ID:    str(vnet.ID),
		Name:  str(vnet.Name),
		State: cloud.NetworkPending,
	}
	if p := vnet.Properties; p != nil {
		if p.AddressSpace != nil && len(p.AddressSpace.AddressPrefixes) > 0 {
			nw.CIDR = str(p.AddressSpace.AddressPrefixes[0])
		}
		if p.ProvisioningState != nil && *p.ProvisioningState == armnetwork.ProvisioningStateSucceeded {
			nw.State = cloud.NetworkAvailable
		}
	}
	return nw
}

// toSubnet derives the parent network from the subnet ID, keeping the
// caller's spelling when the two only differ in case.
func toSubnet(s *armnetwork.Subnet, networkID string) *cloud.Subnet {
	subnet := &cloud.Subnet{ID: str(s.ID)}
	if s.Properties != nil {
		subnet.CIDR = str(s.Properties.AddressPrefix)
	}
	if rid, err := arm.ParseResourceID(subnet.ID); err == nil && rid.Parent != nil {
		subnet.NetworkID = rid.Parent.String()
	}
	if strings.EqualFold(subnet.NetworkID, networkID) {
		subnet.NetworkID = networkID
	}
	return subnet
}

func toRouteTable(rt *armnetwork.RouteTable) *cloud.RouteTable {
	out := &cloud.RouteTable{ID: str(rt.ID)}
	if rt.Properties == nil {
		return out
	}
	for _, s := range rt.Properties.Subnets {
		if s == nil || s.ID == nil {
			continue
		}
		out.AssociationIDs = append(out.AssociationIDs, *s.ID)
		if out.NetworkID == "" {
			if rid, err := arm.ParseResourceID(*s.ID); err == nil && rid.Parent != nil {
				out.NetworkID = rid.Parent.String()
			}
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
