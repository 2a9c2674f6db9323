package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/minisc/minisc/internal/cloud"
)

// FindNetwork returns the VPC tagged for the cluster.
func (c *RealClient) FindNetwork(ctx context.Context, tag string) (*cloud.Network, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: clusterFilter(tag)})
	if err != nil {
		return nil, wrap("DescribeVpcs", err)
	}
	if len(out.Vpcs) == 0 {
		return nil, nil
	}
	return toNetwork(out.Vpcs[0]), nil
}

// CreateNetwork creates a tagged VPC.
func (c *RealClient) CreateNetwork(ctx context.Context, tag, cidr string, labels map[string]string) (*cloud.Network, error) {
	out, err := c.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(cidr),
		TagSpecifications: tagSpec(types.ResourceTypeVpc, labels),
	})
	if err != nil {
		return nil, wrap("CreateVpc", err)
	}
	nw := toNetwork(*out.Vpc)
	nw.Name = tag
	return nw, nil
}

// GetNetwork reads a VPC by ID.
func (c *RealClient) GetNetwork(ctx context.Context, id string) (*cloud.Network, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{id}})
	if err != nil {
		return nil, wrap("DescribeVpcs", err)
	}
	if len(out.Vpcs) == 0 {
		return nil, cloud.NewOperationError("DescribeVpcs", cloud.ErrNotFound, fmt.Errorf("vpc %s not found", id))
	}
	return toNetwork(out.Vpcs[0]), nil
}

// EnableNetworkDNS turns on DNS support and hostnames. EC2 accepts one
// attribute per call.
func (c *RealClient) EnableNetworkDNS(ctx context.Context, id string) error {
	if _, err := c.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
		VpcId:            aws.String(id),
		EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(true)},
	}); err != nil {
		return wrap("ModifyVpcAttribute", err)
	}
	if _, err := c.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
		VpcId:              aws.String(id),
		EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(true)},
	}); err != nil {
		return wrap("ModifyVpcAttribute", err)
	}
	return nil
}

// EnsureInternetGateway finds or creates the cluster gateway and attaches it
// to the VPC.
func (c *RealClient) EnsureInternetGateway(ctx context.Context, tag, networkID string, labels map[string]string) (*cloud.Gateway, error) {
	out, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{Filters: clusterFilter(tag)})
	if err != nil {
		return nil, wrap("DescribeInternetGateways", err)
	}

	var gw *cloud.Gateway
	if len(out.InternetGateways) > 0 {
		gw = toGateway(out.InternetGateways[0])
	} else {
		created, err := c.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
			TagSpecifications: tagSpec(types.ResourceTypeInternetGateway, labels),
		})
		if err != nil {
			return nil, wrap("CreateInternetGateway", err)
		}
		gw = toGateway(*created.InternetGateway)
	}

	for _, attached := range gw.AttachedNetworkIDs {
		if attached == networkID {
			return gw, nil
		}
	}
	if _, err := c.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(gw.ID),
		VpcId:             aws.String(networkID),
	}); err != nil {
		return nil, wrap("AttachInternetGateway", err)
	}
	gw.AttachedNetworkIDs = append(gw.AttachedNetworkIDs, networkID)
	return gw, nil
}

// EnsureSubnet finds or creates the cluster subnet inside the VPC.
func (c *RealClient) EnsureSubnet(ctx context.Context, tag, networkID, cidr string, labels map[string]string) (*cloud.Subnet, error) {
	filters := append(clusterFilter(tag), types.Filter{Name: aws.String("vpc-id"), Values: []string{networkID}})
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: filters})
	if err != nil {
		return nil, wrap("DescribeSubnets", err)
	}
	if len(out.Subnets) > 0 {
		return toSubnet(out.Subnets[0]), nil
	}

	created, err := c.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             aws.String(networkID),
		CidrBlock:         aws.String(cidr),
		TagSpecifications: tagSpec(types.ResourceTypeSubnet, labels),
	})
	if err != nil {
		return nil, wrap("CreateSubnet", err)
	}
	return toSubnet(*created.Subnet), nil
}

// EnsureRouteTable finds or creates the cluster route table with a default
// route through the gateway and associates it with the subnet. A default
// route through any other gateway is replaced.
func (c *RealClient) EnsureRouteTable(ctx context.Context, tag, networkID, subnetID, gatewayID string, labels map[string]string) (*cloud.RouteTable, error) {
	filters := append(clusterFilter(tag), types.Filter{Name: aws.String("vpc-id"), Values: []string{networkID}})
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: filters})
	if err != nil {
		return nil, wrap("DescribeRouteTables", err)
	}

	var rt types.RouteTable
	if len(out.RouteTables) > 0 {
		rt = out.RouteTables[0]
	} else {
		created, err := c.ec2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
			VpcId:             aws.String(networkID),
			TagSpecifications: tagSpec(types.ResourceTypeRouteTable, labels),
		})
		if err != nil {
			return nil, wrap("CreateRouteTable", err)
		}
		rt = *created.RouteTable
	}
	rtID := aws.ToString(rt.RouteTableId)

	switch route := defaultRoute(rt); {
	case route == nil:
		if _, err := c.ec2.CreateRoute(ctx, &ec2.CreateRouteInput{
			RouteTableId:         aws.String(rtID),
			DestinationCidrBlock: aws.String("0.0.0.0/0"),
			GatewayId:            aws.String(gatewayID),
		}); err != nil && !isDuplicate(err) {
			return nil, wrap("CreateRoute", err)
		}
	case aws.ToString(route.GatewayId) != gatewayID:
		if _, err := c.ec2.ReplaceRoute(ctx, &ec2.ReplaceRouteInput{
			RouteTableId:         aws.String(rtID),
			DestinationCidrBlock: aws.String("0.0.0.0/0"),
			GatewayId:            aws.String(gatewayID),
		}); err != nil {
			return nil, wrap("ReplaceRoute", err)
		}
	}

	result := toRouteTable(rt)
	for _, assoc := range rt.Associations {
		if aws.ToString(assoc.SubnetId) == subnetID {
			return result, nil
		}
	}
	assoc, err := c.ec2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(rtID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return nil, wrap("AssociateRouteTable", err)
	}
	result.AssociationIDs = append(result.AssociationIDs, aws.ToString(assoc.AssociationId))
	return result, nil
}

func defaultRoute(rt types.RouteTable) *types.Route {
	for i, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == "0.0.0.0/0" {
			return &rt.Routes[i]
		}
	}
	return nil
}

func toNetwork(vpc types.Vpc) *cloud.Network {
	state := cloud.NetworkPending
	if vpc.State == types.VpcStateAvailable {
		state = cloud.NetworkAvailable
	}
	return &cloud.Network{
		ID:    aws.ToString(vpc.VpcId),
		Name:  tagValue(vpc.Tags, "Name"),
		CIDR:  aws.ToString(vpc.CidrBlock),
		State: state,
	}
}

func toGateway(igw types.InternetGateway) *cloud.Gateway {
	gw := &cloud.Gateway{ID: aws.ToString(igw.InternetGatewayId)}
	for _, a := range igw.Attachments {
		if a.VpcId != nil {
			gw.AttachedNetworkIDs = append(gw.AttachedNetworkIDs, aws.ToString(a.VpcId))
		}
	}
	return gw
}

func toSubnet(s types.Subnet) *cloud.Subnet {
	return &cloud.Subnet{
		ID:        aws.ToString(s.SubnetId),
		NetworkID: aws.ToString(s.VpcId),
		CIDR:      aws.ToString(s.CidrBlock),
	}
}

func toRouteTable(rt types.RouteTable) *cloud.RouteTable {
	out := &cloud.RouteTable{
		ID:        aws.ToString(rt.RouteTableId),
		NetworkID: aws.ToString(rt.VpcId),
	}
	for _, a := range rt.Associations {
		if aws.ToBool(a.Main) {
			out.Main = true
			continue
		}
		if id := aws.ToString(a.RouteTableAssociationId); id != "" {
			out.AssociationIDs = append(out.AssociationIDs, id)
		}
	}
	return out
}
