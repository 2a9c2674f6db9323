package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/retry"
)

// deleteWithRetry runs a delete call, retrying while EC2 still reports
// dependent resources. Other failures are returned immediately.
func (c *RealClient) deleteWithRetry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		err := call(ctx)
		if err == nil {
			return nil
		}
		if isDependencyViolation(err) {
			return wrap(op, err)
		}
		return retry.Fatal(wrap(op, err))
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

func (c *RealClient) ListSecurityGroups(ctx context.Context, tag string) ([]cloud.SecurityGroup, error) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: clusterFilter(tag)})
	if err != nil {
		return nil, wrap("DescribeSecurityGroups", err)
	}
	groups := make([]cloud.SecurityGroup, 0, len(out.SecurityGroups))
	for _, g := range out.SecurityGroups {
		groups = append(groups, *toSecurityGroup(g))
	}
	return groups, nil
}

func (c *RealClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	return c.deleteWithRetry(ctx, "DeleteSecurityGroup", func(ctx context.Context) error {
		_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
		return err
	})
}

func (c *RealClient) ListRouteTables(ctx context.Context, tag string) ([]cloud.RouteTable, error) {
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: clusterFilter(tag)})
	if err != nil {
		return nil, wrap("DescribeRouteTables", err)
	}
	tables := make([]cloud.RouteTable, 0, len(out.RouteTables))
	for _, rt := range out.RouteTables {
		tables = append(tables, *toRouteTable(rt))
	}
	return tables, nil
}

func (c *RealClient) DisassociateRouteTable(ctx context.Context, associationID string) error {
	if _, err := c.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
		AssociationId: aws.String(associationID),
	}); err != nil {
		return wrap("DisassociateRouteTable", err)
	}
	return nil
}

func (c *RealClient) DeleteRouteTable(ctx context.Context, id string) error {
	return c.deleteWithRetry(ctx, "DeleteRouteTable", func(ctx context.Context) error {
		_, err := c.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(id)})
		return err
	})
}

func (c *RealClient) ListGateways(ctx context.Context, tag string) ([]cloud.Gateway, error) {
	out, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{Filters: clusterFilter(tag)})
	if err != nil {
		return nil, wrap("DescribeInternetGateways", err)
	}
	gateways := make([]cloud.Gateway, 0, len(out.InternetGateways))
	for _, igw := range out.InternetGateways {
		gateways = append(gateways, *toGateway(igw))
	}
	return gateways, nil
}

func (c *RealClient) DetachGateway(ctx context.Context, gatewayID, networkID string) error {
	return c.deleteWithRetry(ctx, "DetachInternetGateway", func(ctx context.Context) error {
		_, err := c.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(gatewayID),
			VpcId:             aws.String(networkID),
		})
		return err
	})
}

func (c *RealClient) DeleteGateway(ctx context.Context, id string) error {
	return c.deleteWithRetry(ctx, "DeleteInternetGateway", func(ctx context.Context) error {
		_, err := c.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: aws.String(id)})
		return err
	})
}

func (c *RealClient) ListSubnets(ctx context.Context, tag string) ([]cloud.Subnet, error) {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: clusterFilter(tag)})
	if err != nil {
		return nil, wrap("DescribeSubnets", err)
	}
	subnets := make([]cloud.Subnet, 0, len(out.Subnets))
	for _, s := range out.Subnets {
		subnets = append(subnets, *toSubnet(s))
	}
	return subnets, nil
}

func (c *RealClient) DeleteSubnet(ctx context.Context, id string) error {
	return c.deleteWithRetry(ctx, "DeleteSubnet", func(ctx context.Context) error {
		_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(id)})
		return err
	})
}

func (c *RealClient) ListNetworks(ctx context.Context, tag string) ([]cloud.Network, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: clusterFilter(tag)})
	if err != nil {
		return nil, wrap("DescribeVpcs", err)
	}
	networks := make([]cloud.Network, 0, len(out.Vpcs))
	for _, v := range out.Vpcs {
		networks = append(networks, *toNetwork(v))
	}
	return networks, nil
}

func (c *RealClient) DeleteNetwork(ctx context.Context, id string) error {
	return c.deleteWithRetry(ctx, "DeleteVpc", func(ctx context.Context) error {
		_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(id)})
		return err
	})
}
