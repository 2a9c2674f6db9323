package aws

import (
	"context"
	"encoding/base64"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/labels"
)

// liveStates are instance states that still hold resources.
var liveStates = []string{"pending", "running", "shutting-down", "stopping", "stopped"}

// ListImages returns available images matching the filter, newest first.
func (c *RealClient) ListImages(ctx context.Context, filter cloud.ImageFilter) ([]cloud.Image, error) {
	input := &ec2.DescribeImagesInput{
		Owners: filter.Owners,
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{filter.NamePattern}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	}
	out, err := c.ec2.DescribeImages(ctx, input)
	if err != nil {
		return nil, wrap("DescribeImages", err)
	}

	images := make([]cloud.Image, 0, len(out.Images))
	for _, img := range out.Images {
		created, _ := time.Parse(time.RFC3339, aws.ToString(img.CreationDate))
		images = append(images, cloud.Image{
			ID:        aws.ToString(img.ImageId),
			Name:      aws.ToString(img.Name),
			CreatedAt: created,
		})
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].CreatedAt.After(images[j].CreatedAt) })
	return images, nil
}

// RunInstances launches req.Count identical instances in one call. They get
// a public address and the cluster security group on their primary
// interface.
func (c *RealClient) RunInstances(ctx context.Context, req cloud.LaunchRequest) ([]cloud.ProvisionedNode, error) {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(req.ImageID),
		InstanceType: types.InstanceType(req.SizeClass),
		MinCount:     aws.Int32(int32(req.Count)),
		MaxCount:     aws.Int32(int32(req.Count)),
		UserData:     aws.String(base64.StdEncoding.EncodeToString([]byte(req.BootScript))),
		NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			SubnetId:                 aws.String(req.SubnetID),
			Groups:                   []string{req.SecurityGroupID},
			AssociatePublicIpAddress: aws.Bool(true),
		}},
		TagSpecifications: tagSpec(types.ResourceTypeInstance, req.Labels),
	}
	if req.KeyName != "" {
		input.KeyName = aws.String(req.KeyName)
	}

	out, err := c.ec2.RunInstances(ctx, input)
	if err != nil {
		return nil, wrap("RunInstances", err)
	}

	nodes := make([]cloud.ProvisionedNode, 0, len(out.Instances))
	for _, in := range out.Instances {
		node := toNode(in)
		node.BootScript = req.BootScript
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// DescribeInstances returns the current view of the given instances.
func (c *RealClient) DescribeInstances(ctx context.Context, ids []string) ([]cloud.ProvisionedNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return c.describe(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids})
}

// ListInstances returns non-terminated instances of the cluster.
func (c *RealClient) ListInstances(ctx context.Context, tag string, role cloud.Role) ([]cloud.ProvisionedNode, error) {
	filters := append(clusterFilter(tag), types.Filter{
		Name:   aws.String("instance-state-name"),
		Values: liveStates,
	})
	if role != "" {
		filters = append(filters, types.Filter{
			Name:   aws.String("tag:" + labels.KeyRole),
			Values: []string{string(role)},
		})
	}
	return c.describe(ctx, &ec2.DescribeInstancesInput{Filters: filters})
}

func (c *RealClient) describe(ctx context.Context, input *ec2.DescribeInstancesInput) ([]cloud.ProvisionedNode, error) {
	var nodes []cloud.ProvisionedNode
	for {
		out, err := c.ec2.DescribeInstances(ctx, input)
		if err != nil {
			return nil, wrap("DescribeInstances", err)
		}
		for _, r := range out.Reservations {
			for _, in := range r.Instances {
				nodes = append(nodes, toNode(in))
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return nodes, nil
		}
		input.NextToken = out.NextToken
	}
}

// TerminateInstances requests termination and returns without waiting.
func (c *RealClient) TerminateInstances(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids}); err != nil {
		return wrap("TerminateInstances", err)
	}
	return nil
}

func toNode(in types.Instance) cloud.ProvisionedNode {
	node := cloud.ProvisionedNode{
		InstanceID:     aws.ToString(in.InstanceId),
		Name:           tagValue(in.Tags, labels.KeyName),
		Role:           cloud.Role(tagValue(in.Tags, labels.KeyRole)),
		PublicAddress:  aws.ToString(in.PublicIpAddress),
		PrivateAddress: aws.ToString(in.PrivateIpAddress),
		State:          cloud.NodeUnknown,
	}
	if in.State != nil {
		node.State = nodeState(in.State.Name)
	}
	return node
}

func nodeState(name types.InstanceStateName) cloud.NodeState {
	switch name {
	case types.InstanceStateNamePending:
		return cloud.NodePending
	case types.InstanceStateNameRunning:
		return cloud.NodeRunning
	case types.InstanceStateNameShuttingDown:
		return cloud.NodeShuttingDown
	case types.InstanceStateNameTerminated:
		return cloud.NodeTerminated
	default:
		return cloud.NodeUnknown
	}
}
