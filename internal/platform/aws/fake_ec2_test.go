package aws

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// fakeEC2 is an in-memory EC2API. It understands the tag, vpc-id,
// instance-state-name, name and state filters.
type fakeEC2 struct {
	mu sync.Mutex

	vpcs      map[string]*types.Vpc
	igws      map[string]*types.InternetGateway
	subnets   map[string]*types.Subnet
	rts       map[string]*types.RouteTable
	sgs       map[string]*types.SecurityGroup
	instances map[string]*types.Instance
	images    []types.Image
	perms     map[string][]string

	lastRun *ec2.RunInstancesInput
	calls   map[string]int
	// failures returns an error for the next n calls of an operation.
	failures map[string][]error
	nextID   int
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{
		vpcs:      map[string]*types.Vpc{},
		igws:      map[string]*types.InternetGateway{},
		subnets:   map[string]*types.Subnet{},
		rts:       map[string]*types.RouteTable{},
		sgs:       map[string]*types.SecurityGroup{},
		instances: map[string]*types.Instance{},
		perms:     map[string][]string{},
		calls:     map[string]int{},
		failures:  map[string][]error{},
	}
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code + " from fake"}
}

func (f *fakeEC2) failNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], errs...)
}

func (f *fakeEC2) record(op string) error {
	f.calls[op]++
	if q := f.failures[op]; len(q) > 0 {
		f.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeEC2) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeEC2) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%08x", prefix, f.nextID)
}

func tagsFrom(specs []types.TagSpecification) []types.Tag {
	if len(specs) == 0 {
		return nil
	}
	return append([]types.Tag(nil), specs[0].Tags...)
}

func matches(filters []types.Filter, tags []types.Tag, attrs map[string]string) bool {
	for _, flt := range filters {
		name := aws.ToString(flt.Name)
		var actual string
		if key, ok := strings.CutPrefix(name, "tag:"); ok {
			actual = tagValue(tags, key)
		} else {
			actual = attrs[name]
		}
		found := false
		for _, want := range flt.Values {
			if prefix, _, wildcard := strings.Cut(want, "*"); wildcard {
				found = found || strings.HasPrefix(actual, prefix)
			} else {
				found = found || actual == want
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeEC2) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateVpc"); err != nil {
		return nil, err
	}
	vpc := &types.Vpc{VpcId: aws.String(f.id("vpc")), CidrBlock: in.CidrBlock, State: types.VpcStatePending, Tags: tagsFrom(in.TagSpecifications)}
	f.vpcs[*vpc.VpcId] = vpc
	return &ec2.CreateVpcOutput{Vpc: vpc}, nil
}

func (f *fakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeVpcs"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeVpcsOutput{}
	for _, id := range in.VpcIds {
		vpc, ok := f.vpcs[id]
		if !ok {
			return nil, apiError("InvalidVpcID.NotFound")
		}
		vpc.State = types.VpcStateAvailable
		out.Vpcs = append(out.Vpcs, *vpc)
	}
	if len(in.VpcIds) == 0 {
		for _, vpc := range f.vpcs {
			if matches(in.Filters, vpc.Tags, nil) {
				out.Vpcs = append(out.Vpcs, *vpc)
			}
		}
	}
	return out, nil
}

func (f *fakeEC2) ModifyVpcAttribute(_ context.Context, in *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ModifyVpcAttribute"); err != nil {
		return nil, err
	}
	if in.EnableDnsHostnames != nil && in.EnableDnsSupport != nil {
		return nil, apiError("InvalidParameterCombination")
	}
	return &ec2.ModifyVpcAttributeOutput{}, nil
}

func (f *fakeEC2) DeleteVpc(_ context.Context, in *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteVpc"); err != nil {
		return nil, err
	}
	if _, ok := f.vpcs[aws.ToString(in.VpcId)]; !ok {
		return nil, apiError("InvalidVpcID.NotFound")
	}
	delete(f.vpcs, aws.ToString(in.VpcId))
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *fakeEC2) CreateInternetGateway(_ context.Context, in *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateInternetGateway"); err != nil {
		return nil, err
	}
	igw := &types.InternetGateway{InternetGatewayId: aws.String(f.id("igw")), Tags: tagsFrom(in.TagSpecifications)}
	f.igws[*igw.InternetGatewayId] = igw
	return &ec2.CreateInternetGatewayOutput{InternetGateway: igw}, nil
}

func (f *fakeEC2) AttachInternetGateway(_ context.Context, in *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AttachInternetGateway"); err != nil {
		return nil, err
	}
	igw := f.igws[aws.ToString(in.InternetGatewayId)]
	igw.Attachments = append(igw.Attachments, types.InternetGatewayAttachment{VpcId: in.VpcId, State: types.AttachmentStatusAttached})
	return &ec2.AttachInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DescribeInternetGateways(_ context.Context, in *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeInternetGateways"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, igw := range f.igws {
		if matches(in.Filters, igw.Tags, nil) {
			out.InternetGateways = append(out.InternetGateways, *igw)
		}
	}
	return out, nil
}

func (f *fakeEC2) DetachInternetGateway(_ context.Context, in *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DetachInternetGateway"); err != nil {
		return nil, err
	}
	igw, ok := f.igws[aws.ToString(in.InternetGatewayId)]
	if !ok {
		return nil, apiError("InvalidInternetGatewayID.NotFound")
	}
	if len(igw.Attachments) == 0 {
		return nil, apiError("Gateway.NotAttached")
	}
	igw.Attachments = nil
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DeleteInternetGateway(_ context.Context, in *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteInternetGateway"); err != nil {
		return nil, err
	}
	if _, ok := f.igws[aws.ToString(in.InternetGatewayId)]; !ok {
		return nil, apiError("InvalidInternetGatewayID.NotFound")
	}
	delete(f.igws, aws.ToString(in.InternetGatewayId))
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (f *fakeEC2) CreateSubnet(_ context.Context, in *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSubnet"); err != nil {
		return nil, err
	}
	sn := &types.Subnet{SubnetId: aws.String(f.id("subnet")), VpcId: in.VpcId, CidrBlock: in.CidrBlock, Tags: tagsFrom(in.TagSpecifications)}
	f.subnets[*sn.SubnetId] = sn
	return &ec2.CreateSubnetOutput{Subnet: sn}, nil
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeSubnets"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSubnetsOutput{}
	for _, sn := range f.subnets {
		if matches(in.Filters, sn.Tags, map[string]string{"vpc-id": aws.ToString(sn.VpcId)}) {
			out.Subnets = append(out.Subnets, *sn)
		}
	}
	return out, nil
}

func (f *fakeEC2) DeleteSubnet(_ context.Context, in *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteSubnet"); err != nil {
		return nil, err
	}
	if _, ok := f.subnets[aws.ToString(in.SubnetId)]; !ok {
		return nil, apiError("InvalidSubnetID.NotFound")
	}
	delete(f.subnets, aws.ToString(in.SubnetId))
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *fakeEC2) CreateRouteTable(_ context.Context, in *ec2.CreateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRouteTable"); err != nil {
		return nil, err
	}
	rt := &types.RouteTable{RouteTableId: aws.String(f.id("rtb")), VpcId: in.VpcId, Tags: tagsFrom(in.TagSpecifications)}
	f.rts[*rt.RouteTableId] = rt
	return &ec2.CreateRouteTableOutput{RouteTable: rt}, nil
}

func (f *fakeEC2) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRoute"); err != nil {
		return nil, err
	}
	rt := f.rts[aws.ToString(in.RouteTableId)]
	rt.Routes = append(rt.Routes, types.Route{DestinationCidrBlock: in.DestinationCidrBlock, GatewayId: in.GatewayId})
	return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
}

func (f *fakeEC2) ReplaceRoute(_ context.Context, in *ec2.ReplaceRouteInput, _ ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ReplaceRoute"); err != nil {
		return nil, err
	}
	rt := f.rts[aws.ToString(in.RouteTableId)]
	for i, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
			rt.Routes[i].GatewayId = in.GatewayId
			return &ec2.ReplaceRouteOutput{}, nil
		}
	}
	return nil, apiError("InvalidRoute.NotFound")
}

func (f *fakeEC2) AssociateRouteTable(_ context.Context, in *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssociateRouteTable"); err != nil {
		return nil, err
	}
	rt := f.rts[aws.ToString(in.RouteTableId)]
	assoc := f.id("rtbassoc")
	rt.Associations = append(rt.Associations, types.RouteTableAssociation{
		RouteTableAssociationId: aws.String(assoc),
		RouteTableId:            in.RouteTableId,
		SubnetId:                in.SubnetId,
		Main:                    aws.Bool(false),
	})
	return &ec2.AssociateRouteTableOutput{AssociationId: aws.String(assoc)}, nil
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeRouteTables"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeRouteTablesOutput{}
	for _, rt := range f.rts {
		if matches(in.Filters, rt.Tags, map[string]string{"vpc-id": aws.ToString(rt.VpcId)}) {
			out.RouteTables = append(out.RouteTables, *rt)
		}
	}
	return out, nil
}

func (f *fakeEC2) DisassociateRouteTable(_ context.Context, in *ec2.DisassociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DisassociateRouteTable"); err != nil {
		return nil, err
	}
	for _, rt := range f.rts {
		for i, a := range rt.Associations {
			if aws.ToString(a.RouteTableAssociationId) == aws.ToString(in.AssociationId) {
				rt.Associations = append(rt.Associations[:i:i], rt.Associations[i+1:]...)
				return &ec2.DisassociateRouteTableOutput{}, nil
			}
		}
	}
	return nil, apiError("InvalidAssociationID.NotFound")
}

func (f *fakeEC2) DeleteRouteTable(_ context.Context, in *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteRouteTable"); err != nil {
		return nil, err
	}
	rt, ok := f.rts[aws.ToString(in.RouteTableId)]
	if !ok {
		return nil, apiError("InvalidRouteTableID.NotFound")
	}
	if len(rt.Associations) > 0 {
		return nil, apiError("DependencyViolation")
	}
	delete(f.rts, aws.ToString(in.RouteTableId))
	return &ec2.DeleteRouteTableOutput{}, nil
}

func (f *fakeEC2) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSecurityGroup"); err != nil {
		return nil, err
	}
	sg := &types.SecurityGroup{GroupId: aws.String(f.id("sg")), GroupName: in.GroupName, VpcId: in.VpcId, Tags: tagsFrom(in.TagSpecifications)}
	f.sgs[*sg.GroupId] = sg
	return &ec2.CreateSecurityGroupOutput{GroupId: sg.GroupId}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeSecurityGroups"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSecurityGroupsOutput{}
	for _, sg := range f.sgs {
		if matches(in.Filters, sg.Tags, map[string]string{"vpc-id": aws.ToString(sg.VpcId)}) {
			out.SecurityGroups = append(out.SecurityGroups, *sg)
		}
	}
	return out, nil
}

func permKey(p types.IpPermission) string {
	return fmt.Sprintf("%s/%d-%d/%s", aws.ToString(p.IpProtocol), aws.ToInt32(p.FromPort), aws.ToInt32(p.ToPort), aws.ToString(p.IpRanges[0].CidrIp))
}

func (f *fakeEC2) authorize(op, groupID string, perms []types.IpPermission) error {
	if err := f.record(op); err != nil {
		return err
	}
	for _, p := range perms {
		key := op + ":" + permKey(p)
		for _, existing := range f.perms[groupID] {
			if existing == key {
				return apiError("InvalidPermission.Duplicate")
			}
		}
		f.perms[groupID] = append(f.perms[groupID], key)
	}
	return nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authorize("AuthorizeSecurityGroupIngress", aws.ToString(in.GroupId), in.IpPermissions); err != nil {
		return nil, err
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupEgress(_ context.Context, in *ec2.AuthorizeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authorize("AuthorizeSecurityGroupEgress", aws.ToString(in.GroupId), in.IpPermissions); err != nil {
		return nil, err
	}
	return &ec2.AuthorizeSecurityGroupEgressOutput{}, nil
}

func (f *fakeEC2) DeleteSecurityGroup(_ context.Context, in *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteSecurityGroup"); err != nil {
		return nil, err
	}
	if _, ok := f.sgs[aws.ToString(in.GroupId)]; !ok {
		return nil, apiError("InvalidGroup.NotFound")
	}
	delete(f.sgs, aws.ToString(in.GroupId))
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (f *fakeEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeImages"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeImagesOutput{}
	for _, img := range f.images {
		owned := len(in.Owners) == 0
		for _, o := range in.Owners {
			owned = owned || aws.ToString(img.ImageOwnerAlias) == o
		}
		attrs := map[string]string{"name": aws.ToString(img.Name), "state": string(img.State)}
		if owned && matches(in.Filters, img.Tags, attrs) {
			out.Images = append(out.Images, img)
		}
	}
	return out, nil
}

func (f *fakeEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RunInstances"); err != nil {
		return nil, err
	}
	f.lastRun = in
	out := &ec2.RunInstancesOutput{}
	for i := int32(0); i < aws.ToInt32(in.MaxCount); i++ {
		inst := &types.Instance{
			InstanceId:       aws.String(f.id("i")),
			State:            &types.InstanceState{Name: types.InstanceStateNamePending},
			PrivateIpAddress: aws.String(fmt.Sprintf("10.0.1.%d", 10+len(f.instances))),
			Tags:             tagsFrom(in.TagSpecifications),
		}
		f.instances[*inst.InstanceId] = inst
		out.Instances = append(out.Instances, *inst)
	}
	return out, nil
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DescribeInstances"); err != nil {
		return nil, err
	}
	var res types.Reservation
	for _, inst := range f.instances {
		if len(in.InstanceIds) > 0 && !contains(in.InstanceIds, aws.ToString(inst.InstanceId)) {
			continue
		}
		attrs := map[string]string{"instance-state-name": string(inst.State.Name)}
		if matches(in.Filters, inst.Tags, attrs) {
			res.Instances = append(res.Instances, *inst)
		}
	}
	return &ec2.DescribeInstancesOutput{Reservations: []types.Reservation{res}}, nil
}

func (f *fakeEC2) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TerminateInstances"); err != nil {
		return nil, err
	}
	for _, id := range in.InstanceIds {
		inst, ok := f.instances[id]
		if !ok {
			return nil, apiError("InvalidInstanceID.NotFound")
		}
		inst.State = &types.InstanceState{Name: types.InstanceStateNameShuttingDown}
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeEC2) setInstanceState(id string, state types.InstanceStateName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[id].State = &types.InstanceState{Name: state}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ EC2API = (*fakeEC2)(nil)
