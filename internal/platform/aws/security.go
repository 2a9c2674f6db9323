package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/naming"
)

// EnsureSecurityGroup finds or creates the cluster security group and
// authorizes every rule. Rules that already exist are skipped, so calling it
// again with a grown rule set converges.
func (c *RealClient) EnsureSecurityGroup(ctx context.Context, tag, networkID string, rules []cloud.Rule, labels map[string]string) (*cloud.SecurityGroup, error) {
	filters := append(clusterFilter(tag), types.Filter{Name: aws.String("vpc-id"), Values: []string{networkID}})
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: filters})
	if err != nil {
		return nil, wrap("DescribeSecurityGroups", err)
	}

	var sg *cloud.SecurityGroup
	if len(out.SecurityGroups) > 0 {
		sg = toSecurityGroup(out.SecurityGroups[0])
	} else {
		name := naming.SecurityGroup(tag)
		created, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName:         aws.String(name),
			Description:       aws.String("minisc cluster " + tag),
			VpcId:             aws.String(networkID),
			TagSpecifications: tagSpec(types.ResourceTypeSecurityGroup, labels),
		})
		if err != nil {
			return nil, wrap("CreateSecurityGroup", err)
		}
		sg = &cloud.SecurityGroup{ID: aws.ToString(created.GroupId), Name: name, NetworkID: networkID}
	}

	for _, rule := range rules {
		perm := []types.IpPermission{toPermission(rule)}
		if rule.Direction == cloud.Egress {
			_, err = c.ec2.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
				GroupId:       aws.String(sg.ID),
				IpPermissions: perm,
			})
			if err != nil && !isDuplicate(err) {
				return nil, wrap("AuthorizeSecurityGroupEgress", err)
			}
			continue
		}
		_, err = c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(sg.ID),
			IpPermissions: perm,
		})
		if err != nil && !isDuplicate(err) {
			return nil, wrap("AuthorizeSecurityGroupIngress", err)
		}
	}
	return sg, nil
}

func toPermission(rule cloud.Rule) types.IpPermission {
	perm := types.IpPermission{
		IpRanges: []types.IpRange{{
			CidrIp:      aws.String(rule.CIDR),
			Description: aws.String(rule.Description),
		}},
	}
	switch rule.Protocol {
	case cloud.ProtocolAll:
		perm.IpProtocol = aws.String("-1")
	case cloud.ProtocolICMP:
		perm.IpProtocol = aws.String("icmp")
		perm.FromPort = aws.Int32(-1)
		perm.ToPort = aws.Int32(-1)
	default:
		perm.IpProtocol = aws.String(string(rule.Protocol))
		perm.FromPort = aws.Int32(int32(rule.FromPort))
		perm.ToPort = aws.Int32(int32(rule.ToPort))
	}
	return perm
}

func toSecurityGroup(g types.SecurityGroup) *cloud.SecurityGroup {
	return &cloud.SecurityGroup{
		ID:        aws.ToString(g.GroupId),
		Name:      aws.ToString(g.GroupName),
		NetworkID: aws.ToString(g.VpcId),
	}
}
