package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/naming"
)

const (
	firstRulePriority = 100
	priorityStep      = 10
)

// EnsureSecurityGroup finds or creates the cluster network security group.
// Rules missing from an existing group are appended after the highest
// priority already in use for their direction.
func (c *Client) EnsureSecurityGroup(ctx context.Context, tag, networkID string, rules []cloud.Rule, lbls map[string]string) (*cloud.SecurityGroup, error) {
	name := naming.SecurityGroup(tag)

	var existing []*armnetwork.SecurityRule
	resp, err := c.nsgs.Get(ctx, c.resourceGroup, name, nil)
	switch err = wrap("GetNetworkSecurityGroup", err); {
	case err == nil:
		if resp.Properties != nil {
			existing = resp.Properties.SecurityRules
		}
	case !cloud.IsNotFound(err):
		return nil, err
	}

	merged, changed := mergeRules(existing, rules)
	if err == nil && !changed {
		return &cloud.SecurityGroup{ID: str(resp.ID), Name: name, NetworkID: networkID}, nil
	}

	poller, err := c.nsgs.BeginCreateOrUpdate(ctx, c.resourceGroup, name, armnetwork.SecurityGroup{
		Location: to.Ptr(c.location),
		Tags:     toTags(lbls),
		Properties: &armnetwork.SecurityGroupPropertiesFormat{
			SecurityRules: merged,
		},
	}, nil)
	created, err := wait(ctx, c, "CreateNetworkSecurityGroup", poller, err)
	if err != nil {
		return nil, err
	}
	return &cloud.SecurityGroup{ID: str(created.ID), Name: name, NetworkID: networkID}, nil
}

// mergeRules appends every rule whose name is not already present.
func mergeRules(existing []*armnetwork.SecurityRule, rules []cloud.Rule) ([]*armnetwork.SecurityRule, bool) {
	names := make(map[string]bool, len(existing))
	next := map[armnetwork.SecurityRuleDirection]int32{
		armnetwork.SecurityRuleDirectionInbound:  firstRulePriority,
		armnetwork.SecurityRuleDirectionOutbound: firstRulePriority,
	}
	for _, r := range existing {
		if r == nil {
			continue
		}
		names[str(r.Name)] = true
		if p := r.Properties; p != nil && p.Direction != nil && p.Priority != nil && *p.Priority >= next[*p.Direction] {
			next[*p.Direction] = *p.Priority + priorityStep
		}
	}

	merged := append([]*armnetwork.SecurityRule(nil), existing...)
	changed := false
	for _, rule := range rules {
		sr := toSecurityRule(rule)
		if names[str(sr.Name)] {
			continue
		}
		dir := *sr.Properties.Direction
		sr.Properties.Priority = to.Ptr(next[dir])
		next[dir] += priorityStep
		names[str(sr.Name)] = true
		merged = append(merged, sr)
		changed = true
	}
	return merged, changed
}

// toSecurityRule converts a rule without a priority. The name is derived
// from the rule so the same rule maps to the same name on every run.
func toSecurityRule(rule cloud.Rule) *armnetwork.SecurityRule {
	props := &armnetwork.SecurityRulePropertiesFormat{
		Access:               to.Ptr(armnetwork.SecurityRuleAccessAllow),
		Protocol:             to.Ptr(ruleProtocol(rule.Protocol)),
		SourcePortRange:      to.Ptr("*"),
		DestinationPortRange: to.Ptr(portRange(rule)),
	}
	if rule.Description != "" {
		props.Description = to.Ptr(rule.Description)
	}
	if rule.Direction == cloud.Egress {
		props.Direction = to.Ptr(armnetwork.SecurityRuleDirectionOutbound)
		props.SourceAddressPrefix = to.Ptr("*")
		props.DestinationAddressPrefix = to.Ptr(rule.CIDR)
	} else {
		props.Direction = to.Ptr(armnetwork.SecurityRuleDirectionInbound)
		props.SourceAddressPrefix = to.Ptr(rule.CIDR)
		props.DestinationAddressPrefix = to.Ptr("*")
	}
	return &armnetwork.SecurityRule{Name: to.Ptr(ruleName(rule)), Properties: props}
}

func ruleProtocol(p cloud.Protocol) armnetwork.SecurityRuleProtocol {
	switch p {
	case cloud.ProtocolTCP:
		return armnetwork.SecurityRuleProtocolTCP
	case cloud.ProtocolUDP:
		return armnetwork.SecurityRuleProtocolUDP
	case cloud.ProtocolICMP:
		return armnetwork.SecurityRuleProtocolIcmp
	default:
		return armnetwork.SecurityRuleProtocolAsterisk
	}
}

func portRange(rule cloud.Rule) string {
	switch {
	case rule.Protocol == cloud.ProtocolICMP, rule.Protocol == cloud.ProtocolAll:
		return "*"
	case rule.FromPort == rule.ToPort:
		return fmt.Sprintf("%d", rule.FromPort)
	default:
		return fmt.Sprintf("%d-%d", rule.FromPort, rule.ToPort)
	}
}

// ruleName builds a name like "in-tcp-22-198.51.100.0_24".
func ruleName(rule cloud.Rule) string {
	ports := strings.ReplaceAll(portRange(rule), "*", "any")
	cidr := strings.ReplaceAll(rule.CIDR, "/", "_")
	return fmt.Sprintf("%s-%s-%s-%s", rule.Direction, rule.Protocol, ports, cidr)
}
