package infrastructure

import (
	"fmt"
	"net"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/util/naming"
)

const securityPhase = "security"

// Well-known cluster ports.
const (
	portSSH          = 22
	portAPIServer    = 6443
	portKubelet      = 10250
	portEtcdClient   = 2379
	portEtcdPeer     = 2380
	portFlannelVXLAN = 8472
	portNodePortLow  = 30000
	portNodePortHigh = 32767
)

const anyIPv4 = "0.0.0.0/0"

// Rules returns the rule set for the configured security profile followed
// by the configured extra rules.
func Rules(cfg *config.Config) ([]cloud.Rule, error) {
	var rules []cloud.Rule
	switch cfg.Security.Profile {
	case config.ProfileAllowAll:
		rules = allowAllRules()
	case config.ProfileLeastPrivilege, "":
		rules = leastPrivilegeRules(cfg.Network.CIDR, cfg.Security.AdminCIDRs, cfg.Security.NodePortsEnabled())
	default:
		return nil, fmt.Errorf("%w: unknown security profile %q", config.ErrInvalidConfig, cfg.Security.Profile)
	}

	for i, rc := range cfg.Security.ExtraRules {
		rule, err := rc.ToRule()
		if err != nil {
			return nil, fmt.Errorf("%w: extra_rules[%d]: %w", config.ErrInvalidConfig, i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// OpenAdminAccess reports whether the least-privilege profile exposes the
// admin ports to every address, and the admin range that does it.
func OpenAdminAccess(cfg *config.Config) (string, bool) {
	if cfg.Security.Profile != config.ProfileLeastPrivilege && cfg.Security.Profile != "" {
		return "", false
	}
	if len(cfg.Security.AdminCIDRs) == 0 {
		return anyIPv4, true
	}
	for _, cidr := range cfg.Security.AdminCIDRs {
		if ones, bits, ok := prefixSize(cidr); ok && ones == 0 && bits > 0 {
			return cidr, true
		}
	}
	return "", false
}

func prefixSize(cidr string) (ones, bits int, ok bool) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return 0, 0, false
	}
	ones, bits = ipnet.Mask.Size()
	return ones, bits, true
}

func leastPrivilegeRules(networkCIDR string, adminCIDRs []string, nodePorts bool) []cloud.Rule {
	if len(adminCIDRs) == 0 {
		adminCIDRs = []string{anyIPv4}
	}

	var rules []cloud.Rule
	for _, cidr := range adminCIDRs {
		rules = append(rules,
			tcp(portSSH, portSSH, cidr, "SSH"),
			tcp(portAPIServer, portAPIServer, cidr, "Kubernetes API"),
		)
	}

	rules = append(rules,
		tcp(portAPIServer, portAPIServer, networkCIDR, "Kubernetes API from nodes"),
		tcp(portKubelet, portKubelet, networkCIDR, "kubelet"),
		tcp(portEtcdClient, portEtcdPeer, networkCIDR, "etcd"),
		cloud.Rule{Direction: cloud.Ingress, Protocol: cloud.ProtocolUDP, FromPort: portFlannelVXLAN, ToPort: portFlannelVXLAN, CIDR: networkCIDR, Description: "flannel VXLAN"},
		cloud.Rule{Direction: cloud.Ingress, Protocol: cloud.ProtocolICMP, CIDR: networkCIDR, Description: "ICMP"},
	)

	if nodePorts {
		for _, cidr := range adminCIDRs {
			rules = append(rules, tcp(portNodePortLow, portNodePortHigh, cidr, "NodePort services"))
		}
	}

	return append(rules, egressAll())
}

func allowAllRules() []cloud.Rule {
	return []cloud.Rule{
		{Direction: cloud.Ingress, Protocol: cloud.ProtocolAll, CIDR: anyIPv4, Description: "all inbound"},
		egressAll(),
	}
}

func egressAll() cloud.Rule {
	return cloud.Rule{Direction: cloud.Egress, Protocol: cloud.ProtocolAll, CIDR: anyIPv4, Description: "all outbound"}
}

func tcp(from, to int, cidr, description string) cloud.Rule {
	return cloud.Rule{Direction: cloud.Ingress, Protocol: cloud.ProtocolTCP, FromPort: from, ToPort: to, CIDR: cidr, Description: description}
}

// EnsureSecurityBoundary looks up or creates the cluster security group in
// networkID with rules. The result is stored in ctx.State.Boundary.
func EnsureSecurityBoundary(ctx *provisioning.Context, networkID string, rules []cloud.Rule) (*cloud.SecurityBoundary, error) {
	tag := ctx.Config.ClusterTag
	name := naming.SecurityGroup(tag)

	ctx.Observer.Printf("[%s] Reconciling security group %s with %d rules...", securityPhase, name, len(rules))
	sg, err := ctx.Infra.EnsureSecurityGroup(ctx, tag, networkID, rules, resourceTags(tag, ctx.Config.Tags, name))
	if err != nil {
		ctx.Metrics.CountResource(tag, "security_group", provisioning.ActionFailed)
		return nil, fmt.Errorf("failed to ensure security group: %w", err)
	}
	provisioning.LogResourceExists(ctx.Observer, securityPhase, "security_group", name, sg.ID)
	ctx.Metrics.CountResource(tag, "security_group", provisioning.ActionExists)

	boundary := &cloud.SecurityBoundary{
		ID:        sg.ID,
		NetworkID: networkID,
		Rules:     append([]cloud.Rule(nil), rules...),
	}
	ctx.State.Boundary = boundary
	return boundary, nil
}
