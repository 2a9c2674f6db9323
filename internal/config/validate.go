package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/minisc/minisc/internal/cloud"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var clusterTagPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,38}[a-z0-9])?$`)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case cloud.ProviderAWS, cloud.ProviderAzure:
	default:
		return fmt.Errorf("provider must be %q or %q, got %q", cloud.ProviderAWS, cloud.ProviderAzure, c.Provider)
	}
	if !clusterTagPattern.MatchString(c.ClusterTag) {
		return fmt.Errorf("cluster_tag %q must be lowercase alphanumeric with dashes, at most 40 characters", c.ClusterTag)
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}

	if err := c.validateNetwork(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}
	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security validation failed: %w", err)
	}
	if c.Workers.Count < 1 {
		return fmt.Errorf("workers.count must be at least 1, got %d", c.Workers.Count)
	}
	if c.Head.InstanceType == "" || c.Workers.InstanceType == "" {
		return fmt.Errorf("instance types are required for head and workers")
	}
	if c.SSH.User == "" {
		return fmt.Errorf("ssh.user is required")
	}

	switch c.Provider {
	case cloud.ProviderAWS:
		return c.validateAWS()
	case cloud.ProviderAzure:
		return c.validateAzure()
	}
	return nil
}

func (c *Config) validateNetwork() error {
	_, network, err := net.ParseCIDR(c.Network.CIDR)
	if err != nil {
		return fmt.Errorf("invalid network cidr %q: %w", c.Network.CIDR, err)
	}
	subnetIP, subnet, err := net.ParseCIDR(c.Network.SubnetCIDR)
	if err != nil {
		return fmt.Errorf("invalid subnet cidr %q: %w", c.Network.SubnetCIDR, err)
	}
	netOnes, _ := network.Mask.Size()
	subOnes, _ := subnet.Mask.Size()
	if !network.Contains(subnetIP) || subOnes < netOnes {
		return fmt.Errorf("subnet %s is not inside network %s", c.Network.SubnetCIDR, c.Network.CIDR)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.Profile {
	case ProfileLeastPrivilege, ProfileAllowAll:
	default:
		return fmt.Errorf("unknown profile %q: must be %q or %q", c.Security.Profile, ProfileLeastPrivilege, ProfileAllowAll)
	}
	for _, cidr := range c.Security.AdminCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid admin cidr %q: %w", cidr, err)
		}
	}
	for i, r := range c.Security.ExtraRules {
		if _, err := r.ToRule(); err != nil {
			return fmt.Errorf("extra_rules[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *Config) validateAWS() error {
	if c.SSH.KeyName == "" {
		return fmt.Errorf("ssh.key_name (or --key-name) is required for aws")
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("aws.access_key_id and aws.secret_access_key must be set together")
	}
	return nil
}

func (c *Config) validateAzure() error {
	missing := []string{}
	for name, v := range map[string]string{
		"azure.tenant_id":       c.Azure.TenantID,
		"azure.client_id":       c.Azure.ClientID,
		"azure.client_secret":   c.Azure.ClientSecret,
		"azure.subscription_id": c.Azure.SubscriptionID,
		"azure.resource_group":  c.Azure.ResourceGroup,
		"ssh.public_key_path":   c.SSH.PublicKeyPath,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required azure settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ToRule converts a configured rule to the provider-neutral form.
func (r RuleConfig) ToRule() (cloud.Rule, error) {
	rule := cloud.Rule{
		Direction:   cloud.Direction(r.Direction),
		Protocol:    cloud.Protocol(strings.ToLower(r.Protocol)),
		CIDR:        r.CIDR,
		Description: r.Description,
	}
	if rule.Direction == "" {
		rule.Direction = cloud.Ingress
	}
	if rule.Direction != cloud.Ingress && rule.Direction != cloud.Egress {
		return cloud.Rule{}, fmt.Errorf("direction must be %q or %q", cloud.Ingress, cloud.Egress)
	}
	if _, _, err := net.ParseCIDR(r.CIDR); err != nil {
		return cloud.Rule{}, fmt.Errorf("invalid cidr %q: %w", r.CIDR, err)
	}

	switch rule.Protocol {
	case cloud.ProtocolICMP, cloud.ProtocolAll:
		return rule, nil
	case cloud.ProtocolTCP, cloud.ProtocolUDP:
	default:
		return cloud.Rule{}, fmt.Errorf("unknown protocol %q", r.Protocol)
	}

	from, to, err := parsePortRange(r.Port)
	if err != nil {
		return cloud.Rule{}, err
	}
	rule.FromPort, rule.ToPort = from, to
	return rule, nil
}

func parsePortRange(port string) (int, int, error) {
	lo, hi, isRange := strings.Cut(port, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port %q", port)
	}
	to := from
	if isRange {
		if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return 0, 0, fmt.Errorf("invalid port range %q", port)
		}
	}
	if from < 1 || to > 65535 || from > to {
		return 0, 0, fmt.Errorf("port range %q out of bounds", port)
	}
	return from, to, nil
}
