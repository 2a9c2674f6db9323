package testing

import (
	"maps"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/util/ptr"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults for
// the AWS provider.
func NewConfigBuilder() *ConfigBuilder {
	cfg := config.Config{
		Provider:   cloud.ProviderAWS,
		ClusterTag: "test-cluster",
		SSH: config.SSHConfig{
			KeyName: "test-key",
		},
	}
	cfg.ApplyDefaults()
	return &ConfigBuilder{cfg: cfg}
}

// WithClusterTag sets the cluster tag.
func (b *ConfigBuilder) WithClusterTag(tag string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.ClusterTag = tag
	return newBuilder
}

// WithProvider switches provider and fills the provider's defaults.
func (b *ConfigBuilder) WithProvider(provider string) *ConfigBuilder {
	newBuilder := b.clone()
	c := &newBuilder.cfg
	c.Provider = provider
	c.Region = ""
	c.SSH.User = ""
	c.Head = config.NodeConfig{}
	c.Workers = config.WorkerConfig{Count: c.Workers.Count}
	if provider == cloud.ProviderAzure {
		c.Azure = config.AzureConfig{
			TenantID:       "00000000-0000-0000-0000-000000000001",
			ClientID:       "00000000-0000-0000-0000-000000000002",
			ClientSecret:   "secret",
			SubscriptionID: "00000000-0000-0000-0000-000000000003",
		}
		c.SSH.PublicKeyPath = "/dev/null"
	}
	c.ApplyDefaults()
	return newBuilder
}

// WithNetwork sets the network and subnet ranges.
func (b *ConfigBuilder) WithNetwork(cidr, subnetCIDR string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Network = config.NetworkConfig{CIDR: cidr, SubnetCIDR: subnetCIDR}
	return newBuilder
}

// WithWorkers sets the worker count.
func (b *ConfigBuilder) WithWorkers(count int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Workers.Count = count
	return newBuilder
}

// WithProfile sets the security profile.
func (b *ConfigBuilder) WithProfile(profile string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Security.Profile = profile
	return newBuilder
}

// WithNodePorts opens or closes the NodePort range.
func (b *ConfigBuilder) WithNodePorts(enabled bool) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Security.NodePorts = ptr.Bool(enabled)
	return newBuilder
}

// WithAdminCIDRs sets the admin source ranges.
func (b *ConfigBuilder) WithAdminCIDRs(cidrs ...string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Security.AdminCIDRs = cloneStringSlice(cidrs)
	return newBuilder
}

// WithExtraRule appends a user rule.
func (b *ConfigBuilder) WithExtraRule(rule config.RuleConfig) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Security.ExtraRules = append(newBuilder.cfg.Security.ExtraRules, rule)
	return newBuilder
}

// WithTags sets user tags added to every resource.
func (b *ConfigBuilder) WithTags(tags map[string]string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Tags = cloneStringMap(tags)
	return newBuilder
}

// WithImagePattern sets the AWS image name pattern for head and workers.
func (b *ConfigBuilder) WithImagePattern(pattern string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Head.Image.NamePattern = pattern
	newBuilder.cfg.Workers.Image.NamePattern = pattern
	return newBuilder
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	return &b.clone().cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	newCfg := b.cfg
	newCfg.Tags = cloneStringMap(b.cfg.Tags)
	newCfg.Security.AdminCIDRs = cloneStringSlice(b.cfg.Security.AdminCIDRs)
	if b.cfg.Security.NodePorts != nil {
		newCfg.Security.NodePorts = ptr.Bool(*b.cfg.Security.NodePorts)
	}
	newCfg.Security.ExtraRules = append([]config.RuleConfig(nil), b.cfg.Security.ExtraRules...)
	newCfg.Head.Image.Owners = cloneStringSlice(b.cfg.Head.Image.Owners)
	newCfg.Workers.Image.Owners = cloneStringSlice(b.cfg.Workers.Image.Owners)
	newCfg.Helm.Repos = append([]config.HelmRepo(nil), b.cfg.Helm.Repos...)
	newCfg.Helm.Charts = append([]config.HelmChart(nil), b.cfg.Helm.Charts...)
	return &ConfigBuilder{cfg: newCfg}
}

// cloneStringMap creates a deep copy of a string map.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cloned := make(map[string]string, len(m))
	maps.Copy(cloned, m)
	return cloned
}

// cloneStringSlice creates a copy of a string slice.
func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	cloned := make([]string, len(s))
	copy(cloned, s)
	return cloned
}

// MinimalConfig returns a minimal valid config for simple tests.
func MinimalConfig() *config.Config {
	return NewConfigBuilder().Build()
}
