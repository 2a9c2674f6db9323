package config

import "github.com/minisc/minisc/internal/cloud"

// Security profiles.
const (
	ProfileLeastPrivilege = "least-privilege"
	ProfileAllowAll       = "allow-all"
)

// Config is the full set of inputs for one cluster.
type Config struct {
	Provider   string            `mapstructure:"provider" yaml:"provider"`
	ClusterTag string            `mapstructure:"cluster_tag" yaml:"cluster_tag"`
	Region     string            `mapstructure:"region" yaml:"region"`
	Tags       map[string]string `mapstructure:"tags" yaml:"tags,omitempty"`

	Network    NetworkConfig    `mapstructure:"network" yaml:"network"`
	Security   SecurityConfig   `mapstructure:"security" yaml:"security"`
	Head       NodeConfig       `mapstructure:"head" yaml:"head"`
	Workers    WorkerConfig     `mapstructure:"workers" yaml:"workers"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes" yaml:"kubernetes"`
	SSH        SSHConfig        `mapstructure:"ssh" yaml:"ssh"`
	Boot       BootConfig       `mapstructure:"boot" yaml:"boot"`
	AWS        AWSConfig        `mapstructure:"aws" yaml:"aws"`
	Azure      AzureConfig      `mapstructure:"azure" yaml:"azure"`
	Helm       HelmConfig       `mapstructure:"helm" yaml:"helm"`
	Inventory  InventoryConfig  `mapstructure:"inventory" yaml:"inventory"`
}

// NetworkConfig holds address ranges.
type NetworkConfig struct {
	CIDR       string `mapstructure:"cidr" yaml:"cidr"`
	SubnetCIDR string `mapstructure:"subnet_cidr" yaml:"subnet_cidr"`
}

// SecurityConfig selects the rule set guarding the cluster.
type SecurityConfig struct {
	Profile    string       `mapstructure:"profile" yaml:"profile"`
	AdminCIDRs []string     `mapstructure:"admin_cidrs" yaml:"admin_cidrs"`
	NodePorts  *bool        `mapstructure:"node_ports" yaml:"node_ports,omitempty"`
	ExtraRules []RuleConfig `mapstructure:"extra_rules" yaml:"extra_rules,omitempty"`
}

// RuleConfig is a user supplied rule.
type RuleConfig struct {
	Direction   string `mapstructure:"direction" yaml:"direction"`
	Protocol    string `mapstructure:"protocol" yaml:"protocol"`
	Port        string `mapstructure:"port" yaml:"port"` // "22" or "30000-32767"
	CIDR        string `mapstructure:"cidr" yaml:"cidr"`
	Description string `mapstructure:"description" yaml:"description"`
}

// ImageConfig selects a machine image.
type ImageConfig struct {
	NamePattern string   `mapstructure:"name_pattern" yaml:"name_pattern,omitempty"`
	Owners      []string `mapstructure:"owners" yaml:"owners,omitempty"`
	Publisher   string   `mapstructure:"publisher" yaml:"publisher,omitempty"`
	Offer       string   `mapstructure:"offer" yaml:"offer,omitempty"`
	SKU         string   `mapstructure:"sku" yaml:"sku,omitempty"`
}

// Filter converts the config to the provider-neutral filter.
func (i ImageConfig) Filter() cloud.ImageFilter {
	return cloud.ImageFilter{
		NamePattern: i.NamePattern,
		Owners:      append([]string(nil), i.Owners...),
		Publisher:   i.Publisher,
		Offer:       i.Offer,
		SKU:         i.SKU,
	}
}

// NodeConfig configures the head node.
type NodeConfig struct {
	InstanceType string      `mapstructure:"instance_type" yaml:"instance_type"`
	Image        ImageConfig `mapstructure:"image" yaml:"image"`
}

// WorkerConfig configures the worker pool.
type WorkerConfig struct {
	Count        int         `mapstructure:"count" yaml:"count"`
	InstanceType string      `mapstructure:"instance_type" yaml:"instance_type"`
	Image        ImageConfig `mapstructure:"image" yaml:"image"`
}

// KubernetesConfig is rendered into boot scripts.
type KubernetesConfig struct {
	Version     string `mapstructure:"version" yaml:"version"`
	PodCIDR     string `mapstructure:"pod_cidr" yaml:"pod_cidr"`
	CNIManifest string `mapstructure:"cni_manifest" yaml:"cni_manifest"`
}

// SSHConfig identifies the admin key pair.
type SSHConfig struct {
	KeyName        string `mapstructure:"key_name" yaml:"key_name"`
	User           string `mapstructure:"user" yaml:"user"`
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path"`
	PublicKeyPath  string `mapstructure:"public_key_path" yaml:"public_key_path"`
}

// BootConfig optionally overrides the embedded boot script templates.
type BootConfig struct {
	HeadTemplate   string `mapstructure:"head_template" yaml:"head_template,omitempty"`
	WorkerTemplate string `mapstructure:"worker_template" yaml:"worker_template,omitempty"`
}

// AWSConfig holds optional static credentials. The default credential chain
// is used when they are empty.
type AWSConfig struct {
	Profile         string `mapstructure:"profile" yaml:"profile,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// AzureConfig holds the service principal and placement.
type AzureConfig struct {
	TenantID       string `mapstructure:"tenant_id" yaml:"tenant_id"`
	ClientID       string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret   string `mapstructure:"client_secret" yaml:"client_secret"`
	SubscriptionID string `mapstructure:"subscription_id" yaml:"subscription_id"`
	ResourceGroup  string `mapstructure:"resource_group" yaml:"resource_group"`
}

// HelmConfig configures chart installation on the head node.
type HelmConfig struct {
	Repos  []HelmRepo  `mapstructure:"repos" yaml:"repos"`
	Charts []HelmChart `mapstructure:"charts" yaml:"charts"`
}

// HelmRepo is a chart repository.
type HelmRepo struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// HelmChart is one release to install.
type HelmChart struct {
	Release         string `mapstructure:"release" yaml:"release"`
	Chart           string `mapstructure:"chart" yaml:"chart"`
	Namespace       string `mapstructure:"namespace" yaml:"namespace"`
	CreateNamespace bool   `mapstructure:"create_namespace" yaml:"create_namespace"`
}

// InventoryConfig enables recording cluster identifiers in an S3 bucket.
type InventoryConfig struct {
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Region   string `mapstructure:"region" yaml:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// Enabled reports whether an inventory bucket is configured.
func (i InventoryConfig) Enabled() bool {
	return i.Bucket != ""
}

// NodePortsEnabled reports whether the NodePort range is opened to admins.
func (s SecurityConfig) NodePortsEnabled() bool {
	return s.NodePorts == nil || *s.NodePorts
}
