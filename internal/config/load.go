package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/minisc/minisc/internal/util/ptr"
)

// LoadFile reads and decodes a YAML configuration file. Defaults are not
// applied and nothing is validated; see Load.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Load builds a configuration from an optional file plus environment
// overrides. A non-empty provider wins over the file and environment and is
// set first so provider scoped variables resolve correctly. Callers apply
// flag overrides, then ApplyDefaults and Validate.
func Load(path, provider string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if provider != "" {
		cfg.Provider = provider
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if provider != "" {
		cfg.Provider = provider
	}
	return cfg, nil
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func setString(field func(c *Config) *string) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

var envBindings = []envBinding{
	{"MINISC_PROVIDER", setString(func(c *Config) *string { return &c.Provider })},
	{"MINISC_CLUSTER_TAG", setString(func(c *Config) *string { return &c.ClusterTag })},
	{"MINISC_SECURITY_PROFILE", setString(func(c *Config) *string { return &c.Security.Profile })},
	{"MINISC_ADMIN_CIDRS", func(c *Config, v string) error {
		c.Security.AdminCIDRs = splitList(v)
		return nil
	}},
	{"MINISC_NODE_PORTS", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINISC_NODE_PORTS must be a boolean: %w", err)
		}
		c.Security.NodePorts = ptr.Bool(b)
		return nil
	}},
	{"MINISC_SSH_USER", setString(func(c *Config) *string { return &c.SSH.User })},
	{"MINISC_SSH_PRIVATE_KEY_PATH", setString(func(c *Config) *string { return &c.SSH.PrivateKeyPath })},
	{"MINISC_SSH_PUBLIC_KEY_PATH", setString(func(c *Config) *string { return &c.SSH.PublicKeyPath })},
	{"MINISC_INVENTORY_BUCKET", setString(func(c *Config) *string { return &c.Inventory.Bucket })},

	{"AWS_REGION", setString(func(c *Config) *string { return &c.Region })},
	{"AWS_KEY_NAME", setString(func(c *Config) *string { return &c.SSH.KeyName })},
	{"AWS_PROFILE", setString(func(c *Config) *string { return &c.AWS.Profile })},
	{"AWS_INSTANCE_TYPE", func(c *Config, v string) error {
		c.Head.InstanceType = v
		c.Workers.InstanceType = v
		return nil
	}},
	{"AWS_WORKER_COUNT", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AWS_WORKER_COUNT must be an integer: %w", err)
		}
		c.Workers.Count = n
		return nil
	}},

	{"AZURE_TENANT_ID", setString(func(c *Config) *string { return &c.Azure.TenantID })},
	{"AZURE_CLIENT_ID", setString(func(c *Config) *string { return &c.Azure.ClientID })},
	{"AZURE_CLIENT_SECRET", setString(func(c *Config) *string { return &c.Azure.ClientSecret })},
	{"AZURE_SUBSCRIPTION_ID", setString(func(c *Config) *string { return &c.Azure.SubscriptionID })},
	{"AZURE_RESOURCE_GROUP", setString(func(c *Config) *string { return &c.Azure.ResourceGroup })},
	{"AZURE_LOCATION", func(c *Config, v string) error {
		if c.Provider == "azure" {
			c.Region = v
		}
		return nil
	}},
}

// ApplyEnv overlays environment variables found through lookup.
// Provider-prefixed variables only apply to their provider where the field
// is shared, so AWS_REGION does not leak into an Azure deployment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if b.name == "AWS_REGION" && c.Provider == "azure" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
