package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
provider: aws
cluster_tag: demo
region: eu-west-1
network:
  cidr: 10.10.0.0/16
  subnet_cidr: 10.10.1.0/24
security:
  profile: least-privilege
  admin_cidrs: ["198.51.100.0/24"]
  extra_rules:
    - protocol: tcp
      port: "8080"
      cidr: 0.0.0.0/0
      description: demo app
workers:
  count: 3
ssh:
  key_name: ops
tags:
  team: platform
`

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "aws", cfg.Provider)
	assert.Equal(t, "demo", cfg.ClusterTag)
	assert.Equal(t, "10.10.1.0/24", cfg.Network.SubnetCIDR)
	assert.Equal(t, []string{"198.51.100.0/24"}, cfg.Security.AdminCIDRs)
	require.Len(t, cfg.Security.ExtraRules, 1)
	assert.Equal(t, "8080", cfg.Security.ExtraRules[0].Port)
	assert.Equal(t, 3, cfg.Workers.Count)
	assert.Equal(t, "ops", cfg.SSH.KeyName)
	assert.Equal(t, map[string]string{"team": "platform"}, cfg.Tags)
}

func TestParseInvalidYAML(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("provider: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal yaml")
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minisc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	t.Setenv("AWS_WORKER_COUNT", "5")
	t.Setenv("AWS_KEY_NAME", "from-env")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Workers.Count)
	assert.Equal(t, "from-env", cfg.SSH.KeyName)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		start   Config
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name: "aws settings",
			env: map[string]string{
				"AWS_REGION":         "us-west-2",
				"AWS_INSTANCE_TYPE":  "t3.large",
				"MINISC_ADMIN_CIDRS": "10.1.0.0/16, 192.0.2.0/24",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "us-west-2", cfg.Region)
				assert.Equal(t, "t3.large", cfg.Head.InstanceType)
				assert.Equal(t, "t3.large", cfg.Workers.InstanceType)
				assert.Equal(t, []string{"10.1.0.0/16", "192.0.2.0/24"}, cfg.Security.AdminCIDRs)
			},
		},
		{
			name:  "aws region ignored for azure",
			start: Config{Provider: "azure"},
			env: map[string]string{
				"AWS_REGION":            "us-west-2",
				"AZURE_LOCATION":        "westeurope",
				"AZURE_SUBSCRIPTION_ID": "sub",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "westeurope", cfg.Region)
				assert.Equal(t, "sub", cfg.Azure.SubscriptionID)
			},
		},
		{
			name: "node ports closed",
			env:  map[string]string{"MINISC_NODE_PORTS": "false"},
			check: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.Security.NodePorts)
				assert.False(t, cfg.Security.NodePortsEnabled())
			},
		},
		{
			name:    "bad node ports",
			env:     map[string]string{"MINISC_NODE_PORTS": "sometimes"},
			wantErr: "MINISC_NODE_PORTS must be a boolean",
		},
		{
			name:    "bad worker count",
			env:     map[string]string{"AWS_WORKER_COUNT": "many"},
			wantErr: "AWS_WORKER_COUNT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.start
			err := cfg.ApplyEnv(func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, &cfg)
		})
	}
}
