package api

import (
	"fmt"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/util/naming"
)

// ClusterRequest identifies a cluster and overrides base configuration.
// Empty fields keep the base value.
type ClusterRequest struct {
	Provider          string            `json:"provider"`
	Region            string            `json:"region"`
	ClusterName       string            `json:"cluster_name"`
	NodeSize          string            `json:"node_size"`
	AdminUsername     string            `json:"admin_username"`
	SSHKeyName        string            `json:"ssh_key_name"`
	ResourceGroupName string            `json:"resource_group_name"`
	VNetName          string            `json:"vnet_name"`
	SubnetName        string            `json:"subnet_name"`
	Tags              map[string]string `json:"tags"`
}

// WorkerNodesRequest adds the worker pool size and join token.
type WorkerNodesRequest struct {
	ClusterRequest
	WorkerCount int    `json:"worker_count" binding:"omitempty,min=1,max=100"`
	JoinToken   string `json:"join_token" binding:"required"`
}

// apply overlays the request on cfg, applies defaults and validates.
// Network names are derived from the cluster name; explicit names must
// match them.
func (r ClusterRequest) apply(cfg *config.Config) error {
	if r.Provider != "" {
		cfg.Provider = r.Provider
	}
	if r.Region != "" {
		cfg.Region = r.Region
	}
	if r.ClusterName != "" {
		cfg.ClusterTag = r.ClusterName
	}
	if r.NodeSize != "" {
		cfg.Head.InstanceType = r.NodeSize
		cfg.Workers.InstanceType = r.NodeSize
	}
	if r.AdminUsername != "" {
		cfg.SSH.User = r.AdminUsername
	}
	if r.SSHKeyName != "" {
		cfg.SSH.KeyName = r.SSHKeyName
	}
	if r.ResourceGroupName != "" {
		cfg.Azure.ResourceGroup = r.ResourceGroupName
	}
	if len(r.Tags) > 0 {
		if cfg.Tags == nil {
			cfg.Tags = map[string]string{}
		}
		for k, v := range r.Tags {
			cfg.Tags[k] = v
		}
	}

	cfg.ApplyDefaults()

	if r.VNetName != "" && r.VNetName != naming.Network(cfg.ClusterTag) {
		return fmt.Errorf("%w: vnet_name %q does not match %q derived from the cluster name",
			config.ErrInvalidConfig, r.VNetName, naming.Network(cfg.ClusterTag))
	}
	if r.SubnetName != "" && r.SubnetName != naming.Subnet(cfg.ClusterTag) {
		return fmt.Errorf("%w: subnet_name %q does not match %q derived from the cluster name",
			config.ErrInvalidConfig, r.SubnetName, naming.Subnet(cfg.ClusterTag))
	}
	return cfg.Validate()
}

func (r WorkerNodesRequest) apply(cfg *config.Config) error {
	if r.WorkerCount > 0 {
		cfg.Workers.Count = r.WorkerCount
	}
	return r.ClusterRequest.apply(cfg)
}

func (r WorkerNodesRequest) token() cloud.JoinToken {
	return cloud.JoinToken(r.JoinToken)
}
