package cloud

import "context"

// NetworkManager manages networks and the resources that give them egress.
// Find* methods return (nil, nil) when nothing matches.
type NetworkManager interface {
	FindNetwork(ctx context.Context, tag string) (*Network, error)
	CreateNetwork(ctx context.Context, tag, cidr string, labels map[string]string) (*Network, error)
	GetNetwork(ctx context.Context, id string) (*Network, error)
	EnableNetworkDNS(ctx context.Context, id string) error
	EnsureInternetGateway(ctx context.Context, tag, networkID string, labels map[string]string) (*Gateway, error)
	EnsureSubnet(ctx context.Context, tag, networkID, cidr string, labels map[string]string) (*Subnet, error)
	EnsureRouteTable(ctx context.Context, tag, networkID, subnetID, gatewayID string, labels map[string]string) (*RouteTable, error)
}

// SecurityManager manages security groups.
type SecurityManager interface {
	EnsureSecurityGroup(ctx context.Context, tag, networkID string, rules []Rule, labels map[string]string) (*SecurityGroup, error)
}

// ComputeManager manages images and instances.
type ComputeManager interface {
	ListImages(ctx context.Context, filter ImageFilter) ([]Image, error)
	RunInstances(ctx context.Context, req LaunchRequest) ([]ProvisionedNode, error)
	DescribeInstances(ctx context.Context, ids []string) ([]ProvisionedNode, error)
	// ListInstances returns instances of a cluster that are not yet terminated.
	// An empty role matches every role.
	ListInstances(ctx context.Context, tag string, role Role) ([]ProvisionedNode, error)
	TerminateInstances(ctx context.Context, ids []string) error
}

// TeardownManager lists and deletes tagged resources. Delete methods return
// an error matching ErrNotFound when the resource is already gone.
type TeardownManager interface {
	ListSecurityGroups(ctx context.Context, tag string) ([]SecurityGroup, error)
	DeleteSecurityGroup(ctx context.Context, id string) error
	ListRouteTables(ctx context.Context, tag string) ([]RouteTable, error)
	DisassociateRouteTable(ctx context.Context, associationID string) error
	DeleteRouteTable(ctx context.Context, id string) error
	ListGateways(ctx context.Context, tag string) ([]Gateway, error)
	DetachGateway(ctx context.Context, gatewayID, networkID string) error
	DeleteGateway(ctx context.Context, id string) error
	ListSubnets(ctx context.Context, tag string) ([]Subnet, error)
	DeleteSubnet(ctx context.Context, id string) error
	ListNetworks(ctx context.Context, tag string) ([]Network, error)
	DeleteNetwork(ctx context.Context, id string) error
}

// InfrastructureManager is the full capability set of one provider.
type InfrastructureManager interface {
	NetworkManager
	SecurityManager
	ComputeManager
	TeardownManager

	// Provider returns the provider name, e.g. "aws".
	Provider() string
	// Region returns the region or location the client operates in.
	Region() string
}
