package cloud

import "context"

// MockClient is a function-field implementation of InfrastructureManager for
// tests. Unset functions return benign defaults.
type MockClient struct {
	ProviderName string
	RegionName   string

	// Network
	FindNetworkFunc           func(ctx context.Context, tag string) (*Network, error)
	CreateNetworkFunc         func(ctx context.Context, tag, cidr string, labels map[string]string) (*Network, error)
	GetNetworkFunc            func(ctx context.Context, id string) (*Network, error)
	EnableNetworkDNSFunc      func(ctx context.Context, id string) error
	EnsureInternetGatewayFunc func(ctx context.Context, tag, networkID string, labels map[string]string) (*Gateway, error)
	EnsureSubnetFunc          func(ctx context.Context, tag, networkID, cidr string, labels map[string]string) (*Subnet, error)
	EnsureRouteTableFunc      func(ctx context.Context, tag, networkID, subnetID, gatewayID string, labels map[string]string) (*RouteTable, error)

	// Security
	EnsureSecurityGroupFunc func(ctx context.Context, tag, networkID string, rules []Rule, labels map[string]string) (*SecurityGroup, error)

	// Compute
	ListImagesFunc         func(ctx context.Context, filter ImageFilter) ([]Image, error)
	RunInstancesFunc       func(ctx context.Context, req LaunchRequest) ([]ProvisionedNode, error)
	DescribeInstancesFunc  func(ctx context.Context, ids []string) ([]ProvisionedNode, error)
	ListInstancesFunc      func(ctx context.Context, tag string, role Role) ([]ProvisionedNode, error)
	TerminateInstancesFunc func(ctx context.Context, ids []string) error

	// Teardown
	ListSecurityGroupsFunc     func(ctx context.Context, tag string) ([]SecurityGroup, error)
	DeleteSecurityGroupFunc    func(ctx context.Context, id string) error
	ListRouteTablesFunc        func(ctx context.Context, tag string) ([]RouteTable, error)
	DisassociateRouteTableFunc func(ctx context.Context, associationID string) error
	DeleteRouteTableFunc       func(ctx context.Context, id string) error
	ListGatewaysFunc           func(ctx context.Context, tag string) ([]Gateway, error)
	DetachGatewayFunc          func(ctx context.Context, gatewayID, networkID string) error
	DeleteGatewayFunc          func(ctx context.Context, id string) error
	ListSubnetsFunc            func(ctx context.Context, tag string) ([]Subnet, error)
	DeleteSubnetFunc           func(ctx context.Context, id string) error
	ListNetworksFunc           func(ctx context.Context, tag string) ([]Network, error)
	DeleteNetworkFunc          func(ctx context.Context, id string) error
}

var _ InfrastructureManager = (*MockClient)(nil)

// Provider returns ProviderName, defaulting to "mock".
func (m *MockClient) Provider() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

// Region returns RegionName.
func (m *MockClient) Region() string {
	return m.RegionName
}

func (m *MockClient) FindNetwork(ctx context.Context, tag string) (*Network, error) {
	if m.FindNetworkFunc != nil {
		return m.FindNetworkFunc(ctx, tag)
	}
	return nil, nil
}

func (m *MockClient) CreateNetwork(ctx context.Context, tag, cidr string, labels map[string]string) (*Network, error) {
	if m.CreateNetworkFunc != nil {
		return m.CreateNetworkFunc(ctx, tag, cidr, labels)
	}
	return &Network{ID: "net-mock", Name: tag, CIDR: cidr, State: NetworkAvailable}, nil
}

func (m *MockClient) GetNetwork(ctx context.Context, id string) (*Network, error) {
	if m.GetNetworkFunc != nil {
		return m.GetNetworkFunc(ctx, id)
	}
	return &Network{ID: id, State: NetworkAvailable}, nil
}

func (m *MockClient) EnableNetworkDNS(ctx context.Context, id string) error {
	if m.EnableNetworkDNSFunc != nil {
		return m.EnableNetworkDNSFunc(ctx, id)
	}
	return nil
}

func (m *MockClient) EnsureInternetGateway(ctx context.Context, tag, networkID string, labels map[string]string) (*Gateway, error) {
	if m.EnsureInternetGatewayFunc != nil {
		return m.EnsureInternetGatewayFunc(ctx, tag, networkID, labels)
	}
	return &Gateway{ID: "igw-mock", AttachedNetworkIDs: []string{networkID}}, nil
}

func (m *MockClient) EnsureSubnet(ctx context.Context, tag, networkID, cidr string, labels map[string]string) (*Subnet, error) {
	if m.EnsureSubnetFunc != nil {
		return m.EnsureSubnetFunc(ctx, tag, networkID, cidr, labels)
	}
	return &Subnet{ID: "subnet-mock", NetworkID: networkID, CIDR: cidr}, nil
}

func (m *MockClient) EnsureRouteTable(ctx context.Context, tag, networkID, subnetID, gatewayID string, labels map[string]string) (*RouteTable, error) {
	if m.EnsureRouteTableFunc != nil {
		return m.EnsureRouteTableFunc(ctx, tag, networkID, subnetID, gatewayID, labels)
	}
	return &RouteTable{ID: "rtb-mock", NetworkID: networkID, AssociationIDs: []string{"rtbassoc-mock"}}, nil
}

func (m *MockClient) EnsureSecurityGroup(ctx context.Context, tag, networkID string, rules []Rule, labels map[string]string) (*SecurityGroup, error) {
	if m.EnsureSecurityGroupFunc != nil {
		return m.EnsureSecurityGroupFunc(ctx, tag, networkID, rules, labels)
	}
	return &SecurityGroup{ID: "sg-mock", Name: tag, NetworkID: networkID}, nil
}

func (m *MockClient) ListImages(ctx context.Context, filter ImageFilter) ([]Image, error) {
	if m.ListImagesFunc != nil {
		return m.ListImagesFunc(ctx, filter)
	}
	return []Image{{ID: "ami-mock", Name: "mock-image"}}, nil
}

func (m *MockClient) RunInstances(ctx context.Context, req LaunchRequest) ([]ProvisionedNode, error) {
	if m.RunInstancesFunc != nil {
		return m.RunInstancesFunc(ctx, req)
	}
	return []ProvisionedNode{{InstanceID: "i-mock", Name: req.Name, Role: req.Role, State: NodePending, BootScript: req.BootScript}}, nil
}

func (m *MockClient) DescribeInstances(ctx context.Context, ids []string) ([]ProvisionedNode, error) {
	if m.DescribeInstancesFunc != nil {
		return m.DescribeInstancesFunc(ctx, ids)
	}
	nodes := make([]ProvisionedNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, ProvisionedNode{InstanceID: id, State: NodeRunning})
	}
	return nodes, nil
}

func (m *MockClient) ListInstances(ctx context.Context, tag string, role Role) ([]ProvisionedNode, error) {
	if m.ListInstancesFunc != nil {
		return m.ListInstancesFunc(ctx, tag, role)
	}
	return nil, nil
}

func (m *MockClient) TerminateInstances(ctx context.Context, ids []string) error {
	if m.TerminateInstancesFunc != nil {
		return m.TerminateInstancesFunc(ctx, ids)
	}
	return nil
}

func (m *MockClient) ListSecurityGroups(ctx context.Context, tag string) ([]SecurityGroup, error) {
	if m.ListSecurityGroupsFunc != nil {
		return m.ListSecurityGroupsFunc(ctx, tag)
	}
	return nil, nil
}

func (m *MockClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	if m.DeleteSecurityGroupFunc != nil {
		return m.DeleteSecurityGroupFunc(ctx, id)
	}
	return nil
}

func (m *MockClient) ListRouteTables(ctx context.Context, tag string) ([]RouteTable, error) {
	if m.ListRouteTablesFunc != nil {
		return m.ListRouteTablesFunc(ctx, tag)
	}
	return nil, nil
}

func (m *MockClient) DisassociateRouteTable(ctx context.Context, associationID string) error {
	if m.DisassociateRouteTableFunc != nil {
		return m.DisassociateRouteTableFunc(ctx, associationID)
	}
	return nil
}

func (m *MockClient) DeleteRouteTable(ctx context.Context, id string) error {
	if m.DeleteRouteTableFunc != nil {
		return m.DeleteRouteTableFunc(ctx, id)
	}
	return nil
}

func (m *MockClient) ListGateways(ctx context.Context, tag string) ([]Gateway, error) {
	if m.ListGatewaysFunc != nil {
		return m.ListGatewaysFunc(ctx, tag)
	}
	return nil, nil
}

func (m *MockClient) DetachGateway(ctx context.Context, gatewayID, networkID string) error {
	if m.DetachGatewayFunc != nil {
		return m.DetachGatewayFunc(ctx, gatewayID, networkID)
	}
	return nil
}

func (m *MockClient) DeleteGateway(ctx context.Context, id string) error {
	if m.DeleteGatewayFunc != nil {
		return m.DeleteGatewayFunc(ctx, id)
	}
	return nil
}

func (m *MockClient) ListSubnets(ctx context.Context, tag string) ([]Subnet, error) {
	if m.ListSubnetsFunc != nil {
		return m.ListSubnetsFunc(ctx, tag)
	}
	return nil, nil
}

func (m *MockClient) DeleteSubnet(ctx context.Context, id string) error {
	if m.DeleteSubnetFunc != nil {
		return m.DeleteSubnetFunc(ctx, id)
	}
	return nil
}

func (m *MockClient) ListNetworks(ctx context.Context, tag string) ([]Network, error) {
	if m.ListNetworksFunc != nil {
		return m.ListNetworksFunc(ctx, tag)
	}
	return nil, nil
}

func (m *MockClient) DeleteNetwork(ctx context.Context, id string) error {
	if m.DeleteNetworkFunc != nil {
		return m.DeleteNetworkFunc(ctx, id)
	}
	return nil
}
