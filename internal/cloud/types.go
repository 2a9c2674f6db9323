package cloud

import "time"

// Provider names accepted by configuration.
const (
	ProviderAWS   = "aws"
	ProviderAzure = "azure"
)

// NetworkState is the provisioning state of a network.
type NetworkState string

const (
	NetworkPending   NetworkState = "pending"
	NetworkAvailable NetworkState = "available"
)

// Network is an isolated address space (VPC or VNet).
type Network struct {
	ID    string
	Name  string
	CIDR  string
	State NetworkState
}

// Subnet is a range inside a network.
type Subnet struct {
	ID        string
	NetworkID string
	CIDR      string
}

// Gateway is an internet gateway and the networks it is attached to.
type Gateway struct {
	ID                 string
	AttachedNetworkIDs []string
}

// RouteTable is a routing table. AssociationIDs identify subnet associations
// that must be removed before the table can be deleted.
type RouteTable struct {
	ID             string
	NetworkID      string
	Main           bool
	AssociationIDs []string
}

// SecurityGroup is a named rule set scoped to a network.
type SecurityGroup struct {
	ID        string
	Name      string
	NetworkID string
}

// NetworkTopology is the result of ensuring a cluster network.
// SubnetNetworkID always equals NetworkID.
type NetworkTopology struct {
	NetworkID       string
	SubnetID        string
	SubnetNetworkID string
	RouteTableID    string
	GatewayID       string // empty where the provider has no gateway resource
	CIDR            string
	SubnetCIDR      string
	Region          string
}

// Direction of traffic a rule applies to.
type Direction string

const (
	Ingress Direction = "in"
	Egress  Direction = "out"
)

// Protocol of a rule.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
	ProtocolAll  Protocol = "all"
)

// Rule is one allowed traffic pattern. Ports are ignored for icmp and all.
type Rule struct {
	Direction   Direction
	Protocol    Protocol
	FromPort    int
	ToPort      int
	CIDR        string
	Description string
}

// SecurityBoundary is the security group guarding a cluster.
type SecurityBoundary struct {
	ID        string
	NetworkID string
	Rules     []Rule
}

// Role of a node in the cluster.
type Role string

const (
	RoleHead   Role = "head"
	RoleWorker Role = "worker"
)

// NodeState is the lifecycle state of an instance.
type NodeState string

const (
	NodePending      NodeState = "Pending"
	NodeRunning      NodeState = "Running"
	NodeShuttingDown NodeState = "ShuttingDown"
	NodeTerminated   NodeState = "Terminated"
	NodeUnknown      NodeState = "Unknown"
)

// ImageFilter selects machine images. AWS uses NamePattern and Owners,
// Azure uses Publisher, Offer and SKU.
type ImageFilter struct {
	NamePattern string
	Owners      []string
	Publisher   string
	Offer       string
	SKU         string
}

// Image is a bootable machine image.
type Image struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NodeSpec describes the nodes to launch for one role.
type NodeSpec struct {
	Role       Role
	SizeClass  string
	Image      ImageFilter
	BootScript string
	Count      int
	KeyName    string
	AdminUser  string
	PublicKey  string
}

// LaunchRequest is a fully resolved instance launch.
type LaunchRequest struct {
	Name            string
	Role            Role
	ImageID         string
	SizeClass       string
	Count           int
	// Total is the size of the role's pool once the launch completes,
	// counting instances already running. Providers that size a pool
	// rather than add to it use Total instead of Count.
	Total           int
	SubnetID        string
	SecurityGroupID string
	BootScript      string
	KeyName         string
	AdminUser       string
	PublicKey       string
	Labels          map[string]string
}

// ProvisionedNode is an instance as last observed at the provider.
type ProvisionedNode struct {
	InstanceID     string
	Name           string
	Role           Role
	PublicAddress  string
	PrivateAddress string
	State          NodeState
	BootScript     string
}

// Address returns the address operators reach the node on, preferring the
// public one.
func (n ProvisionedNode) Address() string {
	if n.PublicAddress != "" {
		return n.PublicAddress
	}
	return n.PrivateAddress
}

// JoinToken is the opaque credential that lets a worker join the head node.
type JoinToken string
