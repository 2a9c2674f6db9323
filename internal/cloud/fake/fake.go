// Package fake provides a stateful in-memory cloud.InfrastructureManager.
//
// It behaves like a small eventually-consistent provider: networks start
// pending, instances start Pending and become Running on the next describe,
// terminated instances pass through ShuttingDown. Every call is counted so
// tests can assert which provider operations ran.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/labels"
)

// ErrDependencyViolation mirrors the provider refusing to delete a resource
// that other resources still reference.
var ErrDependencyViolation = errors.New("DependencyViolation: resource has dependent objects")

type network struct {
	cloud.Network
	tags map[string]string
	dns  bool
	gets int
}

type subnet struct {
	cloud.Subnet
	tags map[string]string
}

type gateway struct {
	cloud.Gateway
	tags map[string]string
}

type routeTable struct {
	cloud.RouteTable
	subnetByAssoc map[string]string
	tags          map[string]string
}

type securityGroup struct {
	cloud.SecurityGroup
	rules []cloud.Rule
	tags  map[string]string
}

type instance struct {
	cloud.ProvisionedNode
	tags map[string]string
}

// Provider is the in-memory provider.
type Provider struct {
	mu sync.Mutex

	Images []cloud.Image

	// FailOn makes the named operation return the error once per call.
	FailOn map[string]error

	networks       map[string]*network
	subnets        map[string]*subnet
	gateways       map[string]*gateway
	routeTables    map[string]*routeTable
	securityGroups map[string]*securityGroup
	instances      map[string]*instance

	calls    map[string]int
	nextID   int
	nextAddr int
}

var _ cloud.InfrastructureManager = (*Provider)(nil)

// New returns an empty provider with one available image.
func New() *Provider {
	return &Provider{
		Images: []cloud.Image{{ID: "img-1", Name: "amzn2-ami-hvm-2.0-x86_64-gp2"}},
		FailOn: make(map[string]error),

		networks:       make(map[string]*network),
		subnets:        make(map[string]*subnet),
		gateways:       make(map[string]*gateway),
		routeTables:    make(map[string]*routeTable),
		securityGroups: make(map[string]*securityGroup),
		instances:      make(map[string]*instance),
		calls:          make(map[string]int),
	}
}

// Calls returns how often op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// ResourceCount returns the number of live resources of all kinds.
func (p *Provider) ResourceCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	live := 0
	for _, in := range p.instances {
		if in.State != cloud.NodeTerminated {
			live++
		}
	}
	return live + len(p.networks) + len(p.subnets) + len(p.gateways) + len(p.routeTables) + len(p.securityGroups)
}

// NetworkCount returns the number of networks carrying the cluster tag.
func (p *Provider) NetworkCount(tag string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, nw := range p.networks {
		if nw.tags[labels.KeyCluster] == tag {
			n++
		}
	}
	return n
}

// SecurityGroupRules returns the rules stored on a security group.
func (p *Provider) SecurityGroupRules(id string) []cloud.Rule {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sg, ok := p.securityGroups[id]; ok {
		return append([]cloud.Rule(nil), sg.rules...)
	}
	return nil
}

// DNSEnabled reports whether DNS was enabled on the network.
func (p *Provider) DNSEnabled(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	nw, ok := p.networks[id]
	return ok && nw.dns
}

func (p *Provider) Provider() string { return "fake" }

func (p *Provider) Region() string { return "fake-region-1" }

// call records op and returns an injected failure, if any. Callers hold mu.
func (p *Provider) call(op string) error {
	p.calls[op]++
	if err, ok := p.FailOn[op]; ok {
		return cloud.NewOperationError(op, nil, err)
	}
	return nil
}

func (p *Provider) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%04d", prefix, p.nextID)
}

func notFound(op, id string) error {
	return cloud.NewOperationError(op, cloud.ErrNotFound, fmt.Errorf("%s does not exist", id))
}

func tagged(tags map[string]string, tag string) bool {
	return tags[labels.KeyCluster] == tag
}

func (p *Provider) FindNetwork(_ context.Context, tag string) (*cloud.Network, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("FindNetwork"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(p.networks) {
		if nw := p.networks[id]; tagged(nw.tags, tag) {
			out := nw.Network
			return &out, nil
		}
	}
	return nil, nil
}

func (p *Provider) CreateNetwork(_ context.Context, tag, cidr string, tags map[string]string) (*cloud.Network, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("CreateNetwork"); err != nil {
		return nil, err
	}
	nw := &network{
		Network: cloud.Network{ID: p.id("vpc"), Name: tag, CIDR: cidr, State: cloud.NetworkPending},
		tags:    copyTags(tags),
	}
	p.networks[nw.ID] = nw
	out := nw.Network
	return &out, nil
}

func (p *Provider) GetNetwork(_ context.Context, id string) (*cloud.Network, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("GetNetwork"); err != nil {
		return nil, err
	}
	nw, ok := p.networks[id]
	if !ok {
		return nil, notFound("GetNetwork", id)
	}
	nw.gets++
	if nw.gets > 1 {
		nw.State = cloud.NetworkAvailable
	}
	out := nw.Network
	return &out, nil
}

func (p *Provider) EnableNetworkDNS(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("EnableNetworkDNS"); err != nil {
		return err
	}
	nw, ok := p.networks[id]
	if !ok {
		return notFound("EnableNetworkDNS", id)
	}
	nw.dns = true
	return nil
}

func (p *Provider) EnsureInternetGateway(_ context.Context, tag, networkID string, tags map[string]string) (*cloud.Gateway, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("EnsureInternetGateway"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(p.gateways) {
		if gw := p.gateways[id]; tagged(gw.tags, tag) {
			if len(gw.AttachedNetworkIDs) == 0 {
				gw.AttachedNetworkIDs = []string{networkID}
			}
			out := gw.Gateway
			return &out, nil
		}
	}
	gw := &gateway{
		Gateway: cloud.Gateway{ID: p.id("igw"), AttachedNetworkIDs: []string{networkID}},
		tags:    copyTags(tags),
	}
	p.gateways[gw.ID] = gw
	out := gw.Gateway
	return &out, nil
}

func (p *Provider) EnsureSubnet(_ context.Context, tag, networkID, cidr string, tags map[string]string) (*cloud.Subnet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("EnsureSubnet"); err != nil {
		return nil, err
	}
	if _, ok := p.networks[networkID]; !ok {
		return nil, notFound("EnsureSubnet", networkID)
	}
	for _, id := range sortedIDs(p.subnets) {
		if sn := p.subnets[id]; tagged(sn.tags, tag) && sn.NetworkID == networkID {
			out := sn.Subnet
			return &out, nil
		}
	}
	sn := &subnet{
		Subnet: cloud.Subnet{ID: p.id("subnet"), NetworkID: networkID, CIDR: cidr},
		tags:   copyTags(tags),
	}
	p.subnets[sn.ID] = sn
	out := sn.Subnet
	return &out, nil
}

func (p *Provider) EnsureRouteTable(_ context.Context, tag, networkID, subnetID, _ string, tags map[string]string) (*cloud.RouteTable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("EnsureRouteTable"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(p.routeTables) {
		if rt := p.routeTables[id]; tagged(rt.tags, tag) {
			out := rt.RouteTable
			return &out, nil
		}
	}
	assoc := p.id("rtbassoc")
	rt := &routeTable{
		RouteTable:    cloud.RouteTable{ID: p.id("rtb"), NetworkID: networkID, AssociationIDs: []string{assoc}},
		subnetByAssoc: map[string]string{assoc: subnetID},
		tags:          copyTags(tags),
	}
	p.routeTables[rt.ID] = rt
	out := rt.RouteTable
	return &out, nil
}

func (p *Provider) EnsureSecurityGroup(_ context.Context, tag, networkID string, rules []cloud.Rule, tags map[string]string) (*cloud.SecurityGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("EnsureSecurityGroup"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(p.securityGroups) {
		if sg := p.securityGroups[id]; tagged(sg.tags, tag) {
			out := sg.SecurityGroup
			return &out, nil
		}
	}
	sg := &securityGroup{
		SecurityGroup: cloud.SecurityGroup{ID: p.id("sg"), Name: tag + "-sg", NetworkID: networkID},
		rules:         append([]cloud.Rule(nil), rules...),
		tags:          copyTags(tags),
	}
	p.securityGroups[sg.ID] = sg
	out := sg.SecurityGroup
	return &out, nil
}

func (p *Provider) ListImages(_ context.Context, filter cloud.ImageFilter) ([]cloud.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("ListImages"); err != nil {
		return nil, err
	}
	prefix := strings.SplitN(filter.NamePattern, "*", 2)[0]
	var out []cloud.Image
	for _, img := range p.Images {
		if strings.HasPrefix(img.Name, prefix) {
			out = append(out, img)
		}
	}
	return out, nil
}

func (p *Provider) RunInstances(_ context.Context, req cloud.LaunchRequest) ([]cloud.ProvisionedNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("RunInstances"); err != nil {
		return nil, err
	}
	if _, ok := p.subnets[req.SubnetID]; !ok {
		return nil, notFound("RunInstances", req.SubnetID)
	}
	nodes := make([]cloud.ProvisionedNode, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		in := &instance{
			ProvisionedNode: cloud.ProvisionedNode{
				InstanceID:     p.id("i"),
				Name:           req.Name,
				Role:           req.Role,
				State:          cloud.NodePending,
				PrivateAddress: fmt.Sprintf("10.0.1.%d", 10+len(p.instances)),
				BootScript:     req.BootScript,
			},
			tags: copyTags(req.Labels),
		}
		p.instances[in.InstanceID] = in
		nodes = append(nodes, in.ProvisionedNode)
	}
	return nodes, nil
}

func (p *Provider) DescribeInstances(_ context.Context, ids []string) ([]cloud.ProvisionedNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DescribeInstances"); err != nil {
		return nil, err
	}
	nodes := make([]cloud.ProvisionedNode, 0, len(ids))
	for _, id := range ids {
		in, ok := p.instances[id]
		if !ok {
			continue
		}
		switch in.State {
		case cloud.NodePending:
			in.State = cloud.NodeRunning
			p.nextAddr++
			in.PublicAddress = fmt.Sprintf("203.0.113.%d", p.nextAddr)
		case cloud.NodeShuttingDown:
			in.State = cloud.NodeTerminated
		}
		nodes = append(nodes, in.ProvisionedNode)
	}
	return nodes, nil
}

func (p *Provider) ListInstances(_ context.Context, tag string, role cloud.Role) ([]cloud.ProvisionedNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("ListInstances"); err != nil {
		return nil, err
	}
	var nodes []cloud.ProvisionedNode
	for _, id := range sortedIDs(p.instances) {
		in := p.instances[id]
		if !tagged(in.tags, tag) || in.State == cloud.NodeTerminated {
			continue
		}
		if role != "" && in.Role != role {
			continue
		}
		nodes = append(nodes, in.ProvisionedNode)
	}
	return nodes, nil
}

func (p *Provider) TerminateInstances(_ context.Context, ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("TerminateInstances"); err != nil {
		return err
	}
	for _, id := range ids {
		in, ok := p.instances[id]
		if !ok {
			return notFound("TerminateInstances", id)
		}
		if in.State != cloud.NodeTerminated {
			in.State = cloud.NodeShuttingDown
		}
	}
	return nil
}

func (p *Provider) ListSecurityGroups(_ context.Context, tag string) ([]cloud.SecurityGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("ListSecurityGroups"); err != nil {
		return nil, err
	}
	var out []cloud.SecurityGroup
	for _, id := range sortedIDs(p.securityGroups) {
		if sg := p.securityGroups[id]; tagged(sg.tags, tag) {
			out = append(out, sg.SecurityGroup)
		}
	}
	return out, nil
}

func (p *Provider) DeleteSecurityGroup(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DeleteSecurityGroup"); err != nil {
		return err
	}
	if _, ok := p.securityGroups[id]; !ok {
		return notFound("DeleteSecurityGroup", id)
	}
	for _, in := range p.instances {
		if in.State != cloud.NodeTerminated {
			return cloud.NewOperationError("DeleteSecurityGroup", nil, ErrDependencyViolation)
		}
	}
	delete(p.securityGroups, id)
	return nil
}

func (p *Provider) ListRouteTables(_ context.Context, tag string) ([]cloud.RouteTable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("ListRouteTables"); err != nil {
		return nil, err
	}
	var out []cloud.RouteTable
	for _, id := range sortedIDs(p.routeTables) {
		if rt := p.routeTables[id]; tagged(rt.tags, tag) {
			out = append(out, rt.RouteTable)
		}
	}
	return out, nil
}

func (p *Provider) DisassociateRouteTable(_ context.Context, associationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DisassociateRouteTable"); err != nil {
		return err
	}
	for _, rt := range p.routeTables {
		if _, ok := rt.subnetByAssoc[associationID]; ok {
			delete(rt.subnetByAssoc, associationID)
			rt.AssociationIDs = removeString(rt.AssociationIDs, associationID)
			return nil
		}
	}
	return notFound("DisassociateRouteTable", associationID)
}

func (p *Provider) DeleteRouteTable(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DeleteRouteTable"); err != nil {
		return err
	}
	rt, ok := p.routeTables[id]
	if !ok {
		return notFound("DeleteRouteTable", id)
	}
	if len(rt.AssociationIDs) > 0 {
		return cloud.NewOperationError("DeleteRouteTable", nil, ErrDependencyViolation)
	}
	delete(p.routeTables, id)
	return nil
}

func (p *Provider) ListGateways(_ context.Context, tag string) ([]cloud.Gateway, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("ListGateways"); err != nil {
		return nil, err
	}
	var out []cloud.Gateway
	for _, id := range sortedIDs(p.gateways) {
		if gw := p.gateways[id]; tagged(gw.tags, tag) {
			out = append(out, gw.Gateway)
		}
	}
	return out, nil
}

func (p *Provider) DetachGateway(_ context.Context, gatewayID, networkID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DetachGateway"); err != nil {
		return err
	}
	gw, ok := p.gateways[gatewayID]
	if !ok {
		return notFound("DetachGateway", gatewayID)
	}
	gw.AttachedNetworkIDs = removeString(gw.AttachedNetworkIDs, networkID)
	return nil
}

func (p *Provider) DeleteGateway(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DeleteGateway"); err != nil {
		return err
	}
	gw, ok := p.gateways[id]
	if !ok {
		return notFound("DeleteGateway", id)
	}
	if len(gw.AttachedNetworkIDs) > 0 {
		return cloud.NewOperationError("DeleteGateway", nil, ErrDependencyViolation)
	}
	delete(p.gateways, id)
	return nil
}

func (p *Provider) ListSubnets(_ context.Context, tag string) ([]cloud.Subnet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("ListSubnets"); err != nil {
		return nil, err
	}
	var out []cloud.Subnet
	for _, id := range sortedIDs(p.subnets) {
		if sn := p.subnets[id]; tagged(sn.tags, tag) {
			out = append(out, sn.Subnet)
		}
	}
	return out, nil
}

func (p *Provider) DeleteSubnet(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DeleteSubnet"); err != nil {
		return err
	}
	if _, ok := p.subnets[id]; !ok {
		return notFound("DeleteSubnet", id)
	}
	delete(p.subnets, id)
	return nil
}

func (p *Provider) ListNetworks(_ context.Context, tag string) ([]cloud.Network, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("ListNetworks"); err != nil {
		return nil, err
	}
	var out []cloud.Network
	for _, id := range sortedIDs(p.networks) {
		if nw := p.networks[id]; tagged(nw.tags, tag) {
			out = append(out, nw.Network)
		}
	}
	return out, nil
}

func (p *Provider) DeleteNetwork(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("DeleteNetwork"); err != nil {
		return err
	}
	if _, ok := p.networks[id]; !ok {
		return notFound("DeleteNetwork", id)
	}
	for _, sn := range p.subnets {
		if sn.NetworkID == id {
			return cloud.NewOperationError("DeleteNetwork", nil, ErrDependencyViolation)
		}
	}
	delete(p.networks, id)
	return nil
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func removeString(in []string, s string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
