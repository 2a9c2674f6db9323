package azure

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/async"
	"github.com/minisc/minisc/internal/util/labels"
	"github.com/minisc/minisc/internal/util/naming"
)

const ipConfigName = "ipconfig1"

// ListImages returns marketplace image versions for the publisher, offer and
// SKU, newest version first. Image IDs are URNs.
func (c *Client) ListImages(ctx context.Context, filter cloud.ImageFilter) ([]cloud.Image, error) {
	resp, err := c.images.List(ctx, c.location, filter.Publisher, filter.Offer, filter.SKU, nil)
	if err != nil {
		return nil, wrap("ListVirtualMachineImages", err)
	}

	versions := make([]string, 0, len(resp.VirtualMachineImageResourceArray))
	for _, img := range resp.VirtualMachineImageResourceArray {
		if img != nil && img.Name != nil {
			versions = append(versions, *img.Name)
		}
	}
	sort.SliceStable(versions, func(i, j int) bool { return compareVersions(versions[i], versions[j]) > 0 })

	images := make([]cloud.Image, 0, len(versions))
	for _, v := range versions {
		urn := strings.Join([]string{filter.Publisher, filter.Offer, filter.SKU, v}, ":")
		images = append(images, cloud.Image{ID: urn, Name: urn})
	}
	return images, nil
}

// compareVersions orders dotted numeric versions such as 24.04.202501010.
func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var na, nb int
		if i < len(pa) {
			na, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			nb, _ = strconv.Atoi(pb[i])
		}
		if na != nb {
			if na > nb {
				return 1
			}
			return -1
		}
	}
	return 0
}

func imageReference(urn string) (*armcompute.ImageReference, error) {
	parts := strings.Split(urn, ":")
	if len(parts) != 4 {
		return nil, cloud.NewOperationError("ParseImage", cloud.ErrImageNotFound, fmt.Errorf("image %q is not publisher:offer:sku:version", urn))
	}
	return &armcompute.ImageReference{
		Publisher: to.Ptr(parts[0]),
		Offer:     to.Ptr(parts[1]),
		SKU:       to.Ptr(parts[2]),
		Version:   to.Ptr(parts[3]),
	}, nil
}

// RunInstances creates the head as standalone virtual machines and workers
// as one scale set. The scale set is sized to req.Total and every member is
// returned, including those that were already running.
func (c *Client) RunInstances(ctx context.Context, req cloud.LaunchRequest) ([]cloud.ProvisionedNode, error) {
	image, err := imageReference(req.ImageID)
	if err != nil {
		return nil, err
	}
	if req.Role == cloud.RoleWorker {
		return c.createScaleSet(ctx, req, image)
	}

	nodes := make([]cloud.ProvisionedNode, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		name := req.Name
		if req.Count > 1 {
			name = fmt.Sprintf("%s-%d", req.Name, i)
		}
		node, err := c.createVM(ctx, name, req, image)
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (c *Client) createVM(ctx context.Context, name string, req cloud.LaunchRequest, image *armcompute.ImageReference) (cloud.ProvisionedNode, error) {
	tags := toTags(req.Labels)

	pipPoller, err := c.publicIPs.BeginCreateOrUpdate(ctx, c.resourceGroup, naming.PublicIP(name), armnetwork.PublicIPAddress{
		Location: to.Ptr(c.location),
		Tags:     tags,
		SKU: &armnetwork.PublicIPAddressSKU{
			Name: to.Ptr(armnetwork.PublicIPAddressSKUNameStandard),
		},
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{
			PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
			PublicIPAddressVersion:   to.Ptr(armnetwork.IPVersionIPv4),
		},
	}, nil)
	pip, err := wait(ctx, c, "CreatePublicIPAddress", pipPoller, err)
	if err != nil {
		return cloud.ProvisionedNode{}, err
	}

	nicPoller, err := c.nics.BeginCreateOrUpdate(ctx, c.resourceGroup, naming.NIC(name), armnetwork.Interface{
		Location: to.Ptr(c.location),
		Tags:     tags,
		Properties: &armnetwork.InterfacePropertiesFormat{
			NetworkSecurityGroup: &armnetwork.SecurityGroup{ID: to.Ptr(req.SecurityGroupID)},
			IPConfigurations: []*armnetwork.InterfaceIPConfiguration{{
				Name: to.Ptr(ipConfigName),
				Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
					Subnet:                    &armnetwork.Subnet{ID: to.Ptr(req.SubnetID)},
					PublicIPAddress:           &armnetwork.PublicIPAddress{ID: pip.ID},
					PrivateIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodDynamic),
				},
			}},
		},
	}, nil)
	nic, err := wait(ctx, c, "CreateNetworkInterface", nicPoller, err)
	if err != nil {
		return cloud.ProvisionedNode{}, err
	}

	vmPoller, err := c.vms.BeginCreateOrUpdate(ctx, c.resourceGroup, name, armcompute.VirtualMachine{
		Location: to.Ptr(c.location),
		Tags:     tags,
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(req.SizeClass)),
			},
			StorageProfile: &armcompute.StorageProfile{
				ImageReference: image,
				OSDisk: &armcompute.OSDisk{
					Name:         to.Ptr(naming.OSDisk(name)),
					CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
					DeleteOption: to.Ptr(armcompute.DiskDeleteOptionTypesDelete),
					ManagedDisk: &armcompute.ManagedDiskParameters{
						StorageAccountType: to.Ptr(armcompute.StorageAccountTypesStandardSSDLRS),
					},
				},
			},
			OSProfile: &armcompute.OSProfile{
				ComputerName:       to.Ptr(name),
				AdminUsername:      to.Ptr(req.AdminUser),
				CustomData:         to.Ptr(base64.StdEncoding.EncodeToString([]byte(req.BootScript))),
				LinuxConfiguration: linuxConfiguration(req),
			},
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{
					ID: nic.ID,
					Properties: &armcompute.NetworkInterfaceReferenceProperties{
						Primary:      to.Ptr(true),
						DeleteOption: to.Ptr(armcompute.DeleteOptionsDelete),
					},
				}},
			},
		},
	}, nil)
	vm, err := wait(ctx, c, "CreateVirtualMachine", vmPoller, err)
	if err != nil {
		return cloud.ProvisionedNode{}, err
	}

	node := toVMNode(&vm.VirtualMachine)
	node.PublicAddress = publicAddress(&pip.PublicIPAddress)
	node.PrivateAddress = privateAddress(&nic.Interface)
	node.BootScript = req.BootScript
	return node, nil
}

func linuxConfiguration(req cloud.LaunchRequest) *armcompute.LinuxConfiguration {
	return &armcompute.LinuxConfiguration{
		DisablePasswordAuthentication: to.Ptr(true),
		SSH: &armcompute.SSHConfiguration{
			PublicKeys: []*armcompute.SSHPublicKey{{
				Path:    to.Ptr(fmt.Sprintf("/home/%s/.ssh/authorized_keys", req.AdminUser)),
				KeyData: to.Ptr(strings.TrimSpace(req.PublicKey)),
			}},
		},
	}
}

func (c *Client) createScaleSet(ctx context.Context, req cloud.LaunchRequest, image *armcompute.ImageReference) ([]cloud.ProvisionedNode, error) {
	capacity := max(req.Total, req.Count)
	poller, err := c.scaleSets.BeginCreateOrUpdate(ctx, c.resourceGroup, req.Name, armcompute.VirtualMachineScaleSet{
		Location: to.Ptr(c.location),
		Tags:     toTags(req.Labels),
		SKU: &armcompute.SKU{
			Name:     to.Ptr(req.SizeClass),
			Tier:     to.Ptr("Standard"),
			Capacity: to.Ptr(int64(capacity)),
		},
		Properties: &armcompute.VirtualMachineScaleSetProperties{
			OrchestrationMode: to.Ptr(armcompute.OrchestrationModeUniform),
			Overprovision:     to.Ptr(false),
			UpgradePolicy:     &armcompute.UpgradePolicy{Mode: to.Ptr(armcompute.UpgradeModeManual)},
			VirtualMachineProfile: &armcompute.VirtualMachineScaleSetVMProfile{
				OSProfile: &armcompute.VirtualMachineScaleSetOSProfile{
					ComputerNamePrefix: to.Ptr(req.Name),
					AdminUsername:      to.Ptr(req.AdminUser),
					CustomData:         to.Ptr(base64.StdEncoding.EncodeToString([]byte(req.BootScript))),
					LinuxConfiguration: linuxConfiguration(req),
				},
				StorageProfile: &armcompute.VirtualMachineScaleSetStorageProfile{
					ImageReference: image,
					OSDisk: &armcompute.VirtualMachineScaleSetOSDisk{
						CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
						ManagedDisk: &armcompute.VirtualMachineScaleSetManagedDiskParameters{
							StorageAccountType: to.Ptr(armcompute.StorageAccountTypesStandardSSDLRS),
						},
					},
				},
				NetworkProfile: &armcompute.VirtualMachineScaleSetNetworkProfile{
					NetworkInterfaceConfigurations: []*armcompute.VirtualMachineScaleSetNetworkConfiguration{{
						Name: to.Ptr(naming.NIC(req.Name)),
						Properties: &armcompute.VirtualMachineScaleSetNetworkConfigurationProperties{
							Primary:              to.Ptr(true),
							NetworkSecurityGroup: &armcompute.SubResource{ID: to.Ptr(req.SecurityGroupID)},
							IPConfigurations: []*armcompute.VirtualMachineScaleSetIPConfiguration{{
								Name: to.Ptr(ipConfigName),
								Properties: &armcompute.VirtualMachineScaleSetIPConfigurationProperties{
									Primary: to.Ptr(true),
									Subnet:  &armcompute.APIEntityReference{ID: to.Ptr(req.SubnetID)},
									PublicIPAddressConfiguration: &armcompute.VirtualMachineScaleSetPublicIPAddressConfiguration{
										Name: to.Ptr(naming.PublicIP(req.Name)),
										SKU: &armcompute.PublicIPAddressSKU{
											Name: to.Ptr(armcompute.PublicIPAddressSKUNameStandard),
										},
										Properties: &armcompute.VirtualMachineScaleSetPublicIPAddressConfigurationProperties{},
									},
								},
							}},
						},
					}},
				},
			},
		},
	}, nil)
	if _, err := wait(ctx, c, "CreateVirtualMachineScaleSet", poller, err); err != nil {
		return nil, err
	}

	nodes, err := c.scaleSetNodes(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		nodes[i].Role = req.Role
		nodes[i].BootScript = req.BootScript
	}
	return nodes, nil
}

// DescribeInstances returns the current view of the given instances. An
// instance that no longer exists is reported as terminated.
func (c *Client) DescribeInstances(ctx context.Context, ids []string) ([]cloud.ProvisionedNode, error) {
	nodes := make([]cloud.ProvisionedNode, 0, len(ids))
	addrs := map[string]map[string]addresses{}

	for _, id := range ids {
		rid, err := arm.ParseResourceID(id)
		if err != nil {
			return nil, cloud.NewOperationError("DescribeInstances", cloud.ErrNotFound, err)
		}

		var node cloud.ProvisionedNode
		if scaleSet, ok := scaleSetName(rid); ok {
			node, err = c.describeScaleSetVM(ctx, scaleSet, rid.Name)
			if err == nil && node.State != cloud.NodeTerminated {
				if _, cached := addrs[scaleSet]; !cached {
					if addrs[scaleSet], err = c.scaleSetAddresses(ctx, scaleSet); err != nil {
						return nil, err
					}
				}
				a := addrs[scaleSet][strings.ToLower(node.InstanceID)]
				node.PublicAddress, node.PrivateAddress = a.public, a.private
			}
		} else {
			node, err = c.describeVM(ctx, rid.Name)
		}
		if cloud.IsNotFound(err) {
			node, err = cloud.ProvisionedNode{InstanceID: id, State: cloud.NodeTerminated}, nil
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ListInstances returns non-terminated head VMs and scale set instances of
// the cluster.
func (c *Client) ListInstances(ctx context.Context, tag string, role cloud.Role) ([]cloud.ProvisionedNode, error) {
	var nodes []cloud.ProvisionedNode

	vmPager := c.vms.NewListPager(c.resourceGroup, nil)
	for vmPager.More() {
		page, err := vmPager.NextPage(ctx)
		if err != nil {
			if err = wrap("ListVirtualMachines", err); cloud.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, vm := range page.Value {
			if vm == nil || !ownedBy(vm.Tags, tag) || !roleMatches(vm.Tags, role) {
				continue
			}
			node, err := c.describeVM(ctx, str(vm.Name))
			if cloud.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}

	setPager := c.scaleSets.NewListPager(c.resourceGroup, nil)
	for setPager.More() {
		page, err := setPager.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListVirtualMachineScaleSets", err)
		}
		for _, set := range page.Value {
			if set == nil || !ownedBy(set.Tags, tag) || !roleMatches(set.Tags, role) {
				continue
			}
			members, err := c.scaleSetNodes(ctx, str(set.Name))
			if err != nil {
				return nil, err
			}
			for _, n := range members {
				n.Role = cloud.Role(tagValue(set.Tags, labels.KeyRole))
				nodes = append(nodes, n)
			}
		}
	}

	live := nodes[:0]
	for _, n := range nodes {
		if n.State != cloud.NodeTerminated {
			live = append(live, n)
		}
	}
	return live, nil
}

func roleMatches(tags map[string]*string, role cloud.Role) bool {
	return role == "" || tagValue(tags, labels.KeyRole) == string(role)
}

// TerminateInstances deletes standalone VMs with their NIC and public IP
// in parallel, and removes scale set instances. A scale set left without instances is
// deleted as well.
func (c *Client) TerminateInstances(ctx context.Context, ids []string) error {
	byScaleSet := map[string][]*string{}
	var (
		order []string
		vms   []async.Task
	)

	for _, id := range ids {
		rid, err := arm.ParseResourceID(id)
		if err != nil {
			return cloud.NewOperationError("TerminateInstances", cloud.ErrNotFound, err)
		}
		if scaleSet, ok := scaleSetName(rid); ok {
			if _, seen := byScaleSet[scaleSet]; !seen {
				order = append(order, scaleSet)
			}
			byScaleSet[scaleSet] = append(byScaleSet[scaleSet], to.Ptr(rid.Name))
			continue
		}
		name := rid.Name
		vms = append(vms, async.Task{Name: "vm " + name, Func: func(ctx context.Context) error {
			return c.deleteVM(ctx, name)
		}})
	}

	if err := async.RunParallel(ctx, vms); err != nil {
		return err
	}

	for _, scaleSet := range order {
		poller, err := c.scaleSets.BeginDeleteInstances(ctx, c.resourceGroup, scaleSet,
			armcompute.VirtualMachineScaleSetVMInstanceRequiredIDs{InstanceIDs: byScaleSet[scaleSet]}, nil)
		if _, err := wait(ctx, c, "DeleteScaleSetInstances", poller, err); err != nil && !cloud.IsNotFound(err) {
			return err
		}
		remaining, err := c.scaleSetNodes(ctx, scaleSet)
		if err != nil && !cloud.IsNotFound(err) {
			return err
		}
		if len(remaining) == 0 {
			setPoller, err := c.scaleSets.BeginDelete(ctx, c.resourceGroup, scaleSet, nil)
			if _, err := wait(ctx, c, "DeleteVirtualMachineScaleSet", setPoller, err); err != nil && !cloud.IsNotFound(err) {
				return err
			}
		}
	}
	return nil
}

func (c *Client) deleteVM(ctx context.Context, name string) error {
	vmPoller, err := c.vms.BeginDelete(ctx, c.resourceGroup, name, nil)
	if _, err := wait(ctx, c, "DeleteVirtualMachine", vmPoller, err); err != nil && !cloud.IsNotFound(err) {
		return err
	}
	nicPoller, err := c.nics.BeginDelete(ctx, c.resourceGroup, naming.NIC(name), nil)
	if _, err := wait(ctx, c, "DeleteNetworkInterface", nicPoller, err); err != nil && !cloud.IsNotFound(err) {
		return err
	}
	pipPoller, err := c.publicIPs.BeginDelete(ctx, c.resourceGroup, naming.PublicIP(name), nil)
	if _, err := wait(ctx, c, "DeletePublicIPAddress", pipPoller, err); err != nil && !cloud.IsNotFound(err) {
		return err
	}
	return nil
}

func (c *Client) describeVM(ctx context.Context, name string) (cloud.ProvisionedNode, error) {
	resp, err := c.vms.Get(ctx, c.resourceGroup, name, &armcompute.VirtualMachinesClientGetOptions{
		Expand: to.Ptr(armcompute.InstanceViewTypesInstanceView),
	})
	if err != nil {
		return cloud.ProvisionedNode{}, wrap("GetVirtualMachine", err)
	}
	node := toVMNode(&resp.VirtualMachine)

	pip, err := c.publicIPs.Get(ctx, c.resourceGroup, naming.PublicIP(name), nil)
	if err = wrap("GetPublicIPAddress", err); err != nil && !cloud.IsNotFound(err) {
		return cloud.ProvisionedNode{}, err
	}
	node.PublicAddress = publicAddress(&pip.PublicIPAddress)

	nic, err := c.nics.Get(ctx, c.resourceGroup, naming.NIC(name), nil)
	if err = wrap("GetNetworkInterface", err); err != nil && !cloud.IsNotFound(err) {
		return cloud.ProvisionedNode{}, err
	}
	node.PrivateAddress = privateAddress(&nic.Interface)
	return node, nil
}

func (c *Client) describeScaleSetVM(ctx context.Context, scaleSet, instanceID string) (cloud.ProvisionedNode, error) {
	resp, err := c.scaleSetVMs.Get(ctx, c.resourceGroup, scaleSet, instanceID, &armcompute.VirtualMachineScaleSetVMsClientGetOptions{
		Expand: to.Ptr(armcompute.InstanceViewTypesInstanceView),
	})
	if err != nil {
		return cloud.ProvisionedNode{}, wrap("GetScaleSetVM", err)
	}
	return toScaleSetNode(&resp.VirtualMachineScaleSetVM), nil
}

// scaleSetNodes lists the instances of a scale set with their addresses.
func (c *Client) scaleSetNodes(ctx context.Context, scaleSet string) ([]cloud.ProvisionedNode, error) {
	addrs, err := c.scaleSetAddresses(ctx, scaleSet)
	if err != nil {
		return nil, err
	}

	var nodes []cloud.ProvisionedNode
	pager := c.scaleSetVMs.NewListPager(c.resourceGroup, scaleSet, &armcompute.VirtualMachineScaleSetVMsClientListOptions{
		Expand: to.Ptr("instanceView"),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListScaleSetVMs", err)
		}
		for _, vm := range page.Value {
			if vm == nil {
				continue
			}
			node := toScaleSetNode(vm)
			a := addrs[strings.ToLower(node.InstanceID)]
			node.PublicAddress, node.PrivateAddress = a.public, a.private
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

type addresses struct {
	public  string
	private string
}

// scaleSetAddresses maps lower-cased instance resource IDs to their
// addresses. Scale set NICs and public IPs are only reachable through the
// scale set listing APIs.
func (c *Client) scaleSetAddresses(ctx context.Context, scaleSet string) (map[string]addresses, error) {
	out := map[string]addresses{}

	nicPager := c.nics.NewListVirtualMachineScaleSetNetworkInterfacesPager(c.resourceGroup, scaleSet, nil)
	for nicPager.More() {
		page, err := nicPager.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListScaleSetNetworkInterfaces", err)
		}
		for _, nic := range page.Value {
			if nic == nil || nic.Properties == nil || nic.Properties.VirtualMachine == nil {
				continue
			}
			key := strings.ToLower(str(nic.Properties.VirtualMachine.ID))
			a := out[key]
			a.private = privateAddress(nic)
			out[key] = a
		}
	}

	pipPager := c.publicIPs.NewListVirtualMachineScaleSetPublicIPAddressesPager(c.resourceGroup, scaleSet, nil)
	for pipPager.More() {
		page, err := pipPager.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListScaleSetPublicIPAddresses", err)
		}
		for _, pip := range page.Value {
			if pip == nil || pip.Properties == nil || pip.Properties.IPConfiguration == nil {
				continue
			}
			key := instanceOfIPConfig(str(pip.Properties.IPConfiguration.ID))
			a := out[key]
			a.public = publicAddress(pip)
			out[key] = a
		}
	}
	return out, nil
}

// instanceOfIPConfig trims ".../virtualMachines/0/networkInterfaces/..." to
// the lower-cased instance ID.
func instanceOfIPConfig(id string) string {
	lower := strings.ToLower(id)
	if i := strings.Index(lower, "/networkinterfaces/"); i >= 0 {
		return lower[:i]
	}
	return lower
}

// scaleSetName returns the parent scale set of a scale set instance ID.
func scaleSetName(rid *arm.ResourceID) (string, bool) {
	types := rid.ResourceType.Types
	if len(types) == 2 && strings.EqualFold(types[0], "virtualMachineScaleSets") &&
		strings.EqualFold(types[1], "virtualMachines") && rid.Parent != nil {
		return rid.Parent.Name, true
	}
	return "", false
}

func publicAddress(pip *armnetwork.PublicIPAddress) string {
	if pip == nil || pip.Properties == nil {
		return ""
	}
	return str(pip.Properties.IPAddress)
}

func privateAddress(nic *armnetwork.Interface) string {
	if nic == nil || nic.Properties == nil {
		return ""
	}
	for _, cfg := range nic.Properties.IPConfigurations {
		if cfg != nil && cfg.Properties != nil && cfg.Properties.PrivateIPAddress != nil {
			return *cfg.Properties.PrivateIPAddress
		}
	}
	return ""
}

func toVMNode(vm *armcompute.VirtualMachine) cloud.ProvisionedNode {
	node := cloud.ProvisionedNode{
		InstanceID: str(vm.ID),
		Name:       str(vm.Name),
		Role:       cloud.Role(tagValue(vm.Tags, labels.KeyRole)),
		State:      cloud.NodePending,
	}
	if p := vm.Properties; p != nil {
		var statuses []*armcompute.InstanceViewStatus
		if p.InstanceView != nil {
			statuses = p.InstanceView.Statuses
		}
		node.State = nodeState(str(p.ProvisioningState), statuses)
	}
	return node
}

func toScaleSetNode(vm *armcompute.VirtualMachineScaleSetVM) cloud.ProvisionedNode {
	node := cloud.ProvisionedNode{
		InstanceID: str(vm.ID),
		Name:       str(vm.Name),
		Role:       cloud.Role(tagValue(vm.Tags, labels.KeyRole)),
		State:      cloud.NodePending,
	}
	if p := vm.Properties; p != nil {
		var statuses []*armcompute.InstanceViewStatus
		if p.InstanceView != nil {
			statuses = p.InstanceView.Statuses
		}
		node.State = nodeState(str(p.ProvisioningState), statuses)
	}
	return node
}

// nodeState combines the ARM provisioning state with the power state from
// the instance view.
func nodeState(provisioning string, statuses []*armcompute.InstanceViewStatus) cloud.NodeState {
	if strings.EqualFold(provisioning, "Deleting") {
		return cloud.NodeShuttingDown
	}
	for _, s := range statuses {
		if s == nil {
			continue
		}
		power, ok := strings.CutPrefix(str(s.Code), "PowerState/")
		if !ok {
			continue
		}
		switch power {
		case "running":
			return cloud.NodeRunning
		case "starting":
			return cloud.NodePending
		default:
			return cloud.NodeUnknown
		}
	}
	if strings.EqualFold(provisioning, "Failed") {
		return cloud.NodeUnknown
	}
	return cloud.NodePending
}
