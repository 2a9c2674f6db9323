package naming

import "fmt"

func ResourceGroup(tag string) string {
	return fmt.Sprintf("%s-rg", tag)
}

func Network(tag string) string {
	return fmt.Sprintf("%s-vnet", tag)
}

func Subnet(tag string) string {
	return fmt.Sprintf("%s-subnet", tag)
}

func RouteTable(tag string) string {
	return fmt.Sprintf("%s-rt", tag)
}

func Gateway(tag string) string {
	return fmt.Sprintf("%s-igw", tag)
}

func SecurityGroup(tag string) string {
	return fmt.Sprintf("%s-sg", tag)
}

// Node returns the instance name for a role. Workers share one name because
// they are launched as a single pool.
func Node(tag, role string) string {
	return fmt.Sprintf("%s-%s", tag, role)
}

func PublicIP(vm string) string {
	return fmt.Sprintf("%s-pip", vm)
}

func NIC(vm string) string {
	return fmt.Sprintf("%s-nic", vm)
}

func OSDisk(vm string) string {
	return fmt.Sprintf("%s-osdisk", vm)
}
