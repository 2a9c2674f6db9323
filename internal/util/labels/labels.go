package labels

import "sort"

// Standard tag keys. The minisc.io prefix keeps them apart from user tags.
const (
	// KeyCluster identifies which cluster a resource belongs to.
	KeyCluster = "minisc.io/cluster"

	// KeyRole identifies the role of a node (head, worker).
	KeyRole = "minisc.io/role"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "minisc.io/managed-by"

	// KeyName is the display name both consoles show.
	KeyName = "Name"
)

// ManagedByMinisc is the value of KeyManagedBy on every created resource.
const ManagedByMinisc = "minisc"

// LabelBuilder provides a fluent interface for building resource tags.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new builder with the cluster tag pre-set.
func NewLabelBuilder(clusterTag string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyCluster:   clusterTag,
			KeyManagedBy: ManagedByMinisc,
		},
	}
}

// WithRole adds a role tag.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithName sets the display name tag.
func (lb *LabelBuilder) WithName(name string) *LabelBuilder {
	lb.labels[KeyName] = name
	return lb
}

// Merge adds all labels from the provided map. Reserved keys are not overridden.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		if k == KeyCluster || k == KeyManagedBy {
			continue
		}
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SortedKeys returns the keys of m in lexical order, for deterministic tag lists.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SelectorForCluster returns a key=value selector for all resources in a cluster.
func SelectorForCluster(clusterTag string) string {
	return KeyCluster + "=" + clusterTag
}
