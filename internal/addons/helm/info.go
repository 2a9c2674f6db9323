package helm

import (
	"context"
	"fmt"
)

// ClusterInfo is the head node's view of the cluster.
type ClusterInfo struct {
	Nodes    string
	Releases string
	Pods     string
}

// Collect gathers node, release and pod listings from the head node.
// Each listing is attempted; the first failure is returned alongside
// whatever was collected.
func Collect(ctx context.Context, shell Shell) (*ClusterInfo, error) {
	info := &ClusterInfo{}
	steps := []struct {
		command string
		dst     *string
	}{
		{"kubectl get nodes", &info.Nodes},
		{"helm list -A", &info.Releases},
		{"kubectl get pods -A", &info.Pods},
	}

	var first error
	for _, s := range steps {
		res, err := shell.Run(ctx, s.command)
		if err := commandError(fmt.Sprintf("run %q", s.command), res, err); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		*s.dst = res.Stdout
	}
	return info, first
}
