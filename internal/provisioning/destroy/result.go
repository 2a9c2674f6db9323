package destroy

import (
	"fmt"

	"go.uber.org/multierr"
)

// Resource kinds reported in a Result.
const (
	KindInstance      = "instance"
	KindSecurityGroup = "security_group"
	KindRouteTable    = "route_table"
	KindGateway       = "internet_gateway"
	KindSubnet        = "subnet"
	KindNetwork       = "network"
)

// ResourceRef identifies one provider resource.
type ResourceRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (r ResourceRef) String() string {
	return r.Kind + " " + r.ID
}

// ResourceFailure is a resource that could not be removed.
type ResourceFailure struct {
	ResourceRef
	Err error `json:"-"`
}

// Result lists what a teardown removed and what it could not.
type Result struct {
	Deleted []ResourceRef     `json:"deleted"`
	Failed  []ResourceFailure `json:"failed"`
}

// Err combines all failures, or returns nil when there were none.
func (r *Result) Err() error {
	var err error
	for _, f := range r.Failed {
		err = multierr.Append(err, fmt.Errorf("%s: %w", f.ResourceRef, f.Err))
	}
	return err
}

// Empty reports whether the teardown found nothing to do.
func (r *Result) Empty() bool {
	return len(r.Deleted) == 0 && len(r.Failed) == 0
}

func (r *Result) deleted(kind, id string) {
	r.Deleted = append(r.Deleted, ResourceRef{Kind: kind, ID: id})
}

func (r *Result) failed(kind, id string, err error) {
	r.Failed = append(r.Failed, ResourceFailure{ResourceRef: ResourceRef{Kind: kind, ID: id}, Err: err})
}
