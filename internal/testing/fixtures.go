package testing

import (
	"context"
	"testing"

	"github.com/go-logr/logr"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/cloud/fake"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/provisioning"
)

// Fixture bundles an in-memory provider with a provisioning context bound
// to it.
type Fixture struct {
	Provider *fake.Provider
	Observer *RecordingObserver
	Ctx      *provisioning.Context
}

// NewFixture creates a fixture for cfg with fast timeouts and a recording
// observer.
func NewFixture(t *testing.T, cfg *config.Config) *Fixture {
	t.Helper()
	p := fake.New()
	observer := NewRecordingObserver()
	return &Fixture{
		Provider: p,
		Observer: observer,
		Ctx:      NewProvisioningContext(TestContext(t), cfg, p, observer),
	}
}

// NewProvisioningContext builds a context around infra with fast timeouts.
// A nil observer discards output.
func NewProvisioningContext(ctx context.Context, cfg *config.Config, infra cloud.InfrastructureManager, observer provisioning.Observer) *provisioning.Context {
	pctx := provisioning.NewContext(ctx, cfg, infra, logr.Discard())
	pctx.Timeouts = config.FastTimeouts()
	if observer != nil {
		pctx.Observer = observer
	}
	return pctx
}
