package compute

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minisc/minisc/internal/bootscript"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/provisioning/infrastructure"
	testutil "github.com/minisc/minisc/internal/testing"
)

func newTestProvisioner(t *testing.T) *Provisioner {
	t.Helper()
	renderer, err := bootscript.NewRenderer("", "")
	require.NoError(t, err)
	return NewProvisioner(renderer)
}

// readyFixture returns a fixture whose network and security boundary exist.
func readyFixture(t *testing.T, cfg *config.Config) *testutil.Fixture {
	t.Helper()
	fx := testutil.NewFixture(t, cfg)
	require.NoError(t, infrastructure.NewProvisioner().Provision(fx.Ctx))
	return fx
}
