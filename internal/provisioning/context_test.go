package provisioning

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
)

func TestNewState(t *testing.T) {
	t.Parallel()
	state := NewState()

	require.NotNil(t, state)
	assert.Nil(t, state.Topology)
	assert.Nil(t, state.Boundary)
	assert.Nil(t, state.Head)
	assert.Empty(t, state.Workers)
	assert.Empty(t, state.HeadAddress())
}

func TestState_HeadAddress(t *testing.T) {
	t.Parallel()
	state := NewState()

	state.Head = &cloud.ProvisionedNode{PrivateAddress: "10.0.1.10"}
	assert.Equal(t, "10.0.1.10", state.HeadAddress())

	state.Head.PublicAddress = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", state.HeadAddress())
}

func TestNewContext(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{ClusterTag: "test"}
	mockInfra := &cloud.MockClient{ProviderName: cloud.ProviderAWS}

	ctx := NewContext(context.Background(), cfg, mockInfra, logr.Discard())

	require.NotNil(t, ctx)
	assert.Equal(t, cfg, ctx.Config)
	assert.Equal(t, mockInfra, ctx.Infra)
	assert.NotNil(t, ctx.State)
	assert.NotNil(t, ctx.Observer)
	assert.NotNil(t, ctx.Metrics)
	assert.NotNil(t, ctx.Timeouts)
}

func TestNewContext_ZeroLogger(t *testing.T) {
	t.Parallel()
	ctx := NewContext(context.Background(), &config.Config{}, &cloud.MockClient{}, logr.Logger{})

	// Must not panic with a zero logger.
	ctx.Observer.Printf("hello %s", "world")
	LogPhaseStart(ctx.Observer, "network")
}

func TestContext_WithContext(t *testing.T) {
	t.Parallel()
	base := NewContext(context.Background(), &config.Config{}, &cloud.MockClient{}, logr.Discard())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	derived := base.WithContext(cancelled)
	assert.Error(t, derived.Err())
	assert.NoError(t, base.Err())
	assert.Same(t, base.State, derived.State)
}
