package provisioning

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
)

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	State    *State
	Infra    cloud.InfrastructureManager
	Observer Observer
	Metrics  *Metrics
	Timeouts *config.Timeouts
}

// NewContext creates a new provisioning context. A zero logger discards
// output; metrics are recorded into an unregistered set until the caller
// replaces Metrics.
func NewContext(ctx context.Context, cfg *config.Config, infra cloud.InfrastructureManager, logger logr.Logger) *Context {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	observer := NewLogObserver(logger).WithFields(map[string]string{
		"cluster":  cfg.ClusterTag,
		"provider": infra.Provider(),
	})
	return &Context{
		Context:  ctx,
		Config:   cfg,
		State:    NewState(),
		Infra:    infra,
		Observer: observer,
		Metrics:  NewMetrics(),
		Timeouts: config.LoadTimeouts(),
	}
}

// WithContext returns a shallow copy bound to ctx. State is shared.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}
