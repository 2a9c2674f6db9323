// Package provider selects the cloud implementation named in configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/platform/aws"
	"github.com/minisc/minisc/internal/platform/azure"
)

// New returns the infrastructure manager for cfg.Provider.
func New(ctx context.Context, cfg *config.Config) (cloud.InfrastructureManager, error) {
	switch cfg.Provider {
	case cloud.ProviderAWS:
		return aws.NewClient(ctx, cfg)
	case cloud.ProviderAzure:
		return azure.NewClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}
