// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/minisc/minisc/internal/addons/helm"
	"github.com/minisc/minisc/internal/api"
	"github.com/minisc/minisc/internal/cluster"
	"github.com/minisc/minisc/internal/config"
	"github.com/minisc/minisc/internal/provisioning"
)

// ClusterFlags are accepted by every command that targets a cluster.
type ClusterFlags struct {
	ConfigPath string
	Provider   string
	Region     string
	ClusterTag string
	KeyName    string
	Verbose    bool
}

// Service is what the handlers need from *cluster.Manager.
type Service interface {
	api.Service
	InstallCharts(ctx context.Context, cfg *config.Config) (*helm.Report, error)
	Metrics() *provisioning.Metrics
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newService creates the cluster manager.
	newService = func(logger logr.Logger) Service {
		return cluster.NewManager(logger)
	}

	// loadConfig reads the config file and environment.
	loadConfig = config.Load

	// stdinIsTerminal reports whether prompts can be shown.
	stdinIsTerminal = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}

	// stdout receives rendered summaries.
	stdout io.Writer = os.Stdout
)

// newLogger builds the zap logger behind every handler. Verbose switches to
// the development config with debug output.
func newLogger(verbose bool) (*zap.Logger, logr.Logger, error) {
	var (
		zl  *zap.Logger
		err error
	)
	if verbose {
		zl, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.DisableStacktrace = true
		zl, err = cfg.Build()
	}
	if err != nil {
		return nil, logr.Discard(), fmt.Errorf("failed to create logger: %w", err)
	}
	return zl, zapr.NewLogger(zl), nil
}

// clusterConfig loads configuration and applies flag overrides, then
// defaults and validation.
func clusterConfig(flags ClusterFlags, override func(*config.Config)) (*config.Config, error) {
	cfg, err := loadConfig(flags.ConfigPath, flags.Provider)
	if err != nil {
		return nil, err
	}
	if flags.Region != "" {
		cfg.Region = flags.Region
	}
	if flags.ClusterTag != "" {
		cfg.ClusterTag = flags.ClusterTag
	}
	if flags.KeyName != "" {
		cfg.SSH.KeyName = flags.KeyName
	}
	if override != nil {
		override(cfg)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup builds the logger, service and configuration shared by handlers.
func setup(flags ClusterFlags, override func(*config.Config)) (Service, *config.Config, func(), error) {
	cfg, err := clusterConfig(flags, override)
	if err != nil {
		return nil, nil, nil, err
	}
	zl, logger, err := newLogger(flags.Verbose)
	if err != nil {
		return nil, nil, nil, err
	}
	return newService(logger), cfg, func() { _ = zl.Sync() }, nil
}
