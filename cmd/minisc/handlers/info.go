package handlers

import (
	"context"
	"fmt"
)

// Info handles the info command. Partial listings are still printed when
// one of the remote commands fails.
func Info(ctx context.Context, flags ClusterFlags) error {
	svc, cfg, done, err := setup(flags, nil)
	if err != nil {
		return err
	}
	defer done()

	info, err := svc.ClusterInfo(ctx, cfg)
	if info != nil {
		fmt.Fprint(stdout, renderInfo(cfg.ClusterTag, info))
	}
	if err != nil {
		return fmt.Errorf("failed to retrieve cluster information: %w", err)
	}
	return nil
}

// Helm handles the helm command.
func Helm(ctx context.Context, flags ClusterFlags) error {
	svc, cfg, done, err := setup(flags, nil)
	if err != nil {
		return err
	}
	defer done()

	report, err := svc.InstallCharts(ctx, cfg)
	if err != nil {
		return fmt.Errorf("helm setup failed: %w", err)
	}
	fmt.Fprint(stdout, renderHelmReport(cfg.ClusterTag, report))
	if err := report.Err(); err != nil {
		return fmt.Errorf("%d chart(s) failed: %w", len(report.Failed), err)
	}
	return nil
}
