package helm

import (
	"fmt"

	"go.uber.org/multierr"
)

// ChartFailure is a release that could not be installed.
type ChartFailure struct {
	Release string
	Err     error
}

// Report summarizes a chart installation run.
type Report struct {
	Installed []string
	Skipped   []string
	Failed    []ChartFailure

	// Releases is the raw "helm list -A" output after installation.
	Releases string
}

func (r *Report) fail(release string, err error) {
	r.Failed = append(r.Failed, ChartFailure{Release: release, Err: err})
}

// Err combines every chart failure, or returns nil.
func (r *Report) Err() error {
	var errs error
	for _, f := range r.Failed {
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Release, f.Err))
	}
	return errs
}
