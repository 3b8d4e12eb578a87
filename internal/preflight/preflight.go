package preflight

import (
	"context"
	"fmt"
	"strings"

	"boxd/internal/config"
	"boxd/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the local checks a pipeline run depends on.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
}

// RunWithNetwork adds the list site reachability check to RunAll.
func RunWithNetwork(ctx context.Context, cfg *config.Config) []Result {
	results := RunAll(ctx, cfg)
	if cfg == nil {
		return results
	}
	return append(results, CheckListURL(ctx, cfg.Scrape.ListURL, cfg.Scrape.UserAgent))
}

// Err folds failed results into a single configuration error, or nil when
// every check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check environment", strings.Join(failed, "; "), nil)
}
