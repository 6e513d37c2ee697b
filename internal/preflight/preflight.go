package preflight

import (
	"context"

	"snaplapse/internal/config"
	"snaplapse/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Screenshot directory", cfg.ScreenshotsDir()),
		CheckDirectoryAccess("Timelapse directory", cfg.TimelapsesDir()),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Free space", cfg.Paths.RootDir, MinFreeBytes),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, fromStatus(status))
	}
	results = append(results, fromStatus(deps.CheckFFmpegEncoder(ctx, cfg.FFmpegBinary())))
	return results
}

// Failed filters results down to failing checks.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func fromStatus(s deps.Status) Result {
	detail := s.Detail
	if s.Available {
		detail = s.Command
	}
	return Result{Name: s.Name, Passed: s.Available, Detail: detail}
}
