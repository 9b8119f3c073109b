package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/microact/internal/compiler"
)

// Golden file states reported per scenario.
const (
	GoldenNone     = "none"     // no golden file, assertions only
	GoldenMatch    = "match"    // trace equals the golden file
	GoldenMismatch = "mismatch" // trace differs from the golden file
	GoldenUpdated  = "updated"  // golden file was (re)written
)

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// Catalog overrides every scenario's own catalog.
	Catalog *compiler.Catalog

	// Update rewrites golden files instead of comparing them.
	Update bool

	// Concurrency bounds parallel scenarios. <= 0 uses GOMAXPROCS.
	Concurrency int

	// MaxDepth applies to scenarios that do not set max_depth.
	MaxDepth int

	// Logger receives per-scenario logs. Defaults to a discard logger.
	Logger *slog.Logger
}

// ScenarioOutcome is the result of one scenario file in a suite.
type ScenarioOutcome struct {
	Path     string                  `json:"path"`
	Name     string                  `json:"name"`
	Pass     bool                    `json:"pass"`
	Golden   string                  `json:"golden"`
	Errors   []string                `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// SuiteResult summarizes a suite run.
type SuiteResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// FindScenarios returns the .yaml and .yml files under dir, optionally
// filtered by a glob on the file name without extension. Files under a
// golden directory are skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// GoldenPath returns the golden file for a scenario file:
// <dir>/golden/<name>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// RunSuite loads and runs every scenario file concurrently. Outcomes keep
// the order of paths. A scenario that fails to load or run is reported as
// failed; only context cancellation aborts the suite.
func RunSuite(ctx context.Context, paths []string, opts SuiteOptions) (*SuiteResult, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]ScenarioOutcome, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = runScenarioFile(path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: outcomes, Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func runScenarioFile(path string, opts SuiteOptions) ScenarioOutcome {
	out := ScenarioOutcome{
		Path:   path,
		Name:   filepath.Base(path),
		Golden: GoldenNone,
	}
	fail := func(format string, args ...any) ScenarioOutcome {
		out.Pass = false
		out.Errors = append(out.Errors, fmt.Sprintf(format, args...))
		return out
	}

	scenario, err := LoadScenario(path)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	out.Name = scenario.Name

	var runOpts []Option
	if opts.Catalog != nil {
		runOpts = append(runOpts, WithCatalog(opts.Catalog))
	}
	if opts.MaxDepth > 0 {
		runOpts = append(runOpts, WithMaxDepth(opts.MaxDepth))
	}
	if opts.Logger != nil {
		runOpts = append(runOpts, WithLogger(opts.Logger.With("scenario", scenario.Name)))
	}

	result, err := Run(scenario, runOpts...)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	out.Pass = result.Pass
	out.Errors = append(out.Errors, result.Errors...)
	out.Warnings = result.Warnings

	data, err := Snapshot(scenario, result).MarshalGolden()
	if err != nil {
		return fail("failed to marshal trace: %v", err)
	}

	goldenPath := GoldenPath(path)
	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return fail("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, data, 0644); err != nil {
			return fail("failed to write golden file: %v", err)
		}
		out.Golden = GoldenUpdated
		return out
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return out
	}
	if err != nil {
		return fail("failed to read golden file: %v", err)
	}
	if !bytes.Equal(golden, data) {
		out.Golden = GoldenMismatch
		return fail("trace does not match golden file (run with --update to regenerate)")
	}
	out.Golden = GoldenMatch
	return out
}
