package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	"ctxprobe.dev/pkg/ctxprobe/internal/controller"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// ScanArgs are the inputs of the scan workflow.
type ScanArgs struct {
	Repo    m.Path
	Include []string
	Exclude []string
}

// TemplatesArgs are the inputs of the template listing workflow.
type TemplatesArgs struct {
	RulesPath  m.Path
	Categories []string
	Layer      string
}

// MutateArgs are the inputs of the mutate workflow.
type MutateArgs struct {
	Repo       m.Path
	RulesPath  m.Path
	Categories []string
	Intensity  string
	Strategy   string
	Seed       *int64
	Layers     []string
	LayerLevel int
	Exclude    []string
	DryRun     bool
}

// RevertArgs are the inputs of the revert workflow.
type RevertArgs struct {
	Repo  m.Path
	RunID string
}

// RunsArgs are the inputs of the run listing workflow.
type RunsArgs struct {
	Repo m.Path
}

// Workflow orchestrates the user-facing operations: each method is one CLI
// command end to end.
type Workflow interface {
	Scan(ctx context.Context, args ScanArgs) error
	Templates(ctx context.Context, args TemplatesArgs) error
	Mutate(ctx context.Context, args MutateArgs) error
	Revert(ctx context.Context, args RevertArgs) error
	Runs(ctx context.Context, args RunsArgs) error
}

type workflow struct {
	fs       adapter.RepoFSAdapter
	runs     adapter.RunStore
	catalogs adapter.CatalogStore
	ui       controller.UI
	scanner  LayerScanner
	executor Executor
	payloads PayloadSource
}

// NewWorkflow creates a Workflow instance with the provided dependencies.
func NewWorkflow(
	fs adapter.RepoFSAdapter,
	runs adapter.RunStore,
	catalogs adapter.CatalogStore,
	ui controller.UI,
	scanner LayerScanner,
	executor Executor,
	payloads PayloadSource,
) Workflow {
	return &workflow{
		fs:       fs,
		runs:     runs,
		catalogs: catalogs,
		ui:       ui,
		scanner:  scanner,
		executor: executor,
		payloads: payloads,
	}
}

// Scan classifies the repository into context layers and displays the map.
func (w *workflow) Scan(ctx context.Context, args ScanArgs) error {
	scan, err := w.scanner.Scan(ctx, args.Repo, ScanOptions{Include: args.Include, Exclude: args.Exclude})
	if err != nil {
		slog.Error("scan failed", "repo", args.Repo, "error", err)
		return err
	}

	slog.Info("scan complete", "repo", args.Repo, "files", scan.TotalFiles(), "issues", len(scan.Issues))

	return w.ui.DisplayScan(ctx, scan)
}

// Templates loads the catalog and displays it, optionally filtered by
// category and layer.
func (w *workflow) Templates(ctx context.Context, args TemplatesArgs) error {
	catalog, err := LoadCatalog(ctx, w.catalogs, args.RulesPath)
	if err != nil {
		return err
	}

	templates := catalog.ByCategory(args.Categories)

	if args.Layer != "" {
		layer := m.Layer(args.Layer)
		if !m.KnownLayer(layer) {
			return &ConfigurationError{Reason: fmt.Sprintf("unknown layer %q", args.Layer)}
		}

		var filtered []m.MutationTemplate

		for _, template := range templates {
			if template.Layer == layer {
				filtered = append(filtered, template)
			}
		}

		templates = filtered
	}

	return w.ui.DisplayTemplates(ctx, templates)
}

// Mutate runs the full pipeline: scan, plan, then either display the plan
// (dry run) or apply it under the repository run lock.
func (w *workflow) Mutate(ctx context.Context, args MutateArgs) error {
	intensity, err := resolveIntensity(args.Intensity)
	if err != nil {
		return err
	}

	strategy, err := resolveStrategy(args.Strategy)
	if err != nil {
		return err
	}

	layers, err := resolveLayers(args.Layers, args.LayerLevel)
	if err != nil {
		return err
	}

	catalog, err := LoadCatalog(ctx, w.catalogs, args.RulesPath)
	if err != nil {
		return err
	}

	// Planned spans are only valid against the content they were computed
	// from, so the lock covers the whole scan-plan-apply pipeline. Dry runs
	// write nothing and stay lock-free.
	runID := ""

	if !args.DryRun {
		runID = NewRunID(time.Now())

		lock := adapter.NewRunLock(args.Repo)
		if err := lock.Acquire(runID); err != nil {
			return err
		}

		defer func() {
			if err := lock.Release(); err != nil {
				slog.Warn("releasing run lock failed", "repo", args.Repo, "error", err)
			}
		}()
	}

	scan, err := w.scanner.Scan(ctx, args.Repo, ScanOptions{Exclude: args.Exclude})
	if err != nil {
		return err
	}

	planner, err := NewPlanner(strategy, w.fs, w.payloads)
	if err != nil {
		return err
	}

	plan, err := planner.Plan(ctx, scan, catalog, PlanRequest{
		Categories:    args.Categories,
		Intensity:     intensity,
		AllowedLayers: layers,
		Seed:          args.Seed,
	})
	if err != nil {
		return err
	}

	if args.DryRun {
		return w.ui.DisplayPlan(ctx, plan)
	}

	w.ui.StartApply(ctx, len(plan.Candidates))

	manifest, applyErr := w.executor.Apply(ctx, plan, ApplyOptions{
		RepoPath:   args.Repo,
		Categories: args.Categories,
		RunID:      runID,
		Observer:   func(mutation m.Mutation) { w.ui.MutationResolved(ctx, mutation) },
	})
	if manifest == nil {
		return applyErr
	}

	slog.Info("mutation run finished",
		"run_id", manifest.RunID,
		"status", manifest.Status,
		"applied", manifest.AppliedCount(),
		"skipped", manifest.SkippedCount(),
		"failed", manifest.FailedCount())

	if err := w.ui.FinishApply(ctx, manifest); err != nil {
		return err
	}

	return applyErr
}

// Revert restores every file of a recorded run from its backup.
func (w *workflow) Revert(ctx context.Context, args RevertArgs) error {
	if args.RunID == "" {
		return &ConfigurationError{Reason: "revert requires a run id"}
	}

	manifest, err := w.runs.LoadManifest(ctx, args.Repo, args.RunID)
	if err != nil {
		return err
	}

	// Reverting writes repository files, so it takes the same per-repo lock
	// as an apply pass.
	lock := adapter.NewRunLock(args.Repo)
	if err := lock.Acquire(args.RunID); err != nil {
		return err
	}

	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("releasing run lock failed", "repo", args.Repo, "error", err)
		}
	}()

	report, err := w.executor.Revert(ctx, manifest)
	if err != nil {
		return err
	}

	failures := make([]string, 0, len(report.Failures))
	for _, failure := range report.Failures {
		failures = append(failures, fmt.Sprintf("%s: %v", failure.File, failure.Err))
	}

	if err := w.ui.DisplayRevert(ctx, args.RunID, report.Restored, failures); err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		return fmt.Errorf("revert of run %s left %d file(s) unrestored", args.RunID, len(report.Failures))
	}

	return nil
}

// Runs lists recorded runs, newest first.
func (w *workflow) Runs(ctx context.Context, args RunsArgs) error {
	runs, err := w.runs.ListRuns(ctx, args.Repo)
	if err != nil {
		return err
	}

	return w.ui.DisplayRuns(ctx, runs)
}

func resolveIntensity(raw string) (m.Intensity, error) {
	if raw == "" {
		return m.IntensityNormal, nil
	}

	intensity := m.Intensity(raw)
	if !m.KnownIntensity(intensity) {
		return "", &ConfigurationError{Reason: fmt.Sprintf("unknown intensity %q", raw)}
	}

	return intensity, nil
}

func resolveStrategy(raw string) (m.StrategyKind, error) {
	if raw == "" {
		return m.StrategyHeuristic, nil
	}

	strategy := m.StrategyKind(raw)
	if !m.KnownStrategy(strategy) {
		return "", &ConfigurationError{Reason: fmt.Sprintf("unknown strategy %q", raw)}
	}

	return strategy, nil
}

// resolveLayers turns the explicit layer list or the cumulative layer level
// into the allowed layer set. Explicit layers win over the level.
func resolveLayers(names []string, level int) ([]m.Layer, error) {
	if len(names) > 0 {
		layers := make([]m.Layer, 0, len(names))

		for _, name := range names {
			layer := m.Layer(name)
			if !m.KnownLayer(layer) {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown layer %q", name)}
			}

			layers = append(layers, layer)
		}

		return layers, nil
	}

	if level > 0 {
		return m.LayersForLevel(level), nil
	}

	return nil, nil
}
