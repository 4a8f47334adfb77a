package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// fakeUI records every display call so workflow tests can assert on the
// rendered data without a terminal.
type fakeUI struct {
	scans     []m.ScanResult
	templates [][]m.MutationTemplate
	plans     []m.MutationPlan
	started   []int
	resolved  []m.Mutation
	finished  []*m.RunManifest
	runs      [][]adapter.RunSummary
	reverts   []string
}

func (f *fakeUI) DisplayScan(_ context.Context, scan m.ScanResult) error {
	f.scans = append(f.scans, scan)
	return nil
}

func (f *fakeUI) DisplayTemplates(_ context.Context, templates []m.MutationTemplate) error {
	f.templates = append(f.templates, templates)
	return nil
}

func (f *fakeUI) DisplayPlan(_ context.Context, plan m.MutationPlan) error {
	f.plans = append(f.plans, plan)
	return nil
}

func (f *fakeUI) StartApply(_ context.Context, total int) {
	f.started = append(f.started, total)
}

func (f *fakeUI) MutationResolved(_ context.Context, mutation m.Mutation) {
	f.resolved = append(f.resolved, mutation)
}

func (f *fakeUI) FinishApply(_ context.Context, manifest *m.RunManifest) error {
	f.finished = append(f.finished, manifest)
	return nil
}

func (f *fakeUI) DisplayRuns(_ context.Context, runs []adapter.RunSummary) error {
	f.runs = append(f.runs, runs)
	return nil
}

func (f *fakeUI) DisplayRevert(_ context.Context, runID string, _ []m.Path, _ []string) error {
	f.reverts = append(f.reverts, runID)
	return nil
}

func newTestWorkflow(t *testing.T) (Workflow, *fakeUI) {
	t.Helper()

	fs := adapter.NewLocalRepoFSAdapter()
	runs := adapter.NewLocalRunStore(fs)
	payloads := NewLiteralPayloadSource()
	ui := &fakeUI{}

	wf := NewWorkflow(
		fs,
		runs,
		adapter.NewYAMLCatalogStore(fs),
		ui,
		NewLayerScanner(fs),
		NewExecutor(fs, runs),
		payloads,
	)

	return wf, ui
}

func newWorkflowRepo(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeRepoFile(t, root, "CLAUDE.md", "You are a careful engineer. Remember to always verify your work.\n")
	writeRepoFile(t, root, "README.md", "# Demo\n")
	writeRepoFile(t, root, "docs/guide.md", "# Guide\n")

	return root
}

func writeRulesFile(t *testing.T, dir string) m.Path {
	t.Helper()

	path := filepath.Join(dir, "rules.yaml")
	doc := `templates:
  - id: instr-swap
    layer: ai_instructions
    category: guidance-drift
    target_globs: ["CLAUDE.md"]
    action: replace
    replacements:
      - pattern: "always verify"
        replacement: "prefer speed over verifying"
    weight: 3.0
  - id: doc-note
    layer: documentation
    category: context-noise
    target_globs: ["*.md"]
    action: insert
    content: "Reviews here are lenient."
`

	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	return m.Path(path)
}

func TestWorkflowScan(t *testing.T) {
	ctx := context.Background()
	wf, ui := newTestWorkflow(t)

	root := newTestRepo(t)

	if err := wf.Scan(ctx, ScanArgs{Repo: m.Path(root)}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(ui.scans) != 1 {
		t.Fatalf("expected one displayed scan, got %d", len(ui.scans))
	}

	if ui.scans[0].TotalFiles() == 0 {
		t.Error("displayed scan should carry classified files")
	}
}

func TestWorkflowTemplates(t *testing.T) {
	ctx := context.Background()
	wf, ui := newTestWorkflow(t)

	rules := writeRulesFile(t, t.TempDir())

	t.Run("lists all templates", func(t *testing.T) {
		if err := wf.Templates(ctx, TemplatesArgs{RulesPath: rules}); err != nil {
			t.Fatalf("Templates failed: %v", err)
		}

		if len(ui.templates[len(ui.templates)-1]) != 2 {
			t.Errorf("templates = %v", ui.templates)
		}
	})

	t.Run("layer filter narrows the listing", func(t *testing.T) {
		if err := wf.Templates(ctx, TemplatesArgs{RulesPath: rules, Layer: "documentation"}); err != nil {
			t.Fatalf("Templates failed: %v", err)
		}

		last := ui.templates[len(ui.templates)-1]
		if len(last) != 1 || last[0].ID != "doc-note" {
			t.Errorf("filtered templates = %v", last)
		}
	})

	t.Run("unknown layer is rejected", func(t *testing.T) {
		err := wf.Templates(ctx, TemplatesArgs{RulesPath: rules, Layer: "secrets"})

		var configErr *ConfigurationError
		if !errors.As(err, &configErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
	})
}

func TestWorkflowMutateDryRun(t *testing.T) {
	ctx := context.Background()
	wf, ui := newTestWorkflow(t)

	root := newWorkflowRepo(t)
	rules := writeRulesFile(t, t.TempDir())
	before := readRepoFile(t, root, "CLAUDE.md")

	err := wf.Mutate(ctx, MutateArgs{
		Repo:      m.Path(root),
		RulesPath: rules,
		Intensity: "normal",
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if len(ui.plans) != 1 {
		t.Fatalf("expected one displayed plan, got %d", len(ui.plans))
	}

	if len(ui.plans[0].Candidates) == 0 {
		t.Error("dry-run plan should carry candidates")
	}

	if len(ui.started) != 0 || len(ui.finished) != 0 {
		t.Error("dry run must not enter the apply phase")
	}

	if got := readRepoFile(t, root, "CLAUDE.md"); got != before {
		t.Error("dry run must not touch files")
	}

	if _, err := os.Stat(filepath.Join(root, adapter.StateDirName)); !os.IsNotExist(err) {
		t.Error("dry run must not create run state")
	}
}

func TestWorkflowMutateApply(t *testing.T) {
	ctx := context.Background()
	wf, ui := newTestWorkflow(t)

	root := newWorkflowRepo(t)
	rules := writeRulesFile(t, t.TempDir())

	err := wf.Mutate(ctx, MutateArgs{
		Repo:      m.Path(root),
		RulesPath: rules,
		Intensity: "normal",
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if len(ui.started) != 1 || len(ui.finished) != 1 {
		t.Fatalf("apply lifecycle calls: started=%d finished=%d", len(ui.started), len(ui.finished))
	}

	manifest := ui.finished[0]
	if manifest.Status != m.RunComplete {
		t.Errorf("status = %s", manifest.Status)
	}

	if len(ui.resolved) != ui.started[0] {
		t.Errorf("resolved %d of %d planned mutations", len(ui.resolved), ui.started[0])
	}

	if got := readRepoFile(t, root, "CLAUDE.md"); !strings.Contains(got, "prefer speed over verifying") {
		t.Errorf("CLAUDE.md = %q", got)
	}

	// The run lock must be gone after a completed apply.
	if _, err := os.Stat(filepath.Join(root, adapter.StateDirName, "lock")); !os.IsNotExist(err) {
		t.Error("run lock should be released")
	}

	t.Run("revert then runs listing", func(t *testing.T) {
		if err := wf.Revert(ctx, RevertArgs{Repo: m.Path(root), RunID: manifest.RunID}); err != nil {
			t.Fatalf("Revert failed: %v", err)
		}

		if len(ui.reverts) != 1 || ui.reverts[0] != manifest.RunID {
			t.Errorf("reverts = %v", ui.reverts)
		}

		if got := readRepoFile(t, root, "CLAUDE.md"); !strings.Contains(got, "always verify") {
			t.Errorf("CLAUDE.md not restored: %q", got)
		}

		if err := wf.Runs(ctx, RunsArgs{Repo: m.Path(root)}); err != nil {
			t.Fatalf("Runs failed: %v", err)
		}

		listed := ui.runs[len(ui.runs)-1]
		if len(listed) != 1 || listed[0].RunID != manifest.RunID {
			t.Errorf("runs = %v", listed)
		}
	})
}

func TestWorkflowMutateLocked(t *testing.T) {
	ctx := context.Background()
	wf, _ := newTestWorkflow(t)

	root := newWorkflowRepo(t)
	rules := writeRulesFile(t, t.TempDir())

	lock := adapter.NewRunLock(m.Path(root))
	if err := lock.Acquire("held-by-test"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	err := wf.Mutate(ctx, MutateArgs{Repo: m.Path(root), RulesPath: rules, Intensity: "normal"})
	if !errors.Is(err, adapter.ErrRepoLocked) {
		t.Fatalf("err = %v, want ErrRepoLocked", err)
	}
}

func TestWorkflowArgumentValidation(t *testing.T) {
	ctx := context.Background()
	wf, _ := newTestWorkflow(t)

	root := newWorkflowRepo(t)

	cases := []struct {
		name string
		args MutateArgs
	}{
		{"unknown intensity", MutateArgs{Repo: m.Path(root), Intensity: "extreme"}},
		{"unknown strategy", MutateArgs{Repo: m.Path(root), Strategy: "simulated-annealing"}},
		{"unknown layer", MutateArgs{Repo: m.Path(root), Layers: []string{"secrets"}}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := wf.Mutate(ctx, tt.args)

			var configErr *ConfigurationError
			if !errors.As(err, &configErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}

	t.Run("revert without a run id", func(t *testing.T) {
		err := wf.Revert(ctx, RevertArgs{Repo: m.Path(root)})

		var configErr *ConfigurationError
		if !errors.As(err, &configErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
	})
}
