package controller

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

func newCapturedUI() (*SimpleUI, *bytes.Buffer) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	return NewSimpleUI(cmd), out
}

func TestSimpleUIDisplayScan(t *testing.T) {
	ui, out := newCapturedUI()

	scan := m.ScanResult{
		RepoPath: "/repo",
		Layers: map[m.Layer][]m.FileEntry{
			m.LayerAIInstructions: {
				{RelPath: "CLAUDE.md", Tags: []m.LayerTag{{Layer: m.LayerAIInstructions, Confidence: 0.95}}},
			},
			m.LayerDocumentation: {
				{RelPath: "README.md", Tags: []m.LayerTag{{Layer: m.LayerDocumentation, Confidence: 0.9}}},
			},
		},
		Issues: []m.ScanIssue{{Path: "secret.env", Message: "permission denied"}},
	}

	if err := ui.DisplayScan(context.Background(), scan); err != nil {
		t.Fatalf("DisplayScan failed: %v", err)
	}

	rendered := out.String()

	for _, want := range []string{"CLAUDE.md", "README.md", "ai_instructions", "0.95", "Total Files", "2", "scan issue: secret.env"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("output missing %q:\n%s", want, rendered)
		}
	}
}

func TestSimpleUIDisplayTemplates(t *testing.T) {
	ui, out := newCapturedUI()

	t.Run("empty set prints a notice", func(t *testing.T) {
		if err := ui.DisplayTemplates(context.Background(), nil); err != nil {
			t.Fatalf("DisplayTemplates failed: %v", err)
		}

		if !strings.Contains(out.String(), "No templates found") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("groups by category and shows replace pairs", func(t *testing.T) {
		out.Reset()

		templates := []m.MutationTemplate{
			{
				ID:          "instr-swap",
				Layer:       m.LayerAIInstructions,
				Category:    "guidance-drift",
				TargetGlobs: []string{"CLAUDE.md"},
				Action:      m.ActionReplace,
				Replacements: []m.ReplacementRule{
					{Pattern: "always verify", Replacement: "move fast"},
				},
			},
			{
				ID:          "doc-note",
				Layer:       m.LayerDocumentation,
				Category:    "context-noise",
				TargetGlobs: []string{"*.md", "docs/**"},
				Action:      m.ActionInsert,
				Content:     "a note",
			},
		}

		if err := ui.DisplayTemplates(context.Background(), templates); err != nil {
			t.Fatalf("DisplayTemplates failed: %v", err)
		}

		rendered := out.String()

		// Categories print in sorted order.
		noise := strings.Index(rendered, "[context-noise]")
		drift := strings.Index(rendered, "[guidance-drift]")

		if noise < 0 || drift < 0 || noise > drift {
			t.Errorf("category order wrong:\n%s", rendered)
		}

		for _, want := range []string{`"always verify" -> "move fast"`, "*.md, docs/**", "Total: 2 templates"} {
			if !strings.Contains(rendered, want) {
				t.Errorf("output missing %q:\n%s", want, rendered)
			}
		}
	})
}

func TestSimpleUIDisplayPlan(t *testing.T) {
	ui, out := newCapturedUI()

	plan := m.MutationPlan{
		Strategy:  m.StrategyGenetic,
		Intensity: m.IntensityNormal,
		Candidates: []m.MutationCandidate{
			{
				TemplateID: "doc-note",
				Target:     m.FileEntry{RelPath: "README.md"},
				Layer:      m.LayerDocumentation,
				Action:     m.ActionInsert,
			},
		},
		LayerBudget: 3,
	}

	if err := ui.DisplayPlan(context.Background(), plan); err != nil {
		t.Fatalf("DisplayPlan failed: %v", err)
	}

	rendered := out.String()

	for _, want := range []string{"README.md", "doc-note", "Strategy: genetic | Intensity: normal | Candidates: 1 (budget 3 per layer)"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("output missing %q:\n%s", want, rendered)
		}
	}
}

func TestSimpleUIApplyLifecycle(t *testing.T) {
	ui, out := newCapturedUI()
	ctx := context.Background()

	ui.StartApply(ctx, 2)
	ui.MutationResolved(ctx, m.Mutation{TemplateID: "doc-note", File: "README.md", Status: m.StatusApplied})
	ui.MutationResolved(ctx, m.Mutation{TemplateID: "dup", File: "README.md", Status: m.StatusSkipped})

	manifest := &m.RunManifest{
		RunID:  "20260823T120000-abcd1234",
		Status: m.RunComplete,
		Mutations: []m.Mutation{
			{Status: m.StatusApplied},
			{Status: m.StatusSkipped},
		},
	}

	if err := ui.FinishApply(ctx, manifest); err != nil {
		t.Fatalf("FinishApply failed: %v", err)
	}

	rendered := out.String()

	for _, want := range []string{
		"Applying 2 mutation(s)",
		"applied  README.md (template=doc-note)",
		"skipped  README.md (template=dup)",
		"run_id: 20260823T120000-abcd1234",
		"status: complete",
		"applied: 1 | skipped: 1 | failed: 0",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("output missing %q:\n%s", want, rendered)
		}
	}
}

func TestSimpleUIDisplayRuns(t *testing.T) {
	ui, out := newCapturedUI()

	t.Run("empty listing prints a notice", func(t *testing.T) {
		if err := ui.DisplayRuns(context.Background(), nil); err != nil {
			t.Fatalf("DisplayRuns failed: %v", err)
		}

		if !strings.Contains(out.String(), "No recorded runs.") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("renders one row per run", func(t *testing.T) {
		out.Reset()

		runs := []adapter.RunSummary{
			{RunID: "20260823T120001-bbbb2222", Status: m.RunComplete, Strategy: m.StrategyHeuristic, Intensity: m.IntensityNormal, Applied: 3},
			{RunID: "20260823T120000-aaaa1111", Status: m.RunPartial, Strategy: m.StrategyGenetic, Intensity: m.IntensityStrong, Failed: 1},
		}

		if err := ui.DisplayRuns(context.Background(), runs); err != nil {
			t.Fatalf("DisplayRuns failed: %v", err)
		}

		rendered := out.String()

		for _, want := range []string{"20260823T120001-bbbb2222", "20260823T120000-aaaa1111", "partial", "heuristic", "genetic"} {
			if !strings.Contains(rendered, want) {
				t.Errorf("output missing %q:\n%s", want, rendered)
			}
		}
	})
}

func TestSimpleUIDisplayRevert(t *testing.T) {
	ui, out := newCapturedUI()

	err := ui.DisplayRevert(
		context.Background(),
		"20260823T120000-abcd1234",
		[]m.Path{"README.md"},
		[]string{"docs/guide.md: checksum mismatch"},
	)
	if err != nil {
		t.Fatalf("DisplayRevert failed: %v", err)
	}

	rendered := out.String()

	for _, want := range []string{"restored: 1 file(s)", "restored README.md", "FAILED   docs/guide.md: checksum mismatch"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("output missing %q:\n%s", want, rendered)
		}
	}
}

func TestNewUISelectsImplementation(t *testing.T) {
	cmd := &cobra.Command{}

	if _, ok := NewUI(cmd, false).(*SimpleUI); !ok {
		t.Error("non-interactive output should use SimpleUI")
	}

	if _, ok := NewUI(cmd, true).(*TUI); !ok {
		t.Error("interactive output should use the TUI")
	}
}

func TestSimpleUIHonorsCancelledContext(t *testing.T) {
	ui, out := newCapturedUI()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ui.DisplayScan(ctx, m.ScanResult{}); err == nil {
		t.Error("expected context error")
	}

	ui.StartApply(ctx, 3)

	if out.Len() != 0 {
		t.Errorf("cancelled context must not render, got %q", out.String())
	}
}
