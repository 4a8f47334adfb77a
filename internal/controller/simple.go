package controller

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// SimpleUI implements UI using cobra Command's output writer.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// DisplayScan renders a per-layer file table.
func (s *SimpleUI) DisplayScan(ctx context.Context, scan m.ScanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"Layer", "File", "Confidence"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	for _, layer := range m.AllLayers {
		for _, entry := range scan.FilesFor(layer) {
			table.Append([]string{
				string(layer),
				string(entry.RelPath),
				fmt.Sprintf("%.2f", entry.ConfidenceFor(layer)),
			})
		}
	}

	table.SetFooter([]string{"Total Files", fmt.Sprintf("%d", scan.TotalFiles()), ""})
	table.Render()

	s.printf("\n%s", buffer.String())

	for _, issue := range scan.Issues {
		s.printf("scan issue: %s: %s\n", issue.Path, issue.Message)
	}

	return nil
}

// DisplayTemplates renders the catalog grouped by category.
func (s *SimpleUI) DisplayTemplates(ctx context.Context, templates []m.MutationTemplate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(templates) == 0 {
		s.printf("No templates found matching the criteria.\n")
		return nil
	}

	byCategory := make(map[string][]m.MutationTemplate)
	for _, template := range templates {
		byCategory[template.Category] = append(byCategory[template.Category], template)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}

	sort.Strings(categories)

	for _, category := range categories {
		group := byCategory[category]
		s.printf("\n[%s] (%d templates)\n", category, len(group))

		for _, template := range group {
			action := string(template.EffectiveAction())
			if template.EffectiveAction() == m.ActionReplace && len(template.Replacements) > 0 {
				pairs := make([]string, 0, len(template.Replacements))
				for _, rule := range template.Replacements {
					pairs = append(pairs, fmt.Sprintf("%q -> %q", rule.Pattern, rule.Replacement))
				}

				action = "replace: " + strings.Join(pairs, ", ")
			}

			s.printf("  %s\n", template.ID)
			s.printf("    layer: %s | %s\n", template.Layer, action)
			s.printf("    targets: %s\n", strings.Join(template.TargetGlobs, ", "))
		}
	}

	s.printf("\nTotal: %d templates\n", len(templates))

	return nil
}

// DisplayPlan renders the selected candidates of a dry run.
func (s *SimpleUI) DisplayPlan(ctx context.Context, plan m.MutationPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"File", "Template", "Action", "Layer"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, candidate := range plan.Candidates {
		table.Append([]string{
			string(candidate.Target.RelPath),
			candidate.TemplateID,
			string(candidate.Action),
			string(candidate.Layer),
		})
	}

	table.Render()

	s.printf("\n%s", buffer.String())
	s.printf("Strategy: %s | Intensity: %s | Candidates: %d (budget %d per layer)\n",
		plan.Strategy, plan.Intensity, len(plan.Candidates), plan.LayerBudget)

	return nil
}

// StartApply announces the apply pass.
func (s *SimpleUI) StartApply(ctx context.Context, total int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Applying %d mutation(s)\n", total)
}

// MutationResolved prints one candidate outcome.
func (s *SimpleUI) MutationResolved(ctx context.Context, mutation m.Mutation) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("  %-8s %s (template=%s)\n", mutation.Status, mutation.File, mutation.TemplateID)
}

// FinishApply prints the run summary.
func (s *SimpleUI) FinishApply(ctx context.Context, manifest *m.RunManifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\nrun_id: %s\n", manifest.RunID)
	s.printf("status: %s\n", manifest.Status)
	s.printf("applied: %d | skipped: %d | failed: %d\n",
		manifest.AppliedCount(), manifest.SkippedCount(), manifest.FailedCount())

	return nil
}

// DisplayRuns renders recorded runs newest first.
func (s *SimpleUI) DisplayRuns(ctx context.Context, runs []adapter.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(runs) == 0 {
		s.printf("No recorded runs.\n")
		return nil
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"Run", "Status", "Strategy", "Intensity", "Applied", "Skipped", "Failed"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, run := range runs {
		table.Append([]string{
			run.RunID,
			string(run.Status),
			string(run.Strategy),
			string(run.Intensity),
			fmt.Sprintf("%d", run.Applied),
			fmt.Sprintf("%d", run.Skipped),
			fmt.Sprintf("%d", run.Failed),
		})
	}

	table.Render()

	s.printf("\n%s", buffer.String())

	return nil
}

// DisplayRevert prints the reversal outcome per file.
func (s *SimpleUI) DisplayRevert(ctx context.Context, runID string, restored []m.Path, failures []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("run_id: %s\n", runID)
	s.printf("restored: %d file(s)\n", len(restored))

	for _, file := range restored {
		s.printf("  restored %s\n", file)
	}

	for _, failure := range failures {
		s.printf("  FAILED   %s\n", failure)
	}

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
