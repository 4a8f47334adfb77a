// Package controller provides output adapters for displaying scan, plan and
// run results.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// UI is the interface commands and workflows render through.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	// DisplayScan renders the layer map of one scan.
	DisplayScan(ctx context.Context, scan m.ScanResult) error

	// DisplayTemplates renders the catalog grouped by category.
	DisplayTemplates(ctx context.Context, templates []m.MutationTemplate) error

	// DisplayPlan renders a plan without applying it (dry runs).
	DisplayPlan(ctx context.Context, plan m.MutationPlan) error

	// StartApply opens the progress display for an apply pass.
	StartApply(ctx context.Context, total int)

	// MutationResolved reports one resolved candidate.
	MutationResolved(ctx context.Context, mutation m.Mutation)

	// FinishApply closes the progress display and prints the run summary.
	FinishApply(ctx context.Context, manifest *m.RunManifest) error

	// DisplayRuns renders recorded run summaries.
	DisplayRuns(ctx context.Context, runs []adapter.RunSummary) error

	// DisplayRevert renders a reversal outcome.
	DisplayRevert(ctx context.Context, runID string, restored []m.Path, failures []string) error
}

// IsTTY reports whether the file is an interactive terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewUI picks the TUI for interactive terminals and the simple printer
// otherwise.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI(cmd)
	}

	return NewSimpleUI(cmd)
}
