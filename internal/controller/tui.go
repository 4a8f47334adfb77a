package controller

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

const applyBarWidth = 24

var (
	appliedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
	faintStyle    = lipgloss.NewStyle().Faint(true)
	summaryBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// TUI implements UI using Bubble Tea for interactive display. Tabular
// displays reuse the simple printer; the scan view paginates and the apply
// pass shows a progress bar.
type TUI struct {
	cmd    *cobra.Command
	simple *SimpleUI

	applyBar   progress.Model
	applyTotal int
	applyDone  int
}

// NewTUI creates a new TUI.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{
		cmd:    cmd,
		simple: NewSimpleUI(cmd),
	}
}

// DisplayScan renders the layer map, paginating when it does not fit the
// terminal.
func (p *TUI) DisplayScan(ctx context.Context, scan m.ScanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	model := newScanModel(scan)

	if f, ok := p.cmd.OutOrStdout().(*os.File); ok {
		width, height, err := term.GetSize(int(f.Fd()))
		if err == nil {
			model.height = height
			model.width = width
		}
	}

	if !model.needsPagination() {
		_, err := fmt.Fprint(p.cmd.OutOrStdout(), model.View())
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(p.cmd.OutOrStdout()), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

// DisplayTemplates renders the catalog grouped by category.
func (p *TUI) DisplayTemplates(ctx context.Context, templates []m.MutationTemplate) error {
	return p.simple.DisplayTemplates(ctx, templates)
}

// DisplayPlan renders a plan without applying it.
func (p *TUI) DisplayPlan(ctx context.Context, plan m.MutationPlan) error {
	return p.simple.DisplayPlan(ctx, plan)
}

// StartApply opens the progress display for an apply pass.
func (p *TUI) StartApply(ctx context.Context, total int) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.applyBar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(applyBarWidth))
	p.applyTotal = total
	p.applyDone = 0

	fmt.Fprintf(p.cmd.OutOrStdout(), "%s\n", headerStyle.Render(fmt.Sprintf("Applying %d mutation(s)", total)))
}

// MutationResolved prints one resolved candidate with cumulative progress.
func (p *TUI) MutationResolved(ctx context.Context, mutation m.Mutation) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.applyDone++

	fraction := 1.0
	if p.applyTotal > 0 {
		fraction = float64(p.applyDone) / float64(p.applyTotal)
	}

	var style lipgloss.Style

	switch mutation.Status {
	case m.StatusApplied:
		style = appliedStyle
	case m.StatusFailed:
		style = failedStyle
	default:
		style = skippedStyle
	}

	fmt.Fprintf(p.cmd.OutOrStdout(), "%s %s %s %s\n",
		p.applyBar.ViewAs(fraction),
		style.Render(fmt.Sprintf("%-8s", mutation.Status)),
		mutation.File,
		faintStyle.Render("("+mutation.TemplateID+")"))
}

// FinishApply closes the progress display and prints the run summary.
func (p *TUI) FinishApply(ctx context.Context, manifest *m.RunManifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	summary := fmt.Sprintf("run_id: %s\nstatus: %s\napplied: %d | skipped: %d | failed: %d",
		manifest.RunID, manifest.Status,
		manifest.AppliedCount(), manifest.SkippedCount(), manifest.FailedCount())

	_, err := fmt.Fprintf(p.cmd.OutOrStdout(), "\n%s\n", summaryBorder.Render(summary))

	return err
}

// DisplayRuns renders recorded run summaries.
func (p *TUI) DisplayRuns(ctx context.Context, runs []adapter.RunSummary) error {
	return p.simple.DisplayRuns(ctx, runs)
}

// DisplayRevert renders a reversal outcome.
func (p *TUI) DisplayRevert(ctx context.Context, runID string, restored []m.Path, failures []string) error {
	return p.simple.DisplayRevert(ctx, runID, restored, failures)
}

// scanRow is one display line of the scan view.
type scanRow struct {
	layer      m.Layer
	file       string
	confidence float64
}

// scanModel is the Bubble Tea model for paginated scan output.
type scanModel struct {
	rows     []scanRow
	issues   []m.ScanIssue
	total    int
	height   int
	width    int
	offset   int
	quitting bool
}

func newScanModel(scan m.ScanResult) scanModel {
	var rows []scanRow

	for _, layer := range m.AllLayers {
		for _, entry := range scan.FilesFor(layer) {
			rows = append(rows, scanRow{
				layer:      layer,
				file:       string(entry.RelPath),
				confidence: entry.ConfidenceFor(layer),
			})
		}
	}

	return scanModel{
		rows:   rows,
		issues: scan.Issues,
		total:  scan.TotalFiles(),
	}
}

func (sm scanModel) Init() tea.Cmd {
	return nil
}

func (sm scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		sm.height = msg.Height
		sm.width = msg.Width

		return sm, nil

	case tea.KeyMsg:
		return sm.handleKeyPress(msg)
	}

	return sm, nil
}

//nolint:exhaustive // only navigation keys are handled
func (sm scanModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		sm.quitting = true
		return sm, tea.Quit
	default:
	}

	switch msg.String() {
	case "q":
		sm.quitting = true
		return sm, tea.Quit

	case "down", "j":
		sm.offset++
		if max := sm.maxOffset(); sm.offset > max {
			sm.offset = max
		}

		return sm, nil

	case "up", "k":
		sm.offset--
		if sm.offset < 0 {
			sm.offset = 0
		}

		return sm, nil

	case "g", "home":
		sm.offset = 0

		return sm, nil

	case "G", "end":
		sm.offset = sm.maxOffset()

		return sm, nil

	case "d", "pgdown":
		sm.offset += sm.itemsPerPage()
		if max := sm.maxOffset(); sm.offset > max {
			sm.offset = max
		}

		return sm, nil

	case "u", "pgup":
		sm.offset -= sm.itemsPerPage()
		if sm.offset < 0 {
			sm.offset = 0
		}

		return sm, nil
	}

	return sm, nil
}

// itemsPerPage calculates how many rows fit on screen after the header,
// total line and navigation footer.
func (sm scanModel) itemsPerPage() int {
	if sm.height == 0 {
		return 10
	}

	reserved := 9

	available := sm.height - reserved
	if available < 1 {
		return 1
	}

	return available
}

func (sm scanModel) maxOffset() int {
	perPage := sm.itemsPerPage()
	if perPage <= 0 {
		return 0
	}

	max := len(sm.rows) - perPage
	if max < 0 {
		return 0
	}

	return max
}

func (sm scanModel) needsPagination() bool {
	if len(sm.rows) == 0 {
		return false
	}

	return len(sm.rows) > sm.itemsPerPage() && sm.height > 0
}

func (sm scanModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Context layer scan"))
	b.WriteString("\n\n")

	if len(sm.rows) == 0 {
		b.WriteString("  no classifiable files found\n")
		return b.String()
	}

	needsPagination := sm.needsPagination()

	start := sm.offset

	end := start + sm.itemsPerPage()
	if end > len(sm.rows) {
		end = len(sm.rows)
	}

	display := sm.rows
	if needsPagination {
		display = sm.rows[start:end]
	}

	for _, row := range display {
		fmt.Fprintf(&b, "  %-16s %s %s\n",
			row.layer, row.file, faintStyle.Render(fmt.Sprintf("%.2f", row.confidence)))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "  total: %d file(s), %d issue(s)\n", sm.total, len(sm.issues))

	if !needsPagination {
		for _, issue := range sm.issues {
			fmt.Fprintf(&b, "  issue: %s: %s\n", issue.Path, issue.Message)
		}
	}

	if needsPagination {
		b.WriteString("\n")
		fmt.Fprintf(&b, "  Showing %d-%d of %d\n", start+1, end, len(sm.rows))
		b.WriteString("  ↑/k: up | ↓/j: down | g: top | G: bottom | q: quit\n")
	}

	return b.String()
}
