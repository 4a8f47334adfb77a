package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// NewRunID builds a sortable run identifier: UTC timestamp plus a short
// random suffix. Lexicographic order equals creation order, which the run
// listing relies on.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8]
}

// ApplyOptions carries the run-level inputs of one apply pass.
type ApplyOptions struct {
	RepoPath   m.Path
	Categories []string
	RunID      string
	// Observer, when set, receives every resolved mutation as it happens.
	Observer func(m.Mutation)
}

// RevertFailure describes one file whose reversal failed. Other files are
// unaffected.
type RevertFailure struct {
	File m.Path
	Err  error
}

// RevertReport summarizes a reversal pass.
type RevertReport struct {
	Restored []m.Path
	Failures []RevertFailure
}

// Executor applies mutation plans to the filesystem and reverts them from
// backups. Application is strictly sequential per file for offset
// correctness; the manifest records exactly what happened per candidate.
type Executor interface {
	Apply(ctx context.Context, plan m.MutationPlan, opts ApplyOptions) (*m.RunManifest, error)
	Revert(ctx context.Context, manifest *m.RunManifest) (RevertReport, error)
}

type executor struct {
	fs    adapter.RepoFSAdapter
	store adapter.RunStore
}

// NewExecutor constructs the disk-backed executor.
func NewExecutor(fs adapter.RepoFSAdapter, store adapter.RunStore) Executor {
	return &executor{fs: fs, store: store}
}

// appliedEdit tracks one landed edit for pre-shift offset translation.
type appliedEdit struct {
	preStart int
	delta    int
}

// shiftAt translates a pre-shift position into the current content: the sum
// of deltas of all edits applied at or before that position. Plan validation
// guarantees edits never overlap, so the translation is exact.
func shiftAt(edits []appliedEdit, pos int) int {
	shift := 0

	for _, edit := range edits {
		if edit.preStart <= pos {
			shift += edit.delta
		}
	}

	return shift
}

// Apply executes the plan in file-path order. Per file: pristine content is
// backed up before the first mutation, every candidate is resolved to
// applied/skipped/failed, and the result is written once via atomic rename.
// Failures on one file never block others; cancellation stops before the
// next candidate and finalizes the manifest as partial.
func (e *executor) Apply(ctx context.Context, plan m.MutationPlan, opts ApplyOptions) (*m.RunManifest, error) {
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID(time.Now())
	}

	manifest := &m.RunManifest{
		RunID:      runID,
		RepoPath:   opts.RepoPath,
		Categories: opts.Categories,
		Intensity:  plan.Intensity,
		Strategy:   plan.Strategy,
		CreatedAt:  time.Now().UTC(),
		Status:     m.RunInProgress,
	}

	if plan.Strategy == m.StrategyGenetic {
		seed := plan.Seed
		manifest.Seed = &seed
	}

	// Make the in-progress manifest durable before touching any file.
	if err := e.store.SaveManifest(ctx, manifest); err != nil {
		return nil, err
	}

	// The event journal is durable per append: if the process dies between
	// the two manifest snapshots, the journal still records what happened.
	events, eventsErr := e.store.EventLog(opts.RepoPath, runID)
	if eventsErr != nil {
		slog.Warn("event journal unavailable", "run_id", runID, "error", eventsErr)
	}

	observer := func(mutation m.Mutation) {
		if events != nil {
			if err := events.Append(mutation); err != nil {
				slog.Warn("event journal append failed", "run_id", runID, "error", err)
			}
		}

		if opts.Observer != nil {
			opts.Observer(mutation)
		}
	}

	defer func() {
		if events != nil {
			if err := events.Close(); err != nil {
				slog.Warn("event journal close failed", "run_id", runID, "error", err)
			}
		}
	}()

	partial := false

	for _, file := range planFiles(plan) {
		if ctx.Err() != nil {
			partial = true
			break
		}

		if err := e.applyFile(ctx, manifest, plan, file, observer); err != nil {
			partial = true

			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				slog.Error("file mutation failed", "file", file, "error", err)
			}
		}
	}

	if partial {
		manifest.Status = m.RunPartial
	} else {
		manifest.Status = m.RunComplete
	}

	// The finalizing write must land even when the run was cancelled, so a
	// cancelled run still leaves a well-formed partial manifest on disk.
	if err := e.store.SaveManifest(context.WithoutCancel(ctx), manifest); err != nil {
		return manifest, err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return manifest, ctxErr
	}

	return manifest, nil
}

// planFiles returns the distinct target paths of a plan in sorted order.
func planFiles(plan m.MutationPlan) []m.Path {
	seen := make(map[m.Path]struct{})

	var files []m.Path

	for _, candidate := range plan.Candidates {
		if _, ok := seen[candidate.Target.RelPath]; ok {
			continue
		}

		seen[candidate.Target.RelPath] = struct{}{}
		files = append(files, candidate.Target.RelPath)
	}

	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	return files
}

// applyFile resolves every candidate targeting one file. The returned error
// is the file's ApplyError, already reflected in the manifest.
func (e *executor) applyFile(ctx context.Context, manifest *m.RunManifest, plan m.MutationPlan, file m.Path, observer func(m.Mutation)) error {
	var candidates []m.MutationCandidate

	fullPath := m.Path("")

	for _, candidate := range plan.Candidates {
		if candidate.Target.RelPath == file {
			candidates = append(candidates, candidate)
			fullPath = candidate.Target.FullPath
		}
	}

	pristine, err := e.fs.ReadFile(ctx, fullPath)
	if err != nil {
		applyErr := &ApplyError{File: file, Err: fmt.Errorf("read: %w", err)}
		e.recordFailures(manifest, candidates, applyErr, observer)

		return applyErr
	}

	pristineHash := adapter.HashBytes(pristine)

	content := pristine

	var edits []appliedEdit

	var resolved []m.Mutation

	anyApplied := false

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			// Nothing was written for this file yet; abandoning it whole
			// keeps the repository pristine and its candidates unresolved.
			return err
		}

		mutation, applied := resolveCandidate(candidate, pristine, &content, &edits)
		mutation.BeforeSHA256 = pristineHash

		if applied {
			mutation.AfterSHA256 = adapter.HashBytes(content)
			anyApplied = true
		}

		resolved = append(resolved, mutation)
	}

	if anyApplied {
		// Backup-then-write ordering: the pristine snapshot must be durable
		// before the mutated content replaces it.
		if err := e.backupFile(ctx, manifest, file, pristine, pristineHash); err != nil {
			applyErr := &ApplyError{File: file, Err: err}
			e.recordFailures(manifest, candidates, applyErr, observer)

			return applyErr
		}

		info, statErr := e.fs.Stat(fullPath)

		perm := os.FileMode(0o644)
		if statErr == nil {
			perm = info.Mode().Perm()
		}

		if err := e.fs.AtomicWrite(fullPath, content, perm); err != nil {
			applyErr := &ApplyError{File: file, Err: err}
			e.recordFailures(manifest, candidates, applyErr, observer)

			return applyErr
		}
	}

	for _, mutation := range resolved {
		manifest.Mutations = append(manifest.Mutations, mutation)

		if observer != nil {
			observer(mutation)
		}
	}

	return nil
}

// resolveCandidate computes one candidate's edit against the file's current
// in-memory content. A replace whose spans no longer exist and an insert
// whose payload is already present resolve to skipped, never failed.
func resolveCandidate(candidate m.MutationCandidate, pristine []byte, content *[]byte, edits *[]appliedEdit) (m.Mutation, bool) {
	mutation := m.Mutation{
		TemplateID: candidate.TemplateID,
		File:       candidate.Target.RelPath,
		Action:     candidate.Action,
		Spans:      candidate.Spans,
	}

	switch candidate.Action {
	case m.ActionInsert:
		// The manifest locates the payload via a zero-length span at the
		// pre-shift insertion offset.
		mutation.Spans = []m.Span{{Start: candidate.InsertOffset, End: candidate.InsertOffset}}

		if candidate.Payload == "" || strings.Contains(string(*content), candidate.Payload) {
			mutation.Status = m.StatusSkipped
			return mutation, false
		}

		pos := candidate.InsertOffset + shiftAt(*edits, candidate.InsertOffset)
		if pos > len(*content) {
			pos = len(*content)
		}

		updated := make([]byte, 0, len(*content)+len(candidate.Payload))
		updated = append(updated, (*content)[:pos]...)
		updated = append(updated, candidate.Payload...)
		updated = append(updated, (*content)[pos:]...)

		*content = updated
		*edits = append(*edits, appliedEdit{preStart: candidate.InsertOffset, delta: len(candidate.Payload)})

		mutation.NewSnippet = candidate.Payload
		mutation.Status = m.StatusApplied

		return mutation, true

	case m.ActionReplace:
		if len(candidate.Spans) == 0 {
			// Pattern had zero matches: a no-op, not a failure.
			mutation.Status = m.StatusSkipped
			return mutation, false
		}

		var originals, replacements []string

		updated := *content
		applied := *edits

		for i, span := range candidate.Spans {
			if span.End > len(pristine) {
				mutation.Status = m.StatusSkipped
				mutation.Error = "span out of bounds"

				return mutation, false
			}

			shift := shiftAt(applied, span.Start)
			start := span.Start + shift
			end := span.End + shift

			// The file may have changed between planning and apply. A span
			// that no longer holds the planned pattern bytes is a vanished
			// match, resolved as skipped before anything is written.
			if i < len(candidate.Originals) && string(updated[start:end]) != candidate.Originals[i] {
				mutation.Status = m.StatusSkipped
				mutation.Error = "pattern no longer present at planned span"

				return mutation, false
			}

			replacement := candidate.Replacements[i]

			originals = append(originals, string(updated[start:end]))
			replacements = append(replacements, replacement)

			next := make([]byte, 0, len(updated)-(end-start)+len(replacement))
			next = append(next, updated[:start]...)
			next = append(next, replacement...)
			next = append(next, updated[end:]...)

			updated = next
			applied = append(applied, appliedEdit{preStart: span.Start, delta: len(replacement) - (span.End - span.Start)})
		}

		*content = updated
		*edits = applied

		mutation.OriginalSnippet = strings.Join(originals, "\n")
		mutation.NewSnippet = strings.Join(replacements, "\n")
		mutation.Status = m.StatusApplied

		return mutation, true
	}

	mutation.Status = m.StatusSkipped
	mutation.Error = fmt.Sprintf("unknown action %q", candidate.Action)

	return mutation, false
}

// backupFile persists the pristine snapshot exactly once per file per run.
func (e *executor) backupFile(ctx context.Context, manifest *m.RunManifest, file m.Path, pristine []byte, hash string) error {
	if _, exists := manifest.BackupFor(file); exists {
		return nil
	}

	if err := e.store.SaveBackup(ctx, manifest.RepoPath, manifest.RunID, file, pristine); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	manifest.Backups = append(manifest.Backups, m.BackupEntry{File: file, SHA256: hash})

	return nil
}

// recordFailures marks every candidate of a failed file in the manifest.
func (e *executor) recordFailures(manifest *m.RunManifest, candidates []m.MutationCandidate, cause error, observer func(m.Mutation)) {
	for _, candidate := range candidates {
		mutation := m.Mutation{
			TemplateID: candidate.TemplateID,
			File:       candidate.Target.RelPath,
			Action:     candidate.Action,
			Spans:      candidate.Spans,
			Status:     m.StatusFailed,
			Error:      cause.Error(),
		}

		manifest.Mutations = append(manifest.Mutations, mutation)

		if observer != nil {
			observer(mutation)
		}
	}
}

// Revert restores every backed-up file to its pristine content. Reversal is
// all-or-nothing per file; independent files revert independently and
// failures are reported individually, never silently ignored.
func (e *executor) Revert(ctx context.Context, manifest *m.RunManifest) (RevertReport, error) {
	report := RevertReport{}

	backups := make([]m.BackupEntry, len(manifest.Backups))
	copy(backups, manifest.Backups)
	sort.Slice(backups, func(i, j int) bool { return backups[i].File < backups[j].File })

	for _, backup := range backups {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := e.revertFile(ctx, manifest, backup); err != nil {
			slog.Error("file reversal failed", "file", backup.File, "error", err)
			report.Failures = append(report.Failures, RevertFailure{File: backup.File, Err: err})

			continue
		}

		report.Restored = append(report.Restored, backup.File)
	}

	for i := range manifest.Mutations {
		if manifest.Mutations[i].Status != m.StatusApplied {
			continue
		}

		if restoredPath(report.Restored, manifest.Mutations[i].File) {
			manifest.Mutations[i].Status = m.StatusReverted
		}
	}

	if err := e.store.SaveManifest(ctx, manifest); err != nil {
		return report, err
	}

	return report, nil
}

// revertFile verifies backup integrity, then restores via atomic write.
func (e *executor) revertFile(ctx context.Context, manifest *m.RunManifest, backup m.BackupEntry) error {
	pristine, err := e.store.LoadBackup(ctx, manifest.RepoPath, manifest.RunID, backup.File)
	if err != nil {
		return &ReversalError{File: backup.File, Err: fmt.Errorf("missing backup: %w", err)}
	}

	if got := adapter.HashBytes(pristine); got != backup.SHA256 {
		return &ReversalError{File: backup.File, Err: fmt.Errorf("checksum mismatch: backup hash %s, manifest records %s", got, backup.SHA256)}
	}

	fullPath := e.fs.JoinPath(string(manifest.RepoPath), string(backup.File))

	info, statErr := e.fs.Stat(fullPath)

	perm := os.FileMode(0o644)
	if statErr == nil {
		perm = info.Mode().Perm()
	}

	if err := e.fs.AtomicWrite(fullPath, pristine, perm); err != nil {
		return &ReversalError{File: backup.File, Err: err}
	}

	return nil
}

func restoredPath(restored []m.Path, file m.Path) bool {
	for _, path := range restored {
		if path == file {
			return true
		}
	}

	return false
}
