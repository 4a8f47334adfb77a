package model

import "time"

// StrategyKind selects the planner variant. The set is closed: new
// strategies add a variant plus its selection function, not a subclass.
type StrategyKind string

const (
	// StrategyHeuristic is the deterministic ranking planner.
	StrategyHeuristic StrategyKind = "heuristic"
	// StrategyGenetic is the seeded genetic-search planner.
	StrategyGenetic StrategyKind = "genetic"
)

// KnownStrategy reports whether kind is one of the closed strategy set.
func KnownStrategy(kind StrategyKind) bool {
	return kind == StrategyHeuristic || kind == StrategyGenetic
}

// RunStatus is the overall state of a run manifest.
type RunStatus string

const (
	// RunInProgress means candidates are still being resolved.
	RunInProgress RunStatus = "in-progress"
	// RunComplete means every candidate resolved and the manifest is durable.
	RunComplete RunStatus = "complete"
	// RunPartial means the run stopped early (failure or cancellation) with
	// a well-formed manifest describing what did happen.
	RunPartial RunStatus = "partial"
)

// BackupEntry records one pristine pre-mutation snapshot. The content itself
// lives in the run store, keyed by the relative path; the hash pins it.
type BackupEntry struct {
	File   Path   `json:"file"`
	SHA256 string `json:"sha256"`
}

// RunManifest is the durable record tying scan, plan and apply results
// together. It is append-only while the run is in progress and finalized
// exactly once. Downstream consumers (agent simulation, analyzer, reverser)
// read it and the mutated filesystem, never planner-internal state.
type RunManifest struct {
	RunID      string        `json:"run_id"`
	RepoPath   Path          `json:"repo_path"`
	Categories []string      `json:"categories"`
	Intensity  Intensity     `json:"intensity"`
	Strategy   StrategyKind  `json:"strategy"`
	Seed       *int64        `json:"seed,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	Mutations  []Mutation    `json:"mutations"`
	Backups    []BackupEntry `json:"backups"`
	Status     RunStatus     `json:"status"`
}

// BackupFor returns the backup entry for a file, if one was recorded.
func (m *RunManifest) BackupFor(file Path) (BackupEntry, bool) {
	for _, b := range m.Backups {
		if b.File == file {
			return b, true
		}
	}

	return BackupEntry{}, false
}

// AppliedCount counts mutations that landed on disk.
func (m *RunManifest) AppliedCount() int {
	return m.countStatus(StatusApplied)
}

// SkippedCount counts no-op resolutions.
func (m *RunManifest) SkippedCount() int {
	return m.countStatus(StatusSkipped)
}

// FailedCount counts filesystem failures.
func (m *RunManifest) FailedCount() int {
	return m.countStatus(StatusFailed)
}

func (m *RunManifest) countStatus(status MutationStatus) int {
	count := 0

	for _, mutation := range m.Mutations {
		if mutation.Status == status {
			count++
		}
	}

	return count
}
