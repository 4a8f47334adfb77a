package model

// Span is a half-open byte range [Start, End) inside a file, expressed
// against the file's pristine (pre-shift) content.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans share any byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// MutationCandidate is a planned, not yet applied edit: one template bound to
// one target file with its computed application point. Candidates are
// ephemeral: produced by planning, consumed once by the executor.
type MutationCandidate struct {
	TemplateID string
	Target     FileEntry
	Layer      Layer
	Category   string
	Action     TemplateAction

	// InsertOffset is the byte offset of the payload for insert actions.
	InsertOffset int
	// Payload is the rendered insert payload, already formatted for the
	// target file kind.
	Payload string

	// Spans are the pre-shift match ranges for replace actions, ascending
	// and non-overlapping. Replacements[i] rewrites Spans[i]; Originals[i]
	// holds the pattern bytes the planner found there, re-checked at apply
	// time before anything is written.
	Spans        []Span
	Replacements []string
	Originals    []string

	// Score is the estimated impact used for ranking and fitness.
	Score float64
}

// Key identifies a candidate for deduplication purposes.
func (c MutationCandidate) Key() string {
	return c.TemplateID + "\x00" + string(c.Target.RelPath)
}

// MutationPlan is an ordered, deduplicated set of selected candidates for one
// run, subject to the intensity-derived per-layer budget.
type MutationPlan struct {
	Strategy   StrategyKind
	Seed       int64
	Intensity  Intensity
	Candidates []MutationCandidate
	// LayerBudget records the per-layer candidate cap the plan was built
	// under, for manifest bookkeeping.
	LayerBudget int
}

// MutationStatus is the resolution of one candidate.
type MutationStatus string

const (
	// StatusApplied means the edit landed on disk and has a backup.
	StatusApplied MutationStatus = "applied"
	// StatusSkipped means the edit was a no-op (pattern absent, payload present).
	StatusSkipped MutationStatus = "skipped"
	// StatusFailed means the filesystem rejected the edit.
	StatusFailed MutationStatus = "failed"
	// StatusReverted means the file was restored from its backup.
	StatusReverted MutationStatus = "reverted"
)

// Mutation is the durable record of one resolved candidate.
type Mutation struct {
	TemplateID string         `json:"template_id"`
	File       Path           `json:"file"`
	Action     TemplateAction `json:"action"`
	// Spans are the pre-shift byte ranges of the edit. Inserts record a
	// zero-length span at the insertion offset.
	Spans []Span `json:"spans,omitempty"`
	// OriginalSnippet/NewSnippet hold the replaced bytes for replace actions
	// and the inserted payload for inserts.
	OriginalSnippet string         `json:"original_snippet,omitempty"`
	NewSnippet      string         `json:"new_snippet,omitempty"`
	BeforeSHA256    string         `json:"before_sha256,omitempty"`
	AfterSHA256     string         `json:"after_sha256,omitempty"`
	Status          MutationStatus `json:"status"`
	Error           string         `json:"error,omitempty"`
}
