// Package domain contains the core scanning, planning and mutation
// application logic for ctxprobe.
package domain

import (
	"fmt"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// ConfigurationError reports malformed templates or rules. It is fatal at
// load time; an unconfigured or invalid catalog never reaches planning.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}

	return "configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// PlanningError reports that no viable plan could be produced: no candidates
// matched, or genetic search converged to an empty or invalid plan.
type PlanningError struct {
	Strategy m.StrategyKind
	Reason   string
}

func (e *PlanningError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("planning (%s): %s", e.Strategy, e.Reason)
	}

	return "planning: " + e.Reason
}

// ApplyError reports a filesystem failure while mutating one file. It is
// fatal for that file only: prior applied mutations remain valid and the
// manifest finalizes as partial.
type ApplyError struct {
	File m.Path
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s: %v", e.File, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ReversalError reports a missing backup or checksum mismatch while
// restoring one file. The file's reversal aborts; other files still process.
type ReversalError struct {
	File m.Path
	Err  error
}

func (e *ReversalError) Error() string {
	return fmt.Sprintf("revert %s: %v", e.File, e.Err)
}

func (e *ReversalError) Unwrap() error { return e.Err }
