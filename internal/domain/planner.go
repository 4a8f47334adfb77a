package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// PlanRequest carries the policy inputs of one planning step.
type PlanRequest struct {
	// Categories filters templates; empty selects all.
	Categories []string
	Intensity  m.Intensity
	// AllowedLayers restricts candidacy; empty allows every layer.
	AllowedLayers []m.Layer
	// Seed drives the genetic search. Required for the genetic strategy so
	// identical seed + inputs always yield the identical plan.
	Seed *int64
}

// Planner selects a bounded set of mutation candidates. The two variants
// (heuristic, genetic) form a closed set dispatched through this interface.
type Planner interface {
	Plan(ctx context.Context, scan m.ScanResult, catalog *Catalog, req PlanRequest) (m.MutationPlan, error)
}

// NewPlanner dispatches on the closed strategy set.
func NewPlanner(kind m.StrategyKind, fs adapter.RepoFSAdapter, payloads PayloadSource) (Planner, error) {
	switch kind {
	case m.StrategyHeuristic:
		return NewHeuristicPlanner(fs, payloads), nil
	case m.StrategyGenetic:
		return NewGeneticPlanner(fs, payloads, DefaultGeneticParams()), nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown strategy %q", kind)}
	}
}

// layerBudget is the intensity-derived cap on selected candidates per layer.
// The mapping is monotonic: subtle < normal < strong.
func layerBudget(intensity m.Intensity) int {
	switch intensity {
	case m.IntensitySubtle:
		return 1
	case m.IntensityStrong:
		return 8
	default:
		return 3
	}
}

// enumerateCandidates produces every viable (template, file) candidate with
// its application point computed against pristine content. The result is
// sorted by (path, template id) and deduplicated, so downstream selection is
// reproducible.
func enumerateCandidates(
	ctx context.Context,
	fs adapter.RepoFSAdapter,
	payloads PayloadSource,
	scan m.ScanResult,
	catalog *Catalog,
	req PlanRequest,
) ([]m.MutationCandidate, error) {
	allowed := allowedLayerSet(req.AllowedLayers)

	var candidates []m.MutationCandidate

	seen := make(map[string]struct{})

	for _, template := range catalog.ByCategory(req.Categories) {
		if _, ok := allowed[template.Layer]; !ok {
			continue
		}

		for _, entry := range scan.FilesFor(template.Layer) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if !matchesAnyGlob(entry.RelPath, template.TargetGlobs) {
				continue
			}

			candidate, ok, err := buildCandidate(ctx, fs, payloads, template, entry, req.Intensity)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			if _, dup := seen[candidate.Key()]; dup {
				continue
			}

			seen[candidate.Key()] = struct{}{}
			candidates = append(candidates, candidate)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Target.RelPath != candidates[j].Target.RelPath {
			return candidates[i].Target.RelPath < candidates[j].Target.RelPath
		}

		return candidates[i].TemplateID < candidates[j].TemplateID
	})

	return candidates, nil
}

// buildCandidate computes the application point for one (template, file)
// pair. ok is false when the pair yields no viable edit (pattern absent,
// payload already present, unsupported file kind).
func buildCandidate(
	ctx context.Context,
	fs adapter.RepoFSAdapter,
	payloads PayloadSource,
	template m.MutationTemplate,
	entry m.FileEntry,
	intensity m.Intensity,
) (m.MutationCandidate, bool, error) {
	content, err := fs.ReadFile(ctx, entry.FullPath)
	if err != nil {
		// The file vanished or became unreadable since the scan; transient
		// per-candidate issues never abort planning.
		slog.Warn("skipping unreadable candidate target", "path", entry.RelPath, "error", err)
		return m.MutationCandidate{}, false, nil
	}

	candidate := m.MutationCandidate{
		TemplateID: template.ID,
		Target:     entry,
		Layer:      template.Layer,
		Category:   template.Category,
		Action:     template.EffectiveAction(),
		Score:      impactScore(template, entry),
	}

	switch candidate.Action {
	case m.ActionInsert:
		payload, err := payloads.Render(ctx, template, entry, intensity)
		if err != nil {
			return m.MutationCandidate{}, false, err
		}

		offset, rendered, ok := renderInsert(entry.RelPath, content, payload, intensity)
		if !ok {
			return m.MutationCandidate{}, false, nil
		}

		candidate.InsertOffset = offset
		candidate.Payload = rendered
	case m.ActionReplace:
		spans, repls := replaceSpans(content, template.Replacements, intensity)
		if len(spans) == 0 {
			return m.MutationCandidate{}, false, nil
		}

		candidate.Spans = spans
		candidate.Replacements = repls

		for _, span := range spans {
			candidate.Originals = append(candidate.Originals, string(content[span.Start:span.End]))
		}
	}

	return candidate, true, nil
}

// impactScore estimates how much a candidate should influence agent context:
// template weight scaled by classification confidence, discounted by path
// depth (root-level artifacts reach the agent first).
func impactScore(template m.MutationTemplate, entry m.FileEntry) float64 {
	confidence := entry.ConfidenceFor(template.Layer)
	if confidence == 0 {
		confidence = 1.0
	}

	depth := strings.Count(string(entry.RelPath), "/")

	return template.EffectiveWeight() * confidence / float64(1+depth)
}

// validatePlan enforces the plan invariants: no overlapping pre-shift spans
// on one file and the per-layer budget.
func validatePlan(candidates []m.MutationCandidate, intensity m.Intensity) error {
	budget := layerBudget(intensity)
	perLayer := make(map[m.Layer]int)

	type fileSpan struct {
		span     m.Span
		template string
	}

	perFile := make(map[m.Path][]fileSpan)

	for _, candidate := range candidates {
		perLayer[candidate.Layer]++
		if perLayer[candidate.Layer] > budget {
			return &PlanningError{Reason: fmt.Sprintf("layer %s exceeds budget of %d candidates", candidate.Layer, budget)}
		}

		for _, span := range candidate.Spans {
			for _, existing := range perFile[candidate.Target.RelPath] {
				if span.Overlaps(existing.span) {
					return &PlanningError{Reason: fmt.Sprintf(
						"overlapping spans on %s (templates %s and %s)",
						candidate.Target.RelPath, existing.template, candidate.TemplateID,
					)}
				}
			}

			perFile[candidate.Target.RelPath] = append(perFile[candidate.Target.RelPath], fileSpan{span: span, template: candidate.TemplateID})
		}
	}

	return nil
}

func allowedLayerSet(layers []m.Layer) map[m.Layer]struct{} {
	allowed := make(map[m.Layer]struct{})

	if len(layers) == 0 {
		layers = m.AllLayers
	}

	for _, layer := range layers {
		allowed[layer] = struct{}{}
	}

	return allowed
}

func matchesAnyGlob(rel m.Path, globs []string) bool {
	for _, glob := range globs {
		target := string(rel)

		if !strings.Contains(glob, "/") {
			idx := strings.LastIndexByte(target, '/')
			target = target[idx+1:]
		}

		if ok, err := doublestar.Match(glob, target); err == nil && ok {
			return true
		}
	}

	return false
}
