package domain

import (
	"context"
	"log/slog"
	"sort"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// HeuristicPlanner is the deterministic ranking strategy: filter, score,
// take the top candidates per layer. Ties break lexicographically by file
// path then template id, so identical inputs always yield identical plans.
type HeuristicPlanner struct {
	fs       adapter.RepoFSAdapter
	payloads PayloadSource
}

// NewHeuristicPlanner constructs the heuristic strategy.
func NewHeuristicPlanner(fs adapter.RepoFSAdapter, payloads PayloadSource) *HeuristicPlanner {
	return &HeuristicPlanner{fs: fs, payloads: payloads}
}

// Plan enumerates candidates and keeps the highest-impact ones within the
// intensity-derived per-layer budget.
func (p *HeuristicPlanner) Plan(ctx context.Context, scan m.ScanResult, catalog *Catalog, req PlanRequest) (m.MutationPlan, error) {
	candidates, err := enumerateCandidates(ctx, p.fs, p.payloads, scan, catalog, req)
	if err != nil {
		return m.MutationPlan{}, err
	}

	if len(candidates) == 0 {
		return m.MutationPlan{}, &PlanningError{Strategy: m.StrategyHeuristic, Reason: "no viable candidates"}
	}

	budget := layerBudget(req.Intensity)
	selected := selectTopPerLayer(candidates, budget)

	if err := validatePlan(selected, req.Intensity); err != nil {
		return m.MutationPlan{}, err
	}

	slog.Debug("heuristic plan ready", "candidates", len(candidates), "selected", len(selected), "budget", budget)

	return m.MutationPlan{
		Strategy:    m.StrategyHeuristic,
		Intensity:   req.Intensity,
		Candidates:  selected,
		LayerBudget: budget,
	}, nil
}

// selectTopPerLayer ranks candidates inside each layer by descending score,
// breaking ties by (path, template id) ascending, and keeps the top budget
// entries. The final plan is re-sorted by (path, template id) for stable
// apply ordering.
func selectTopPerLayer(candidates []m.MutationCandidate, budget int) []m.MutationCandidate {
	byLayer := make(map[m.Layer][]m.MutationCandidate)

	for _, candidate := range candidates {
		byLayer[candidate.Layer] = append(byLayer[candidate.Layer], candidate)
	}

	var selected []m.MutationCandidate

	for _, layer := range m.AllLayers {
		group := byLayer[layer]

		sort.Slice(group, func(i, j int) bool {
			if group[i].Score != group[j].Score {
				return group[i].Score > group[j].Score
			}

			if group[i].Target.RelPath != group[j].Target.RelPath {
				return group[i].Target.RelPath < group[j].Target.RelPath
			}

			return group[i].TemplateID < group[j].TemplateID
		})

		if len(group) > budget {
			group = group[:budget]
		}

		selected = append(selected, group...)
	}

	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Target.RelPath != selected[j].Target.RelPath {
			return selected[i].Target.RelPath < selected[j].Target.RelPath
		}

		return selected[i].TemplateID < selected[j].TemplateID
	})

	return selected
}
