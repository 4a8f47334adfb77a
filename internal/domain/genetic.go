package domain

import (
	"context"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// GeneticParams are the tunable knobs of the genetic search. The defaults
// are versioned policy; see DefaultGeneticParams.
type GeneticParams struct {
	PopulationSize   int
	Generations      int
	TournamentSize   int
	BitFlipRate      float64
	InclusionRate    float64
	StagnationWindow int
}

// DefaultGeneticParams returns the versioned default search configuration.
func DefaultGeneticParams() GeneticParams {
	return GeneticParams{
		PopulationSize:   20,
		Generations:      15,
		TournamentSize:   4,
		BitFlipRate:      0.05,
		InclusionRate:    0.7,
		StagnationWindow: 5,
	}
}

// geneticLayerWeights value mutations into layers by how strongly each layer
// shapes agent behavior.
var geneticLayerWeights = map[m.Layer]float64{
	m.LayerAIInstructions: 3.0,
	m.LayerInfrastructure: 2.5,
	m.LayerDocumentation:  2.0,
	m.LayerConfiguration:  1.5,
	m.LayerCodeMetadata:   1.2,
	m.LayerTemplates:      1.0,
	m.LayerTooling:        0.8,
}

const (
	categoryDiversityBonus = 1.5
	layerDiversityBonus    = 1.0
	concentrationBonus     = 0.3
)

// stealthPolicy returns the touched-file threshold and the per-file penalty
// weight for an intensity.
func stealthPolicy(intensity m.Intensity) (int, float64) {
	switch intensity {
	case m.IntensitySubtle:
		return 2, 1.0
	case m.IntensityStrong:
		return 8, 0.2
	default:
		return 4, 0.5
	}
}

// GeneticPlanner searches the space of candidate subsets for a high-fitness,
// diverse, budget-respecting plan. The search is fully deterministic given
// the request seed: all randomness flows from one planner-owned source, and
// parallel fitness evaluation writes into index-addressed slots so scheduling
// cannot reorder results.
type GeneticPlanner struct {
	fs       adapter.RepoFSAdapter
	payloads PayloadSource
	params   GeneticParams
}

// NewGeneticPlanner constructs the genetic strategy.
func NewGeneticPlanner(fs adapter.RepoFSAdapter, payloads PayloadSource, params GeneticParams) *GeneticPlanner {
	return &GeneticPlanner{fs: fs, payloads: payloads, params: params}
}

// genome is an inclusion vector over the enumerated candidate list.
type genome []bool

func (g genome) clone() genome {
	out := make(genome, len(g))
	copy(out, g)

	return out
}

// Plan runs the genetic search. An explicit seed is required.
func (p *GeneticPlanner) Plan(ctx context.Context, scan m.ScanResult, catalog *Catalog, req PlanRequest) (m.MutationPlan, error) {
	if req.Seed == nil {
		return m.MutationPlan{}, &ConfigurationError{Reason: "genetic strategy requires an explicit seed"}
	}

	candidates, err := enumerateCandidates(ctx, p.fs, p.payloads, scan, catalog, req)
	if err != nil {
		return m.MutationPlan{}, err
	}

	if len(candidates) == 0 {
		return m.MutationPlan{}, &PlanningError{Strategy: m.StrategyGenetic, Reason: "no viable candidates"}
	}

	rng := rand.New(rand.NewSource(*req.Seed)) //nolint:gosec // reproducible search, not crypto
	budget := layerBudget(req.Intensity)

	population := make([]genome, p.params.PopulationSize)
	for i := range population {
		population[i] = p.randomGenome(rng, len(candidates), candidates, budget)
	}

	best := genome(nil)
	bestFitness := -1.0
	stagnation := 0

	for generation := 0; generation < p.params.Generations; generation++ {
		if err := ctx.Err(); err != nil {
			return m.MutationPlan{}, err
		}

		fitnesses, err := p.evaluate(ctx, population, candidates, req.Intensity)
		if err != nil {
			return m.MutationPlan{}, err
		}

		ranked := rankByFitness(fitnesses)

		if fitnesses[ranked[0]] > bestFitness {
			bestFitness = fitnesses[ranked[0]]
			best = population[ranked[0]].clone()
			stagnation = 0
		} else {
			stagnation++
			if stagnation >= p.params.StagnationWindow {
				slog.Debug("genetic search stagnated", "generation", generation, "best_fitness", bestFitness)
				break
			}
		}

		population = p.nextGeneration(rng, population, fitnesses, ranked, candidates, budget)
	}

	selected := materialize(best, candidates)
	if len(selected) == 0 {
		return m.MutationPlan{}, &PlanningError{Strategy: m.StrategyGenetic, Reason: "search converged to an empty plan"}
	}

	if err := validatePlan(selected, req.Intensity); err != nil {
		return m.MutationPlan{}, err
	}

	slog.Debug("genetic plan ready", "candidates", len(candidates), "selected", len(selected), "fitness", bestFitness)

	return m.MutationPlan{
		Strategy:    m.StrategyGenetic,
		Seed:        *req.Seed,
		Intensity:   req.Intensity,
		Candidates:  selected,
		LayerBudget: budget,
	}, nil
}

// randomGenome draws an initial individual and repairs it into validity.
func (p *GeneticPlanner) randomGenome(rng *rand.Rand, size int, candidates []m.MutationCandidate, budget int) genome {
	g := make(genome, size)
	for i := range g {
		g[i] = rng.Float64() < p.params.InclusionRate
	}

	repair(g, candidates, budget)

	return g
}

// evaluate scores the whole population. Evaluation parallelizes across
// individuals, but each result lands in its own slot, keeping the outcome
// independent of goroutine scheduling.
func (p *GeneticPlanner) evaluate(ctx context.Context, population []genome, candidates []m.MutationCandidate, intensity m.Intensity) ([]float64, error) {
	fitnesses := make([]float64, len(population))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())

	for i, individual := range population {
		i, individual := i, individual
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			fitnesses[i] = fitness(individual, candidates, intensity)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return fitnesses, nil
}

// nextGeneration builds the successor population: elites survive unchanged,
// the rest come from tournament selection, uniform crossover and bit-flip
// mutation, each offspring repaired into validity.
func (p *GeneticPlanner) nextGeneration(
	rng *rand.Rand,
	population []genome,
	fitnesses []float64,
	ranked []int,
	candidates []m.MutationCandidate,
	budget int,
) []genome {
	eliteCount := p.params.PopulationSize / 4
	if eliteCount < 2 {
		eliteCount = 2
	}

	next := make([]genome, 0, p.params.PopulationSize)
	for _, idx := range ranked[:eliteCount] {
		next = append(next, population[idx].clone())
	}

	for len(next) < p.params.PopulationSize {
		parentA := p.tournament(rng, population, fitnesses)
		parentB := p.tournament(rng, population, fitnesses)

		child := crossover(rng, parentA, parentB)
		p.mutate(rng, child)
		repair(child, candidates, budget)

		next = append(next, child)
	}

	return next
}

// tournament picks the fittest of k uniformly drawn individuals.
func (p *GeneticPlanner) tournament(rng *rand.Rand, population []genome, fitnesses []float64) genome {
	k := p.params.TournamentSize
	if k > len(population) {
		k = len(population)
	}

	bestIdx := -1

	for i := 0; i < k; i++ {
		idx := rng.Intn(len(population))
		if bestIdx < 0 || fitnesses[idx] > fitnesses[bestIdx] {
			bestIdx = idx
		}
	}

	return population[bestIdx]
}

// crossover draws each inclusion bit uniformly from either parent.
func crossover(rng *rand.Rand, a, b genome) genome {
	child := make(genome, len(a))

	for i := range child {
		if rng.Float64() < 0.5 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}

	return child
}

// mutate flips each bit with the configured fixed probability.
func (p *GeneticPlanner) mutate(rng *rand.Rand, g genome) {
	for i := range g {
		if rng.Float64() < p.params.BitFlipRate {
			g[i] = !g[i]
		}
	}
}

// repair clears bits until the individual respects the per-layer budget and
// contains no overlapping spans on one file. Invalid combinations are thus
// rejected before any fitness scoring. Iteration is in candidate order, so
// repair is deterministic.
func repair(g genome, candidates []m.MutationCandidate, budget int) {
	perLayer := make(map[m.Layer]int)
	perFile := make(map[m.Path][]m.Span)

	for i, included := range g {
		if !included {
			continue
		}

		candidate := candidates[i]

		if perLayer[candidate.Layer]+1 > budget {
			g[i] = false
			continue
		}

		conflict := false

		for _, span := range candidate.Spans {
			for _, existing := range perFile[candidate.Target.RelPath] {
				if span.Overlaps(existing) {
					conflict = true
					break
				}
			}

			if conflict {
				break
			}
		}

		if conflict {
			g[i] = false
			continue
		}

		perLayer[candidate.Layer]++
		perFile[candidate.Target.RelPath] = append(perFile[candidate.Target.RelPath], candidate.Spans...)
	}
}

// fitness scores one repaired individual: summed layer weights, diversity
// bonuses, a stealth penalty for touching too many files, and a small bonus
// for concentrating several mutations in one high-value file.
func fitness(g genome, candidates []m.MutationCandidate, intensity m.Intensity) float64 {
	score := 0.0
	categories := make(map[string]struct{})
	layers := make(map[m.Layer]struct{})
	fileCounts := make(map[m.Path]int)

	for i, included := range g {
		if !included {
			continue
		}

		candidate := candidates[i]

		weight, ok := geneticLayerWeights[candidate.Layer]
		if !ok {
			weight = 1.0
		}

		score += weight
		categories[candidate.Category] = struct{}{}
		layers[candidate.Layer] = struct{}{}
		fileCounts[candidate.Target.RelPath]++
	}

	if len(fileCounts) == 0 {
		return 0
	}

	score += float64(len(categories)) * categoryDiversityBonus
	score += float64(len(layers)) * layerDiversityBonus

	threshold, penaltyWeight := stealthPolicy(intensity)
	if excess := len(fileCounts) - threshold; excess > 0 {
		score -= float64(excess) * penaltyWeight
	}

	for _, count := range fileCounts {
		if count > 1 {
			score += float64(count-1) * concentrationBonus
		}
	}

	return score
}

// rankByFitness returns population indices sorted by descending fitness,
// ties broken by ascending index for determinism.
func rankByFitness(fitnesses []float64) []int {
	ranked := make([]int, len(fitnesses))
	for i := range ranked {
		ranked[i] = i
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if fitnesses[ranked[i]] != fitnesses[ranked[j]] {
			return fitnesses[ranked[i]] > fitnesses[ranked[j]]
		}

		return ranked[i] < ranked[j]
	})

	return ranked
}

// materialize converts an inclusion vector back into an ordered candidate
// list (candidates are already sorted by path then template id).
func materialize(g genome, candidates []m.MutationCandidate) []m.MutationCandidate {
	var selected []m.MutationCandidate

	for i, included := range g {
		if included {
			selected = append(selected, candidates[i])
		}
	}

	return selected
}
