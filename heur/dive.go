package heur

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/tamarack-opt/tamarack/logger"
	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/nlp"
	"github.com/tamarack-opt/tamarack/relax"
	"github.com/tamarack-opt/tamarack/solver"
)

// RoundingDive is the reference heuristic: round the discrete variables of
// the relaxation solution, fix them, and re-solve the continuous remainder.
// Later dives flip the rounding direction of the most fractional variables,
// pump style. The first integer-feasible re-solve wins.
type RoundingDive struct {
	NLP nlp.Solver
	// MaxDives bounds the number of rounding variants tried; defaults to 4.
	MaxDives int
}

// Find implements Heuristic.
func (h *RoundingDive) Find(ctx context.Context, t *model.Typing, m *relax.Model, rel relax.Result) (solver.SolutionRecord, bool, error) {
	if t.NbDiscrete() == 0 || len(rel.X) == 0 {
		return solver.SolutionRecord{}, false, nil
	}
	maxDives := h.MaxDives
	if maxDives <= 0 {
		maxDives = 4
	}

	// discrete variables, most fractional first; those are the ones worth
	// flipping when the nearest rounding is infeasible
	order := slices.Clone(t.DiscreteToVar)
	sort.SliceStable(order, func(a, b int) bool {
		return fractionality(rel.X[order[a]]) > fractionality(rel.X[order[b]])
	})

	log := logger.Logger()
	for dive := 0; dive < maxDives; dive++ {
		if ctx.Err() != nil {
			return solver.SolutionRecord{}, false, nil
		}

		dm := m.Clone()
		start := slices.Clone(rel.X)
		ok := true
		for rank, i := range order {
			v := math.Round(rel.X[i])
			if rank < dive {
				// flip the rounding of the most fractional variables
				v = math.Floor(rel.X[i]) + math.Ceil(rel.X[i]) - v
			}
			lo, hi := dm.VariableBounds(i)
			v = math.Min(math.Max(v, math.Ceil(lo)), math.Floor(hi))
			if err := dm.SetVariableBounds(i, v, v); err != nil {
				ok = false
				break
			}
			start[i] = v
		}
		if !ok {
			continue
		}

		exec := relax.NewExecutor(dm, h.NLP)
		res, err := exec.Solve(ctx, start)
		if err != nil || !res.Status.Solved() {
			continue
		}

		// snap the fixed entries to their exact integer values and
		// re-evaluate there
		x := slices.Clone(res.X)
		for _, i := range t.DiscreteToVar {
			x[i] = math.Round(x[i])
		}
		obj := res.Objective
		if v, err := dm.UserObjective(x); err == nil && !math.IsNaN(v) {
			obj = v
		}
		log.Debug().Int("dive", dive).Float64("objective", obj).Msg("rounding dive found incumbent")
		return solver.SolutionRecord{X: x, Objective: obj}, true, nil
	}
	return solver.SolutionRecord{}, false, nil
}

func fractionality(v float64) float64 {
	return math.Abs(v - math.Round(v))
}
