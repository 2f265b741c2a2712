package search

import (
	"context"
	"math"
	"slices"

	"github.com/tamarack-opt/tamarack/logger"
	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/nlp"
	"github.com/tamarack-opt/tamarack/profile"
	"github.com/tamarack-opt/tamarack/relax"
	"github.com/tamarack-opt/tamarack/solver"
)

// BranchBound is the reference exact search: depth-first branch and bound
// over relaxation solves. Branching picks the most fractional discrete
// variable and splits its domain at floor/ceil; nodes whose relaxation is
// no better than the incumbent are cut off. Deadlines are honored between
// nodes, never mid-solve.
type BranchBound struct {
	NLP nlp.Solver
	// MaxNodes bounds the number of explored nodes; defaults to 10000.
	MaxNodes int
	// IntTol is the integrality tolerance; defaults to 1e-6.
	IntTol float64
}

type node struct {
	m     *relax.Model
	start []float64
	// bound is the parent relaxation objective, the most optimistic value
	// any descendant can reach.
	bound float64
	depth int
	// res is pre-set for the root, whose relaxation the orchestrator
	// already solved.
	res *relax.Result
}

// Search implements Engine.
func (b *BranchBound) Search(ctx context.Context, t *model.Typing, m *relax.Model, root relax.Result,
	warm *solver.SolutionRecord, progress solver.Progress) (Outcome, error) {

	maxNodes := b.MaxNodes
	if maxNodes <= 0 {
		maxNodes = 10000
	}
	intTol := b.IntTol
	if intTol <= 0 {
		intTol = 1e-6
	}

	sense := m.Sense()
	log := logger.Logger()

	var incumbent *solver.SolutionRecord
	if warm != nil {
		incumbent = &solver.SolutionRecord{X: slices.Clone(warm.X), Objective: warm.Objective}
	}

	stack := []node{{m: m.Clone(), start: slices.Clone(root.X), bound: root.Objective, res: &root}}
	explored := 0
	stopped := false

	for len(stack) > 0 {
		if ctx.Err() != nil || explored >= maxNodes {
			stopped = true
			break
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// cut off against the incumbent at pop time; the incumbent may
		// have improved since the node was pushed
		if incumbent != nil && !sense.Better(n.bound, incumbent.Objective) {
			progress.AddCuts(1)
			continue
		}

		res := n.res
		if res == nil {
			exec := relax.NewExecutor(n.m, b.NLP)
			r, err := exec.Solve(ctx, n.start)
			if err != nil {
				return Outcome{Status: solver.Unknown}, err
			}
			res = &r
		}
		explored++
		progress.AddNodes(1)
		progress.ObserveDepth(n.depth)
		profile.RecordNode()

		if !res.Status.Solved() {
			// no feasible point in this subtree
			continue
		}
		if incumbent != nil && !sense.Better(res.Objective, incumbent.Objective) {
			progress.AddCuts(1)
			continue
		}

		frac := mostFractional(t, res.X, intTol)
		if frac < 0 {
			x := slices.Clone(res.X)
			for _, i := range t.DiscreteToVar {
				x[i] = math.Round(x[i])
			}
			// re-evaluate at the snapped point so the incumbent objective
			// is exact at integral values
			obj := res.Objective
			if v, err := n.m.UserObjective(x); err == nil && !math.IsNaN(v) {
				obj = v
			}
			if incumbent == nil || sense.Better(obj, incumbent.Objective) {
				incumbent = &solver.SolutionRecord{X: x, Objective: obj}
				log.Debug().Float64("objective", obj).Int("depth", n.depth).Msg("branch and bound: new incumbent")
			}
			continue
		}

		// branch on the most fractional variable; the child nearest the
		// relaxation value is pushed last so it is explored first
		v := res.X[frac]
		lo, hi := n.m.VariableBounds(frac)
		down := node{m: n.m.Clone(), start: slices.Clone(res.X), bound: res.Objective, depth: n.depth + 1}
		up := node{m: n.m, start: slices.Clone(res.X), bound: res.Objective, depth: n.depth + 1}
		downOK := down.m.SetVariableBounds(frac, lo, math.Floor(v)) == nil
		upOK := up.m.SetVariableBounds(frac, math.Ceil(v), hi) == nil

		switch {
		case downOK && upOK:
			progress.AddBranches(2)
			if v-math.Floor(v) <= math.Ceil(v)-v {
				stack = append(stack, up, down)
			} else {
				stack = append(stack, down, up)
			}
		case downOK:
			progress.AddBranches(1)
			stack = append(stack, down)
		case upOK:
			progress.AddBranches(1)
			stack = append(stack, up)
		}
	}

	return b.outcome(sense, root, incumbent, stack, stopped), nil
}

// outcome reconciles the final status, objective and bound. A completed
// search proves its incumbent optimal (or the problem integer-infeasible);
// a stopped one reports the best known incumbent against the most
// optimistic open bound.
func (b *BranchBound) outcome(sense model.Sense, root relax.Result, incumbent *solver.SolutionRecord, open []node, stopped bool) Outcome {
	if !stopped {
		if incumbent == nil {
			return Outcome{Status: solver.Infeasible, Objective: math.NaN(), Bound: root.Objective}
		}
		return Outcome{
			Status:    solver.Optimal,
			Objective: incumbent.Objective,
			Bound:     incumbent.Objective,
			X:         incumbent.X,
		}
	}

	// the proven bound is the most optimistic value any open subtree (or
	// the incumbent itself) can still reach
	bound := math.NaN()
	take := func(v float64) {
		if math.IsNaN(bound) || sense.Better(v, bound) {
			bound = v
		}
	}
	for _, n := range open {
		take(n.bound)
	}
	if incumbent != nil {
		take(incumbent.Objective)
	}
	if math.IsNaN(bound) {
		bound = root.Objective
	}
	if incumbent == nil {
		return Outcome{Status: solver.Unknown, Objective: math.NaN(), Bound: bound}
	}
	return Outcome{
		Status:    solver.LocallyOptimal,
		Objective: incumbent.Objective,
		Bound:     bound,
		X:         incumbent.X,
	}
}

// mostFractional returns the discrete variable farthest from integrality at
// x, or -1 when every discrete entry is integral within tol.
func mostFractional(t *model.Typing, x []float64, tol float64) int {
	best, bestFrac := -1, tol
	for _, i := range t.DiscreteToVar {
		if f := math.Abs(x[i] - math.Round(x[i])); f > bestFrac {
			best, bestFrac = i, f
		}
	}
	return best
}
