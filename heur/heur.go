// Package heur finds integer-feasible incumbents from a relaxation result,
// before the exact search runs.
package heur

import (
	"context"

	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/relax"
	"github.com/tamarack-opt/tamarack/solver"
)

// Heuristic turns a solved relaxation into an integer-feasible incumbent.
// The second return value reports whether one was found; finding none is
// not an error. Implementations must not mutate m.
type Heuristic interface {
	Find(ctx context.Context, t *model.Typing, m *relax.Model, rel relax.Result) (solver.SolutionRecord, bool, error)
}
