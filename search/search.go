// Package search closes the integrality gap left by the relaxation: given
// the relaxation result and an optional warm incumbent, an Engine explores
// the discrete choices and returns the best known solution with a bound.
package search

import (
	"context"

	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/relax"
	"github.com/tamarack-opt/tamarack/solver"
)

// Outcome is the best-known result of an exact search. Objective and Bound
// are in the user's sense; X is nil when no integer-feasible point was
// found.
type Outcome struct {
	Status    solver.Status
	Objective float64
	Bound     float64
	X         []float64
}

// Engine is the exact-search collaborator contract. It must respect the
// deadline carried by ctx, checked cooperatively between nodes, and report
// progress only through the Progress interface. warm may be nil.
type Engine interface {
	Search(ctx context.Context, t *model.Typing, m *relax.Model, root relax.Result,
		warm *solver.SolutionRecord, progress solver.Progress) (Outcome, error)
}
