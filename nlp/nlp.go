// Package nlp defines the contract between tamarack and the continuous
// solver used for relaxation solves, together with a reference
// augmented-Lagrangian implementation.
//
// Solvers always minimize; the relaxation layer flips signs for
// maximization problems before handing them over.
package nlp

import (
	"context"

	"github.com/tamarack-opt/tamarack/solver"
)

// Problem is a box-bounded continuous minimization problem
//
//	min  f(x)
//	s.t. cl_j <= c_j(x) <= cu_j
//	     lo_i <= x_i    <= hi_i
//
// Values may be non-finite (IEEE semantics); gradients are dense.
type Problem interface {
	NbVariables() int
	NbConstraints() int
	VariableBounds(i int) (lo, hi float64)
	ConstraintBounds(j int) (lo, hi float64)

	Objective(x []float64) (float64, error)
	// Gradient stores df/dx at x into grad (length NbVariables).
	Gradient(x, grad []float64) error
	Constraint(j int, x []float64) (float64, error)
	// ConstraintGradient stores dc_j/dx at x into grad.
	ConstraintGradient(j int, x, grad []float64) error

	// Affine reports whether the objective and every constraint are affine;
	// a converged point of an affine problem is globally optimal.
	Affine() bool
}

// Result is the outcome of one continuous solve attempt.
type Result struct {
	Status     solver.Status
	Objective  float64
	X          []float64
	Iterations int
	// Violation is the largest constraint violation at X.
	Violation float64
}

// Solver hands out solving handles. A handle owns solver-internal resources
// (workspaces, licenses, native memory in other implementations) that must be
// released when the attempt is over, on every exit path.
type Solver interface {
	Acquire() (Handle, error)
}

// Handle runs continuous solves. Release returns the handle's resources;
// using a handle after Release is a programmer error.
type Handle interface {
	Solve(ctx context.Context, p Problem, start []float64) (Result, error)
	Release()
}
