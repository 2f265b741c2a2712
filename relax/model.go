// Package relax builds the continuous relaxation of a problem and runs
// relaxation solves through the continuous-solver contract.
package relax

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/tamarack-opt/tamarack/expr"
	"github.com/tamarack-opt/tamarack/model"
)

// Model is the continuous relaxation: every variable keeps its bounds but
// drops integrality, and the objective and all constraints are attached as
// general nonlinear expressions regardless of individual linearity.
//
// A Model implements the continuous-solver problem contract in minimization
// sense: for maximization problems the objective value and gradient are
// negated internally. Constraint values keep the user's orientation.
//
// The bound expression trees are shared between clones and must be treated
// as read-only; bounds and the current point are per-instance.
type Model struct {
	nbVars int
	nbCons int

	lower, upper         []float64
	consLower, consUpper []float64

	sense       model.Sense
	objective   *expr.Node
	constraints []*expr.Node
	affine      bool

	x []float64
}

// Build constructs the relaxation of p: it initializes the evaluator,
// obtains the objective and constraint graphs and rewrites each of them
// exactly once against this model's variables. Rewrite failures are contract
// violations and abort the build.
func Build(p *model.Problem) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m := &Model{
		nbVars:    p.NbVariables,
		nbCons:    p.NbConstraints,
		lower:     slices.Clone(p.VarLower),
		upper:     slices.Clone(p.VarUpper),
		consLower: slices.Clone(p.ConsLower),
		consUpper: slices.Clone(p.ConsUpper),
		sense:     p.Sense,
		x:         p.StartingPoint(),
	}

	ev := p.Evaluator
	if err := ev.Init(model.FeatureGraphs | model.FeatureGradients | model.FeatureJacobians); err != nil {
		return nil, fmt.Errorf("initialize evaluator: %w", err)
	}

	objective, err := ev.ObjectiveGraph()
	if err != nil {
		return nil, fmt.Errorf("objective graph: %w", err)
	}
	if err := expr.Bind(objective, m); err != nil {
		return nil, fmt.Errorf("rewrite objective: %w", err)
	}
	m.objective = objective

	m.constraints = make([]*expr.Node, p.NbConstraints)
	for j := 0; j < p.NbConstraints; j++ {
		tree, err := ev.ConstraintGraph(j)
		if err != nil {
			return nil, fmt.Errorf("constraint %d graph: %w", j, err)
		}
		if err := expr.Bind(tree, m); err != nil {
			return nil, fmt.Errorf("rewrite constraint %d: %w", j, err)
		}
		m.constraints[j] = tree
	}

	m.affine = expr.IsAffine(objective)
	for _, c := range m.constraints {
		m.affine = m.affine && expr.IsAffine(c)
	}

	// probe the bound trees once so malformed shapes surface here rather
	// than mid-solve
	if _, err := expr.Eval(m.objective, m.x); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	for j, c := range m.constraints {
		if _, err := expr.Eval(c, m.x); err != nil {
			return nil, fmt.Errorf("constraint %d: %w", j, err)
		}
	}

	return m, nil
}

// BindVariable makes Model the binding oracle of the rewrite pass.
func (m *Model) BindVariable(index int) (expr.Var, error) {
	if index < 0 || index >= m.nbVars {
		return expr.Var{}, fmt.Errorf("variable %d out of range (model has %d)", index, m.nbVars)
	}
	return expr.NewVar(index), nil
}

// Clone returns an independent model: private bounds and point, shared
// read-only trees. Each worker of a parallel phase operates on its own
// clone.
func (m *Model) Clone() *Model {
	c := *m
	c.lower = slices.Clone(m.lower)
	c.upper = slices.Clone(m.upper)
	c.consLower = slices.Clone(m.consLower)
	c.consUpper = slices.Clone(m.consUpper)
	c.x = slices.Clone(m.x)
	return &c
}

// SetStart loads a starting point into the model.
func (m *Model) SetStart(x []float64) error {
	if len(x) != m.nbVars {
		return fmt.Errorf("start sized %d, want %d", len(x), m.nbVars)
	}
	copy(m.x, x)
	return nil
}

// Start returns a copy of the current point.
func (m *Model) Start() []float64 {
	return slices.Clone(m.x)
}

// SetVariableBounds tightens (or relaxes) the bounds of variable i; the
// exact search uses this on clones to implement branching.
func (m *Model) SetVariableBounds(i int, lo, hi float64) error {
	if i < 0 || i >= m.nbVars {
		return fmt.Errorf("variable %d out of range (model has %d)", i, m.nbVars)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return fmt.Errorf("variable %d bounds [%g, %g] are invalid", i, lo, hi)
	}
	m.lower[i], m.upper[i] = lo, hi
	if m.x[i] < lo {
		m.x[i] = lo
	}
	if m.x[i] > hi {
		m.x[i] = hi
	}
	return nil
}

// Sense returns the user's optimization sense.
func (m *Model) Sense() model.Sense { return m.sense }

func (m *Model) NbVariables() int   { return m.nbVars }
func (m *Model) NbConstraints() int { return m.nbCons }

func (m *Model) VariableBounds(i int) (float64, float64) {
	return m.lower[i], m.upper[i]
}

func (m *Model) ConstraintBounds(j int) (float64, float64) {
	return m.consLower[j], m.consUpper[j]
}

// UserObjective evaluates the objective in the user's sense.
func (m *Model) UserObjective(x []float64) (float64, error) {
	return expr.Eval(m.objective, x)
}

// Objective evaluates the objective in minimization sense.
func (m *Model) Objective(x []float64) (float64, error) {
	v, err := expr.Eval(m.objective, x)
	if err != nil {
		return 0, err
	}
	if m.sense == model.Maximize {
		return -v, nil
	}
	return v, nil
}

// Gradient approximates the minimization-sense objective gradient with
// central finite differences. Evaluation failures surface as NaN entries,
// which the continuous solver treats as a dead end rather than an error.
func (m *Model) Gradient(x, grad []float64) error {
	fd.Gradient(grad, func(p []float64) float64 {
		v, err := expr.Eval(m.objective, p)
		if err != nil {
			return math.NaN()
		}
		return v
	}, x, fdSettings)
	if m.sense == model.Maximize {
		for i := range grad {
			grad[i] = -grad[i]
		}
	}
	return nil
}

func (m *Model) Constraint(j int, x []float64) (float64, error) {
	return expr.Eval(m.constraints[j], x)
}

func (m *Model) ConstraintGradient(j int, x, grad []float64) error {
	tree := m.constraints[j]
	fd.Gradient(grad, func(p []float64) float64 {
		v, err := expr.Eval(tree, p)
		if err != nil {
			return math.NaN()
		}
		return v
	}, x, fdSettings)
	return nil
}

// Affine reports whether the objective and every constraint are
// structurally affine.
func (m *Model) Affine() bool { return m.affine }

// Violation returns the largest constraint violation at x.
func (m *Model) Violation(x []float64) (float64, error) {
	var v float64
	for j := range m.constraints {
		c, err := expr.Eval(m.constraints[j], x)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(c) {
			return math.Inf(1), nil
		}
		if lo := m.consLower[j]; !math.IsInf(lo, -1) {
			v = math.Max(v, lo-c)
		}
		if hi := m.consUpper[j]; !math.IsInf(hi, 1) {
			v = math.Max(v, c-hi)
		}
	}
	return v, nil
}

var fdSettings = &fd.Settings{Formula: fd.Central}
