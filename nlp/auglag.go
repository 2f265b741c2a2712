package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/tamarack-opt/tamarack/solver"
)

// AugLag is the reference continuous solver: an augmented-Lagrangian outer
// loop around a projected-gradient inner loop with Armijo backtracking.
// Variable bounds are enforced by projection, so returned points never leave
// them. Deterministic for a given starting point.
//
// It is not a production NLP engine; it exists so solves run end to end
// without an external dependency and to pin down the solver contract.
type AugLag struct {
	MaxOuter int     // outer (multiplier) iterations
	MaxInner int     // projected-gradient iterations per outer round
	Tol      float64 // first-order stationarity tolerance
	FeasTol  float64 // constraint violation tolerance

	InitialPenalty float64
	PenaltyCap     float64

	pool sync.Pool
}

// NewAugLag returns a solver with the default tolerances.
func NewAugLag() *AugLag {
	return &AugLag{
		MaxOuter:       30,
		MaxInner:       500,
		Tol:            1e-9,
		FeasTol:        1e-8,
		InitialPenalty: 10,
		PenaltyCap:     1e12,
	}
}

// Acquire returns a handle backed by a pooled workspace.
func (a *AugLag) Acquire() (Handle, error) {
	ws, _ := a.pool.Get().(*workspace)
	if ws == nil {
		ws = &workspace{}
	}
	return &augLagHandle{cfg: a, ws: ws}, nil
}

type workspace struct {
	x, grad, trial, proj []float64
	cgrad                []float64
	lambdaLo, lambdaHi   []float64
}

func (ws *workspace) resize(n, m int) {
	grow := func(s []float64, l int) []float64 {
		if cap(s) < l {
			return make([]float64, l)
		}
		return s[:l]
	}
	ws.x = grow(ws.x, n)
	ws.grad = grow(ws.grad, n)
	ws.trial = grow(ws.trial, n)
	ws.proj = grow(ws.proj, n)
	ws.cgrad = grow(ws.cgrad, n)
	ws.lambdaLo = grow(ws.lambdaLo, m)
	ws.lambdaHi = grow(ws.lambdaHi, m)
	for j := 0; j < m; j++ {
		ws.lambdaLo[j] = 0
		ws.lambdaHi[j] = 0
	}
}

type augLagHandle struct {
	cfg *AugLag
	ws  *workspace
}

// Release returns the workspace to the pool. Idempotent.
func (h *augLagHandle) Release() {
	if h.ws == nil {
		return
	}
	h.cfg.pool.Put(h.ws)
	h.ws = nil
}

func (h *augLagHandle) Solve(ctx context.Context, p Problem, start []float64) (Result, error) {
	if h.ws == nil {
		return Result{Status: solver.Unknown}, errors.New("handle already released")
	}
	n, m := p.NbVariables(), p.NbConstraints()
	if len(start) != n {
		return Result{Status: solver.Unknown}, fmt.Errorf("start sized %d, want %d", len(start), n)
	}
	for i, v := range start {
		if math.IsNaN(v) {
			return Result{Status: solver.Unknown}, fmt.Errorf("start[%d] is NaN", i)
		}
	}

	ws := h.ws
	ws.resize(n, m)
	copy(ws.x, start)
	projectInto(p, ws.x)

	mu := h.cfg.InitialPenalty
	prevViolation := math.Inf(1)
	iterations := 0

	for outer := 0; outer < h.cfg.MaxOuter; outer++ {
		converged, canceled, err := h.minimizeInner(ctx, p, mu, &iterations)
		if err != nil {
			return Result{Status: solver.Unknown}, err
		}

		violation, err := h.maxViolation(p)
		if err != nil {
			return Result{Status: solver.Unknown}, err
		}

		if canceled {
			return h.result(p, solver.Unknown, violation, iterations)
		}

		if converged && violation <= h.cfg.FeasTol {
			status := solver.LocallyOptimal
			if p.Affine() {
				status = solver.Optimal
			}
			return h.result(p, status, violation, iterations)
		}

		// multiplier update, then penalty escalation when the violation
		// did not shrink enough
		if err := h.updateMultipliers(p, mu); err != nil {
			return Result{Status: solver.Unknown}, err
		}
		if violation > 0.25*prevViolation {
			mu = math.Min(mu*10, h.cfg.PenaltyCap)
		}
		prevViolation = violation

		if mu >= h.cfg.PenaltyCap && violation > h.cfg.FeasTol {
			// the penalty is maxed out and the iterate still cannot reach
			// the feasible set
			return h.result(p, solver.Infeasible, violation, iterations)
		}
	}

	violation, err := h.maxViolation(p)
	if err != nil {
		return Result{Status: solver.Unknown}, err
	}
	// iteration budget exhausted; a feasible iterate is still a usable
	// local answer
	status := solver.Unknown
	if violation <= h.cfg.FeasTol {
		status = solver.LocallyOptimal
	}
	return h.result(p, status, violation, iterations)
}

func (h *augLagHandle) result(p Problem, status solver.Status, violation float64, iterations int) (Result, error) {
	f, err := p.Objective(h.ws.x)
	if err != nil {
		return Result{Status: solver.Unknown}, err
	}
	x := make([]float64, len(h.ws.x))
	copy(x, h.ws.x)
	return Result{
		Status:     status,
		Objective:  f,
		X:          x,
		Iterations: iterations,
		Violation:  violation,
	}, nil
}

// minimizeInner runs projected-gradient descent on the augmented Lagrangian
// for the current multipliers. It reports whether the iterate converged, by
// stationarity or by the accepted steps stalling below the tolerance, and
// whether the context was canceled.
func (h *augLagHandle) minimizeInner(ctx context.Context, p Problem, mu float64, iterations *int) (converged, canceled bool, err error) {
	ws := h.ws
	const sigma = 1e-4

	for inner := 0; inner < h.cfg.MaxInner; inner++ {
		*iterations++
		if *iterations%16 == 0 && ctx.Err() != nil {
			return false, true, nil
		}

		value, err := h.augmented(p, ws.x, mu, ws.grad)
		if err != nil {
			return false, false, err
		}
		if !isFinite(value) {
			// nothing sensible to descend from
			return false, false, nil
		}

		// stationarity: distance between x and its projected gradient step
		copy(ws.proj, ws.x)
		floats.AddScaled(ws.proj, -1, ws.grad)
		projectInto(p, ws.proj)
		if floats.Distance(ws.x, ws.proj, math.Inf(1)) <= h.cfg.Tol*(1+floats.Norm(ws.x, math.Inf(1))) {
			return true, false, nil
		}

		// Armijo backtracking on the projected step
		accepted := false
		step := 1.0
		for k := 0; k < 60; k++ {
			copy(ws.trial, ws.x)
			floats.AddScaled(ws.trial, -step, ws.grad)
			projectInto(p, ws.trial)

			trialValue, err := h.augmented(p, ws.trial, mu, nil)
			if err != nil {
				return false, false, err
			}
			var decrease float64
			for i := range ws.x {
				decrease += ws.grad[i] * (ws.x[i] - ws.trial[i])
			}
			if isFinite(trialValue) && trialValue <= value-sigma*decrease {
				moved := floats.Distance(ws.x, ws.trial, math.Inf(1))
				copy(ws.x, ws.trial)
				if moved <= h.cfg.Tol*(1+floats.Norm(ws.x, math.Inf(1))) {
					// once accepted steps shrink this far the iterate has
					// stopped moving; with a steep penalty the raw gradient
					// never meets the stationarity test even at the minimum
					return true, false, nil
				}
				accepted = true
				break
			}
			step /= 2
		}
		if !accepted {
			// line search stalled; the iterate is numerically stationary
			return true, false, nil
		}
	}
	return false, false, nil
}

// augmented computes the augmented Lagrangian at x and, when grad is
// non-nil, its gradient. Two-sided constraint bounds contribute one
// Powell-Hestenes-Rockafellar term per finite side.
func (h *augLagHandle) augmented(p Problem, x []float64, mu float64, grad []float64) (float64, error) {
	ws := h.ws

	value, err := p.Objective(x)
	if err != nil {
		return 0, err
	}
	if grad != nil {
		if err := p.Gradient(x, grad); err != nil {
			return 0, err
		}
	}

	m := p.NbConstraints()
	for j := 0; j < m; j++ {
		c, err := p.Constraint(j, x)
		if err != nil {
			return 0, err
		}
		cl, cu := p.ConstraintBounds(j)

		var scale float64 // multiplier of grad c_j in the AL gradient
		if !math.IsInf(cu, 1) {
			if t := ws.lambdaHi[j] + mu*(c-cu); t > 0 {
				value += (t*t - ws.lambdaHi[j]*ws.lambdaHi[j]) / (2 * mu)
				scale += t
			} else {
				value -= ws.lambdaHi[j] * ws.lambdaHi[j] / (2 * mu)
			}
		}
		if !math.IsInf(cl, -1) {
			if t := ws.lambdaLo[j] + mu*(cl-c); t > 0 {
				value += (t*t - ws.lambdaLo[j]*ws.lambdaLo[j]) / (2 * mu)
				scale -= t
			} else {
				value -= ws.lambdaLo[j] * ws.lambdaLo[j] / (2 * mu)
			}
		}

		if grad != nil && scale != 0 {
			if err := p.ConstraintGradient(j, x, ws.cgrad); err != nil {
				return 0, err
			}
			floats.AddScaled(grad, scale, ws.cgrad)
		}
	}
	return value, nil
}

func (h *augLagHandle) updateMultipliers(p Problem, mu float64) error {
	ws := h.ws
	for j := 0; j < p.NbConstraints(); j++ {
		c, err := p.Constraint(j, ws.x)
		if err != nil {
			return err
		}
		cl, cu := p.ConstraintBounds(j)
		if !math.IsInf(cu, 1) {
			ws.lambdaHi[j] = math.Max(0, ws.lambdaHi[j]+mu*(c-cu))
		}
		if !math.IsInf(cl, -1) {
			ws.lambdaLo[j] = math.Max(0, ws.lambdaLo[j]+mu*(cl-c))
		}
	}
	return nil
}

func (h *augLagHandle) maxViolation(p Problem) (float64, error) {
	var v float64
	for j := 0; j < p.NbConstraints(); j++ {
		c, err := p.Constraint(j, h.ws.x)
		if err != nil {
			return 0, err
		}
		cl, cu := p.ConstraintBounds(j)
		if !math.IsInf(cl, -1) {
			v = math.Max(v, cl-c)
		}
		if !math.IsInf(cu, 1) {
			v = math.Max(v, c-cu)
		}
		if math.IsNaN(c) {
			v = math.Inf(1)
		}
	}
	return v, nil
}

func projectInto(p Problem, x []float64) {
	for i := range x {
		lo, hi := p.VariableBounds(i)
		if x[i] < lo {
			x[i] = lo
		}
		if x[i] > hi {
			x[i] = hi
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
