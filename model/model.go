// Package model declares the mixed-integer nonlinear problems tamarack
// solves: variable and constraint bounds, an optimization sense, per-variable
// typing and an external evaluator describing objective and constraints as
// expression graphs.
package model

import (
	"errors"
	"fmt"
	"math"
)

// Sense is the optimization direction of a problem.
type Sense uint8

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	switch s {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return "unknown"
	}
}

// Better reports whether objective a improves on objective b in this sense.
func (s Sense) Better(a, b float64) bool {
	if s == Maximize {
		return a > b
	}
	return a < b
}

// Worst returns the least favorable objective value in this sense.
func (s Sense) Worst() float64 {
	if s == Maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

var ErrInvalidProblem = errors.New("invalid problem")

// Problem is a box-bounded optimization problem
//
//	min/max  f(x)
//	s.t.     ConsLower[j] <= c_j(x) <= ConsUpper[j]
//	         VarLower[i]  <= x_i    <= VarUpper[i]
//
// where f and the c_j are described by the Evaluator. Kinds, Start and Names
// are optional; empty slices mean all-continuous, midpoint start and unnamed
// variables.
type Problem struct {
	NbVariables   int
	NbConstraints int

	VarLower, VarUpper   []float64
	ConsLower, ConsUpper []float64

	Sense Sense
	Kinds []VarKind
	Start []float64
	Names []string

	Evaluator Evaluator
}

// Validate checks structural consistency. It is called by the orchestrator
// before anything else touches the problem.
func (p *Problem) Validate() error {
	if p.NbVariables <= 0 {
		return fmt.Errorf("%w: no variables", ErrInvalidProblem)
	}
	if p.NbConstraints < 0 {
		return fmt.Errorf("%w: negative constraint count", ErrInvalidProblem)
	}
	if p.Evaluator == nil {
		return fmt.Errorf("%w: nil evaluator", ErrInvalidProblem)
	}
	if p.Sense != Minimize && p.Sense != Maximize {
		return fmt.Errorf("%w: unknown sense %d", ErrInvalidProblem, p.Sense)
	}
	if len(p.VarLower) != p.NbVariables || len(p.VarUpper) != p.NbVariables {
		return fmt.Errorf("%w: variable bounds sized %d/%d, want %d",
			ErrInvalidProblem, len(p.VarLower), len(p.VarUpper), p.NbVariables)
	}
	if len(p.ConsLower) != p.NbConstraints || len(p.ConsUpper) != p.NbConstraints {
		return fmt.Errorf("%w: constraint bounds sized %d/%d, want %d",
			ErrInvalidProblem, len(p.ConsLower), len(p.ConsUpper), p.NbConstraints)
	}
	if len(p.Kinds) != 0 && len(p.Kinds) != p.NbVariables {
		return fmt.Errorf("%w: kinds sized %d, want 0 or %d", ErrInvalidProblem, len(p.Kinds), p.NbVariables)
	}
	if len(p.Start) != 0 && len(p.Start) != p.NbVariables {
		return fmt.Errorf("%w: start sized %d, want 0 or %d", ErrInvalidProblem, len(p.Start), p.NbVariables)
	}
	if len(p.Names) != 0 && len(p.Names) != p.NbVariables {
		return fmt.Errorf("%w: names sized %d, want 0 or %d", ErrInvalidProblem, len(p.Names), p.NbVariables)
	}
	for i := 0; i < p.NbVariables; i++ {
		lo, hi := p.VarLower[i], p.VarUpper[i]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return fmt.Errorf("%w: NaN bound on variable %d", ErrInvalidProblem, i)
		}
		if lo > hi {
			return fmt.Errorf("%w: variable %d bounds [%g, %g] are crossed", ErrInvalidProblem, i, lo, hi)
		}
	}
	for j := 0; j < p.NbConstraints; j++ {
		lo, hi := p.ConsLower[j], p.ConsUpper[j]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return fmt.Errorf("%w: NaN bound on constraint %d", ErrInvalidProblem, j)
		}
		if lo > hi {
			return fmt.Errorf("%w: constraint %d bounds [%g, %g] are crossed", ErrInvalidProblem, j, lo, hi)
		}
	}
	return nil
}

// DefaultStart returns the starting point used when the problem declares
// none: the midpoint of finite bounds, the finite bound when only one side is
// finite, zero otherwise.
func (p *Problem) DefaultStart() []float64 {
	x := make([]float64, p.NbVariables)
	for i := range x {
		lo, hi := p.VarLower[i], p.VarUpper[i]
		switch {
		case !math.IsInf(lo, 0) && !math.IsInf(hi, 0):
			x[i] = (lo + hi) / 2
		case !math.IsInf(lo, 0):
			x[i] = lo
		case !math.IsInf(hi, 0):
			x[i] = hi
		}
	}
	return x
}

// StartingPoint returns Start when set, DefaultStart otherwise. The returned
// slice is always a fresh copy.
func (p *Problem) StartingPoint() []float64 {
	if len(p.Start) == 0 {
		return p.DefaultStart()
	}
	x := make([]float64, len(p.Start))
	copy(x, p.Start)
	return x
}
