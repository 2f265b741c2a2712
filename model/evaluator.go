package model

import (
	"errors"
	"fmt"

	"github.com/tamarack-opt/tamarack/expr"
)

// Features describes the capabilities a solve requests from an Evaluator at
// initialization.
type Features uint8

const (
	FeatureGraphs Features = 1 << iota
	FeatureGradients
	FeatureJacobians
)

// Evaluator is the external oracle describing a problem's objective and
// constraints. tamarack only ever reads expression graphs and linearity from
// it; derivative information is computed downstream from the bound graphs.
//
// Init is called exactly once per solve, before any other method.
type Evaluator interface {
	Init(features Features) error
	ObjectiveGraph() (*expr.Node, error)
	ConstraintGraph(i int) (*expr.Node, error)
	ConstraintIsLinear(i int) (bool, error)
}

var errNotInitialized = errors.New("evaluator not initialized")

// GraphEvaluator is the reference Evaluator, backed by explicit expression
// trees. One instance backs a single solve: its trees are handed to the
// relaxation and bound in place there.
type GraphEvaluator struct {
	objective   *expr.Node
	constraints []*expr.Node
	features    Features
	initialized bool
}

// NewGraphEvaluator returns an evaluator over the given objective and
// constraint trees. Constraint i keeps position i.
func NewGraphEvaluator(objective *expr.Node, constraints ...*expr.Node) *GraphEvaluator {
	return &GraphEvaluator{objective: objective, constraints: constraints}
}

func (g *GraphEvaluator) Init(features Features) error {
	if features&FeatureGraphs == 0 {
		return errors.New("graph evaluator requires FeatureGraphs")
	}
	g.features = features
	g.initialized = true
	return nil
}

func (g *GraphEvaluator) ObjectiveGraph() (*expr.Node, error) {
	if !g.initialized {
		return nil, errNotInitialized
	}
	return g.objective, nil
}

func (g *GraphEvaluator) ConstraintGraph(i int) (*expr.Node, error) {
	if !g.initialized {
		return nil, errNotInitialized
	}
	if i < 0 || i >= len(g.constraints) {
		return nil, fmt.Errorf("constraint %d out of range (have %d)", i, len(g.constraints))
	}
	return g.constraints[i], nil
}

func (g *GraphEvaluator) ConstraintIsLinear(i int) (bool, error) {
	if !g.initialized {
		return false, errNotInitialized
	}
	if i < 0 || i >= len(g.constraints) {
		return false, fmt.Errorf("constraint %d out of range (have %d)", i, len(g.constraints))
	}
	return expr.IsAffine(g.constraints[i]), nil
}

// NbConstraints returns the number of constraint trees.
func (g *GraphEvaluator) NbConstraints() int {
	return len(g.constraints)
}
