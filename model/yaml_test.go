package model_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tamarack-opt/tamarack/model"
)

const sampleProblem = `
sense: minimize
variables:
  - {name: x, lower: 0, upper: 10, kind: integer}
  - {name: y, lower: 0, upper: 4, start: 1}
objective:
  terms:
    - {coef: 1, vars: [x]}
    - {coef: 2, vars: [y], pow: [2]}
constraints:
  - {lower: 1, terms: [{coef: 1, vars: [x]}, {coef: 1, vars: [y]}]}
  - {upper: 8, terms: [{coef: 1, vars: [x, y]}]}
`

func TestParseYAML(t *testing.T) {
	assert := require.New(t)

	p, err := model.ParseYAML(strings.NewReader(sampleProblem))
	assert.NoError(err)

	assert.Equal(2, p.NbVariables)
	assert.Equal(2, p.NbConstraints)
	assert.Equal(model.Minimize, p.Sense)
	assert.Equal([]string{"x", "y"}, p.Names)
	assert.Equal([]model.VarKind{model.Integer, model.Continuous}, p.Kinds)
	assert.Equal([]float64{0, 0}, p.VarLower)
	assert.Equal([]float64{10, 4}, p.VarUpper)
	assert.Equal([]float64{5, 1}, p.Start) // x defaults to its midpoint, y declares 1

	assert.Equal(1.0, p.ConsLower[0])
	assert.True(math.IsInf(p.ConsUpper[0], 1))
	assert.True(math.IsInf(p.ConsLower[1], -1))
	assert.Equal(8.0, p.ConsUpper[1])

	ev, ok := p.Evaluator.(*model.GraphEvaluator)
	assert.True(ok)
	assert.NoError(ev.Init(model.FeatureGraphs))

	linear, err := ev.ConstraintIsLinear(0)
	assert.NoError(err)
	assert.True(linear)
	linear, err = ev.ConstraintIsLinear(1)
	assert.NoError(err)
	assert.False(linear) // x*y

	obj, err := ev.ObjectiveGraph()
	assert.NoError(err)
	assert.Equal("(x0 + (2 * (x1 ^ 2)))", obj.String())
}

func TestParseYAMLDefaults(t *testing.T) {
	assert := require.New(t)

	p, err := model.ParseYAML(strings.NewReader(`
variables:
  - {}
objective:
  terms: [{coef: 3, vars: [x0]}]
`))
	assert.NoError(err)
	assert.Equal(model.Minimize, p.Sense)
	assert.Equal([]string{"x0"}, p.Names)
	assert.True(math.IsInf(p.VarLower[0], -1))
	assert.True(math.IsInf(p.VarUpper[0], 1))
	assert.Empty(p.Start)
	assert.Equal(0, p.NbConstraints)
}

func TestParseYAMLErrors(t *testing.T) {
	assert := require.New(t)

	for name, doc := range map[string]string{
		"no variables":   `objective: {constant: 1}`,
		"unknown sense":  "sense: sideways\nvariables: [{name: x}]",
		"unknown kind":   "variables: [{name: x, kind: complex}]",
		"duplicate name": "variables: [{name: x}, {name: x}]",
		"unknown var":    "variables: [{name: x}]\nobjective: {terms: [{coef: 1, vars: [z]}]}",
		"pow mismatch":   "variables: [{name: x}]\nobjective: {terms: [{coef: 1, vars: [x], pow: [1, 2]}]}",
		"negative power": "variables: [{name: x}]\nobjective: {terms: [{coef: 1, vars: [x], pow: [-1]}]}",
		"unknown field":  "variabless: [{name: x}]",
		"crossed bounds": "variables: [{name: x, lower: 3, upper: 1}]",
	} {
		_, err := model.ParseYAML(strings.NewReader(doc))
		assert.Error(err, name)
	}
}

func TestGraphEvaluatorContract(t *testing.T) {
	assert := require.New(t)

	p, err := model.ParseYAML(strings.NewReader(sampleProblem))
	assert.NoError(err)
	ev := p.Evaluator.(*model.GraphEvaluator)

	// graphs are refused before Init
	_, err = ev.ObjectiveGraph()
	assert.Error(err)
	_, err = ev.ConstraintGraph(0)
	assert.Error(err)

	assert.Error(ev.Init(model.FeatureGradients)) // graphs are mandatory
	assert.NoError(ev.Init(model.FeatureGraphs | model.FeatureGradients))

	_, err = ev.ConstraintGraph(5)
	assert.Error(err)
	_, err = ev.ConstraintIsLinear(-1)
	assert.Error(err)
	assert.Equal(2, ev.NbConstraints())
}
