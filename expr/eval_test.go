package expr_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tamarack-opt/tamarack/expr"
)

func bound(t *testing.T, n *expr.Node, nbVars int) *expr.Node {
	t.Helper()
	require.NoError(t, expr.Bind(n, seqBinder{nbVars: nbVars}))
	return n
}

func TestEval(t *testing.T) {
	assert := require.New(t)
	x := []float64{2, -3, 0.25}

	for _, tc := range []struct {
		name string
		tree *expr.Node
		want float64
	}{
		{"constant", expr.Constant(4.5), 4.5},
		{"ref", expr.Ref(1), -3},
		{"add", expr.Apply(expr.OpAdd, expr.Ref(0), expr.Ref(1), expr.Constant(10)), 9},
		{"sub", expr.Apply(expr.OpSub, expr.Ref(0), expr.Ref(1)), 5},
		{"mul", expr.Apply(expr.OpMul, expr.Constant(2), expr.Ref(0), expr.Ref(2)), 1},
		{"div", expr.Apply(expr.OpDiv, expr.Ref(0), expr.Constant(8)), 0.25},
		{"pow", expr.Apply(expr.OpPow, expr.Ref(0), expr.Constant(3)), 8},
		{"neg", expr.Apply(expr.OpNeg, expr.Ref(1)), 3},
		{"sqrt", expr.Apply(expr.OpSqrt, expr.Ref(2)), 0.5},
		{"exp", expr.Apply(expr.OpExp, expr.Constant(0)), 1},
		{"log", expr.Apply(expr.OpLog, expr.Constant(math.E)), 1},
		{"sin", expr.Apply(expr.OpSin, expr.Constant(0)), 0},
		{"cos", expr.Apply(expr.OpCos, expr.Constant(0)), 1},
		{"abs", expr.Apply(expr.OpAbs, expr.Ref(1)), 3},
	} {
		got, err := expr.Eval(bound(t, tc.tree, len(x)), x)
		assert.NoError(err, tc.name)
		assert.InDelta(tc.want, got, 1e-12, tc.name)
	}
}

func TestEvalIEEE(t *testing.T) {
	assert := require.New(t)

	v, err := expr.Eval(expr.Apply(expr.OpDiv, expr.Constant(1), expr.Constant(0)), nil)
	assert.NoError(err)
	assert.True(math.IsInf(v, 1))

	v, err = expr.Eval(expr.Apply(expr.OpLog, expr.Constant(-1)), nil)
	assert.NoError(err)
	assert.True(math.IsNaN(v))
}

func TestEvalErrors(t *testing.T) {
	assert := require.New(t)

	_, err := expr.Eval(nil, nil)
	assert.ErrorIs(err, expr.ErrUnexpectedNode)

	_, err = expr.Eval(&expr.Node{Kind: expr.Kind(99)}, nil)
	assert.ErrorIs(err, expr.ErrUnexpectedNode)

	// unbound reference
	_, err = expr.Eval(expr.Ref(0), []float64{1})
	assert.Error(err)

	// arity violations
	_, err = expr.Eval(expr.Apply(expr.OpAdd), nil)
	assert.ErrorIs(err, expr.ErrUnexpectedNode)
	_, err = expr.Eval(expr.Apply(expr.OpDiv, expr.Constant(1)), nil)
	assert.ErrorIs(err, expr.ErrUnexpectedNode)
	_, err = expr.Eval(expr.Apply(expr.OpSqrt, expr.Constant(1), expr.Constant(2)), nil)
	assert.ErrorIs(err, expr.ErrUnexpectedNode)

	// point too short for the bound handle
	short := bound(t, expr.Ref(2), 3)
	_, err = expr.Eval(short, []float64{1})
	assert.Error(err)
}

func TestIsAffine(t *testing.T) {
	assert := require.New(t)

	for _, tc := range []struct {
		name string
		tree *expr.Node
		want bool
	}{
		{"nil", nil, true},
		{"constant", expr.Constant(3), true},
		{"ref", expr.Ref(0), true},
		{"scaled ref", expr.Apply(expr.OpMul, expr.Constant(2), expr.Ref(0)), true},
		{"sum", expr.Apply(expr.OpAdd, expr.Ref(0), expr.Ref(1), expr.Constant(1)), true},
		{"diff", expr.Apply(expr.OpSub, expr.Ref(0), expr.Ref(1)), true},
		{"neg", expr.Apply(expr.OpNeg, expr.Ref(0)), true},
		{"div by const", expr.Apply(expr.OpDiv, expr.Ref(0), expr.Constant(2)), true},
		{"pow one", expr.Apply(expr.OpPow, expr.Ref(0), expr.Constant(1)), true},
		{"pow zero", expr.Apply(expr.OpPow, expr.Ref(0), expr.Constant(0)), true},
		{"const transcendental", expr.Apply(expr.OpExp, expr.Constant(1)), true},
		{"product of refs", expr.Apply(expr.OpMul, expr.Ref(0), expr.Ref(1)), false},
		{"square", expr.Apply(expr.OpPow, expr.Ref(0), expr.Constant(2)), false},
		{"div by ref", expr.Apply(expr.OpDiv, expr.Constant(1), expr.Ref(0)), false},
		{"sqrt of ref", expr.Apply(expr.OpSqrt, expr.Ref(0)), false},
		{"sin of ref", expr.Apply(expr.OpSin, expr.Ref(0)), false},
		{"ref exponent", expr.Apply(expr.OpPow, expr.Constant(2), expr.Ref(0)), false},
		{"fractional exponent", expr.Apply(expr.OpPow, expr.Ref(0), expr.Constant(0.5)), false},
		{"affine under sum of squares", expr.Apply(expr.OpAdd,
			expr.Apply(expr.OpPow, expr.Ref(0), expr.Constant(2)),
			expr.Ref(1)), false},
	} {
		assert.Equal(tc.want, expr.IsAffine(tc.tree), tc.name)
	}
}

func TestString(t *testing.T) {
	assert := require.New(t)

	tree := expr.Apply(expr.OpSub,
		expr.Apply(expr.OpMul, expr.Constant(2), expr.Ref(0)),
		expr.Apply(expr.OpSqrt, expr.Ref(1)),
	)
	assert.Equal("((2 * x0) - sqrt(x1))", tree.String())
}
