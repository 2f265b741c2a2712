package expr_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/tamarack-opt/tamarack/expr"
)

// seqBinder maps raw index i to the relaxation variable i.
type seqBinder struct{ nbVars int }

func (b seqBinder) BindVariable(index int) (expr.Var, error) {
	if index < 0 || index >= b.nbVars {
		return expr.Var{}, fmt.Errorf("variable x%d out of range", index)
	}
	return expr.NewVar(index), nil
}

// recordBinder remembers the order in which references are resolved.
type recordBinder struct{ order []int }

func (b *recordBinder) BindVariable(index int) (expr.Var, error) {
	b.order = append(b.order, index)
	return expr.NewVar(index), nil
}

func TestBindDepthFirstLeftToRight(t *testing.T) {
	assert := require.New(t)

	// ((x2 + 3) * x0) - sqrt(x1)
	tree := expr.Apply(expr.OpSub,
		expr.Apply(expr.OpMul,
			expr.Apply(expr.OpAdd, expr.Ref(2), expr.Constant(3)),
			expr.Ref(0),
		),
		expr.Apply(expr.OpSqrt, expr.Ref(1)),
	)

	b := &recordBinder{}
	assert.NoError(expr.Bind(tree, b))
	assert.Equal([]int{2, 0, 1}, b.order)

	// rewrite happened in place
	ref := tree.Args[0].Args[0].Args[0]
	assert.Equal(expr.KindRef, ref.Kind)
	assert.True(ref.V.Valid())
	assert.Equal(2, ref.V.Index())
}

func TestBindNilTree(t *testing.T) {
	require.NoError(t, expr.Bind(nil, seqBinder{nbVars: 1}))
}

func TestBindTwiceFails(t *testing.T) {
	assert := require.New(t)

	tree := expr.Apply(expr.OpAdd, expr.Ref(0), expr.Constant(1))
	assert.NoError(expr.Bind(tree, seqBinder{nbVars: 1}))

	err := expr.Bind(tree, seqBinder{nbVars: 1})
	assert.Error(err)
	assert.ErrorIs(err, expr.ErrAlreadyBound)
}

func TestBindUnexpectedNode(t *testing.T) {
	assert := require.New(t)

	tree := expr.Apply(expr.OpAdd,
		expr.Ref(0),
		&expr.Node{Kind: expr.Kind(42)},
	)
	err := expr.Bind(tree, seqBinder{nbVars: 1})
	assert.ErrorIs(err, expr.ErrUnexpectedNode)

	// a nil argument is a malformed tree too
	tree = expr.Apply(expr.OpMul, expr.Constant(2), nil)
	err = expr.Bind(tree, seqBinder{nbVars: 1})
	assert.ErrorIs(err, expr.ErrUnexpectedNode)
}

func TestBindBinderError(t *testing.T) {
	assert := require.New(t)

	tree := expr.Apply(expr.OpAdd, expr.Ref(0), expr.Ref(7))
	err := expr.Bind(tree, seqBinder{nbVars: 3})
	assert.Error(err)
	assert.Contains(err.Error(), "x7")

	// x0 was already rewritten when the error surfaced; the tree is in an
	// undefined state and must be discarded.
	assert.True(tree.Args[0].V.Valid())
}

func TestBindDeepTree(t *testing.T) {
	assert := require.New(t)

	tree := expr.Ref(0)
	for i := 0; i < 10000; i++ {
		tree = expr.Apply(expr.OpNeg, tree)
	}
	assert.NoError(expr.Bind(tree, seqBinder{nbVars: 1}))

	v, err := expr.Eval(tree, []float64{1.5})
	assert.NoError(err)
	assert.Equal(1.5, v) // even number of negations
}

func TestBindEvalProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("sum trees evaluate to the dot product after binding", prop.ForAll(
		func(coefs []float64) bool {
			if len(coefs) == 0 {
				return true
			}
			args := make([]*expr.Node, len(coefs))
			for i, c := range coefs {
				args[i] = expr.Apply(expr.OpMul, expr.Constant(c), expr.Ref(i))
			}
			tree := expr.Apply(expr.OpAdd, args...)
			if err := expr.Bind(tree, seqBinder{nbVars: len(coefs)}); err != nil {
				return false
			}
			x := make([]float64, len(coefs))
			for i := range x {
				x[i] = float64(i) + 0.5
			}
			got, err := expr.Eval(tree, x)
			if err != nil {
				return false
			}
			var want float64
			for i, c := range coefs {
				want += c * x[i]
			}
			return math.Abs(got-want) <= 1e-9*math.Max(1, math.Abs(want))
		},
		gen.SliceOf(gen.Float64Range(-10, 10)),
	))

	properties.TestingRun(t)
}

func TestVarZeroValueInvalid(t *testing.T) {
	var v expr.Var
	if v.Valid() {
		t.Fatal("zero Var must be unbound")
	}
	if errors.Is(expr.Bind(expr.Ref(0), seqBinder{nbVars: 1}), expr.ErrAlreadyBound) {
		t.Fatal("fresh reference reported as bound")
	}
}
