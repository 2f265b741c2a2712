package model_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/tamarack-opt/tamarack/expr"
	"github.com/tamarack-opt/tamarack/model"
)

func problemWithKinds(kinds []model.VarKind) *model.Problem {
	n := len(kinds)
	p := &model.Problem{
		NbVariables: n,
		VarLower:    make([]float64, n),
		VarUpper:    make([]float64, n),
		Kinds:       kinds,
		Evaluator:   model.NewGraphEvaluator(expr.Constant(0)),
	}
	for i := range p.VarLower {
		p.VarLower[i] = -5
		p.VarUpper[i] = 7
	}
	return p
}

func TestNewTyping(t *testing.T) {
	assert := require.New(t)

	p := problemWithKinds([]model.VarKind{
		model.Continuous, model.Integer, model.Binary, model.Continuous, model.Binary,
	})
	ty, err := model.NewTyping(p)
	assert.NoError(err)

	assert.Equal(2, ty.NbContinuous)
	assert.Equal(1, ty.NbInteger)
	assert.Equal(2, ty.NbBinary)
	assert.Equal(3, ty.NbDiscrete())
	assert.Equal([]int{1, 2, 4}, ty.DiscreteToVar)
	assert.Equal([]int{0, 1, 2, 0, 3}, ty.VarToDiscrete)

	// binary bounds clipped in place
	assert.Equal(0.0, p.VarLower[2])
	assert.Equal(1.0, p.VarUpper[2])
	assert.Equal(0.0, p.VarLower[4])
	assert.Equal(1.0, p.VarUpper[4])
	// integer bounds untouched
	assert.Equal(-5.0, p.VarLower[1])
	assert.Equal(7.0, p.VarUpper[1])

	assert.False(ty.Discrete(0))
	assert.True(ty.Discrete(1))
}

func TestNewTypingEmptyKinds(t *testing.T) {
	assert := require.New(t)

	p := problemWithKinds(nil)
	p.NbVariables = 3
	p.VarLower = []float64{0, 0, 0}
	p.VarUpper = []float64{1, 1, 1}
	ty, err := model.NewTyping(p)
	assert.NoError(err)
	assert.Equal(3, ty.NbContinuous)
	assert.Equal(0, ty.NbDiscrete())
}

func TestNewTypingRejects(t *testing.T) {
	assert := require.New(t)

	// binary variable whose bounds exclude both 0 and 1
	p := problemWithKinds([]model.VarKind{model.Binary})
	p.VarLower[0] = 2
	p.VarUpper[0] = 3
	_, err := model.NewTyping(p)
	assert.ErrorIs(err, model.ErrInvalidProblem)

	p = problemWithKinds([]model.VarKind{model.VarKind(42)})
	_, err = model.NewTyping(p)
	assert.ErrorIs(err, model.ErrInvalidProblem)
}

func TestTypingSerialization(t *testing.T) {
	assert := require.New(t)

	p := problemWithKinds([]model.VarKind{
		model.Integer, model.Continuous, model.Binary, model.Integer,
	})
	ty, err := model.NewTyping(p)
	assert.NoError(err)

	var buf bytes.Buffer
	written, err := ty.WriteTo(&buf)
	assert.NoError(err)
	assert.Equal(int64(buf.Len()), written)

	var got model.Typing
	read, err := got.ReadFrom(&buf)
	assert.NoError(err)
	assert.Equal(written, read)

	if diff := cmp.Diff(ty, &got); diff != "" {
		t.Fatalf("typing mismatch (-want +got):\n%s", diff)
	}
}

func TestTypingMapsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genKinds := gen.SliceOf(gen.UInt8Range(0, 2).Map(func(k uint8) model.VarKind {
		return model.VarKind(k)
	}))

	properties.Property("discrete index maps stay bijective", prop.ForAll(
		func(kinds []model.VarKind) bool {
			if len(kinds) == 0 {
				return true
			}
			ty, err := model.NewTyping(problemWithKinds(kinds))
			if err != nil {
				return false
			}
			if ty.NbDiscrete() != ty.NbInteger+ty.NbBinary {
				return false
			}
			for d, v := range ty.DiscreteToVar {
				if ty.VarToDiscrete[v] != d+1 {
					return false
				}
			}
			for v, d := range ty.VarToDiscrete {
				if d == 0 {
					if ty.Discrete(v) {
						return false
					}
					continue
				}
				if ty.DiscreteToVar[d-1] != v {
					return false
				}
			}
			return true
		},
		genKinds,
	))

	properties.TestingRun(t)
}

func TestTypingReadFromRejectsCorrupted(t *testing.T) {
	assert := require.New(t)

	var ty model.Typing
	_, err := ty.ReadFrom(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(err)

	// a truncated valid stream
	p := problemWithKinds([]model.VarKind{model.Integer, model.Binary})
	src, err := model.NewTyping(p)
	assert.NoError(err)
	var buf bytes.Buffer
	_, err = src.WriteTo(&buf)
	assert.NoError(err)
	raw := buf.Bytes()
	_, err = ty.ReadFrom(bytes.NewReader(raw[:len(raw)/2]))
	assert.Error(err)
}
