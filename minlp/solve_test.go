package minlp_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tamarack-opt/tamarack/expr"
	"github.com/tamarack-opt/tamarack/minlp"
	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/nlp"
	"github.com/tamarack-opt/tamarack/solver"
)

// linearProblem is min x+y on [0,10]^2 subject to x+y <= 5; the optimum is
// x=y=0 with objective 0.
func linearProblem() *model.Problem {
	return &model.Problem{
		NbVariables:   2,
		NbConstraints: 1,
		VarLower:      []float64{0, 0},
		VarUpper:      []float64{10, 10},
		ConsLower:     []float64{math.Inf(-1)},
		ConsUpper:     []float64{5},
		Evaluator: model.NewGraphEvaluator(
			expr.Apply(expr.OpAdd, expr.Ref(0), expr.Ref(1)),
			expr.Apply(expr.OpAdd, expr.Ref(0), expr.Ref(1)),
		),
	}
}

// halfBinaryProblem is min x, x binary, subject to x >= 0.5. The continuous
// relaxation optimum is x=0.5; the only integer-feasible point is x=1.
func halfBinaryProblem() *model.Problem {
	return &model.Problem{
		NbVariables:   1,
		NbConstraints: 1,
		VarLower:      []float64{-3}, // clipped to 0 by the binary typing
		VarUpper:      []float64{8},  // clipped to 1
		ConsLower:     []float64{0.5},
		ConsUpper:     []float64{math.Inf(1)},
		Kinds:         []model.VarKind{model.Binary},
		Evaluator: model.NewGraphEvaluator(
			expr.Ref(0),
			expr.Ref(0),
		),
	}
}

func TestSolveContinuousSerial(t *testing.T) {
	assert := require.New(t)

	res, err := minlp.Solve(context.Background(), linearProblem(), minlp.WithWorkers(1))
	assert.NoError(err)

	assert.Equal(solver.Optimal, res.Status)
	assert.InDelta(0, res.Objective, 1e-6)
	assert.Equal(res.Objective, res.Bound)
	assert.InDelta(0, res.X[0], 1e-6)
	assert.InDelta(0, res.X[1], 1e-6)
	assert.Equal(1, res.NbSolutions)
	assert.Len(res.History, 1)
	assert.Equal(0.0, res.Gap)
	assert.Greater(res.SolveTime, res.RelaxTime)

	// no discrete variables: the search never ran
	assert.Equal(uint64(0), res.Counters.Nodes)
}

func TestSolveContinuousParallel(t *testing.T) {
	assert := require.New(t)

	res, err := minlp.Solve(context.Background(), linearProblem(),
		minlp.WithWorkers(3),
		minlp.WithMinRestarts(5),
		minlp.WithSeed(11),
	)
	assert.NoError(err)

	assert.Equal(solver.Optimal, res.Status)
	assert.InDelta(0, res.Objective, 1e-6)
	assert.Len(res.History, 1)
}

func TestSolveBinary(t *testing.T) {
	assert := require.New(t)

	p := halfBinaryProblem()
	res, err := minlp.Solve(context.Background(), p, minlp.WithWorkers(1))
	assert.NoError(err)

	// typing clipped the declared bounds
	assert.Equal(0.0, p.VarLower[0])
	assert.Equal(1.0, p.VarUpper[0])

	assert.Equal(solver.Optimal, res.Status)
	assert.Equal(1.0, res.X[0])
	assert.InDelta(1, res.Objective, 1e-6)
	assert.GreaterOrEqual(res.NbSolutions, 1)
	assert.Greater(res.Counters.Nodes, uint64(0))
}

func TestSolveBinaryWithoutHeuristic(t *testing.T) {
	assert := require.New(t)

	res, err := minlp.Solve(context.Background(), halfBinaryProblem(),
		minlp.WithWorkers(1),
		minlp.WithoutHeuristic(),
	)
	assert.NoError(err)
	assert.Equal(solver.Optimal, res.Status)
	assert.Equal(1.0, res.X[0])
}

// flakySolver fails a fixed number of attempts before delegating.
type flakySolver struct {
	inner nlp.Solver

	mu       sync.Mutex
	failures int
	attempts int
}

func (s *flakySolver) Acquire() (nlp.Handle, error) {
	h, err := s.inner.Acquire()
	if err != nil {
		return nil, err
	}
	return &flakyHandle{inner: h, s: s}, nil
}

type flakyHandle struct {
	inner nlp.Handle
	s     *flakySolver
}

func (h *flakyHandle) Solve(ctx context.Context, p nlp.Problem, start []float64) (nlp.Result, error) {
	h.s.mu.Lock()
	h.s.attempts++
	fail := h.s.attempts <= h.s.failures
	h.s.mu.Unlock()
	if fail {
		return nlp.Result{Status: solver.Unknown}, nil
	}
	return h.inner.Solve(ctx, p, start)
}

func (h *flakyHandle) Release() { h.inner.Release() }

func TestSerialRetryLoop(t *testing.T) {
	assert := require.New(t)

	// first two attempts do not converge; the serial loop retries within
	// its budget and succeeds on the third
	flaky := &flakySolver{inner: nlp.NewAugLag(), failures: 2}
	res, err := minlp.Solve(context.Background(), linearProblem(),
		minlp.WithWorkers(1),
		minlp.WithRetries(3),
		minlp.WithNLP(flaky),
	)
	assert.NoError(err)
	assert.Equal(solver.Optimal, res.Status)
	assert.Equal(3, flaky.attempts)
}

func TestSerialRetryBudgetExhausted(t *testing.T) {
	assert := require.New(t)

	flaky := &flakySolver{inner: nlp.NewAugLag(), failures: 100}
	res, err := minlp.Solve(context.Background(), linearProblem(),
		minlp.WithWorkers(1),
		minlp.WithRetries(3),
		minlp.WithNLP(flaky),
	)
	assert.NoError(err)

	// 1 initial attempt + 3 retries, then the terminal status is surfaced
	assert.Equal(4, flaky.attempts)
	assert.Equal(solver.Unknown, res.Status)
	assert.Equal(0, res.NbSolutions)
	assert.True(math.IsNaN(res.Gap))
}

// fadingSolver answers its first attempt and errors on every later one.
type fadingSolver struct {
	first nlp.Result

	mu       sync.Mutex
	attempts int
}

func (s *fadingSolver) Acquire() (nlp.Handle, error) { return &fadingHandle{s: s}, nil }

type fadingHandle struct{ s *fadingSolver }

func (h *fadingHandle) Solve(context.Context, nlp.Problem, []float64) (nlp.Result, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.attempts++
	if h.s.attempts == 1 {
		return h.s.first, nil
	}
	return nlp.Result{Status: solver.Unknown}, errors.New("solver gone")
}

func (h *fadingHandle) Release() {}

func TestSerialRetryKeepsEarlierStatus(t *testing.T) {
	assert := require.New(t)

	// attempt 1 converges to an Infeasible verdict and the retries error;
	// the verdict is surfaced as the terminal status, not a hard failure
	fading := &fadingSolver{first: nlp.Result{
		Status: solver.Infeasible,
		X:      []float64{0, 0},
	}}
	res, err := minlp.Solve(context.Background(), linearProblem(),
		minlp.WithWorkers(1),
		minlp.WithRetries(2),
		minlp.WithNLP(fading),
	)
	assert.NoError(err)
	assert.Equal(solver.Infeasible, res.Status)
	assert.Equal(3, fading.attempts)
}

// brokenEvaluator hands out a tree with an undeclared node kind.
type brokenEvaluator struct {
	model.GraphEvaluator
}

func (b *brokenEvaluator) ObjectiveGraph() (*expr.Node, error) {
	return &expr.Node{Kind: expr.Kind(42)}, nil
}

func TestRewriteContractViolationAborts(t *testing.T) {
	assert := require.New(t)

	p := linearProblem()
	p.Evaluator = &brokenEvaluator{}

	_, err := minlp.Solve(context.Background(), p)
	assert.Error(err)
	assert.ErrorIs(err, expr.ErrUnexpectedNode)
}

func TestConfigValidation(t *testing.T) {
	assert := require.New(t)

	for _, opt := range []minlp.Option{
		minlp.WithWorkers(0),
		minlp.WithWorkers(-1),
		minlp.WithMinRestarts(-1),
		minlp.WithRetries(-1),
		minlp.WithTimeBudget(0),
		minlp.WithNLP(nil),
		minlp.WithSearch(nil),
		minlp.WithProfile(""),
	} {
		_, err := minlp.NewConfig(opt)
		assert.Error(err)
	}

	cfg, err := minlp.NewConfig(minlp.WithWorkers(2), minlp.WithMinRestarts(9))
	assert.NoError(err)
	assert.Equal(9, cfg.MinRestarts)
	assert.NotNil(cfg.NLP)
	assert.NotNil(cfg.Heuristic)
	assert.NotNil(cfg.Search)

	cfg, err = minlp.NewConfig(minlp.WithoutHeuristic())
	assert.NoError(err)
	assert.Nil(cfg.Heuristic)
}

func TestSolveRejectsBadProblem(t *testing.T) {
	assert := require.New(t)

	p := linearProblem()
	p.VarLower[0] = 11 // crossed bounds
	_, err := minlp.Solve(context.Background(), p)
	assert.Error(err)
	assert.ErrorIs(err, model.ErrInvalidProblem)
}

var errNoLicense = errors.New("no license")

type deadSolver struct{}

func (deadSolver) Acquire() (nlp.Handle, error) { return nil, errNoLicense }

func TestAllWorkersUnusable(t *testing.T) {
	assert := require.New(t)

	_, err := minlp.Solve(context.Background(), linearProblem(),
		minlp.WithWorkers(1),
		minlp.WithNLP(deadSolver{}),
	)
	assert.ErrorIs(err, errNoLicense)
}
