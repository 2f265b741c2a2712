package relax

import (
	"context"
	"fmt"
	"time"

	"github.com/tamarack-opt/tamarack/logger"
	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/nlp"
	"github.com/tamarack-opt/tamarack/profile"
	"github.com/tamarack-opt/tamarack/solver"
)

// Result is the outcome of one relaxation attempt. Objective is in the
// user's sense.
type Result struct {
	Status    solver.Status
	Objective float64
	X         []float64
	Elapsed   time.Duration
}

// Executor runs relaxation solves against one model. Each call acquires a
// fresh solver handle and releases it on every exit path; the executor keeps
// no state between calls. Workers of a parallel phase each hold their own
// executor over their own model clone.
type Executor struct {
	model *Model
	nlp   nlp.Solver
}

// NewExecutor returns an executor solving m through s.
func NewExecutor(m *Model, s nlp.Solver) *Executor {
	return &Executor{model: m, nlp: s}
}

// Model returns the model the executor solves.
func (e *Executor) Model() *Model { return e.model }

// Solve loads the starting point into the model and runs one continuous
// solve. Non-convergence is reported through the status, not as an error;
// errors mean the solve could not be attempted or a contract was broken.
func (e *Executor) Solve(ctx context.Context, start []float64) (Result, error) {
	if err := e.model.SetStart(start); err != nil {
		return Result{Status: solver.Unknown}, err
	}

	h, err := e.nlp.Acquire()
	if err != nil {
		return Result{Status: solver.Unknown}, fmt.Errorf("acquire solver handle: %w", err)
	}
	defer h.Release()

	profile.RecordAttempt()

	begin := time.Now()
	res, err := h.Solve(ctx, e.model, e.model.x)
	elapsed := time.Since(begin)
	if err != nil {
		return Result{Status: solver.Unknown, Elapsed: elapsed}, fmt.Errorf("relaxation solve: %w", err)
	}

	objective := res.Objective
	if e.model.sense == model.Maximize {
		objective = -objective
	}

	log := logger.Logger()
	log.Debug().
		Stringer("status", res.Status).
		Float64("objective", objective).
		Int("iterations", res.Iterations).
		Dur("took", elapsed).
		Msg("relaxation attempt")

	return Result{
		Status:    res.Status,
		Objective: objective,
		X:         res.X,
		Elapsed:   elapsed,
	}, nil
}
