package minlp

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/profile"
	"github.com/tamarack-opt/tamarack/relax"
	"github.com/tamarack-opt/tamarack/restart"
	"github.com/tamarack-opt/tamarack/solver"
)

// Result is the outcome of one solve, reconciled across all phases.
// Objective and Bound are in the problem's declared sense; Gap is the
// relative distance between them (NaN when no incumbent was recorded).
type Result struct {
	Status    solver.Status
	Objective float64
	Bound     float64
	X         []float64
	Gap       float64

	SolveTime time.Duration
	RelaxTime time.Duration

	NbSolutions int
	History     []solver.SolutionRecord
	Counters    solver.Counters
}

// Solve drives the full pipeline on p: build the relaxation, classify its
// constraints, solve it (racing restarts across the worker pool when one is
// configured), then, when discrete variables exist, run the feasibility
// heuristic and the exact search. Contract violations and full pool failure
// surface as errors; everything else is reported through the result status.
func Solve(ctx context.Context, p *model.Problem, opts ...Option) (*Result, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	s := &orchestrator{
		cfg:      cfg,
		log:      cfg.Logger,
		started:  time.Now(),
		state:    solver.NewState(),
		registry: &solver.Registry{},
	}
	if cfg.ProfilePath != "" {
		pr := profile.Start(profile.WithPath(cfg.ProfilePath))
		defer pr.Stop()
	}
	return s.solve(ctx, p)
}

type orchestrator struct {
	cfg     Config
	log     zerolog.Logger
	started time.Time

	phase    phase
	typing   *model.Typing
	model    *relax.Model
	state    *solver.State
	registry *solver.Registry
}

func (s *orchestrator) solve(ctx context.Context, p *model.Problem) (*Result, error) {
	// typing first: it clips binary bounds before the relaxation is built
	typing, err := model.NewTyping(p)
	if err != nil {
		return nil, err
	}
	s.typing = typing

	m, err := relax.Build(p)
	if err != nil {
		return nil, err
	}
	s.model = m

	cls, err := relax.Classify(m, p.Evaluator)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Int("variables", p.NbVariables).
		Int("discrete", typing.NbDiscrete()).
		Int("linear", cls.NbLinear()).
		Int("nonlinear", cls.NbNonLinear()).
		Stringer("sense", p.Sense).
		Msg("problem built")

	s.transition(phaseRelaxing)
	rel, err := s.relaxing(ctx, p)
	if err != nil {
		return nil, err
	}

	s.state.Status = rel.Status
	s.state.RelaxTime = rel.Elapsed
	if !rel.Status.Solved() {
		s.transition(phaseRelaxationFailed)
		s.state.Objective = math.NaN()
		s.state.Bound = math.NaN()
		return s.finalize(), nil
	}

	s.transition(phaseRelaxationSolved)
	s.state.Objective = rel.Objective
	s.state.Bound = rel.Objective
	s.state.X = slices.Clone(rel.X)

	if typing.NbDiscrete() == 0 {
		s.registry.Record(rel.X, rel.Objective)
		return s.finalize(), nil
	}

	warm := s.heuristic(ctx, rel)
	if err := s.search(ctx, rel, warm); err != nil {
		return nil, err
	}
	return s.finalize(), nil
}

// relaxing solves the continuous relaxation, racing restarts when a pool is
// configured and retrying serially otherwise.
func (s *orchestrator) relaxing(ctx context.Context, p *model.Problem) (relax.Result, error) {
	if s.cfg.Workers > 1 {
		sched := restart.New(restart.Config{
			Workers:     s.cfg.Workers,
			MinRestarts: s.cfg.MinRestarts,
			TimeBudget:  s.cfg.TimeBudget,
			Started:     s.started,
			Seed:        s.cfg.Seed,
		}, s.cfg.NLP)
		return sched.Race(ctx, s.state, s.model)
	}

	exec := relax.NewExecutor(s.model, s.cfg.NLP)
	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))

	// same bookkeeping as the race: the last attempt that produced a status
	// survives later errored attempts, and an error only propagates when no
	// attempt produced a status at all
	var (
		last    relax.Result
		usable  bool
		lastErr error
	)
	offer := func(res relax.Result, err error) {
		if err != nil {
			s.log.Warn().Err(err).Msg("relaxation attempt failed")
			lastErr = err
			return
		}
		last, usable = res, true
	}

	offer(exec.Solve(ctx, p.StartingPoint()))
	for attempt := 1; !(usable && last.Status.Solved()) && attempt <= s.cfg.Retries && s.timeLeft() && ctx.Err() == nil; attempt++ {
		s.log.Debug().Int("attempt", attempt).Stringer("status", last.Status).Msg("relaxation retry")
		offer(exec.Solve(ctx, restart.Seed(s.model, rng)))
	}
	if !usable {
		return relax.Result{Status: solver.Unknown}, lastErr
	}
	return last, nil
}

// heuristic runs the configured feasibility heuristic, if any. Heuristic
// failures are absorbed: they only mean the search starts cold.
func (s *orchestrator) heuristic(ctx context.Context, rel relax.Result) *solver.SolutionRecord {
	if s.cfg.Heuristic == nil {
		return nil
	}
	s.transition(phaseHeuristic)

	inc, found, err := s.cfg.Heuristic.Find(ctx, s.typing, s.model, rel)
	if err != nil {
		s.log.Warn().Err(err).Msg("heuristic failed; starting search cold")
		return nil
	}
	if !found {
		s.log.Debug().Msg("heuristic found no incumbent")
		return nil
	}
	s.log.Info().Float64("objective", inc.Objective).Msg("heuristic incumbent")
	s.registry.Record(inc.X, inc.Objective)
	return &inc
}

// search runs the exact discrete search and writes its best-known result
// over the orchestrator's state.
func (s *orchestrator) search(ctx context.Context, rel relax.Result, warm *solver.SolutionRecord) error {
	s.transition(phaseSearch)

	sctx := ctx
	if s.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithDeadline(ctx, s.started.Add(s.cfg.TimeBudget))
		defer cancel()
	}

	out, err := s.cfg.Search.Search(sctx, s.typing, s.model, rel, warm, &s.state.Counters)
	if err != nil {
		return err
	}

	s.state.Status = out.Status
	s.state.Objective = out.Objective
	s.state.Bound = out.Bound
	s.state.X = slices.Clone(out.X)

	if out.X != nil {
		if best, ok := s.registry.Best(); !ok || s.model.Sense().Better(out.Objective, best.Objective) {
			s.registry.Record(out.X, out.Objective)
		}
	}
	return nil
}

func (s *orchestrator) finalize() *Result {
	s.transition(phaseFinalized)
	s.state.SolveTime = time.Since(s.started)
	s.state.Generation++

	res := &Result{
		Status:      s.state.Status,
		Objective:   s.state.Objective,
		Bound:       s.state.Bound,
		X:           slices.Clone(s.state.X),
		Gap:         s.registry.Gap(s.state.Bound),
		SolveTime:   s.state.SolveTime,
		RelaxTime:   s.state.RelaxTime,
		NbSolutions: s.registry.NbSolutions(),
		History:     s.registry.History(),
		Counters:    s.state.Counters,
	}
	s.log.Info().
		Stringer("status", res.Status).
		Float64("objective", res.Objective).
		Float64("bound", res.Bound).
		Float64("gap", res.Gap).
		Dur("took", res.SolveTime).
		Int("solutions", res.NbSolutions).
		Msg("solve finalized")
	return res
}

func (s *orchestrator) transition(to phase) {
	s.log.Debug().Stringer("from", s.phase).Stringer("to", to).Msg("phase transition")
	s.phase = to
}

func (s *orchestrator) timeLeft() bool {
	return s.cfg.TimeBudget <= 0 || time.Since(s.started) < s.cfg.TimeBudget
}
