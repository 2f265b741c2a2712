package restart

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tamarack-opt/tamarack/logger"
	"github.com/tamarack-opt/tamarack/model"
	"github.com/tamarack-opt/tamarack/nlp"
	"github.com/tamarack-opt/tamarack/relax"
	"github.com/tamarack-opt/tamarack/solver"
)

// ErrAllAttemptsFailed is returned when every dispatched attempt errored
// before producing a status.
var ErrAllAttemptsFailed = errors.New("all restart attempts failed")

// Config parameterizes one race.
type Config struct {
	// Workers is the pool size N; at least 1.
	Workers int
	// MinRestarts is the configured minimum restart count R; the race
	// generates max(R, Workers) seeds.
	MinRestarts int
	// TimeBudget bounds the race relative to Started; zero or negative
	// means unlimited. Attempts in flight when the budget expires run to
	// completion.
	TimeBudget time.Duration
	// Started is the solve start the budget is measured from.
	Started time.Time
	// Seed fixes the pseudo-random stream the restart seeds are drawn from.
	Seed uint64
}

// Scheduler distributes restart attempts over a fixed-size worker pool. One
// scheduler runs one race; workers hold private model clones and solver
// state snapshots, never a reference into the coordinator's copies.
type Scheduler struct {
	cfg Config
	nlp nlp.Solver
}

// New returns a scheduler racing restarts through s.
func New(cfg Config, s nlp.Solver) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}
	return &Scheduler{cfg: cfg, nlp: s}
}

// race bundles the shared coordination of one Race call.
type race struct {
	sense model.Sense
	seeds [][]float64

	cursor atomic.Int64
	// primed counts workers that completed at least one attempt; the
	// early-stop condition requires all of them.
	primed  atomic.Int32
	optimal atomic.Bool

	mu    sync.Mutex
	best  relax.Result
	taken bool
	// last terminal status observed when nothing usable exists; reported
	// on global failure.
	last    relax.Result
	anylast bool
	lastErr error
}

// Race broadcasts state to every worker, races the seeds and writes the
// winning result back into state. A losing or errored seed never aborts the
// race; Race only fails when no attempt produced a status at all, or on a
// broadcast/decode contract failure.
func (s *Scheduler) Race(ctx context.Context, state *solver.State, m *relax.Model) (relax.Result, error) {
	log := logger.Logger()

	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))
	nbSeeds := max(s.cfg.MinRestarts, s.cfg.Workers)
	r := &race{sense: m.Sense(), seeds: GenerateSeeds(m, nbSeeds, rng)}

	blob, err := state.ToBytes()
	if err != nil {
		return relax.Result{Status: solver.Unknown}, fmt.Errorf("broadcast solver state: %w", err)
	}
	log.Debug().Int("workers", s.cfg.Workers).Int("seeds", nbSeeds).
		Uint64("generation", state.Generation).Msg("restart race: state broadcast")

	var g errgroup.Group
	for w := 0; w < s.cfg.Workers; w++ {
		g.Go(func() error {
			return s.work(ctx, w, blob, m, r)
		})
	}
	if err := g.Wait(); err != nil {
		return relax.Result{Status: solver.Unknown}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.taken {
		if !r.anylast {
			if r.lastErr != nil {
				return relax.Result{Status: solver.Unknown}, fmt.Errorf("%w: %w", ErrAllAttemptsFailed, r.lastErr)
			}
			return relax.Result{Status: solver.Unknown}, ErrAllAttemptsFailed
		}
		// every seed lost; proceed with the last terminal status recorded
		s.writeBack(state, r.last)
		return r.last, nil
	}

	claimed := min(r.cursor.Load(), int64(nbSeeds))
	log.Info().Stringer("status", r.best.Status).Float64("objective", r.best.Objective).
		Int64("attempts", claimed).Msg("restart race: done")

	s.writeBack(state, r.best)
	return r.best, nil
}

// work is one worker's claim loop. The worker decodes its own state
// snapshot, clones the model and keeps claiming seeds until a stop
// condition holds.
func (s *Scheduler) work(ctx context.Context, id int, blob []byte, m *relax.Model, r *race) error {
	ws := new(solver.State)
	if _, err := ws.FromBytes(blob); err != nil {
		return fmt.Errorf("worker %d: decode state snapshot: %w", id, err)
	}

	exec := relax.NewExecutor(m.Clone(), s.nlp)
	log := logger.Logger()
	log.Debug().Int("worker", id).Uint64("generation", ws.Generation).Msg("restart worker up")

	// the snapshot's own result competes like any claimed seed, so a state
	// that already holds a solved relaxation never loses ground to the race
	if ws.Status.Solved() && len(ws.X) == m.NbVariables() {
		r.offer(relax.Result{Status: ws.Status, Objective: ws.Objective, X: ws.X, Elapsed: ws.RelaxTime})
	}

	primed := false
	for {
		if s.stop(ctx, r) {
			return nil
		}
		idx := r.cursor.Add(1) - 1
		if idx >= int64(len(r.seeds)) {
			return nil
		}

		res, err := exec.Solve(ctx, r.seeds[idx])
		if !primed {
			primed = true
			r.primed.Add(1)
		}
		if err != nil {
			// a losing candidate, not a race failure
			log.Warn().Int("worker", id).Int64("seed", idx).Err(err).Msg("restart attempt failed")
			r.mu.Lock()
			r.lastErr = err
			r.mu.Unlock()
			continue
		}
		r.offer(res)
	}
}

// stop reports whether the worker should stop claiming: seeds exhausted is
// handled at the claim itself; here we check the time budget, the
// optimal-and-all-primed condition and context cancellation.
func (s *Scheduler) stop(ctx context.Context, r *race) bool {
	if ctx.Err() != nil {
		return true
	}
	if s.cfg.TimeBudget > 0 && time.Since(s.cfg.Started) >= s.cfg.TimeBudget {
		return true
	}
	return r.optimal.Load() && r.primed.Load() >= int32(s.cfg.Workers)
}

// offer evaluates a candidate against the current best at arrival time. A
// result without an accepted solution never replaces anything; otherwise it
// replaces the best iff the best is not yet Optimal, or the candidate is
// Optimal and strictly better in the declared sense. Equal objectives keep
// the first claimant.
func (r *race) offer(res relax.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !res.Status.Solved() {
		r.last = res
		r.anylast = true
		return
	}
	if res.Status == solver.Optimal {
		r.optimal.Store(true)
	}

	switch {
	case !r.taken:
	case r.best.Status != solver.Optimal:
	case res.Status == solver.Optimal && r.sense.Better(res.Objective, r.best.Objective):
	default:
		return
	}
	r.best = res
	r.taken = true
}

// writeBack stores the winning result into the canonical state under a new
// generation; the next broadcast of the state carries it to every worker.
func (s *Scheduler) writeBack(state *solver.State, res relax.Result) {
	state.Status = res.Status
	state.Objective = res.Objective
	state.X = append(state.X[:0], res.X...)
	state.RelaxTime = res.Elapsed
	state.Generation++

	log := logger.Logger()
	log.Debug().Uint64("generation", state.Generation).Msg("restart race: state written back")
}
