// Package minlp is the solve orchestrator: it sequences the relaxation,
// heuristic and exact-search phases of one mixed-integer nonlinear solve
// and reconciles them into a single reported result.
package minlp

import (
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamarack-opt/tamarack/heur"
	"github.com/tamarack-opt/tamarack/logger"
	"github.com/tamarack-opt/tamarack/nlp"
	"github.com/tamarack-opt/tamarack/search"
)

// Option defines an option for altering the behavior of Solve. See the
// descriptions of functions returning instances of this type for
// implemented options.
type Option func(*Config) error

// Config is the solve configuration with the options applied.
type Config struct {
	Logger      zerolog.Logger  // defaults to logger.Logger()
	Workers     int             // defaults to runtime.GOMAXPROCS(0)
	MinRestarts int             // defaults to Workers
	Retries     int             // serial retry budget, defaults to 3
	TimeBudget  time.Duration   // defaults to unlimited
	Seed        uint64          // restart seed stream, defaults to 0
	NLP         nlp.Solver      // defaults to nlp.NewAugLag()
	Heuristic   heur.Heuristic  // nil disables; defaults to heur.RoundingDive
	Search      search.Engine   // defaults to search.BranchBound
	ProfilePath string          // when set, a profiling session wraps the solve

	noHeuristic bool
}

// WithWorkers sets the relaxation worker-pool size. A pool of 1 disables
// the parallel restart race in favor of the serial retry loop. Requests
// beyond the available parallelism are clamped with a warning.
func WithWorkers(n int) Option {
	log := logger.Logger()
	return func(opt *Config) error {
		if n <= 0 {
			return fmt.Errorf("invalid number of workers: %d", n)
		}
		if available := runtime.GOMAXPROCS(0); n > available {
			log.Warn().Int("requested", n).Int("available", available).Msg("worker pool clamped to available parallelism")
			n = available
		}
		opt.Workers = n
		return nil
	}
}

// WithMinRestarts sets the minimum number of relaxation restart attempts
// raced by the parallel scheduler; the race generates max(n, workers)
// seeds.
func WithMinRestarts(n int) Option {
	return func(opt *Config) error {
		if n < 0 {
			return fmt.Errorf("invalid restart count: %d", n)
		}
		opt.MinRestarts = n
		return nil
	}
}

// WithRetries sets the serial retry budget: how many fresh randomized
// starts the serial loop may attempt after a failed first solve.
func WithRetries(n int) Option {
	return func(opt *Config) error {
		if n < 0 {
			return fmt.Errorf("invalid retry budget: %d", n)
		}
		opt.Retries = n
		return nil
	}
}

// WithTimeBudget bounds the whole solve. The budget is checked
// cooperatively before new work is dispatched; attempts already in flight
// run to completion.
func WithTimeBudget(d time.Duration) Option {
	return func(opt *Config) error {
		if d <= 0 {
			return fmt.Errorf("invalid time budget: %s", d)
		}
		opt.TimeBudget = d
		return nil
	}
}

// WithSeed fixes the pseudo-random stream restart seeds are drawn from,
// making the generated starting points reproducible.
func WithSeed(seed uint64) Option {
	return func(opt *Config) error {
		opt.Seed = seed
		return nil
	}
}

// WithNLP sets the continuous solver used for every relaxation solve.
func WithNLP(s nlp.Solver) Option {
	return func(opt *Config) error {
		if s == nil {
			return fmt.Errorf("nil continuous solver")
		}
		opt.NLP = s
		return nil
	}
}

// WithHeuristic sets the feasibility heuristic run between the relaxation
// and the exact search.
func WithHeuristic(h heur.Heuristic) Option {
	return func(opt *Config) error {
		opt.Heuristic = h
		opt.noHeuristic = h == nil
		return nil
	}
}

// WithoutHeuristic disables the feasibility heuristic.
func WithoutHeuristic() Option {
	return WithHeuristic(nil)
}

// WithSearch sets the exact discrete search engine.
func WithSearch(e search.Engine) Option {
	return func(opt *Config) error {
		if e == nil {
			return fmt.Errorf("nil search engine")
		}
		opt.Search = e
		return nil
	}
}

// WithLogger overrides the logger used by the orchestrator.
// zerolog.Nop() disables logging.
func WithLogger(l zerolog.Logger) Option {
	return func(opt *Config) error {
		opt.Logger = l
		return nil
	}
}

// WithProfile wraps the solve in a profiling session written to path in
// pprof format.
func WithProfile(path string) Option {
	return func(opt *Config) error {
		if path == "" {
			return fmt.Errorf("empty profile path")
		}
		opt.ProfilePath = path
		return nil
	}
}

// NewConfig returns the default configuration with opts applied.
func NewConfig(opts ...Option) (Config, error) {
	opt := Config{
		Logger:  logger.Logger(),
		Workers: runtime.GOMAXPROCS(0),
		Retries: 3,
	}
	for _, option := range opts {
		if err := option(&opt); err != nil {
			return Config{}, err
		}
	}
	if opt.NLP == nil {
		opt.NLP = nlp.NewAugLag()
	}
	if opt.MinRestarts < opt.Workers {
		opt.MinRestarts = opt.Workers
	}
	if opt.Heuristic == nil && !opt.noHeuristic {
		opt.Heuristic = &heur.RoundingDive{NLP: opt.NLP}
	}
	if opt.Search == nil {
		opt.Search = &search.BranchBound{NLP: opt.NLP}
	}
	return opt, nil
}
