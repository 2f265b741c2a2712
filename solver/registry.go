package solver

import (
	"math"
	"slices"
	"sync"
)

// SolutionRecord is one incumbent: a solution vector with its objective
// value. Records handed out by the registry are private copies.
type SolutionRecord struct {
	X         []float64
	Objective float64
}

// Registry keeps the ordered history of incumbents found during a solve.
// Callers only record improvements, so the last record is the best known.
// Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	history []SolutionRecord
}

// Record appends an incumbent. The vector is copied; later mutation of x
// does not affect the stored record.
func (r *Registry) Record(x []float64, objective float64) {
	rec := SolutionRecord{X: slices.Clone(x), Objective: objective}
	r.mu.Lock()
	r.history = append(r.history, rec)
	r.mu.Unlock()
}

// NbSolutions returns the number of recorded incumbents.
func (r *Registry) NbSolutions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// Best returns a copy of the most recent record, and whether one exists.
func (r *Registry) Best() (SolutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return SolutionRecord{}, false
	}
	last := r.history[len(r.history)-1]
	return SolutionRecord{X: slices.Clone(last.X), Objective: last.Objective}, true
}

// History returns a deep copy of the recorded incumbents, oldest first.
func (r *Registry) History() []SolutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SolutionRecord, len(r.history))
	for i, rec := range r.history {
		out[i] = SolutionRecord{X: slices.Clone(rec.X), Objective: rec.Objective}
	}
	return out
}

// Gap returns the relative optimality gap between the best recorded
// objective and the given bound: NaN when nothing was recorded or the bound
// is unknown, 0 when a zero objective meets a zero bound, +Inf when a zero
// objective meets any other bound, |bound-objective|/|objective| otherwise.
func (r *Registry) Gap(bound float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 || math.IsNaN(bound) {
		return math.NaN()
	}
	objective := r.history[len(r.history)-1].Objective
	if objective == 0 {
		if bound == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(bound-objective) / math.Abs(objective)
}
