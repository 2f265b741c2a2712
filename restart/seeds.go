// Package restart races randomized relaxation restarts across a worker
// pool. Work is distributed through a shared claim cursor: idle workers
// claim the next seed index, so faster workers naturally take more seeds.
package restart

import (
	"math"
	"math/rand/v2"

	"github.com/tamarack-opt/tamarack/relax"
)

// seedWindow bounds the sampling interval on sides where a variable is
// unbounded.
const seedWindow = 100

// Seed draws one starting point, uniform per variable within its bounds.
// An unbounded side is replaced by a window around the model's current
// start, so seeds are always finite.
func Seed(m *relax.Model, rng *rand.Rand) []float64 {
	start := m.Start()
	x := make([]float64, m.NbVariables())
	for i := range x {
		lo, hi := m.VariableBounds(i)
		if math.IsInf(lo, -1) {
			lo = start[i] - seedWindow
		}
		if math.IsInf(hi, 1) {
			hi = start[i] + seedWindow
		}
		if lo >= hi {
			x[i] = lo
			continue
		}
		x[i] = lo + rng.Float64()*(hi-lo)
	}
	return x
}

// GenerateSeeds draws count starting points. Deterministic for a given rng
// state.
func GenerateSeeds(m *relax.Model, count int, rng *rand.Rand) [][]float64 {
	seeds := make([][]float64, count)
	for i := range seeds {
		seeds[i] = Seed(m, rng)
	}
	return seeds
}
