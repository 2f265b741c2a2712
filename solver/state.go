package solver

import (
	"slices"
	"time"
)

// State is the canonical solver state of one solve. The coordinator owns the
// single writable copy; workers and later phases receive snapshots passed
// through bytes (ToBytes/FromBytes) so they can never alias coordinator
// memory.
type State struct {
	// TamarackVersion is the version that produced the state; checked on
	// deserialization.
	TamarackVersion string

	Status    Status
	Objective float64
	Bound     float64
	X         []float64 `cbor:"-"`

	RelaxTime time.Duration
	SolveTime time.Duration

	// Generation increments on every coordinator write-back; broadcasts of
	// the same generation are byte-identical.
	Generation uint64

	Counters Counters `cbor:"-"`
}

// NewState returns a fresh state stamped with the current version.
func NewState() *State {
	return &State{
		TamarackVersion: version(),
		Status:          Unsolved,
	}
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() *State {
	c := *s
	c.X = slices.Clone(s.X)
	return &c
}

// Counters are the exact-search progress counters. They only ever move
// forward; the search reports through the Progress interface and never
// touches them directly.
type Counters struct {
	Nodes    uint64
	Cuts     uint64
	Branches uint64
	MaxDepth uint64
}

// Progress is the reporting interface handed to the exact search.
type Progress interface {
	AddNodes(n int)
	AddCuts(n int)
	AddBranches(n int)
	ObserveDepth(d int)
}

func (c *Counters) AddNodes(n int) {
	if n > 0 {
		c.Nodes += uint64(n)
	}
}

func (c *Counters) AddCuts(n int) {
	if n > 0 {
		c.Cuts += uint64(n)
	}
}

func (c *Counters) AddBranches(n int) {
	if n > 0 {
		c.Branches += uint64(n)
	}
}

func (c *Counters) ObserveDepth(d int) {
	if d > 0 && uint64(d) > c.MaxDepth {
		c.MaxDepth = uint64(d)
	}
}
