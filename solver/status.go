// Package solver carries the vocabulary shared by every solve phase: the
// termination status enum, the canonical solver state with its snapshot
// serialization, the solution registry and the search progress counters.
package solver

// Status is the termination status of a solve attempt or of the overall
// solve. The vocabulary is closed; collaborators must map their internal
// condition onto one of these values.
type Status uint8

const (
	Unsolved Status = iota
	Optimal
	LocallyOptimal
	Infeasible
	Unknown
)

func (s Status) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Optimal:
		return "optimal"
	case LocallyOptimal:
		return "locally-optimal"
	case Infeasible:
		return "infeasible"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Solved reports whether the status carries an accepted solution
// (Optimal or LocallyOptimal).
func (s Status) Solved() bool {
	return s == Optimal || s == LocallyOptimal
}
