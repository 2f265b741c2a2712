package minlp

// phase is the orchestrator's position in the solve pipeline. Transitions
// only ever move forward.
type phase uint8

const (
	phaseBuilt phase = iota
	phaseRelaxing
	phaseRelaxationFailed
	phaseRelaxationSolved
	phaseHeuristic
	phaseSearch
	phaseFinalized
)

func (p phase) String() string {
	switch p {
	case phaseBuilt:
		return "built"
	case phaseRelaxing:
		return "relaxing"
	case phaseRelaxationFailed:
		return "relaxation-failed"
	case phaseRelaxationSolved:
		return "relaxation-solved"
	case phaseHeuristic:
		return "heuristic"
	case phaseSearch:
		return "search"
	case phaseFinalized:
		return "finalized"
	default:
		return "invalid"
	}
}
