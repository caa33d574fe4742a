package arbitrage

// State is a step of one pair evaluation.
type State int

const (
	Idle State = iota
	LegOutDispatched
	LegOutSelected
	LegBackDispatched
	Evaluated
	Alerted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LegOutDispatched:
		return "leg_out_dispatched"
	case LegOutSelected:
		return "leg_out_selected"
	case LegBackDispatched:
		return "leg_back_dispatched"
	case Evaluated:
		return "evaluated"
	case Alerted:
		return "alerted"
	default:
		return "unknown"
	}
}
