package consumer

// State is a step of the consume loop.
type State int

const (
	Polling State = iota
	Received
	Validating
	Persisting
	Acknowledging
	ErrorBackoff
)

func (s State) String() string {
	switch s {
	case Polling:
		return "POLLING"
	case Received:
		return "RECEIVED"
	case Validating:
		return "VALIDATING"
	case Persisting:
		return "PERSISTING"
	case Acknowledging:
		return "ACKNOWLEDGING"
	case ErrorBackoff:
		return "ERROR_BACKOFF"
	default:
		return "UNKNOWN"
	}
}
