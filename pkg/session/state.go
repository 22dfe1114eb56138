package session

// State is the coarse status of a session as seen from outside.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateFinalizing
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateFinalizing:
		return "finalizing"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}
