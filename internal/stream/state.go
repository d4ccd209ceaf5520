package stream

// State is the lifecycle of one generation, shared by the transcoder (which
// uses Idle through ErroredBeforeSend) and the client session (which adds
// Cancelled).
type State int

const (
	Idle State = iota
	Connecting
	Forwarding
	Completed
	ErroredInBand
	ErroredBeforeSend
	Cancelled
)

var stateNames = map[State]string{
	Idle:              "idle",
	Connecting:        "connecting",
	Forwarding:        "forwarding",
	Completed:         "completed",
	ErroredInBand:     "errored_in_band",
	ErroredBeforeSend: "errored_before_send",
	Cancelled:         "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case Completed, ErroredInBand, ErroredBeforeSend, Cancelled:
		return true
	}
	return false
}
