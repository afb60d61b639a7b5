package link

// State is the lifecycle state of a link
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
