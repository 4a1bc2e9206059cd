package engine

// DeviceState is the watchdog-owned lifecycle state of the radio.
type DeviceState int32

const (
	StateClosed DeviceState = iota
	StateOpening
	StateOpen
	StateStreaming
	StateFaulted
)

func (s DeviceState) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpening:
		return "Opening"
	case StateOpen:
		return "Open"
	case StateStreaming:
		return "Streaming"
	case StateFaulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}
