package ws

// EventKind is a connection-level notification the adapter emits.
type EventKind int

const (
	// EventOpen is emitted once the channel is established.
	EventOpen EventKind = iota
	// EventClosed is emitted when the channel is gone, cleanly or not.
	EventClosed
	// EventError carries a transport failure; EventClosed follows it.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event describes a change in channel state.
type Event struct {
	Kind EventKind
	Err  error
}

// Stats counts frames and sends the adapter absorbed instead of failing.
type Stats struct {
	Received        int64
	UnknownFrames   int64
	MalformedFrames int64
	DroppedSends    int64
}
