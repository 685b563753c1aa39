package vm

// EventKind classifies a trace event.
type EventKind uint8

const (
	EventStep   EventKind = iota // an instruction executed
	EventInput                   // INPUT stored Value
	EventOutput                  // OUTPUT delivered Value
	EventHalt                    // HALT reached
	EventFault                   // undecodable instruction
)

func (k EventKind) String() string {
	switch k {
	case EventStep:
		return "step"
	case EventInput:
		return "input"
	case EventOutput:
		return "output"
	case EventHalt:
		return "halt"
	case EventFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Event is emitted once per instruction executed by an engine.
type Event struct {
	Engine  string
	Seq     uint64 // instructions executed by this engine before this one
	Pointer int
	Word    int64
	Op      Opcode
	Kind    EventKind
	Value   int64 // the value moved by INPUT or OUTPUT
}

// Tracer receives trace events. Engines running concurrently may share a
// Tracer, so implementations must be safe for concurrent use.
type Tracer interface {
	Trace(Event)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(Event)

// Trace calls f(ev).
func (f TracerFunc) Trace(ev Event) {
	f(ev)
}

type multiTracer []Tracer

func (m multiTracer) Trace(ev Event) {
	for _, t := range m {
		t.Trace(ev)
	}
}

// MultiTracer fans every event out to each non-nil tracer in order.
func MultiTracer(tracers ...Tracer) Tracer {
	var m multiTracer
	for _, t := range tracers {
		if t != nil {
			m = append(m, t)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}
