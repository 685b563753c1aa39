package amplifier

import (
	"fmt"
	"time"

	"github.com/chazu/intcode/vm"
)

// Topology is the shape of the pipeline.
type Topology int

const (
	// Chain feeds each stage into the next; the last stage writes the result.
	Chain Topology = iota
	// Ring additionally feeds the last stage back into the first.
	Ring
)

func (t Topology) String() string {
	switch t {
	case Chain:
		return "chain"
	case Ring:
		return "ring"
	default:
		return fmt.Sprintf("topology(%d)", int(t))
	}
}

// Aggregate selects which result value is a trial's signal.
type Aggregate int

const (
	AggregateMax  Aggregate = iota // largest value seen
	AggregateLast                  // value sent last
)

func (a Aggregate) String() string {
	if a == AggregateLast {
		return "last"
	}
	return "max"
}

// ParseAggregate maps "max" and "last" to an Aggregate.
func ParseAggregate(s string) (Aggregate, error) {
	switch s {
	case "", "max":
		return AggregateMax, nil
	case "last":
		return AggregateLast, nil
	}
	return AggregateMax, fmt.Errorf("unknown aggregate %q (want max or last)", s)
}

// FaultPolicy decides what Search does when a trial fails.
type FaultPolicy int

const (
	FaultSkip  FaultPolicy = iota // abandon the trial and continue
	FaultAbort                    // stop the search
)

func (p FaultPolicy) String() string {
	if p == FaultAbort {
		return "abort"
	}
	return "skip"
}

// ParseFaultPolicy maps "skip" and "abort" to a FaultPolicy.
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch s {
	case "", "skip":
		return FaultSkip, nil
	case "abort":
		return FaultAbort, nil
	}
	return FaultSkip, fmt.Errorf("unknown fault policy %q (want skip or abort)", s)
}

const (
	DefaultStages          = 5
	DefaultChannelCapacity = 16
	MinChannelCapacity     = 2
)

// Options configures a Network or a Search. The zero value is a five-stage
// chain over phases 0-4.
type Options struct {
	Topology Topology
	Stages   int
	// Phases are the candidate phase values. Empty selects 0-4 for a chain
	// and 5-9 for a ring.
	Phases      []int64
	StartSignal int64

	ChannelCapacity int
	// TrialTimeout bounds a single trial. Zero means no limit.
	TrialTimeout time.Duration

	Aggregate   Aggregate
	FaultPolicy FaultPolicy

	// Capacity is the memory size of each engine; zero means program length.
	Capacity int

	Observer Observer
	Metrics  *Metrics
	Tracer   vm.Tracer
}

// PhaseRange returns the values min..max inclusive.
func PhaseRange(min, max int64) []int64 {
	if max < min {
		return nil
	}
	out := make([]int64, 0, max-min+1)
	for v := min; v <= max; v++ {
		out = append(out, v)
	}
	return out
}

// DefaultPhases returns the phase values a topology searches by default.
func DefaultPhases(t Topology) []int64 {
	if t == Ring {
		return PhaseRange(5, 9)
	}
	return PhaseRange(0, 4)
}

func (o Options) withDefaults() Options {
	if o.Stages <= 0 {
		o.Stages = DefaultStages
	}
	if len(o.Phases) == 0 {
		o.Phases = DefaultPhases(o.Topology)
	}
	if o.ChannelCapacity == 0 {
		o.ChannelCapacity = DefaultChannelCapacity
	}
	if o.ChannelCapacity < MinChannelCapacity {
		o.ChannelCapacity = MinChannelCapacity
	}
	return o
}

// Observer is told about every trial a Search runs.
type Observer interface {
	ObserveTrial(Trial) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Trial) error

// ObserveTrial calls f(t).
func (f ObserverFunc) ObserveTrial(t Trial) error {
	return f(t)
}
