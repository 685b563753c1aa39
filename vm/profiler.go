package vm

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Profiler counts executed instructions per opcode. It is a Tracer and may
// be shared by engines running concurrently.
type Profiler struct {
	counts  map[Opcode]*atomic.Uint64
	faults  atomic.Uint64
	inputs  atomic.Uint64
	outputs atomic.Uint64
}

// OpcodeCount is one row of a profile.
type OpcodeCount struct {
	Op    Opcode
	Count uint64
}

// NewProfiler returns a profiler with a zero counter per opcode.
func NewProfiler() *Profiler {
	p := &Profiler{counts: make(map[Opcode]*atomic.Uint64)}
	for _, op := range AllOpcodes() {
		p.counts[op] = new(atomic.Uint64)
	}
	return p
}

// Trace records one event.
func (p *Profiler) Trace(ev Event) {
	switch ev.Kind {
	case EventFault:
		p.faults.Add(1)
		return
	case EventInput:
		p.inputs.Add(1)
	case EventOutput:
		p.outputs.Add(1)
	}
	if c, ok := p.counts[ev.Op]; ok {
		c.Add(1)
	}
}

// Count returns how many times op executed.
func (p *Profiler) Count(op Opcode) uint64 {
	if c, ok := p.counts[op]; ok {
		return c.Load()
	}
	return 0
}

// Total returns the number of instructions executed.
func (p *Profiler) Total() uint64 {
	var total uint64
	for _, c := range p.counts {
		total += c.Load()
	}
	return total
}

// Faults returns the number of fault events seen.
func (p *Profiler) Faults() uint64 {
	return p.faults.Load()
}

// Counts returns the non-zero counters, most frequent first.
func (p *Profiler) Counts() []OpcodeCount {
	rows := make([]OpcodeCount, 0, len(p.counts))
	for op, c := range p.counts {
		if n := c.Load(); n > 0 {
			rows = append(rows, OpcodeCount{Op: op, Count: n})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Op < rows[j].Op
	})
	return rows
}

// String renders the profile as a small table.
func (p *Profiler) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("instructions: %d  inputs: %d  outputs: %d  faults: %d\n",
		p.Total(), p.inputs.Load(), p.outputs.Load(), p.faults.Load()))
	for _, row := range p.Counts() {
		sb.WriteString(fmt.Sprintf("  %-4s %d\n", row.Op, row.Count))
	}
	return sb.String()
}
