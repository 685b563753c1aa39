package vm

import (
	"context"
	"strings"
	"testing"
)

func TestProfilerCounts(t *testing.T) {
	v := newVM(t, 1101, 1, 1, 0, 104, 5, 99)
	p := NewProfiler()
	v.SetTracer(p)
	v.AddOutput(&Recorder{})
	if _, err := v.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if p.Count(OpAdd) != 1 || p.Count(OpOutput) != 1 || p.Count(OpHalt) != 1 {
		t.Errorf("counts: ADD=%d OUT=%d HALT=%d", p.Count(OpAdd), p.Count(OpOutput), p.Count(OpHalt))
	}
	if p.Total() != 3 {
		t.Errorf("Total = %d, want 3", p.Total())
	}
	if p.Faults() != 0 {
		t.Errorf("Faults = %d, want 0", p.Faults())
	}
}

func TestProfilerOrdering(t *testing.T) {
	p := NewProfiler()
	for i := 0; i < 3; i++ {
		p.Trace(Event{Op: OpMul, Kind: EventStep})
	}
	p.Trace(Event{Op: OpAdd, Kind: EventStep})
	p.Trace(Event{Op: OpHalt, Kind: EventHalt})
	p.Trace(Event{Op: Opcode(55), Kind: EventFault})

	rows := p.Counts()
	if len(rows) != 3 {
		t.Fatalf("rows = %v, want 3 entries", rows)
	}
	if rows[0].Op != OpMul || rows[1].Op != OpAdd || rows[2].Op != OpHalt {
		t.Errorf("order = %v", rows)
	}
	if p.Faults() != 1 {
		t.Errorf("Faults = %d, want 1", p.Faults())
	}
	out := p.String()
	if !strings.Contains(out, "instructions: 5") || !strings.Contains(out, "faults: 1") {
		t.Errorf("String() = %q", out)
	}
}
