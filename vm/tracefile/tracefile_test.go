package tracefile

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/chazu/intcode/vm"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "double.txt")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	engine, err := vm.New(0, []int64{3, 9, 1002, 9, 2, 9, 4, 9, 99, 0})
	if err != nil {
		t.Fatalf("vm.New: %v", err)
	}
	engine.SetName("doubler")
	engine.SetInput(vm.OneShot(21))
	engine.AddOutput(&vm.Recorder{})
	engine.SetTracer(w)
	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := w.Err(); err != nil {
		t.Fatalf("writer error: %v", err)
	}
	if w.Count() != 4 {
		t.Fatalf("Count = %d, want 4", w.Count())
	}

	h, events, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if h.Program != "double.txt" || h.Version != Version {
		t.Errorf("header = %+v", h)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}

	wantKinds := []vm.EventKind{vm.EventInput, vm.EventStep, vm.EventOutput, vm.EventHalt}
	wantOps := []vm.Opcode{vm.OpInput, vm.OpMul, vm.OpOutput, vm.OpHalt}
	for i, ev := range events {
		if ev.Kind != wantKinds[i] || ev.Op != wantOps[i] {
			t.Errorf("event %d = %s %s, want %s %s", i, ev.Kind, ev.Op, wantKinds[i], wantOps[i])
		}
		if ev.Seq != uint64(i) || ev.Engine != "doubler" {
			t.Errorf("event %d: seq=%d engine=%q", i, ev.Seq, ev.Engine)
		}
	}
	if events[0].Value != 21 || events[2].Value != 42 {
		t.Errorf("values: in=%d out=%d", events[0].Value, events[2].Value)
	}
	if events[1].Pointer != 2 || events[1].Word != 1002 {
		t.Errorf("MUL event = %+v", events[1])
	}
}

func TestReaderRejectsForeignStream(t *testing.T) {
	data, err := cborEncMode.Marshal(Header{Magic: "something-else", Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(bytes.NewReader(data)); !errors.Is(err, ErrBadMagic) {
		t.Errorf("error = %v, want ErrBadMagic", err)
	}
	if _, err := NewReader(bytes.NewReader([]byte{0xff, 0x00})); !errors.Is(err, ErrBadMagic) {
		t.Errorf("garbage error = %v, want ErrBadMagic", err)
	}
}

func TestReaderRejectsNewerVersion(t *testing.T) {
	data, _ := cborEncMode.Marshal(Header{Magic: Magic, Version: Version + 1})
	if _, err := NewReader(bytes.NewReader(data)); err == nil {
		t.Error("expected version error")
	}
}

func TestEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, ""); err != nil {
		t.Fatal(err)
	}
	_, events, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events", len(events))
	}
}
