package vm

import (
	"context"
	"fmt"
)

// ExitCode is the result of a run: halted or faulted.
type ExitCode int

const (
	ExitHalted ExitCode = 0
	ExitFault  ExitCode = -1
)

func (c ExitCode) String() string {
	switch c {
	case ExitHalted:
		return "halted"
	case ExitFault:
		return "fault"
	default:
		return fmt.Sprintf("exit(%d)", int(c))
	}
}

// State is the lifecycle state of an engine.
type State int

const (
	StateReady   State = iota // created, not yet stepped
	StateRunning              // at least one instruction executed
	StateHalted               // reached HALT
	StateFaulted              // hit an instruction it could not decode
	StateAborted              // a port, address or cancellation error ended the run
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateFaulted:
		return "faulted"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further instructions will execute.
func (s State) Terminal() bool {
	return s == StateHalted || s == StateFaulted || s == StateAborted
}

// cancelCheckInterval is how many instructions run between context checks
// in Run. Port operations check the context on every call.
const cancelCheckInterval = 1024

// VM is one Intcode engine. It owns its memory; a VM must not be stepped
// from more than one goroutine at a time.
type VM struct {
	mem Memory
	ip  int

	input   InputPort
	outputs []OutputPort

	tracer Tracer
	name   string
	seq    uint64

	state State
	err   error
}

// New creates an engine whose memory holds capacity cells with program
// loaded at address 0.
func New(capacity int, program []int64) (*VM, error) {
	mem, err := Load(capacity, program)
	if err != nil {
		return nil, err
	}
	return &VM{mem: mem}, nil
}

// SetInput registers the input port, replacing any previous one.
func (vm *VM) SetInput(in InputPort) {
	vm.input = in
}

// AddOutput registers an output port. OUTPUT delivers to ports in the
// order they were added.
func (vm *VM) AddOutput(out OutputPort) {
	vm.outputs = append(vm.outputs, out)
}

// SetTracer installs a trace sink. nil disables tracing.
func (vm *VM) SetTracer(t Tracer) {
	vm.tracer = t
}

// SetName labels the engine in trace events and errors.
func (vm *VM) SetName(name string) {
	vm.name = name
}

// Name returns the engine label.
func (vm *VM) Name() string {
	return vm.name
}

// Pointer returns the instruction pointer.
func (vm *VM) Pointer() int {
	return vm.ip
}

// State returns the lifecycle state.
func (vm *VM) State() State {
	return vm.state
}

// Err returns the error that aborted the engine, if any.
func (vm *VM) Err() error {
	return vm.err
}

// Size returns the memory capacity in cells.
func (vm *VM) Size() int {
	return len(vm.mem)
}

// ReadMemory returns the value at addr.
func (vm *VM) ReadMemory(addr int) (int64, error) {
	return vm.mem.Read(int64(addr))
}

// WriteMemory stores v at addr.
func (vm *VM) WriteMemory(addr int, v int64) error {
	return vm.mem.Write(int64(addr), v)
}

// Run executes until the engine halts, faults or aborts.
//
// A fault (an opcode or mode outside the instruction set) is reported as
// ExitFault with a nil error. Errors are reserved for conditions that stop
// the engine from continuing: a missing or exhausted input, a disconnected
// channel, an out-of-range address or a cancelled context; those also
// return ExitFault.
//
// Calling Run on an engine that has already stopped does nothing and
// returns the same result as the run that stopped it.
func (vm *VM) Run(ctx context.Context) (ExitCode, error) {
	for {
		if vm.seq%cancelCheckInterval == 0 && !vm.state.Terminal() {
			if err := ctx.Err(); err != nil {
				vm.abort(vm.ip, 0, err)
			}
		}
		state, err := vm.Step(ctx)
		switch state {
		case StateHalted:
			return ExitHalted, nil
		case StateFaulted:
			return ExitFault, nil
		case StateAborted:
			return ExitFault, err
		}
	}
}

// Step executes a single instruction and returns the resulting state.
// On a terminal engine it returns the terminal state and error unchanged.
func (vm *VM) Step(ctx context.Context) (State, error) {
	if vm.state.Terminal() {
		return vm.state, vm.err
	}
	vm.state = StateRunning
	vm.step(ctx)
	return vm.state, vm.err
}

func (vm *VM) step(ctx context.Context) {
	start := vm.ip
	word, err := vm.mem.Read(int64(start))
	if err != nil {
		vm.abort(start, 0, err)
		return
	}

	op, ma, mb, _ := Decode(word)
	info, known := GetOpcodeInfo(op)
	if !known || !modesValid(info.Reads, ma, mb) {
		vm.state = StateFaulted
		vm.emit(Event{Pointer: start, Word: word, Op: op, Kind: EventFault})
		return
	}

	ev := Event{Pointer: start, Word: word, Op: op, Kind: EventStep}

	switch op {
	// ============ Arithmetic & comparison ============
	case OpAdd, OpMul, OpLessThan, OpEquals:
		a, err := vm.operand(1, ma)
		if err != nil {
			vm.abort(start, op, err)
			return
		}
		b, err := vm.operand(2, mb)
		if err != nil {
			vm.abort(start, op, err)
			return
		}
		var r int64
		switch op {
		case OpAdd:
			r = a + b
		case OpMul:
			r = a * b
		case OpLessThan:
			r = boolInt(a < b)
		case OpEquals:
			r = boolInt(a == b)
		}
		if err := vm.store(3, r); err != nil {
			vm.abort(start, op, err)
			return
		}
		vm.ip += 4

	// ============ I/O ============
	case OpInput:
		if vm.input == nil {
			vm.abort(start, op, ErrNoInput)
			return
		}
		v, err := vm.input.Pull(ctx)
		if err != nil {
			vm.abort(start, op, err)
			return
		}
		if err := vm.store(1, v); err != nil {
			vm.abort(start, op, err)
			return
		}
		ev.Kind, ev.Value = EventInput, v
		vm.ip += 2

	case OpOutput:
		v, err := vm.operand(1, ma)
		if err != nil {
			vm.abort(start, op, err)
			return
		}
		for i, out := range vm.outputs {
			if err := out.Push(ctx, v); err != nil {
				vm.abort(start, op, fmt.Errorf("output port %d: %w", i, err))
				return
			}
		}
		ev.Kind, ev.Value = EventOutput, v
		vm.ip += 2

	// ============ Control flow ============
	case OpJumpIfTrue, OpJumpIfFalse:
		cond, err := vm.operand(1, ma)
		if err != nil {
			vm.abort(start, op, err)
			return
		}
		target, err := vm.operand(2, mb)
		if err != nil {
			vm.abort(start, op, err)
			return
		}
		if (cond != 0) == (op == OpJumpIfTrue) {
			if target < 0 || target >= int64(len(vm.mem)) {
				vm.abort(start, op, &AddressError{Addr: target, Len: len(vm.mem)})
				return
			}
			vm.ip = int(target)
		} else {
			vm.ip += 3
		}

	case OpHalt:
		vm.state = StateHalted
		ev.Kind = EventHalt
	}

	vm.emit(ev)
}

// operand resolves the n-th parameter of the current instruction.
func (vm *VM) operand(n int, mode Mode) (int64, error) {
	raw, err := vm.mem.Read(int64(vm.ip + n))
	if err != nil {
		return 0, err
	}
	return vm.mem.Resolve(mode, raw)
}

// store writes v to the address named by the n-th parameter. Destinations
// are always positional whatever their mode digit says.
func (vm *VM) store(n int, v int64) error {
	addr, err := vm.mem.Read(int64(vm.ip + n))
	if err != nil {
		return err
	}
	return vm.mem.Write(addr, v)
}

func (vm *VM) abort(ptr int, op Opcode, err error) {
	vm.state = StateAborted
	vm.err = &RunError{Engine: vm.name, Pointer: ptr, Op: op, Err: err}
}

func (vm *VM) emit(ev Event) {
	seq := vm.seq
	vm.seq++
	if vm.tracer == nil {
		return
	}
	ev.Engine = vm.name
	ev.Seq = seq
	vm.tracer.Trace(ev)
}

func modesValid(reads int, modes ...Mode) bool {
	for i := 0; i < reads && i < len(modes); i++ {
		if !modes[i].Valid() {
			return false
		}
	}
	return true
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
