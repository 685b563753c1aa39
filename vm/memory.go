package vm

import "fmt"

// Memory is the fixed-capacity integer store of one engine.
type Memory []int64

// Load allocates capacity cells and copies program into the low addresses.
// The rest is zero. A capacity of zero or less means "exactly the program".
func Load(capacity int, program []int64) (Memory, error) {
	if capacity <= 0 {
		capacity = len(program)
	}
	if len(program) > capacity {
		return nil, fmt.Errorf("%w: %d cells, capacity %d", ErrProgramTooLarge, len(program), capacity)
	}
	m := make(Memory, capacity)
	copy(m, program)
	return m, nil
}

func (m Memory) check(addr int64) error {
	if addr < 0 || addr >= int64(len(m)) {
		return &AddressError{Addr: addr, Len: len(m)}
	}
	return nil
}

// Read returns the value stored at addr.
func (m Memory) Read(addr int64) (int64, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	return m[addr], nil
}

// Write stores v at addr.
func (m Memory) Write(addr, v int64) error {
	if err := m.check(addr); err != nil {
		return err
	}
	m[addr] = v
	return nil
}

// Resolve returns the value an operand denotes under mode: the operand
// itself when immediate, the cell it names when positional.
func (m Memory) Resolve(mode Mode, raw int64) (int64, error) {
	switch mode {
	case ModeImmediate:
		return raw, nil
	case ModePosition:
		return m.Read(raw)
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
}
