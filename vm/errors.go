package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrProgramTooLarge is returned when a program does not fit in the
	// requested memory capacity.
	ErrProgramTooLarge = errors.New("program larger than memory capacity")

	// ErrNoInput is returned when INPUT executes with no input port set.
	ErrNoInput = errors.New("no input port registered")

	// ErrExhausted is returned by an input port that has nothing left to give.
	ErrExhausted = errors.New("input source exhausted")

	// ErrDisconnected is returned when the other end of a channel has been
	// closed for good.
	ErrDisconnected = errors.New("channel disconnected")

	// ErrAddressOutOfRange is returned for any access outside memory.
	ErrAddressOutOfRange = errors.New("address out of range")

	// ErrInvalidMode is returned when a parameter mode digit is neither
	// position nor immediate.
	ErrInvalidMode = errors.New("invalid parameter mode")
)

// AddressError reports an access outside the allocated memory.
type AddressError struct {
	Addr int64
	Len  int
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address %d out of range [0, %d)", e.Addr, e.Len)
}

func (e *AddressError) Unwrap() error {
	return ErrAddressOutOfRange
}

// RunError wraps the condition that aborted a run together with where the
// engine was when it happened.
type RunError struct {
	Engine  string
	Pointer int
	Op      Opcode
	Err     error
}

func (e *RunError) Error() string {
	where := fmt.Sprintf("at %d", e.Pointer)
	if e.Op.Known() {
		where = fmt.Sprintf("%s at %d", e.Op, e.Pointer)
	}
	if e.Engine != "" {
		return fmt.Sprintf("%s: %s: %v", e.Engine, where, e.Err)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
