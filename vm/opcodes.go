package vm

import "fmt"

// Opcode is the low two decimal digits of an instruction word.
type Opcode int

const (
	OpAdd         Opcode = 1  // a + b -> [c]
	OpMul         Opcode = 2  // a * b -> [c]
	OpInput       Opcode = 3  // pull -> [a]
	OpOutput      Opcode = 4  // push a
	OpJumpIfTrue  Opcode = 5  // if a != 0: ip = b
	OpJumpIfFalse Opcode = 6  // if a == 0: ip = b
	OpLessThan    Opcode = 7  // a < b -> [c]
	OpEquals      Opcode = 8  // a == b -> [c]
	OpHalt        Opcode = 99 // stop
)

// OpcodeInfo describes an opcode for tracing and disassembly.
type OpcodeInfo struct {
	Name   string
	Params int // operand cells following the instruction word
	Reads  int // leading operands resolved through their mode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpAdd:         {"ADD", 3, 2},
	OpMul:         {"MUL", 3, 2},
	OpInput:       {"IN", 1, 0},
	OpOutput:      {"OUT", 1, 1},
	OpJumpIfTrue:  {"JT", 2, 2},
	OpJumpIfFalse: {"JF", 2, 2},
	OpLessThan:    {"LT", 3, 2},
	OpEquals:      {"EQ", 3, 2},
	OpHalt:        {"HALT", 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Unrecognized opcodes get the name "UNKNOWN(n)" and no parameters.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	if info, ok := opcodeInfoTable[op]; ok {
		return info, true
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", int(op))}, false
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	info, _ := GetOpcodeInfo(op)
	return info.Name
}

// Known reports whether the opcode belongs to the instruction set.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// Params returns the number of operand cells that follow the opcode.
func (op Opcode) Params() int {
	info, _ := GetOpcodeInfo(op)
	return info.Params
}

// Width returns the instruction length in cells, word included.
func (op Opcode) Width() int {
	return 1 + op.Params()
}

// AllOpcodes returns every opcode of the instruction set in numeric order.
func AllOpcodes() []Opcode {
	return []Opcode{OpAdd, OpMul, OpInput, OpOutput, OpJumpIfTrue, OpJumpIfFalse, OpLessThan, OpEquals, OpHalt}
}

// Mode is a parameter addressing mode.
type Mode int

const (
	ModePosition  Mode = 0 // operand names an address
	ModeImmediate Mode = 1 // operand is the value
)

func (m Mode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m == ModePosition || m == ModeImmediate
}

// Decode splits an instruction word into its opcode and the modes of its
// first three parameters.
func Decode(word int64) (Opcode, Mode, Mode, Mode) {
	op := Opcode(word % 100)
	word /= 100
	a := Mode(word % 10)
	word /= 10
	b := Mode(word % 10)
	word /= 10
	c := Mode(word % 10)
	return op, a, b, c
}
