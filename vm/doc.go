// Package vm implements the Intcode virtual machine.
//
// This package contains:
//   - Fixed-capacity integer memory and the instruction decoder
//   - The fetch/decode/execute loop
//   - Input and output ports, including channel-backed ports for wiring
//     several machines together
//   - Trace events, an opcode profiler and a disassembler
package vm
