package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a listing of program, one instruction per line.
// Cells that do not decode to an instruction are listed as DATA.
func Disassemble(program []int64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; Intcode program, %d cells\n", len(program)))
	addr := 0
	for addr < len(program) {
		line, width := DisassembleInstruction(program, addr)
		sb.WriteString(fmt.Sprintf("%04d  %s\n", addr, line))
		addr += width
	}
	return sb.String()
}

// DisassembleInstruction formats the instruction at addr and returns it
// with its width in cells.
func DisassembleInstruction(program []int64, addr int) (string, int) {
	if addr < 0 || addr >= len(program) {
		return "<end of program>", 0
	}
	word := program[addr]
	op, ma, mb, mc := Decode(word)
	info, known := GetOpcodeInfo(op)
	if !known || !modesValid(info.Reads, ma, mb) || addr+1+info.Params > len(program) {
		return fmt.Sprintf("DATA %d", word), 1
	}

	modes := [3]Mode{ma, mb, mc}
	operands := make([]string, 0, info.Params)
	for i := 0; i < info.Params; i++ {
		raw := program[addr+1+i]
		if i >= info.Reads || modes[i] == ModePosition {
			operands = append(operands, fmt.Sprintf("[%d]", raw))
		} else {
			operands = append(operands, fmt.Sprintf("%d", raw))
		}
	}
	if len(operands) == 0 {
		return info.Name, info.Params + 1
	}
	return fmt.Sprintf("%-4s %s", info.Name, strings.Join(operands, ", ")), info.Params + 1
}
