package vm

import (
	"strings"
	"testing"
)

func TestDisassembleInstruction(t *testing.T) {
	tests := []struct {
		program []int64
		want    string
		width   int
	}{
		{[]int64{1002, 4, 3, 4}, "MUL  [4], 3, [4]", 4},
		{[]int64{1101, 100, -1, 4}, "ADD  100, -1, [4]", 4},
		{[]int64{11101, 1, 2, 3}, "ADD  1, 2, [3]", 4},
		{[]int64{3, 0}, "IN   [0]", 2},
		{[]int64{104, 7}, "OUT  7", 2},
		{[]int64{1105, 1, 9}, "JT   1, 9", 3},
		{[]int64{6, 3, 4}, "JF   [3], [4]", 3},
		{[]int64{99}, "HALT", 1},
		{[]int64{33}, "DATA 33", 1},
		{[]int64{201, 1, 2, 3}, "DATA 201", 1},
		{[]int64{1, 2}, "DATA 1", 1},
	}
	for _, tt := range tests {
		got, width := DisassembleInstruction(tt.program, 0)
		if got != tt.want || width != tt.width {
			t.Errorf("DisassembleInstruction(%v) = %q/%d, want %q/%d",
				tt.program, got, width, tt.want, tt.width)
		}
	}
}

func TestDisassemble(t *testing.T) {
	got := Disassemble([]int64{1002, 4, 3, 4, 33})
	want := "; Intcode program, 5 cells\n" +
		"0000  MUL  [4], 3, [4]\n" +
		"0004  DATA 33\n"
	if got != want {
		t.Errorf("Disassemble =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassembleCoversEveryCell(t *testing.T) {
	program := []int64{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}
	listing := Disassemble(program)
	lines := strings.Split(strings.TrimSpace(listing), "\n")
	if lines[len(lines)-1] != "0010  DATA 8" {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
	if !strings.Contains(listing, "0002  EQ   [9], [10], [9]") {
		t.Errorf("listing missing EQ:\n%s", listing)
	}
}
