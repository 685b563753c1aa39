// Package amplifier wires several Intcode engines into a pipeline and
// searches phase-setting permutations for the strongest output signal.
//
// A Network is one trial: a fresh engine per stage, connected by bounded
// channels either as a linear Chain or as a feedback Ring. Search runs one
// Network per permutation, sequentially, and reports the best signal.
package amplifier
