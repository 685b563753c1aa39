package amplifier

import (
	"errors"
	"fmt"

	"github.com/chazu/intcode/vm"
)

var (
	// ErrStageFaulted means a stage hit an instruction it could not decode.
	ErrStageFaulted = errors.New("stage faulted")

	// ErrNoCompletedTrials means every trial of a search failed.
	ErrNoCompletedTrials = errors.New("no trial completed")

	// ErrInvalidPhases means a phase setting had the wrong length or
	// repeated a value.
	ErrInvalidPhases = errors.New("invalid phase setting")

	// ErrNoSignal means a trial completed without any value reaching the
	// result channel.
	ErrNoSignal = errors.New("no signal produced")
)

// StageError reports how one stage of a trial ended.
type StageError struct {
	Stage int
	Phase int64
	Code  vm.ExitCode
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (phase %d): %v", e.Stage, e.Phase, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TrialError names the permutation whose trial failed.
type TrialError struct {
	Phases []int64
	Err    error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial %v: %v", e.Phases, e.Err)
}

func (e *TrialError) Unwrap() error {
	return e.Err
}
