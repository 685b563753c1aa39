package amplifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("intcode.amplifier")

// Result summarizes a search.
type Result struct {
	Topology  Topology
	Best      int64
	Phases    []int64 // the setting that produced Best
	Trials    int
	Completed int
	Failed    int
	Duration  time.Duration
}

// Search runs one trial per permutation of opts.Phases, in order, and
// returns the best signal. Failed trials are skipped unless opts.FaultPolicy
// is FaultAbort, in which case the first failure ends the search with a
// *TrialError and the partial result.
func Search(ctx context.Context, program []int64, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if opts.Stages > len(opts.Phases) {
		return nil, fmt.Errorf("%w: %d stages but only %d phase values",
			ErrInvalidPhases, opts.Stages, len(opts.Phases))
	}
	if !validPhases(opts.Phases, len(opts.Phases)) {
		return nil, fmt.Errorf("%w: repeated value in %v", ErrInvalidPhases, opts.Phases)
	}

	res := &Result{Topology: opts.Topology}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	perms := Permutations(opts.Phases, opts.Stages)
	log.Infof("searching %d %s permutations of %v", len(perms), opts.Topology, opts.Phases)

	for _, phases := range perms {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		network, err := NewNetwork(program, opts, phases)
		if err != nil {
			return res, err
		}
		trial, err := network.Run(ctx)
		res.Trials++
		opts.Metrics.recordTrial(trial)
		if opts.Observer != nil {
			if oerr := opts.Observer.ObserveTrial(trial); oerr != nil {
				return res, fmt.Errorf("observer: %w", oerr)
			}
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Failed++
			log.Debugf("trial %v failed: %v", phases, err)
			if opts.FaultPolicy == FaultAbort {
				return res, &TrialError{Phases: phases, Err: err}
			}
			continue
		}

		res.Completed++
		log.Debugf("trial %v: signal %d", phases, trial.Signal)
		if res.Completed == 1 || trial.Signal > res.Best {
			res.Best = trial.Signal
			res.Phases = phases
		}
	}

	if res.Completed == 0 {
		return res, ErrNoCompletedTrials
	}
	opts.Metrics.recordBest(opts.Topology, res.Best)
	log.Infof("best %s signal %d from %v (%d/%d trials completed)",
		opts.Topology, res.Best, res.Phases, res.Completed, res.Trials)
	return res, nil
}

// IsFault reports whether err came from a stage faulting rather than from
// a port or cancellation failure.
func IsFault(err error) bool {
	return errors.Is(err, ErrStageFaulted)
}
