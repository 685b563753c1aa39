package amplifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/intcode/vm"
	"golang.org/x/sync/errgroup"
)

// Trial is the outcome of running one Network.
type Trial struct {
	Topology Topology
	Phases   []int64
	Signal   int64
	Outputs  []int64 // every value that reached the result channel
	Duration time.Duration
	Err      error // nil when every stage halted
}

// Completed reports whether every stage halted and a signal was produced.
func (t Trial) Completed() bool {
	return t.Err == nil
}

// Network is one trial's set of stages and channels. Channel i feeds stage
// i; the result channel collects what the last stage sends. A stage that
// has stopped hangs up its input, and whatever its producer still sends
// there is dropped.
type Network struct {
	opts   Options
	phases []int64
	stages []*vm.VM
	links  []*vm.Channel
	result *vm.Channel
}

// NewNetwork builds a network for one phase setting. Every stage gets its
// own engine loaded from program.
func NewNetwork(program []int64, opts Options, phases []int64) (*Network, error) {
	opts = opts.withDefaults()
	if !validPhases(phases, opts.Stages) {
		return nil, fmt.Errorf("%w: %v for %d stages", ErrInvalidPhases, phases, opts.Stages)
	}

	n := &Network{
		opts:   opts,
		phases: append([]int64(nil), phases...),
		stages: make([]*vm.VM, opts.Stages),
		links:  make([]*vm.Channel, opts.Stages),
		result: vm.NewChannel(opts.ChannelCapacity),
	}
	for i := range n.links {
		n.links[i] = vm.NewChannel(opts.ChannelCapacity)
	}

	last := opts.Stages - 1
	for i := range n.stages {
		stage, err := vm.New(opts.Capacity, program)
		if err != nil {
			return nil, err
		}
		stage.SetName(fmt.Sprintf("stage-%d", i))
		stage.SetInput(n.links[i].Source())
		stage.SetTracer(opts.Tracer)
		if i < last {
			stage.AddOutput(n.links[i+1].LossySink())
		} else {
			if opts.Topology == Ring {
				stage.AddOutput(n.links[0].LossySink())
			}
			stage.AddOutput(n.result.Sink())
		}
		n.stages[i] = stage
	}
	return n, nil
}

// outputs returns the channels stage i produces into.
func (n *Network) outputs(i int) []*vm.Channel {
	if i < len(n.stages)-1 {
		return []*vm.Channel{n.links[i+1]}
	}
	if n.opts.Topology == Ring {
		return []*vm.Channel{n.links[0], n.result}
	}
	return []*vm.Channel{n.result}
}

// seed queues each stage's phase, then the start signal behind stage 0's.
func (n *Network) seed(ctx context.Context) error {
	for i, phase := range n.phases {
		if err := n.links[i].Send(ctx, phase); err != nil {
			return err
		}
	}
	return n.links[0].Send(ctx, n.opts.StartSignal)
}

// Run executes the trial. A Network runs once.
func (n *Network) Run(ctx context.Context) (Trial, error) {
	trial := Trial{Topology: n.opts.Topology, Phases: n.phases}
	start := time.Now()

	if n.opts.TrialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.opts.TrialTimeout)
		defer cancel()
	}

	if err := n.seed(ctx); err != nil {
		trial.Err = err
		trial.Duration = time.Since(start)
		return trial, err
	}

	g, gctx := errgroup.WithContext(ctx)
	stageErrs := make([]*StageError, len(n.stages))

	for i, stage := range n.stages {
		i, stage := i, stage
		g.Go(func() error {
			defer func() {
				n.links[i].HangUp()
				for _, ch := range n.outputs(i) {
					ch.Close()
				}
			}()
			code, err := stage.Run(gctx)
			if err == nil && code == vm.ExitFault {
				err = ErrStageFaulted
			}
			if err != nil {
				stageErrs[i] = &StageError{Stage: i, Phase: n.phases[i], Code: code, Err: err}
				return stageErrs[i]
			}
			return nil
		})
	}

	var outputs []int64
	g.Go(func() error {
		for {
			v, err := n.result.Receive(gctx)
			if err != nil {
				return nil
			}
			outputs = append(outputs, v)
		}
	})

	waitErr := g.Wait()
	trial.Outputs = outputs
	trial.Duration = time.Since(start)

	if waitErr != nil {
		trial.Err = rootCause(stageErrs, waitErr)
		return trial, trial.Err
	}
	if len(outputs) == 0 {
		trial.Err = ErrNoSignal
		return trial, trial.Err
	}
	trial.Signal = aggregate(outputs, n.opts.Aggregate)
	return trial, nil
}

// rootCause picks the stage error that started a failure over the
// disconnects and cancellations it caused in the other stages.
func rootCause(stageErrs []*StageError, fallback error) error {
	for _, se := range stageErrs {
		if se != nil && !isKnockOn(se.Err) {
			return se
		}
	}
	for _, se := range stageErrs {
		if se != nil && errors.Is(se.Err, context.DeadlineExceeded) {
			return se
		}
	}
	return fallback
}

func isKnockOn(err error) bool {
	return errors.Is(err, vm.ErrDisconnected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func aggregate(values []int64, how Aggregate) int64 {
	if how == AggregateLast {
		return values[len(values)-1]
	}
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}
