package amplifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/intcode/vm"
)

var (
	chain43210 = []int64{3, 15, 3, 16, 1002, 16, 10, 16, 1, 16, 15, 15, 4, 15, 99, 0, 0}

	chain54321 = []int64{3, 23, 3, 24, 1002, 24, 10, 24, 1002, 23, -1, 23,
		101, 5, 23, 23, 1, 24, 23, 23, 4, 23, 99, 0, 0}

	chain65210 = []int64{3, 31, 3, 32, 1002, 32, 10, 32, 1001, 31, -2, 31, 1007, 31, 0, 33,
		1002, 33, 7, 33, 1, 33, 31, 31, 1, 32, 31, 31, 4, 31, 99, 0, 0, 0}

	ring139629729 = []int64{3, 26, 1001, 26, -4, 26, 3, 27, 1002, 27, 2, 27, 1, 27, 26,
		27, 4, 27, 1001, 28, -1, 28, 1005, 28, 6, 99, 0, 0, 5}

	ring18216 = []int64{3, 52, 1001, 52, -5, 52, 3, 53, 1, 52, 56, 54, 1007, 54, 5, 55, 1005, 55, 26, 1001, 54,
		-5, 54, 1105, 1, 12, 1, 53, 54, 53, 1008, 54, 0, 55, 1001, 55, 1, 55, 2, 53, 55, 53, 4,
		53, 1001, 56, -1, 56, 1005, 56, 6, 99, 0, 0, 0, 0, 10}

	// faultOnFour adds its phase to the incoming signal, but jumps to an
	// undecodable cell when its phase is 4.
	faultOnFour = []int64{
		3, 20, // IN  [20]  phase
		3, 21, // IN  [21]  signal
		1008, 20, 4, 22, // EQ  [20], 4, [22]
		1005, 22, 19, // JT  [22], 19
		1, 20, 21, 21, // ADD [20], [21], [21]
		4, 21, // OUT [21]
		99,
		0,
		55, // fault
		0, 0, 0,
	}

	// chatty reads its phase and one signal, then outputs the signal 20
	// times and halts, so every stage sends more than the next one reads.
	chatty = []int64{3, 50, 3, 51, 4, 51, 1001, 52, 1, 52, 1007, 52, 20, 53, 1005, 53, 4, 99}
)

// =============================================================================
// Permutations
// =============================================================================

func TestPermutations_Order(t *testing.T) {
	got := Permutations([]int64{0, 1, 2}, 3)
	want := [][]int64{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	assert.Equal(t, want, got)
}

func TestPermutations_Counts(t *testing.T) {
	assert.Len(t, Permutations(PhaseRange(0, 4), 5), 120)
	assert.Len(t, Permutations(PhaseRange(0, 4), 3), 60)
	assert.Len(t, Permutations([]int64{7, 8, 9}, 2), 6)
	assert.Nil(t, Permutations([]int64{1, 2}, 3))
}

func TestPermutations_DistinctValues(t *testing.T) {
	for _, p := range Permutations(PhaseRange(5, 9), 5) {
		assert.True(t, validPhases(p, 5), "permutation %v repeats a value", p)
	}
}

// =============================================================================
// Network
// =============================================================================

func TestNetwork_ChainFixtures(t *testing.T) {
	tests := []struct {
		name    string
		program []int64
		phases  []int64
		want    int64
	}{
		{"43210", chain43210, []int64{4, 3, 2, 1, 0}, 43210},
		{"54321", chain54321, []int64{0, 1, 2, 3, 4}, 54321},
		{"65210", chain65210, []int64{1, 0, 4, 3, 2}, 65210},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNetwork(tt.program, Options{}, tt.phases)
			require.NoError(t, err)
			trial, err := n.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, trial.Completed())
			assert.Equal(t, tt.want, trial.Signal)
			assert.Equal(t, []int64{tt.want}, trial.Outputs)
		})
	}
}

func TestNetwork_RingFixtures(t *testing.T) {
	tests := []struct {
		name    string
		program []int64
		phases  []int64
		want    int64
	}{
		{"139629729", ring139629729, []int64{9, 8, 7, 6, 5}, 139629729},
		{"18216", ring18216, []int64{9, 7, 8, 5, 6}, 18216},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNetwork(tt.program, Options{Topology: Ring}, tt.phases)
			require.NoError(t, err)
			trial, err := n.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, trial.Signal)
			assert.Equal(t, tt.want, trial.Outputs[len(trial.Outputs)-1])
			assert.Greater(t, len(trial.Outputs), 1, "ring should feed back more than once")
		})
	}
}

func TestNetwork_StartSignal(t *testing.T) {
	n, err := NewNetwork(faultOnFour, Options{Stages: 3, StartSignal: 100}, []int64{0, 1, 2})
	require.NoError(t, err)
	trial, err := n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(103), trial.Signal)
}

func TestNetwork_InvalidPhases(t *testing.T) {
	for _, phases := range [][]int64{
		{0, 1, 2, 3},
		{0, 1, 2, 3, 3},
		{0, 1, 2, 3, 4, 5},
	} {
		_, err := NewNetwork(chain43210, Options{}, phases)
		assert.ErrorIs(t, err, ErrInvalidPhases, "phases %v", phases)
	}
}

func TestNetwork_ProgramTooLarge(t *testing.T) {
	_, err := NewNetwork(chain43210, Options{Capacity: 4}, []int64{0, 1, 2, 3, 4})
	assert.ErrorIs(t, err, vm.ErrProgramTooLarge)
}

func TestNetwork_FaultNamesStage(t *testing.T) {
	n, err := NewNetwork(faultOnFour, Options{Stages: 3}, []int64{0, 4, 1})
	require.NoError(t, err)
	trial, err := n.Run(context.Background())
	require.Error(t, err)
	assert.False(t, trial.Completed())
	assert.True(t, IsFault(err))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Stage)
	assert.Equal(t, int64(4), se.Phase)
	assert.Equal(t, vm.ExitFault, se.Code)
}

func TestNetwork_TimeoutStopsWedgedStage(t *testing.T) {
	spin := []int64{1105, 1, 0}
	n, err := NewNetwork(spin, Options{Stages: 1, TrialTimeout: 20 * time.Millisecond}, []int64{0})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := n.Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("trial did not stop at its timeout")
	}
}

func TestNetwork_Aggregate(t *testing.T) {
	twoOutputs := []int64{104, 5, 104, 3, 99}

	n, err := NewNetwork(twoOutputs, Options{Stages: 1}, []int64{0})
	require.NoError(t, err)
	trial, err := n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), trial.Signal)

	n, err = NewNetwork(twoOutputs, Options{Stages: 1, Aggregate: AggregateLast}, []int64{0})
	require.NoError(t, err)
	trial, err = n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), trial.Signal)
}

func TestNetwork_NoSignal(t *testing.T) {
	n, err := NewNetwork([]int64{99}, Options{Stages: 2}, []int64{0, 1})
	require.NoError(t, err)
	_, err = n.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestNetwork_TracerSeesEveryStage(t *testing.T) {
	prof := vm.NewProfiler()
	n, err := NewNetwork(chain43210, Options{Tracer: prof}, []int64{4, 3, 2, 1, 0})
	require.NoError(t, err)
	_, err = n.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), prof.Count(vm.OpHalt))
	assert.Equal(t, uint64(10), prof.Count(vm.OpInput))
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_Chain(t *testing.T) {
	tests := []struct {
		program []int64
		want    int64
		phases  []int64
	}{
		{chain43210, 43210, []int64{4, 3, 2, 1, 0}},
		{chain54321, 54321, []int64{0, 1, 2, 3, 4}},
		{chain65210, 65210, []int64{1, 0, 4, 3, 2}},
	}
	for _, tt := range tests {
		res, err := Search(context.Background(), tt.program, Options{})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Best)
		assert.Equal(t, tt.phases, res.Phases)
		assert.Equal(t, 120, res.Trials)
		assert.Equal(t, 120, res.Completed)
	}
}

func TestSearch_Ring(t *testing.T) {
	res, err := Search(context.Background(), ring139629729, Options{Topology: Ring})
	require.NoError(t, err)
	assert.Equal(t, int64(139629729), res.Best)
	assert.Equal(t, []int64{9, 8, 7, 6, 5}, res.Phases)

	res, err = Search(context.Background(), ring18216, Options{Topology: Ring})
	require.NoError(t, err)
	assert.Equal(t, int64(18216), res.Best)
	assert.Equal(t, []int64{9, 7, 8, 5, 6}, res.Phases)
}

func TestSearch_ProducersOutliveHaltedConsumers(t *testing.T) {
	for _, topo := range []Topology{Chain, Ring} {
		t.Run(topo.String(), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			res, err := Search(ctx, chatty, Options{Topology: topo, Capacity: 60, StartSignal: 7})
			require.NoError(t, err)
			assert.Equal(t, 120, res.Completed)
			assert.Equal(t, int64(7), res.Best)
		})
	}
}

func TestSearch_SkipFaultingTrials(t *testing.T) {
	res, err := Search(context.Background(), faultOnFour, Options{Stages: 3})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Trials)
	assert.Equal(t, 24, res.Completed)
	assert.Equal(t, 36, res.Failed)
	assert.Equal(t, int64(6), res.Best)
	assert.Equal(t, []int64{1, 2, 3}, res.Phases)
}

func TestSearch_AbortOnFault(t *testing.T) {
	res, err := Search(context.Background(), faultOnFour, Options{Stages: 3, FaultPolicy: FaultAbort})
	require.Error(t, err)

	var te *TrialError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, []int64{0, 1, 4}, te.Phases)
	assert.True(t, IsFault(err))

	assert.Equal(t, 3, res.Trials)
	assert.Equal(t, 2, res.Completed)
}

func TestSearch_NoCompletedTrials(t *testing.T) {
	_, err := Search(context.Background(), faultOnFour, Options{})
	assert.ErrorIs(t, err, ErrNoCompletedTrials)
}

func TestSearch_RejectsBadPhaseSets(t *testing.T) {
	_, err := Search(context.Background(), chain43210, Options{Phases: []int64{0, 1, 2}})
	assert.ErrorIs(t, err, ErrInvalidPhases)

	_, err = Search(context.Background(), chain43210, Options{Stages: 2, Phases: []int64{1, 1, 2}})
	assert.ErrorIs(t, err, ErrInvalidPhases)
}

func TestSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Search(ctx, chain43210, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_Observer(t *testing.T) {
	var trials []Trial
	obs := ObserverFunc(func(tr Trial) error {
		trials = append(trials, tr)
		return nil
	})
	_, err := Search(context.Background(), faultOnFour, Options{Stages: 2, Phases: PhaseRange(3, 5), Observer: obs})
	require.NoError(t, err)
	require.Len(t, trials, 6)
	assert.Equal(t, []int64{3, 4}, trials[0].Phases)
	assert.False(t, trials[0].Completed())
	assert.Equal(t, []int64{3, 5}, trials[1].Phases)
	assert.Equal(t, int64(8), trials[1].Signal)

	boom := errors.New("boom")
	_, err = Search(context.Background(), chain43210, Options{
		Observer: ObserverFunc(func(Trial) error { return boom }),
	})
	assert.ErrorIs(t, err, boom)
}

// =============================================================================
// Metrics
// =============================================================================

func TestMetrics_RecordSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	_, err := Search(context.Background(), faultOnFour, Options{Stages: 3, Metrics: m})
	require.NoError(t, err)

	assert.Equal(t, float64(24), testutil.ToFloat64(m.TrialsTotal.WithLabelValues("chain", "completed")))
	assert.Equal(t, float64(36), testutil.ToFloat64(m.TrialsTotal.WithLabelValues("chain", "failed")))
	assert.Equal(t, float64(6), testutil.ToFloat64(m.BestSignal.WithLabelValues("chain")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TrialDurationSeconds))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.recordTrial(Trial{})
	m.recordBest(Chain, 1)
}

// =============================================================================
// Options
// =============================================================================

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultStages, o.Stages)
	assert.Equal(t, PhaseRange(0, 4), o.Phases)
	assert.Equal(t, DefaultChannelCapacity, o.ChannelCapacity)

	o = Options{Topology: Ring, ChannelCapacity: 1}.withDefaults()
	assert.Equal(t, PhaseRange(5, 9), o.Phases)
	assert.Equal(t, MinChannelCapacity, o.ChannelCapacity)
}

func TestParsePolicies(t *testing.T) {
	a, err := ParseAggregate("last")
	require.NoError(t, err)
	assert.Equal(t, AggregateLast, a)
	_, err = ParseAggregate("median")
	assert.Error(t, err)

	p, err := ParseFaultPolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, FaultAbort, p)
	_, err = ParseFaultPolicy("retry")
	assert.Error(t, err)
}
