package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// InputPort is where INPUT pulls its next value from. Pull blocks until a
// value is available, the source is used up, or ctx is done.
type InputPort interface {
	Pull(ctx context.Context) (int64, error)
}

// OutputPort is where OUTPUT pushes a value. Push may block.
type OutputPort interface {
	Push(ctx context.Context, v int64) error
}

// ---------------------------------------------------------------------------
// Input sources
// ---------------------------------------------------------------------------

// OneShotSource yields a single preset value once.
type OneShotSource struct {
	mu    sync.Mutex
	value int64
	used  bool
}

// OneShot returns a source that yields v on the first pull and fails after.
func OneShot(v int64) *OneShotSource {
	return &OneShotSource{value: v}
}

// Pull returns the preset value the first time and ErrExhausted afterwards.
func (s *OneShotSource) Pull(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return 0, ErrExhausted
	}
	s.used = true
	return s.value, nil
}

// InteractiveSource reads one integer per line from a reader, prompting on
// a writer before each attempt. Lines that do not parse are reported and
// the prompt is repeated.
//
// Reads happen on a background goroutine, one line per request, so Pull can
// return on cancellation while the reader is blocked. A line that arrives
// after a cancelled Pull is kept for the next one.
type InteractiveSource struct {
	mu       sync.Mutex
	scanner  *bufio.Scanner
	promptTo io.Writer
	Prompt   string

	start    sync.Once
	requests chan struct{}
	lines    chan scannedLine
	pending  bool
	done     error
}

type scannedLine struct {
	text string
	err  error // ErrExhausted or a read error once the reader is finished
}

// Interactive returns a line-based source. prompt may be nil.
func Interactive(r io.Reader, prompt io.Writer) *InteractiveSource {
	return &InteractiveSource{
		scanner:  bufio.NewScanner(r),
		promptTo: prompt,
		Prompt:   "input> ",
		requests: make(chan struct{}, 1),
		lines:    make(chan scannedLine, 1),
	}
}

func (s *InteractiveSource) scan() {
	for range s.requests {
		if s.scanner.Scan() {
			s.lines <- scannedLine{text: s.scanner.Text()}
			continue
		}
		err := ErrExhausted
		if serr := s.scanner.Err(); serr != nil {
			err = fmt.Errorf("reading input: %w", serr)
		}
		s.lines <- scannedLine{err: err}
		return
	}
}

// Pull blocks on the next line. End of input is ErrExhausted.
func (s *InteractiveSource) Pull(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start.Do(func() { go s.scan() })
	for {
		if s.done != nil {
			return 0, s.done
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !s.pending {
			if s.promptTo != nil {
				fmt.Fprint(s.promptTo, s.Prompt)
			}
			s.requests <- struct{}{}
			s.pending = true
		}

		var got scannedLine
		select {
		case got = <-s.lines:
			s.pending = false
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		if got.err != nil {
			s.done = got.err
			return 0, got.err
		}

		line := strings.TrimSpace(got.text)
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			if s.promptTo != nil {
				fmt.Fprintf(s.promptTo, "not an integer: %q\n", line)
			}
			continue
		}
		return v, nil
	}
}

// ChannelSource is the receiving end of a Channel.
type ChannelSource struct {
	ch *Channel
}

// Pull blocks until the producer sends. A closed, drained channel is
// ErrDisconnected.
func (s ChannelSource) Pull(ctx context.Context) (int64, error) {
	return s.ch.Receive(ctx)
}

// ---------------------------------------------------------------------------
// Output sinks
// ---------------------------------------------------------------------------

// Sink hands every value to a function and never blocks.
type Sink struct {
	fn func(int64)
}

// NewSink returns a sink calling fn for every value.
func NewSink(fn func(int64)) Sink {
	return Sink{fn: fn}
}

// WriterSink prints each value on its own line.
func WriterSink(w io.Writer) Sink {
	var mu sync.Mutex
	return NewSink(func(v int64) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, v)
	})
}

// Push delivers v.
func (s Sink) Push(ctx context.Context, v int64) error {
	if s.fn != nil {
		s.fn(v)
	}
	return nil
}

// Recorder is a sink that keeps every value it receives.
type Recorder struct {
	mu     sync.Mutex
	values []int64
}

// Push records v.
func (r *Recorder) Push(ctx context.Context, v int64) error {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	return nil
}

// Values returns a copy of everything recorded so far.
func (r *Recorder) Values() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.values))
	copy(out, r.values)
	return out
}

// Last returns the most recent value and whether there was one.
func (r *Recorder) Last() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0, false
	}
	return r.values[len(r.values)-1], true
}

// ChannelSink is the sending end of a Channel.
type ChannelSink struct {
	ch    *Channel
	lossy bool
}

// Push blocks while the channel is full. A closed channel is
// ErrDisconnected, as is a hung-up one unless the sink is lossy.
func (s ChannelSink) Push(ctx context.Context, v int64) error {
	err := s.ch.Send(ctx, v)
	if s.lossy && errors.Is(err, ErrDisconnected) && s.ch.HungUp() {
		return nil
	}
	return err
}
