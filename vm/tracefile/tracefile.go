// Package tracefile stores engine trace events as a CBOR stream: one header
// item followed by one item per event.
package tracefile

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/chazu/intcode/vm"
	"github.com/fxamacker/cbor/v2"
)

// Magic identifies a trace stream.
const Magic = "intcode-trace"

// Version is the record layout written by this package.
const Version = 1

// ErrBadMagic is returned when a stream does not start with a trace header.
var ErrBadMagic = errors.New("tracefile: not a trace stream")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("tracefile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Header is the first item of a stream.
type Header struct {
	Magic   string `cbor:"1,keyasint"`
	Version int    `cbor:"2,keyasint"`
	Program string `cbor:"3,keyasint,omitempty"` // optional label, usually the file name
}

type record struct {
	Engine  string `cbor:"1,keyasint,omitempty"`
	Seq     uint64 `cbor:"2,keyasint"`
	Pointer int    `cbor:"3,keyasint"`
	Word    int64  `cbor:"4,keyasint"`
	Op      int    `cbor:"5,keyasint"`
	Kind    uint8  `cbor:"6,keyasint"`
	Value   int64  `cbor:"7,keyasint,omitempty"`
}

func toRecord(ev vm.Event) record {
	return record{
		Engine:  ev.Engine,
		Seq:     ev.Seq,
		Pointer: ev.Pointer,
		Word:    ev.Word,
		Op:      int(ev.Op),
		Kind:    uint8(ev.Kind),
		Value:   ev.Value,
	}
}

func (r record) event() vm.Event {
	return vm.Event{
		Engine:  r.Engine,
		Seq:     r.Seq,
		Pointer: r.Pointer,
		Word:    r.Word,
		Op:      vm.Opcode(r.Op),
		Kind:    vm.EventKind(r.Kind),
		Value:   r.Value,
	}
}

// Writer is a vm.Tracer that encodes every event to an io.Writer. It may be
// shared by engines running concurrently. The first encoding error is kept
// and later events are dropped.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	count uint64
	err   error
}

// NewWriter writes the header and returns a Writer appending events to w.
func NewWriter(w io.Writer, program string) (*Writer, error) {
	enc := cborEncMode.NewEncoder(w)
	if err := enc.Encode(Header{Magic: Magic, Version: Version, Program: program}); err != nil {
		return nil, fmt.Errorf("tracefile: write header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Trace encodes one event.
func (w *Writer) Trace(ev vm.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	if err := w.enc.Encode(toRecord(ev)); err != nil {
		w.err = fmt.Errorf("tracefile: write event %d: %w", w.count, err)
		return
	}
	w.count++
}

// Count returns the number of events written.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Err returns the first encoding error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Reader decodes a trace stream.
type Reader struct {
	dec    *cbor.Decoder
	Header Header
}

// NewReader reads and checks the header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if h.Magic != Magic {
		return nil, ErrBadMagic
	}
	if h.Version != Version {
		return nil, fmt.Errorf("tracefile: unsupported version %d", h.Version)
	}
	return &Reader{dec: dec, Header: h}, nil
}

// Next returns the next event, or io.EOF at the end of the stream.
func (r *Reader) Next() (vm.Event, error) {
	var rec record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return vm.Event{}, io.EOF
		}
		return vm.Event{}, fmt.Errorf("tracefile: read event: %w", err)
	}
	return rec.event(), nil
}

// ReadAll decodes a whole stream.
func ReadAll(r io.Reader) (Header, []vm.Event, error) {
	tr, err := NewReader(r)
	if err != nil {
		return Header{}, nil, err
	}
	var events []vm.Event
	for {
		ev, err := tr.Next()
		if err == io.EOF {
			return tr.Header, events, nil
		}
		if err != nil {
			return tr.Header, events, err
		}
		events = append(events, ev)
	}
}
