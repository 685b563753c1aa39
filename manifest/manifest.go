// Package manifest handles intcode.toml configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/intcode/amplifier"
)

// FileName is the configuration file FindAndLoad looks for.
const FileName = "intcode.toml"

// Manifest represents an intcode.toml configuration.
type Manifest struct {
	Program   Program   `toml:"program"`
	Amplifier Amplifier `toml:"amplifier"`
	Ledger    Ledger    `toml:"ledger"`
	Trace     Trace     `toml:"trace"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the intcode.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program locates the program to run.
type Program struct {
	Path     string `toml:"path"`
	Capacity int    `toml:"capacity"` // memory cells; 0 means program length
}

// Amplifier configures the amplifier search.
type Amplifier struct {
	Stages          int        `toml:"stages"`
	StartSignal     int64      `toml:"start_signal"`
	ChannelCapacity int        `toml:"channel_capacity"`
	TrialTimeout    *Duration  `toml:"trial_timeout"` // "0" disables
	Aggregate       string     `toml:"aggregate"`
	FaultPolicy     string     `toml:"fault_policy"`
	Chain           PhaseRange `toml:"chain"`
	Feedback        PhaseRange `toml:"feedback"`
}

// PhaseRange is an inclusive range of phase values.
type PhaseRange struct {
	Min *int64 `toml:"min"`
	Max *int64 `toml:"max"`
}

// Values returns min..max.
func (r PhaseRange) Values() []int64 {
	if r.Min == nil || r.Max == nil {
		return nil
	}
	return amplifier.PhaseRange(*r.Min, *r.Max)
}

// Ledger configures the trial ledger database.
type Ledger struct {
	Path string `toml:"path"` // empty disables the ledger
}

// Trace configures CBOR trace output.
type Trace struct {
	Path string `toml:"path"` // empty disables tracing
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 || string(text) == "0" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no intcode.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses an intcode.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an intcode.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// DefaultTrialTimeout bounds each trial when trial_timeout is not set.
const DefaultTrialTimeout = 5 * time.Second

func int64p(v int64) *int64 { return &v }

func (m *Manifest) applyDefaults() {
	a := &m.Amplifier
	if a.Stages == 0 {
		a.Stages = amplifier.DefaultStages
	}
	if a.ChannelCapacity == 0 {
		a.ChannelCapacity = amplifier.DefaultChannelCapacity
	}
	if a.TrialTimeout == nil {
		a.TrialTimeout = &Duration{DefaultTrialTimeout}
	}
	if a.Aggregate == "" {
		a.Aggregate = "max"
	}
	if a.FaultPolicy == "" {
		a.FaultPolicy = "skip"
	}
	if a.Chain.Min == nil {
		a.Chain.Min = int64p(0)
	}
	if a.Chain.Max == nil {
		a.Chain.Max = int64p(4)
	}
	if a.Feedback.Min == nil {
		a.Feedback.Min = int64p(5)
	}
	if a.Feedback.Max == nil {
		a.Feedback.Max = int64p(9)
	}
}

// Validate checks the amplifier settings.
func (m *Manifest) Validate() error {
	a := m.Amplifier
	var errs []error
	if a.Stages < 1 {
		errs = append(errs, fmt.Errorf("amplifier.stages must be at least 1, got %d", a.Stages))
	}
	if a.ChannelCapacity < amplifier.MinChannelCapacity {
		errs = append(errs, fmt.Errorf("amplifier.channel_capacity must be at least %d, got %d",
			amplifier.MinChannelCapacity, a.ChannelCapacity))
	}
	if a.TrialTimeout != nil && a.TrialTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("amplifier.trial_timeout must not be negative"))
	}
	if _, err := amplifier.ParseAggregate(a.Aggregate); err != nil {
		errs = append(errs, fmt.Errorf("amplifier.aggregate: %w", err))
	}
	if _, err := amplifier.ParseFaultPolicy(a.FaultPolicy); err != nil {
		errs = append(errs, fmt.Errorf("amplifier.fault_policy: %w", err))
	}
	for name, r := range map[string]PhaseRange{"chain": a.Chain, "feedback": a.Feedback} {
		if n := len(r.Values()); n < a.Stages {
			errs = append(errs, fmt.Errorf("amplifier.%s has %d phase values for %d stages", name, n, a.Stages))
		}
	}
	if m.Program.Capacity < 0 {
		errs = append(errs, fmt.Errorf("program.capacity must not be negative"))
	}
	return errors.Join(errs...)
}

// AmplifierOptions converts the amplifier settings for a chain or, with
// feedback set, a ring search.
func (m *Manifest) AmplifierOptions(feedback bool) (amplifier.Options, error) {
	if err := m.Validate(); err != nil {
		return amplifier.Options{}, err
	}
	a := m.Amplifier
	agg, _ := amplifier.ParseAggregate(a.Aggregate)
	policy, _ := amplifier.ParseFaultPolicy(a.FaultPolicy)

	var timeout time.Duration
	if a.TrialTimeout != nil {
		timeout = a.TrialTimeout.Duration
	}
	opts := amplifier.Options{
		Topology:        amplifier.Chain,
		Stages:          a.Stages,
		Phases:          a.Chain.Values(),
		StartSignal:     a.StartSignal,
		ChannelCapacity: a.ChannelCapacity,
		TrialTimeout:    timeout,
		Aggregate:       agg,
		FaultPolicy:     policy,
		Capacity:        m.Program.Capacity,
	}
	if feedback {
		opts.Topology = amplifier.Ring
		opts.Phases = a.Feedback.Values()
	}
	return opts, nil
}

// resolve makes a configured path absolute relative to the manifest.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ProgramPath returns the configured program file, or "" if none.
func (m *Manifest) ProgramPath() string {
	return m.resolve(m.Program.Path)
}

// LedgerPath returns the configured ledger database, or "" if disabled.
func (m *Manifest) LedgerPath() string {
	return m.resolve(m.Ledger.Path)
}

// TracePath returns the configured trace file, or "" if disabled.
func (m *Manifest) TracePath() string {
	return m.resolve(m.Trace.Path)
}

// LogFilePath returns the configured log file, or "" for stderr.
func (m *Manifest) LogFilePath() string {
	return m.resolve(m.Log.File)
}
