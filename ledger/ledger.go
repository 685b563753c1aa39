// Package ledger records amplifier searches and their trials in SQLite.
package ledger

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/intcode/amplifier"
)

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

var schema = []string{`CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	program     TEXT NOT NULL,
	topology    TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	status      TEXT NOT NULL DEFAULT 'running',
	best        INTEGER,
	phases      TEXT,
	trials      INTEGER NOT NULL DEFAULT 0,
	completed   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT
)`, `CREATE TABLE IF NOT EXISTS trials (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	phases      TEXT NOT NULL,
	signal      INTEGER,
	completed   INTEGER NOT NULL,
	error       TEXT,
	duration_ns INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
)`}

// Ledger is a handle on a ledger database.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	return &Ledger{db: db}, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// ProgramDigest identifies a program by the SHA-256 of its canonical text.
func ProgramDigest(program []int64) string {
	sum := sha256.Sum256([]byte(formatValues(program)))
	return hex.EncodeToString(sum[:])
}

// Run is an open search record. It implements amplifier.Observer.
type Run struct {
	ID        string
	Program   string
	Topology  string
	StartedAt time.Time

	ledger *Ledger
	mu     sync.Mutex
	seq    int
}

// BeginRun records the start of a search and returns its handle.
func (l *Ledger) BeginRun(program []int64, topology amplifier.Topology) (*Run, error) {
	r := &Run{
		ID:        uuid.NewString(),
		Program:   ProgramDigest(program),
		Topology:  topology.String(),
		StartedAt: time.Now().UTC(),
		ledger:    l,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.Exec(
		"INSERT INTO runs (id, program, topology, started_at) VALUES (?, ?, ?, ?)",
		r.ID, r.Program, r.Topology, r.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	return r, nil
}

// ObserveTrial stores one trial of the run.
func (r *Run) ObserveTrial(t amplifier.Trial) error {
	r.mu.Lock()
	seq := r.seq
	r.seq++
	r.mu.Unlock()

	var signal sql.NullInt64
	var errText sql.NullString
	if t.Completed() {
		signal = sql.NullInt64{Int64: t.Signal, Valid: true}
	} else {
		errText = sql.NullString{String: t.Err.Error(), Valid: true}
	}

	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	_, err := r.ledger.db.Exec(
		`INSERT INTO trials (run_id, seq, phases, signal, completed, error, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, seq, formatValues(t.Phases), signal, t.Completed(), errText, t.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("saving trial %d: %w", seq, err)
	}
	return nil
}

// Finish records the outcome of the search. res may be nil when the search
// failed before running any trial.
func (r *Run) Finish(res *amplifier.Result, searchErr error) error {
	status := "done"
	var errText sql.NullString
	if searchErr != nil {
		status = "failed"
		errText = sql.NullString{String: searchErr.Error(), Valid: true}
	}

	var best sql.NullInt64
	var phases sql.NullString
	var trials, completed, failed int
	if res != nil {
		trials, completed, failed = res.Trials, res.Completed, res.Failed
		if res.Completed > 0 {
			best = sql.NullInt64{Int64: res.Best, Valid: true}
			phases = sql.NullString{String: formatValues(res.Phases), Valid: true}
		}
	}

	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	_, err := r.ledger.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, best = ?, phases = ?,
		 trials = ?, completed = ?, failed = ?, error = ? WHERE id = ?`,
		time.Now().UTC().UnixNano(), status, best, phases, trials, completed, failed, errText, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// RunRecord is a stored search.
type RunRecord struct {
	ID         string     `yaml:"id"`
	Program    string     `yaml:"program"`
	Topology   string     `yaml:"topology"`
	StartedAt  time.Time  `yaml:"started_at"`
	FinishedAt *time.Time `yaml:"finished_at,omitempty"`
	Status     string     `yaml:"status"`
	Best       *int64     `yaml:"best,omitempty"`
	Phases     []int64    `yaml:"phases,omitempty"`
	Trials     int        `yaml:"trials"`
	Completed  int        `yaml:"completed"`
	Failed     int        `yaml:"failed"`
	Error      string     `yaml:"error,omitempty"`
}

// TrialRecord is a stored trial.
type TrialRecord struct {
	Seq       int           `yaml:"seq"`
	Phases    []int64       `yaml:"phases"`
	Signal    *int64        `yaml:"signal,omitempty"`
	Completed bool          `yaml:"completed"`
	Error     string        `yaml:"error,omitempty"`
	Duration  time.Duration `yaml:"duration"`
}

const runColumns = `id, program, topology, started_at, finished_at, status, best, phases,
	trials, completed, failed, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var (
		rec      RunRecord
		started  int64
		finished sql.NullInt64
		best     sql.NullInt64
		phases   sql.NullString
		errText  sql.NullString
	)
	err := s.Scan(&rec.ID, &rec.Program, &rec.Topology, &started, &finished, &rec.Status,
		&best, &phases, &rec.Trials, &rec.Completed, &rec.Failed, &errText)
	if err != nil {
		return rec, err
	}
	rec.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		rec.FinishedAt = &t
	}
	if best.Valid {
		v := best.Int64
		rec.Best = &v
	}
	if phases.Valid {
		if rec.Phases, err = parseValues(phases.String); err != nil {
			return rec, fmt.Errorf("run %s phases: %w", rec.ID, err)
		}
	}
	rec.Error = errText.String
	return rec, nil
}

// Runs lists every run, newest first.
func (l *Ledger) Runs() ([]RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query("SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Run returns one run by ID.
func (l *Ledger) Run(id string) (RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := scanRun(l.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrRunNotFound
		}
		return rec, fmt.Errorf("querying run: %w", err)
	}
	return rec, nil
}

// Trials lists the trials of a run in the order they ran.
func (l *Ledger) Trials(runID string) ([]TrialRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(
		"SELECT seq, phases, signal, completed, error, duration_ns FROM trials WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing trials: %w", err)
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		var (
			rec      TrialRecord
			phases   string
			signal   sql.NullInt64
			errText  sql.NullString
			duration int64
		)
		if err := rows.Scan(&rec.Seq, &phases, &signal, &rec.Completed, &errText, &duration); err != nil {
			return nil, fmt.Errorf("scanning trial: %w", err)
		}
		if rec.Phases, err = parseValues(phases); err != nil {
			return nil, fmt.Errorf("trial %d phases: %w", rec.Seq, err)
		}
		if signal.Valid {
			v := signal.Int64
			rec.Signal = &v
		}
		rec.Error = errText.String
		rec.Duration = time.Duration(duration)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatValues(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func parseValues(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
