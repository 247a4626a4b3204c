// Package trace records executions of the vm package in a SQLite database.
//
// Every run gets a uuid and a row in the runs table keyed by that id, and
// every fetched statement becomes a row in steps. Runs are also tagged with
// the content hash of the program, so the history of one program can be
// found no matter which file it was loaded from.
package trace

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var (
	// ErrRunNotFound indicates the requested run doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrCycleOrder indicates a Run saw a cycle that does not follow the
	// previous one, usually because its VM was Reset and run again.
	ErrCycleOrder = errors.New("cycle out of order")
)

var log = commonlog.GetLogger("spacevm.trace")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	program     TEXT NOT NULL,
	entry       TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	state       TEXT,
	cycles      INTEGER NOT NULL DEFAULT 0,
	fault       TEXT
);
CREATE TABLE IF NOT EXISTS steps (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	cycle   INTEGER NOT NULL,
	routine INTEGER NOT NULL,
	pc      INTEGER NOT NULL,
	depth   INTEGER NOT NULL,
	op      TEXT NOT NULL,
	stmt    TEXT NOT NULL,
	PRIMARY KEY (run_id, cycle)
);
CREATE INDEX IF NOT EXISTS runs_program ON runs(program);
`

// Store handles SQLite storage for traces.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the trace database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	log.Debugf("opened trace store %s", path)
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Begin records the start of a run of the program with the given content
// hash and returns a Run that collects its steps.
func (s *Store) Begin(program [32]byte, entry string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	_, err := s.db.Exec(
		"INSERT INTO runs (id, program, entry, started_at) VALUES (?, ?, ?, ?)",
		id, hex.EncodeToString(program[:]), entry, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	log.Infof("run %s started (program %x, entry %s)", id, program[:6], entry)
	return &Run{ID: id, store: s, batch: DefaultBatch}, nil
}

// RunInfo is one row of the runs table.
type RunInfo struct {
	ID         string
	Program    string // hex content hash
	Entry      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is open
	State      string
	Cycles     uint64
	Fault      string
}

const runColumns = "id, program, entry, started_at, finished_at, state, cycles, fault"

// Runs lists recorded runs, oldest first.
func (s *Store) Runs() ([]RunInfo, error) {
	return s.queryRuns("SELECT " + runColumns + " FROM runs ORDER BY rowid")
}

// RunsFor lists the runs of one program, oldest first.
func (s *Store) RunsFor(program [32]byte) ([]RunInfo, error) {
	return s.queryRuns("SELECT "+runColumns+" FROM runs WHERE program = ? ORDER BY rowid", hex.EncodeToString(program[:]))
}

// Run returns one run by id.
func (s *Store) Run(id string) (RunInfo, error) {
	runs, err := s.queryRuns("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	if err != nil {
		return RunInfo{}, err
	}
	if len(runs) == 0 {
		return RunInfo{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return runs[0], nil
}

func (s *Store) queryRuns(query string, args ...any) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info            RunInfo
			started         string
			finished, state sql.NullString
			fault           sql.NullString
			cycles          int64
		)
		if err := rows.Scan(&info.ID, &info.Program, &info.Entry, &started, &finished, &state, &cycles, &fault); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		info.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			info.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		info.State = state.String
		info.Cycles = uint64(cycles)
		info.Fault = fault.String
		out = append(out, info)
	}
	return out, rows.Err()
}

// Step is one row of the steps table.
type Step struct {
	Cycle   uint64
	Routine int
	PC      int
	Depth   int
	Op      string
	Stmt    string
}

// Steps returns the steps recorded for a run in cycle order.
func (s *Store) Steps(runID string) ([]Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT cycle, routine, pc, depth, op, stmt FROM steps WHERE run_id = ? ORDER BY cycle",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		var (
			st    Step
			cycle int64
		)
		if err := rows.Scan(&cycle, &st.Routine, &st.PC, &st.Depth, &st.Op, &st.Stmt); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		st.Cycle = uint64(cycle)
		out = append(out, st)
	}
	return out, rows.Err()
}

// Delete removes a run and its steps.
func (s *Store) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM steps WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("deleting steps: %w", err)
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}
