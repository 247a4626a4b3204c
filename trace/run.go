package trace

import (
	"fmt"
	"time"

	"github.com/chazu/spacevm/vm"
)

// DefaultBatch is how many steps a Run buffers before writing them.
const DefaultBatch = 512

// Run collects the steps of one execution. It implements vm.Tracer; pass it
// to vm.WithTracer and call Finish once the machine stops. A Run covers a
// single execution: cycles must increase, so reusing it after vm.Reset
// fails with ErrCycleOrder.
//
// vm.Tracer cannot return an error, so a failed write is kept and reported
// by Finish. Steps after a failed write are dropped.
type Run struct {
	ID string

	store *Store
	batch int
	buf   []Step
	err   error
	done  bool
	last  uint64
}

// SetBatch changes the buffer size. Values below 1 write every step
// immediately.
func (r *Run) SetBatch(n int) {
	if n < 1 {
		n = 1
	}
	r.batch = n
}

// Trace buffers one step.
func (r *Run) Trace(ev vm.StepEvent) {
	if r.err != nil || r.done {
		return
	}
	if ev.Cycle <= r.last {
		if r.err = r.flush(); r.err != nil {
			return
		}
		r.err = fmt.Errorf("%w: run %s got cycle %d after %d", ErrCycleOrder, r.ID, ev.Cycle, r.last)
		return
	}
	r.last = ev.Cycle
	r.buf = append(r.buf, Step{
		Cycle:   ev.Cycle,
		Routine: ev.Routine,
		PC:      ev.PC,
		Depth:   ev.Depth,
		Op:      ev.Stmt.Op.String(),
		Stmt:    ev.Stmt.String(),
	})
	if len(r.buf) >= r.batch {
		r.err = r.flush()
	}
}

// Result is the outcome of a run as stored in the runs table.
type Result struct {
	State  vm.State
	Cycles uint64
	Fault  error
}

// ResultOf captures the outcome of m.
func ResultOf(m *vm.VM) Result {
	res := Result{State: m.State(), Cycles: m.Cycles()}
	if f := m.Fault(); f != nil {
		res.Fault = f
	}
	return res
}

// Finish writes buffered steps and the result. It returns the first error
// met while tracing, if any.
func (r *Run) Finish(res Result) error {
	if r.done {
		return fmt.Errorf("run %s already finished", r.ID)
	}
	r.done = true
	if r.err == nil {
		r.err = r.flush()
	}

	var fault any
	if res.Fault != nil {
		fault = res.Fault.Error()
	}
	r.store.mu.Lock()
	_, err := r.store.db.Exec(
		"UPDATE runs SET finished_at = ?, state = ?, cycles = ?, fault = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), res.State.String(), int64(res.Cycles), fault, r.ID,
	)
	r.store.mu.Unlock()
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.ID, err)
	}
	if r.err != nil {
		log.Errorf("run %s: %s", r.ID, r.err)
		return r.err
	}
	log.Infof("run %s finished: %s after %d cycles", r.ID, res.State, res.Cycles)
	return nil
}

// flush writes buffered steps in one transaction.
func (r *Run) flush() error {
	if len(r.buf) == 0 {
		return nil
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("writing steps: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO steps (run_id, cycle, routine, pc, depth, op, stmt) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("writing steps: %w", err)
	}
	defer stmt.Close()

	for _, st := range r.buf {
		if _, err := stmt.Exec(r.ID, int64(st.Cycle), st.Routine, st.PC, st.Depth, st.Op, st.Stmt); err != nil {
			return fmt.Errorf("writing step %d: %w", st.Cycle, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("writing steps: %w", err)
	}
	log.Debugf("run %s: wrote %d steps", r.ID, len(r.buf))
	r.buf = r.buf[:0]
	return nil
}
