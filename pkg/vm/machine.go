// Package vm executes a loaded program image one instruction at a time.
// Every step is a single store transaction: it runs one instruction,
// advances the instruction pointer, sweeps unreachable memory and commits.
package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"glacia/pkg/dbil"
	"glacia/pkg/loader"
	"glacia/pkg/store"
)

// Machine drives threads stored in a Store.
type Machine struct {
	st        store.Store
	ids       store.IDSource
	threadIDs store.IDSource
	log       *slog.Logger
	out       io.Writer
	capture   bool
	output    []string
	prog      *program
}

type Option func(*Machine)

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithOutput sets where print writes when output is not captured.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) { m.out = w }
}

// WithCapture collects printed lines for Output instead of writing them.
func WithCapture() Option {
	return func(m *Machine) { m.capture = true }
}

// WithIDSource overrides the record id generator.
func WithIDSource(ids store.IDSource) Option {
	return func(m *Machine) { m.ids = ids }
}

func New(st store.Store, opts ...Option) *Machine {
	m := &Machine{
		st:        st,
		ids:       store.ShortID,
		threadIDs: store.ThreadID,
		log:       slog.Default(),
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the store contents with img.
func (m *Machine) Load(img *dbil.Image) error {
	m.prog = nil
	if err := loader.Load(m.st, img, m.ids); err != nil {
		return err
	}
	m.log.Debug("program loaded", "functions", len(img.Functions), "instructions", len(img.Instructions))
	return nil
}

// Output returns the lines printed so far in capture mode.
func (m *Machine) Output() []string {
	return append([]string(nil), m.output...)
}

func (m *Machine) index(tx store.Tx) (*program, error) {
	if m.prog == nil {
		p, err := readProgram(tx)
		if err != nil {
			return nil, err
		}
		m.prog = p
	}
	return m.prog, nil
}

func (m *Machine) begin(thread string) (*exec, error) {
	tx, err := m.st.Begin()
	if err != nil {
		return nil, err
	}
	p, err := m.index(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return &exec{m: m, tx: tx, prog: p, thread: thread}, nil
}

// finish commits the step and then releases its printed lines.
func (m *Machine) finish(ex *exec, err error) error {
	if err != nil {
		ex.tx.Rollback()
		return err
	}
	if err := ex.tx.Commit(); err != nil {
		return err
	}
	for _, line := range ex.printed {
		if m.capture {
			m.output = append(m.output, line)
		} else {
			fmt.Fprintln(m.out, line)
		}
	}
	return nil
}

// Start creates a thread whose first frame calls main.
func (m *Machine) Start(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ex, err := m.begin("")
	if err != nil {
		return "", err
	}
	err = ex.start(m.threadIDs)
	if err := m.finish(ex, err); err != nil {
		return "", err
	}
	m.log.Info("thread started", "thread", ex.thread)
	return ex.thread, nil
}

// RunOneLine executes one instruction of the thread. It reports false once
// the thread has no frame left to run.
func (m *Machine) RunOneLine(ctx context.Context, thread string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ex, err := m.begin(thread)
	if err != nil {
		return false, err
	}
	ran, err := ex.step()
	if err := m.finish(ex, err); err != nil {
		return false, err
	}
	return ran, nil
}

// Run steps the thread until it finishes and returns the number of
// instructions executed.
func (m *Machine) Run(ctx context.Context, thread string) (int, error) {
	return m.RunLines(ctx, thread, -1)
}

// RunLines executes at most n instructions, or until the thread finishes
// when n is negative.
func (m *Machine) RunLines(ctx context.Context, thread string, n int) (int, error) {
	started := time.Now()
	steps := 0
	for n < 0 || steps < n {
		ran, err := m.RunOneLine(ctx, thread)
		if err != nil {
			return steps, err
		}
		if !ran {
			m.log.Info("thread finished", "thread", thread, "steps", steps, "elapsed", time.Since(started))
			break
		}
		steps++
	}
	return steps, nil
}

// Done reports whether the thread has no active frame left.
func (m *Machine) Done(thread string) (bool, error) {
	ex, err := m.begin(thread)
	if err != nil {
		return false, err
	}
	defer ex.tx.Rollback()
	frames, err := ex.stack()
	if err != nil {
		return false, err
	}
	for _, c := range frames {
		if c.Status == store.StatusActive {
			return false, nil
		}
	}
	return true, nil
}
