// Package supervisor owns the lifecycle of the single editor process bound
// to a workspace. The live process scan is authoritative for identity; the
// persisted record is advisory and self-heals toward the scan. Shutdown is
// graceful-only: the supervisor never sends SIGKILL.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// State represents the supervisor's view of the editor lifecycle.
type State string

// Lifecycle states.
const (
	StateNotRunning State = "not_running"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
)

// Status is a point-in-time view derived from the live scan.
type Status struct {
	PID     int
	Running bool
	State   State
}

// Config holds Supervisor configuration.
type Config struct {
	Workspace       string        // workspace identity the editor is bound to
	EditorBin       string        // editor executable name or path
	EditorArgs      []string      // extra launch arguments; workspace is appended
	LaunchTimeout   time.Duration // how long a launched editor may take to appear (default 30s)
	ShutdownTimeout time.Duration // default graceful shutdown bound (default 30s)
	PollInterval    time.Duration // scan re-check interval (default 1s)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.LaunchTimeout == 0 {
		out.LaunchTimeout = 30 * time.Second
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = 30 * time.Second
	}
	if out.PollInterval == 0 {
		out.PollInterval = time.Second
	}
	return out
}

// Supervisor manages the one editor instance for a workspace. Calls against
// the same workspace must be serialized by the caller (no concurrent
// EnsureRunning/Shutdown); the supervisor serializes its own record access.
type Supervisor struct {
	cfg       Config
	workspace string
	editorBin string
	runner    CommandRunner
	store     IdentityStore

	mu    sync.Mutex
	state State
	wg    sync.WaitGroup

	// cmdFactory builds the editor launch command. Defaults to
	// exec.Command(EditorBin, EditorArgs..., Workspace). Tests override it.
	cmdFactory func() *exec.Cmd

	// signal delivers a signal to a pid. Tests override it; production uses
	// syscall.Kill.
	signal func(pid int, sig syscall.Signal) error

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates a Supervisor for cfg.Workspace.
func New(cfg Config, runner CommandRunner, store IdentityStore) *Supervisor {
	resolved := cfg.withDefaults()
	s := &Supervisor{
		cfg:       resolved,
		workspace: resolved.Workspace,
		editorBin: resolved.EditorBin,
		runner:    runner,
		store:     store,
		state:     StateNotRunning,
		signal:    syscall.Kill,
		nowFunc:   time.Now,
	}
	s.cmdFactory = func() *exec.Cmd {
		args := append(append([]string{}, resolved.EditorArgs...), resolved.Workspace)
		//nolint:gosec // launch command comes from operator config
		return exec.Command(resolved.EditorBin, args...)
	}
	return s
}

// SetCmdFactory replaces the launch command factory. Intended for tests.
func (s *Supervisor) SetCmdFactory(factory func() *exec.Cmd) {
	s.cmdFactory = factory
}

// EnsureRunning guarantees exactly one live editor for the workspace.
// Idempotent: if the scan already finds one, the stored identity is
// reconciled and no launch happens. Otherwise it launches the editor and
// polls until the scan sees it, bounded by LaunchTimeout.
func (s *Supervisor) EnsureRunning(ctx context.Context) error {
	pid, ok, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if ok {
		s.reconcile(pid)
		s.setState(StateRunning)
		return nil
	}

	s.setState(StateStarting)
	if err := s.launch(); err != nil {
		s.setState(StateNotRunning)
		return err
	}

	deadline := s.nowFunc().Add(s.cfg.LaunchTimeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		pid, ok, err := s.scan(ctx)
		if err != nil {
			return err
		}
		if ok {
			s.reconcile(pid)
			s.setState(StateRunning)
			return nil
		}
		if s.nowFunc().After(deadline) {
			s.setState(StateNotRunning)
			return &LaunchError{Workspace: s.workspace, Timeout: s.cfg.LaunchTimeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status reports the editor's pid and liveness purely from the live scan.
// Any stored-record mismatch is corrected toward the scan, never the
// reverse.
func (s *Supervisor) Status(ctx context.Context) (Status, error) {
	pid, ok, err := s.scan(ctx)
	if err != nil {
		return Status{}, err
	}
	if ok {
		s.reconcile(pid)
		s.setState(StateRunning)
		return Status{PID: pid, Running: true, State: StateRunning}, nil
	}
	s.clearRecord()
	if s.getState() != StateStarting && s.getState() != StateStopping {
		s.setState(StateNotRunning)
	}
	return Status{State: s.getState()}, nil
}

// Shutdown sends the graceful-termination signal to the scanned editor pid
// and polls until it disappears or timeout elapses. On timeout it returns
// *ShutdownTimeoutError and leaves the process alone; forced kills are the
// operator's call, not the supervisor's.
func (s *Supervisor) Shutdown(ctx context.Context, timeout time.Duration) error {
	if timeout == 0 {
		timeout = s.cfg.ShutdownTimeout
	}

	pid, ok, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if !ok {
		// Nothing to stop; forget any stale record.
		s.clearRecord()
		s.setState(StateNotRunning)
		return nil
	}

	s.setState(StateStopping)
	if err := s.signal(pid, syscall.SIGTERM); err != nil {
		// Signal failure means the process exited between scan and signal.
		log.Printf("supervisor: signal pid %d: %v (treating as exited)", pid, err)
		s.clearRecord()
		s.setState(StateNotRunning)
		return nil
	}

	deadline := s.nowFunc().Add(timeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		_, alive, err := s.scan(ctx)
		if err != nil {
			return err
		}
		if !alive {
			s.clearRecord()
			s.setState(StateNotRunning)
			return nil
		}
		if s.nowFunc().After(deadline) {
			return &ShutdownTimeoutError{PID: pid, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reload is Shutdown followed by EnsureRunning. Blocking and sequential;
// callers must not interleave it with a concurrent EnsureRunning.
func (s *Supervisor) Reload(ctx context.Context) error {
	if err := s.Shutdown(ctx, 0); err != nil {
		return err
	}
	return s.EnsureRunning(ctx)
}

// Wait blocks until launch reaper goroutines have finished. Useful in tests
// and for clean process exit.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// launch starts a new editor instance in its own process group and reaps it
// in the background to avoid zombies.
func (s *Supervisor) launch() error {
	cmd := s.cmdFactory()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch editor for %s: %w", s.workspace, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = cmd.Wait()
	}()
	return nil
}

// reconcile stores the scanned pid, logging when it corrects a stale record.
// Mismatches are silent to callers: reconciliation is maintenance, never an
// error.
func (s *Supervisor) reconcile(pid int) {
	rec, ok, err := s.store.Load()
	if err != nil {
		log.Printf("supervisor: load identity record: %v", err)
		return
	}
	if ok && rec.PID == pid {
		return
	}
	if ok && rec.PID != pid {
		log.Printf("supervisor: identity record pid %d stale, correcting to scanned pid %d", rec.PID, pid)
	}
	if err := s.store.Save(Record{Workspace: s.workspace, PID: pid, UpdatedAt: s.nowFunc()}); err != nil {
		log.Printf("supervisor: save identity record: %v", err)
	}
}

func (s *Supervisor) clearRecord() {
	if err := s.store.Clear(); err != nil {
		log.Printf("supervisor: clear identity record: %v", err)
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Supervisor) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
