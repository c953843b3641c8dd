package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/showctl/internal/infrastructure/config"
)

// Status is the supervisor's view of the child process.
type Status string

// Supervisor statuses.
const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusBackoff Status = "backoff"
	StatusFailed  Status = "failed"
)

// Defaults applied by New for zero values.
const (
	DefaultRestartDelay    = time.Second
	DefaultMaxRestartDelay = 30 * time.Second
	DefaultStableAfter     = 2 * time.Minute
	DefaultGracefulTimeout = 5 * time.Second
)

// ErrAlreadyRunning is returned by Start while the child is supervised.
var ErrAlreadyRunning = errors.New("process: already running")

// Config describes the supervised child.
type Config struct {
	Name   string
	Binary string
	Args   []string

	// RestartDelay is the first backoff step; it doubles per attempt up to
	// MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// MaxRestarts limits consecutive restarts. 0 means unlimited.
	MaxRestarts int

	// StableAfter is how long a run must last to reset the backoff.
	StableAfter time.Duration

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// FromConfig builds a Config from the display.process section.
func FromConfig(name string, pc config.ProcessConfig) Config {
	return Config{
		Name:            name,
		Binary:          pc.Binary,
		Args:            pc.Args,
		RestartDelay:    pc.RestartDelay,
		MaxRestartDelay: pc.MaxRestartDelay,
		MaxRestarts:     pc.MaxRestarts,
	}
}

// Logger is the logging interface used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Stats is a snapshot of the supervisor.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Supervisor keeps one child process running.
type Supervisor struct {
	cfg    Config
	logger Logger

	mu        sync.Mutex
	status    Status
	cmd       *exec.Cmd
	started   time.Time
	restarts  int
	lastError error
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a stopped supervisor. A nil logger discards output.
func New(cfg Config, logger Logger) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = max(DefaultMaxRestartDelay, cfg.RestartDelay)
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = DefaultStableAfter
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Supervisor{cfg: cfg, logger: logger, status: StatusStopped}
}

// Start launches the child and returns once it is running. A failure to
// launch is returned directly and not retried; later exits are.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.cfg.Name)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.restarts = 0
	s.lastError = nil
	s.mu.Unlock()

	cmd, err := s.launch()
	if err != nil {
		cancel()
		s.mu.Lock()
		s.status = StatusFailed
		s.lastError = err
		close(s.done)
		s.done = nil
		s.mu.Unlock()
		return err
	}

	go s.supervise(runCtx, cmd)
	return nil
}

func (s *Supervisor) launch() (*exec.Cmd, error) {
	cmd := exec.Command(s.cfg.Binary, s.cfg.Args...) //nolint:gosec // binary comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = &lineLogger{sup: s, stream: "stdout"}
	cmd.Stderr = &lineLogger{sup: s, stream: "stderr"}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.started = time.Now()
	s.mu.Unlock()

	s.logger.Info("process started", "name", s.cfg.Name, "pid", cmd.Process.Pid)
	return cmd, nil
}

// maxLineLength bounds a buffered output line.
const maxLineLength = 4096

// lineLogger logs child output one line at a time. exec copies each stream
// from a single goroutine, so Write is never called concurrently.
type lineLogger struct {
	sup    *Supervisor
	stream string
	buf    []byte
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineLength {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

func (w *lineLogger) emit(line []byte) {
	text := string(bytes.TrimRight(line, "\r"))
	if text == "" {
		return
	}
	if w.stream == "stderr" {
		w.sup.logger.Warn("process output", "name", w.sup.cfg.Name, "stream", w.stream, "line", text)
		return
	}
	w.sup.logger.Debug("process output", "name", w.sup.cfg.Name, "stream", w.stream, "line", text)
}

// supervise waits for each run to end and restarts the child until ctx is
// cancelled or the restart budget is spent.
func (s *Supervisor) supervise(ctx context.Context, cmd *exec.Cmd) {
	defer func() {
		s.mu.Lock()
		close(s.done)
		s.done = nil
		s.cmd = nil
		s.mu.Unlock()
	}()

	attempt := 0
	for {
		err := cmd.Wait()
		if err == nil {
			err = errors.New("exited with status 0")
		}

		s.mu.Lock()
		ranFor := time.Since(s.started)
		if ctx.Err() != nil {
			s.status = StatusStopped
			s.mu.Unlock()
			s.logger.Info("process stopped", "name", s.cfg.Name)
			return
		}
		s.lastError = err
		if ranFor >= s.cfg.StableAfter {
			attempt = 0
		}
		attempt++
		if s.cfg.MaxRestarts > 0 && attempt > s.cfg.MaxRestarts {
			s.status = StatusFailed
			s.mu.Unlock()
			s.logger.Error("process restart limit reached", "name", s.cfg.Name, "restarts", attempt-1, "error", err)
			return
		}
		s.status = StatusBackoff
		s.restarts++
		s.mu.Unlock()

		delay := s.backoff(attempt)
		s.logger.Warn("process exited, restarting",
			"name", s.cfg.Name,
			"error", err,
			"attempt", attempt,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.mu.Lock()
			s.status = StatusStopped
			s.mu.Unlock()
			return
		case <-timer.C:
		}

		next, err := s.launch()
		if err != nil {
			s.logger.Error("process relaunch failed", "name", s.cfg.Name, "error", err)
			s.mu.Lock()
			s.lastError = err
			s.status = StatusFailed
			s.mu.Unlock()
			return
		}
		cmd = next
	}
}

// backoff returns the delay before restart attempt n (1-based).
func (s *Supervisor) backoff(n int) time.Duration {
	delay := s.cfg.RestartDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= s.cfg.MaxRestartDelay {
			return s.cfg.MaxRestartDelay
		}
	}
	return delay
}

// Stop terminates the process group with SIGTERM, escalating to SIGKILL
// after the graceful timeout, and waits for supervision to end or ctx to
// be done. Stopping a stopped supervisor is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	cancel := s.cancel
	cmd := s.cmd
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	if cmd == nil || cmd.Process == nil {
		return waitDone(ctx, done)
	}

	pid := cmd.Process.Pid
	s.logger.Info("stopping process", "name", s.cfg.Name, "pid", pid)
	signalGroup(pid, syscall.SIGTERM, s.logger)

	grace := time.NewTimer(s.cfg.GracefulTimeout)
	defer grace.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		signalGroup(pid, syscall.SIGKILL, s.logger)
		return ctx.Err()
	case <-grace.C:
		s.logger.Warn("graceful stop timed out, killing", "name", s.cfg.Name, "pid", pid)
		signalGroup(pid, syscall.SIGKILL, s.logger)
	}
	return waitDone(ctx, done)
}

func signalGroup(pid int, sig syscall.Signal, logger Logger) {
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		logger.Warn("signalling process group failed", "pid", pid, "signal", sig, "error", err)
	}
}

func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stats returns a snapshot for the health endpoint.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Name:         s.cfg.Name,
		Status:       s.status,
		RestartCount: s.restarts,
	}
	if s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
	}
	if s.status == StatusRunning {
		st.Uptime = time.Since(s.started)
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
