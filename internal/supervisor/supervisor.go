// Package supervisor manages the lifecycle of the external streaming
// process: spawning it with its output redirected to a log file,
// waiting for a ring it creates to become well-formed, checking its
// liveness, and terminating it exactly once on every exit path.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/sdrerr"
)

// OpenTimeout is the wall-clock bound on waiting for a ring to become
// well-formed (spec.md §4.2.4).
const OpenTimeout = 10 * time.Second

// pollInterval is the constant retry interval used while waiting for
// a ring file to appear and validate; the 10s deadline above is the
// actual bound, so the polling policy is flat rather than exponential.
const pollInterval = 20 * time.Millisecond

// State is the supervisor's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateSpawning
	StateAwaitingRing
	StateStreaming
	StateStopping
	StateStopped
)

// Invocation describes how to launch the external streaming process:
// either a default binary+args, or an injected override for testing
// (DESIGN NOTES §9's "Testing without hardware").
type Invocation struct {
	Path string
	Args []string
	// Override, if set, builds the *exec.Cmd directly, bypassing
	// Path/Args. Tests use it to substitute a mock producer/consumer.
	Override func() *exec.Cmd
}

func (inv Invocation) build() *exec.Cmd {
	if inv.Override != nil {
		return inv.Override()
	}
	return exec.Command(inv.Path, inv.Args...)
}

// Supervisor owns one external process handle and the log file its
// stdout/stderr are redirected to.
type Supervisor struct {
	cmd     *exec.Cmd
	logFile *os.File
	logPath string
	log     *zap.SugaredLogger

	state atomic.Int32

	exited  chan struct{}
	exitErr error

	stopOnce sync.Once
	stopErr  error
}

// Start spawns the external process with both standard streams
// redirected to a log file under logDir/logName.
func Start(inv Invocation, logDir, logName string, log *zap.SugaredLogger) (*Supervisor, error) {
	s := &Supervisor{log: log, exited: make(chan struct{})}
	s.state.Store(int32(StateSpawning))

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("supervisor: create log dir: %w", err)
	}
	logPath := filepath.Join(logDir, logName)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open log file: %w", err)
	}
	s.logFile = f
	s.logPath = logPath

	cmd := inv.build()
	cmd.Stdout = f
	cmd.Stderr = f

	log.Infow("starting external process", zap.String("path", inv.Path), zap.Strings("args", inv.Args), zap.String("log", logPath))

	if err := cmd.Start(); err != nil {
		f.Close()
		return nil, fmt.Errorf("supervisor: start process: %w", err)
	}
	s.cmd = cmd

	go func() {
		s.exitErr = cmd.Wait()
		close(s.exited)
	}()

	return s, nil
}

// Alive reports whether the process is still running, without
// blocking.
func (s *Supervisor) Alive() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// ExitedChan returns a channel closed when the process exits, usable
// directly in a select alongside the hot loop's other events.
func (s *Supervisor) ExitedChan() <-chan struct{} {
	return s.exited
}

// ExitCode returns the process's exit code once it has exited, or -1
// if it hasn't exited yet or the code could not be determined.
func (s *Supervisor) ExitCode() int {
	select {
	case <-s.exited:
	default:
		return -1
	}
	if s.exitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(s.exitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// LogTail returns up to n bytes from the end of the process log file,
// used to annotate process_failed_to_start errors.
func (s *Supervisor) LogTail(n int64) string {
	// The process's own handle is write-only; read through a separate one.
	f, err := os.Open(s.logPath)
	if err != nil {
		return ""
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return ""
	}
	size := info.Size()
	offset := size - n
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return ""
	}
	return string(buf)
}

// AwaitRing polls path until a ring opens and validates with the
// requested channel count, the process exits, or OpenTimeout elapses.
// ring_absent, ring_too_small, and ring_malformed are retried; other
// errors are fatal.
func (s *Supervisor) AwaitRing(ctx context.Context, path string, wantChannels uint16) (*ring.Ring, error) {
	s.state.Store(int32(StateAwaitingRing))

	ctx, cancel := context.WithTimeout(ctx, OpenTimeout)
	defer cancel()

	b := &backoff.ExponentialBackOff{
		InitialInterval:     pollInterval,
		RandomizationFactor: 0,
		Multiplier:          1,
		MaxInterval:         pollInterval,
	}
	b.Reset()
	ticker := backoff.NewTicker(b)
	defer ticker.Stop()

	for {
		r, err := ring.Open(path)
		if err == nil {
			if r.NumChannels() != wantChannels {
				r.SyncAndUnmap()
				return nil, fmt.Errorf("supervisor: await ring %s: %w (want %d, got %d)",
					path, sdrerr.ErrChannelMismatch, wantChannels, r.NumChannels())
			}
			s.state.Store(int32(StateStreaming))
			s.log.Infow("ring opened", "path", path, "channels", r.NumChannels(), "size", r.MappedSize().String())
			return r, nil
		}
		if !retryableOpenError(err) {
			return nil, err
		}

		if !s.Alive() {
			return nil, &sdrerr.ProcessStartError{LogTail: s.LogTail(4096), Err: sdrerr.ErrProcessFailedToStart}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("supervisor: await ring %s: %w", path, sdrerr.ErrOpenTimeout)
		case <-ticker.C:
		}
	}
}

func retryableOpenError(err error) bool {
	return errors.Is(err, sdrerr.ErrRingTooSmall) ||
		errors.Is(err, sdrerr.ErrRingMalformed) ||
		errors.Is(err, sdrerr.ErrRingAbsent)
}

// Close terminates the external process (if still running) and closes
// the log file. It is idempotent and safe to call from multiple
// goroutines; only the first call terminates the process.
func (s *Supervisor) Close() error {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateStopping))
		if s.Alive() {
			s.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-s.exited:
			case <-time.After(2 * time.Second):
				s.cmd.Process.Signal(syscall.SIGKILL)
				<-s.exited
			}
		}
		if s.logFile != nil {
			s.stopErr = s.logFile.Close()
		}
		s.state.Store(int32(StateStopped))
	})
	return s.stopErr
}

// State returns the supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}
