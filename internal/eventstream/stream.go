package eventstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/mrzor/alloc-tracer/internal/event"
)

// Notifier is told that new events are waiting in the queue. It is called
// from the reader goroutine and must not block for long.
type Notifier interface {
	Notify()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func()

// Notify calls f.
func (f NotifierFunc) Notify() { f() }

// Counters holds line statistics of a stream.
type Counters struct {
	Lines    uint64
	Decoded  uint64
	Rejected uint64
}

// Stream reads protocol lines from a traced process (or any reader), decodes
// them and queues the resulting events for a single consumer.
type Stream struct {
	cmd      *exec.Cmd
	reader   io.Reader
	queue    *Queue
	notifier Notifier

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	waitErr  error

	lines    atomic.Uint64
	decoded  atomic.Uint64
	rejected atomic.Uint64
}

// New creates a Stream that will run cmd and read its standard output.
// notifier may be nil.
func New(cmd *exec.Cmd, notifier Notifier) *Stream {
	return &Stream{
		cmd:      cmd,
		queue:    NewQueue(),
		notifier: notifier,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// FromReader creates a Stream reading protocol lines from r instead of a
// process. notifier may be nil.
func FromReader(r io.Reader, notifier Notifier) *Stream {
	s := New(nil, notifier)
	s.reader = r
	return s
}

// Queue returns the queue events are delivered to.
func (s *Stream) Queue() *Queue {
	return s.queue
}

// Start launches the process, if any, and begins reading in a goroutine.
// It returns immediately. Reading stops when the output is closed, the
// context is cancelled or Stop is called.
func (s *Stream) Start(ctx context.Context) error {
	if s.cmd != nil {
		stdout, err := s.cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("capturing stdout of %s: %w", s.cmd.Path, err)
		}
		if err := s.cmd.Start(); err != nil {
			return fmt.Errorf("starting %s: %w", s.cmd.Path, err)
		}
		s.reader = stdout
	}
	if s.reader == nil {
		return errors.New("stream has neither a command nor a reader")
	}

	s.started.Store(true)
	go s.processLines(ctx)
	go func() {
		select {
		case <-ctx.Done():
			s.kill()
		case <-s.doneCh:
		}
	}()
	return nil
}

// Stop closes the queue, terminates the process if one is running and
// waits for the reader goroutine to exit. Events already queued stay
// drainable.
func (s *Stream) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.queue.Close()
	})
	if !s.started.Load() {
		return nil
	}
	s.kill()
	if closer, ok := s.reader.(io.Closer); ok && s.cmd == nil {
		_ = closer.Close() //nolint:errcheck // Best-effort unblock of a pending read
	}
	<-s.doneCh
	return nil
}

// Done is closed once the reader goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.doneCh
}

// Wait blocks until the reader goroutine has exited and returns the exit
// status of the process, if any.
func (s *Stream) Wait() error {
	<-s.doneCh
	return s.waitErr
}

// Counters returns line statistics so far.
func (s *Stream) Counters() Counters {
	return Counters{
		Lines:    s.lines.Load(),
		Decoded:  s.decoded.Load(),
		Rejected: s.rejected.Load(),
	}
}

func (s *Stream) kill() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Printf("killing traced process %d: %v", s.cmd.Process.Pid, err)
	}
}

// processLines is the reader loop.
func (s *Stream) processLines(ctx context.Context) {
	defer close(s.doneCh)
	if s.cmd != nil {
		// Wait must only be called once all reads from the pipe are done.
		defer func() { s.waitErr = s.cmd.Wait() }()
	}

	rd := bufio.NewReader(s.reader)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		line, err := rd.ReadString('\n')
		if line != "" {
			if !s.handleLine(line) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			log.Printf("reading traced output: %v", err)
			continue
		}
	}
}

// handleLine decodes and queues one line. It returns false when the
// consumer side is gone.
func (s *Stream) handleLine(line string) bool {
	s.lines.Add(1)

	e, ok := event.Decode(line)
	if !ok {
		s.rejected.Add(1)
		return true
	}
	s.decoded.Add(1)

	if !s.queue.Push(e) {
		return false
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}
	return true
}
