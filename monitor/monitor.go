// Package monitor watches mailbox files and directories for changes and
// multiplexes filesystem events with terminal input readiness.
//
// Handlers run synchronously on the goroutine calling Poll. A handler may
// call Remove, but must not re-enter Poll.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

// DefaultTimeout bounds a single Poll when the caller sets none.
const DefaultTimeout = 5 * time.Second

// ErrMismatch is returned when WatchDir is given a file or WatchFile a
// directory.
var ErrMismatch = errors.New("monitor: path type mismatch")

// Event is one filesystem change delivered to a handler.
type Event struct {
	// Path is the file the event refers to, as reported by the kernel.
	Path string
	// Op is the fsnotify operation mask.
	Op fsnotify.Op
}

// Handler receives events for one watch.
type Handler func(Event)

// Result tells the caller why Poll returned.
type Result int

const (
	// Timeout means nothing happened within the poll window.
	Timeout Result = iota
	// Events means filesystem events were dispatched to handlers.
	Events
	// Stdin means user input is available for reading.
	Stdin
	// Aborted means the context was cancelled. It is a status, not an
	// error; the caller distinguishes cancellation from failure.
	Aborted
)

func (r Result) String() string {
	switch r {
	case Timeout:
		return "timeout"
	case Events:
		return "events"
	case Stdin:
		return "stdin"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Logger is the destination for watch diagnostics.
type Logger interface {
	Printf(format string, args ...interface{})
}

type watch struct {
	path    string
	dir     bool
	dev     uint64
	ino     uint64
	handler Handler
}

// Monitor owns a set of watches and a kernel event endpoint.
type Monitor struct {
	// Timeout bounds one Poll call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger defaults to log.Default().
	Logger Logger

	fw *fsnotify.Watcher

	mu      sync.Mutex
	watches map[string]*watch

	stdin *stdinPoller
}

// New creates a Monitor with no watches.
func New() (*Monitor, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	return &Monitor{
		fw:      fw,
		watches: make(map[string]*watch),
	}, nil
}

func (m *Monitor) logger() Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.Default()
}

func (m *Monitor) add(path string, wantDir bool, h Handler) error {
	path = filepath.Clean(path)

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("monitor: stat %s: %w", path, err)
	}
	isDir := st.Mode&unix.S_IFMT == unix.S_IFDIR
	if isDir != wantDir {
		return ErrMismatch
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watches[path]; ok {
		// Already watched; keep the existing subscription.
		return nil
	}
	for _, w := range m.watches {
		if w.dev == uint64(st.Dev) && w.ino == st.Ino {
			return nil
		}
	}

	if err := m.fw.Add(path); err != nil {
		return fmt.Errorf("monitor: watch %s: %w", path, err)
	}
	m.watches[path] = &watch{
		path:    path,
		dir:     isDir,
		dev:     uint64(st.Dev),
		ino:     st.Ino,
		handler: h,
	}
	return nil
}

// WatchDir subscribes to events for a directory and everything directly
// inside it.
func (m *Monitor) WatchDir(path string, h Handler) error {
	return m.add(path, true, h)
}

// WatchFile subscribes to events for a single file.
func (m *Monitor) WatchFile(path string, h Handler) error {
	return m.add(path, false, h)
}

// Remove drops the watch on path. Removing an unwatched path is not an
// error. Safe to call from a handler.
func (m *Monitor) Remove(path string) error {
	path = filepath.Clean(path)

	m.mu.Lock()
	_, ok := m.watches[path]
	delete(m.watches, path)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	// The kernel may have dropped the watch already (deleted file).
	if err := m.fw.Remove(path); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("monitor: unwatch %s: %w", path, err)
	}
	return nil
}

// WatchStdin makes Poll additionally report terminal input readiness.
// Readiness is level-triggered: until the caller consumes the input, every
// Poll reports Stdin.
func (m *Monitor) WatchStdin() {
	if m.stdin == nil {
		m.stdin = newStdinPoller(0)
	}
}

// lookup finds the watch responsible for an event path: the path itself, or
// the directory containing it.
func (m *Monitor) lookup(path string) *watch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[filepath.Clean(path)]; ok {
		return w
	}
	if w, ok := m.watches[filepath.Dir(filepath.Clean(path))]; ok && w.dir {
		return w
	}
	return nil
}

func (m *Monitor) dispatch(ev fsnotify.Event) bool {
	w := m.lookup(ev.Name)
	if w == nil || w.handler == nil {
		return false
	}
	w.handler(Event{Path: ev.Name, Op: ev.Op})
	return true
}

// drain dispatches every event already queued without blocking.
func (m *Monitor) drain() {
	for {
		select {
		case ev, ok := <-m.fw.Events:
			if !ok {
				return
			}
			m.dispatch(ev)
		case err, ok := <-m.fw.Errors:
			if ok && err != nil {
				m.logger().Printf("monitor: %v", err)
			}
		default:
			return
		}
	}
}

// Poll blocks until filesystem events arrive, stdin becomes readable (when
// enabled), the timeout elapses, or the context is cancelled. Events are
// dispatched to their handlers before Poll returns; events queued in the
// same drain are delivered in kernel order.
func (m *Monitor) Poll(ctx context.Context) (Result, error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var stdinReady <-chan struct{}
	if m.stdin != nil {
		m.stdin.resume()
		stdinReady = m.stdin.ready
	}

	for {
		select {
		case <-ctx.Done():
			return Aborted, nil

		case <-timer.C:
			return Timeout, nil

		case <-stdinReady:
			return Stdin, nil

		case ev, ok := <-m.fw.Events:
			if !ok {
				return Aborted, errors.New("monitor: closed")
			}
			dispatched := m.dispatch(ev)
			m.drain()
			if !dispatched {
				// Event for a watch removed mid-flight; keep waiting.
				continue
			}
			return Events, nil

		case err, ok := <-m.fw.Errors:
			if !ok {
				return Aborted, errors.New("monitor: closed")
			}
			return Events, fmt.Errorf("monitor: %w", err)
		}
	}
}

// Close releases the kernel endpoint and stops the stdin poller. The
// Monitor must not be used afterwards.
func (m *Monitor) Close() error {
	if m.stdin != nil {
		m.stdin.stop()
		m.stdin = nil
	}
	return m.fw.Close()
}

// NumWatches returns the number of active watches.
func (m *Monitor) NumWatches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}
