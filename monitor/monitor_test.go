package monitor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidemail/go-mailcore/monitor"
)

func newMonitor(t *testing.T) *monitor.Monitor {
	t.Helper()
	m, err := monitor.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	m.Timeout = 2 * time.Second
	return m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatchDir(t *testing.T) {
	m := newMonitor(t)
	dir := t.TempDir()

	var got []monitor.Event
	if err := m.WatchDir(dir, func(ev monitor.Event) {
		got = append(got, ev)
	}); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "msg"), "x")

	res, err := m.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res != monitor.Events {
		t.Fatalf("got %v, want Events", res)
	}
	if len(got) == 0 {
		t.Fatal("handler not invoked")
	}
	if filepath.Base(got[0].Path) != "msg" {
		t.Errorf("event for %q, want the created file", got[0].Path)
	}
}

func TestWatchFile(t *testing.T) {
	m := newMonitor(t)
	path := filepath.Join(t.TempDir(), "mbox")
	writeFile(t, path, "From here@there Mon Sep 25 15:04:05 2023\n")

	fired := false
	if err := m.WatchFile(path, func(ev monitor.Event) {
		fired = true
	}); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("new line\n")
	f.Close()

	res, err := m.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res != monitor.Events || !fired {
		t.Errorf("got %v (fired=%v), want Events with handler invoked", res, fired)
	}
}

func TestTypeMismatch(t *testing.T) {
	m := newMonitor(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	writeFile(t, file, "x")

	if err := m.WatchDir(file, nil); !errors.Is(err, monitor.ErrMismatch) {
		t.Errorf("WatchDir on file: %v, want ErrMismatch", err)
	}
	if err := m.WatchFile(dir, nil); !errors.Is(err, monitor.ErrMismatch) {
		t.Errorf("WatchFile on dir: %v, want ErrMismatch", err)
	}
}

func TestWatchMissing(t *testing.T) {
	m := newMonitor(t)
	if err := m.WatchFile(filepath.Join(t.TempDir(), "absent"), nil); err == nil {
		t.Error("watching a missing path should fail")
	}
}

func TestDuplicateWatch(t *testing.T) {
	m := newMonitor(t)
	dir := t.TempDir()

	if err := m.WatchDir(dir, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.WatchDir(dir, nil); err != nil {
		t.Fatal(err)
	}
	if n := m.NumWatches(); n != 1 {
		t.Errorf("got %d watches, want 1", n)
	}
}

func TestTimeout(t *testing.T) {
	m := newMonitor(t)
	m.Timeout = 50 * time.Millisecond

	start := time.Now()
	res, err := m.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res != monitor.Timeout {
		t.Errorf("got %v, want Timeout", res)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("returned before the timeout elapsed")
	}
}

func TestAborted(t *testing.T) {
	m := newMonitor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := m.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res != monitor.Aborted {
		t.Errorf("got %v, want Aborted", res)
	}
}

func TestRemove(t *testing.T) {
	m := newMonitor(t)
	m.Timeout = 200 * time.Millisecond
	dir := t.TempDir()

	if err := m.WatchDir(dir, func(monitor.Event) {
		t.Error("handler invoked after Remove")
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if n := m.NumWatches(); n != 0 {
		t.Fatalf("got %d watches, want 0", n)
	}

	writeFile(t, filepath.Join(dir, "msg"), "x")
	res, err := m.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res != monitor.Timeout {
		t.Errorf("got %v, want Timeout after removal", res)
	}

	// Removing an unwatched path is fine.
	if err := m.Remove(filepath.Join(dir, "other")); err != nil {
		t.Error(err)
	}
}

func TestRemoveDuringDispatch(t *testing.T) {
	m := newMonitor(t)
	dir := t.TempDir()

	if err := m.WatchDir(dir, func(ev monitor.Event) {
		if err := m.Remove(dir); err != nil {
			t.Errorf("Remove from handler: %v", err)
		}
	}); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "msg"), "x")
	if _, err := m.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := m.NumWatches(); n != 0 {
		t.Errorf("got %d watches, want 0", n)
	}
}
