package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForChange(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Changed():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("base_url: http://b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitForChange(t, w, 3*time.Second) {
		t.Fatal("expected change notification after write")
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, WithForcePoll(true), WithPollInterval(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	// Size change is enough even when mtime granularity is coarse.
	if err := os.WriteFile(path, []byte("longer content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitForChange(t, w, 3*time.Second) {
		t.Fatal("expected change notification in polling mode")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	w, err := New(path, WithForcePoll(true), WithPollInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop() // second stop must not panic or block
}
