//go:build unix

package util

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"testing"
	"time"
)

// stubFS swaps the file operations MoveFile uses and records sleeps
type stubFS struct {
	renames int
	sleeps  []time.Duration
}

func newStubFS(t *testing.T, renameFn func(n int, oldpath, newpath string) error) *stubFS {
	t.Helper()
	s := &stubFS{}
	origRename, origSleep := rename, sleep
	t.Cleanup(func() { rename, sleep = origRename, origSleep })

	rename = func(oldpath, newpath string) error {
		s.renames++
		return renameFn(s.renames, oldpath, newpath)
	}
	sleep = func(d time.Duration) { s.sleeps = append(s.sleeps, d) }
	return s
}

func busy(oldpath, newpath string) error {
	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EBUSY}
}

func dropTake(t *testing.T) (src, dest string) {
	t.Helper()
	dir := t.TempDir()
	src = filepath.Join(dir, "Night Bus.wav")
	dest = filepath.Join(dir, "Completed", "Night Bus.wav")
	if err := os.WriteFile(src, []byte("RIFF....WAVE"), 0644); err != nil {
		t.Fatal(err)
	}
	return src, dest
}

func TestMoveFile_SyncedFolderWaitsOutBusyFile(t *testing.T) {
	src, dest := dropTake(t)
	fs := newStubFS(t, func(n int, oldpath, newpath string) error {
		if n <= 2 {
			return busy(oldpath, newpath)
		}
		return os.Rename(oldpath, newpath)
	})

	if err := MoveFile(src, dest, SyncedFolderRetryConfig()); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("Destination missing: %v", err)
	}
	if fs.renames != 3 {
		t.Errorf("Expected 3 rename attempts, got %d", fs.renames)
	}
	want := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}
	if !reflect.DeepEqual(fs.sleeps, want) {
		t.Errorf("Waits = %v, want %v", fs.sleeps, want)
	}
}

func TestMoveFile_WatchFolderDoesNotRetry(t *testing.T) {
	src, dest := dropTake(t)
	fs := newStubFS(t, func(n int, oldpath, newpath string) error { return busy(oldpath, newpath) })

	err := MoveFile(src, dest, NoRetry())
	if !errors.Is(err, syscall.EBUSY) {
		t.Fatalf("Expected EBUSY, got %v", err)
	}
	if fs.renames != 1 || len(fs.sleeps) != 0 {
		t.Errorf("Expected a single attempt, got %d renames and %d waits", fs.renames, len(fs.sleeps))
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("Source must stay in the watch folder: %v", err)
	}
}

func TestMoveFile_SyncedFolderGivesUp(t *testing.T) {
	src, dest := dropTake(t)
	fs := newStubFS(t, func(n int, oldpath, newpath string) error { return busy(oldpath, newpath) })

	err := MoveFile(src, dest, SyncedFolderRetryConfig())
	if !errors.Is(err, syscall.EBUSY) || !strings.Contains(err.Error(), "gave up after 3 attempts") {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fs.renames != 3 {
		t.Errorf("Expected 3 rename attempts, got %d", fs.renames)
	}
}

func TestMoveFile_PermissionErrorIsNotRetried(t *testing.T) {
	src, dest := dropTake(t)
	fs := newStubFS(t, func(n int, oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EACCES}
	})

	if err := MoveFile(src, dest, SyncedFolderRetryConfig()); !errors.Is(err, syscall.EACCES) {
		t.Fatalf("Expected EACCES, got %v", err)
	}
	if fs.renames != 1 {
		t.Errorf("Permission errors must fail at once, got %d attempts", fs.renames)
	}
}

func TestMoveFile_CrossDeviceCopies(t *testing.T) {
	src, dest := dropTake(t)
	newStubFS(t, func(n int, oldpath, newpath string) error {
		if oldpath == src {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
		}
		return os.Rename(oldpath, newpath)
	})

	if err := MoveFile(src, dest, NoRetry()); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	content, err := os.ReadFile(dest)
	if err != nil || string(content) != "RIFF....WAVE" {
		t.Errorf("Copied content = %q, %v", content, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("Source should be removed after the copy, stat err = %v", err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("Temporary .part file left behind")
	}
}

func TestMoveFile_WaitIsCapped(t *testing.T) {
	src, dest := dropTake(t)
	fs := newStubFS(t, func(n int, oldpath, newpath string) error {
		if n < 4 {
			return busy(oldpath, newpath)
		}
		return os.Rename(oldpath, newpath)
	})

	cfg := &RetryConfig{MaxAttempts: 4, InitialWait: time.Second, MaxWait: 1500 * time.Millisecond}
	if err := MoveFile(src, dest, cfg); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	want := []time.Duration{time.Second, 1500 * time.Millisecond, 1500 * time.Millisecond}
	if !reflect.DeepEqual(fs.sleeps, want) {
		t.Errorf("Waits = %v, want %v", fs.sleeps, want)
	}
}

func TestMoveFile_CompletedFolderRetriedOnIOError(t *testing.T) {
	src, dest := dropTake(t)
	fs := newStubFS(t, func(n int, oldpath, newpath string) error { return os.Rename(oldpath, newpath) })

	origMkdir := mkdirAll
	t.Cleanup(func() { mkdirAll = origMkdir })
	calls := 0
	mkdirAll = func(path string, perm os.FileMode) error {
		calls++
		if calls == 1 {
			return &os.PathError{Op: "mkdir", Path: path, Err: syscall.EIO}
		}
		return os.MkdirAll(path, perm)
	}

	if err := MoveFile(src, dest, SyncedFolderRetryConfig()); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if calls != 2 || len(fs.sleeps) != 1 {
		t.Errorf("Expected one retried mkdir, got %d calls and %d waits", calls, len(fs.sleeps))
	}
}
