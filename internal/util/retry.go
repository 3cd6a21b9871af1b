package util

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// RetryConfig controls how often a local file operation is attempted
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration // doubled after each failed attempt
	MaxWait     time.Duration
}

// NoRetry performs every operation exactly once. Ingestion never retries
// on its own; a failed file is re-presented by the user instead.
func NoRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 1}
}

// SyncedFolderRetryConfig tolerates the brief EAGAIN/EBUSY/EIO hiccups of
// cloud-synced watch folders (Drive, Dropbox) during local moves
func SyncedFolderRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
}

// replaced in tests
var (
	rename   = os.Rename
	remove   = os.Remove
	mkdirAll = os.MkdirAll
	sleep    = time.Sleep
)

// transientErrnos are the errors a sync client produces while it holds a
// file open
var transientErrnos = []syscall.Errno{syscall.EAGAIN, syscall.EBUSY, syscall.EIO, syscall.ETIMEDOUT}

func isTransientFSError(err error) bool {
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// withRetry runs op until it succeeds, fails permanently or cfg runs out
// of attempts
func withRetry(cfg *RetryConfig, name string, op func() error) error {
	if cfg == nil || cfg.MaxAttempts < 1 {
		cfg = NoRetry()
	}
	wait := cfg.InitialWait
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !isTransientFSError(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			if cfg.MaxAttempts > 1 {
				WarnLog("%s failed after %d attempts: %v", name, attempt, err)
				return fmt.Errorf("%s: gave up after %d attempts: %w", name, attempt, err)
			}
			return err
		}
		DebugLog("%s failed (attempt %d/%d), retrying in %v: %v", name, attempt, cfg.MaxAttempts, wait, err)
		sleep(wait)
		wait *= 2
		if cfg.MaxWait > 0 && wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}
}

func renameWithRetry(oldpath, newpath string, cfg *RetryConfig) error {
	return withRetry(cfg, fmt.Sprintf("rename %s", oldpath), func() error {
		return rename(oldpath, newpath)
	})
}

func removeWithRetry(path string, cfg *RetryConfig) error {
	return withRetry(cfg, fmt.Sprintf("remove %s", path), func() error {
		return remove(path)
	})
}

func mkdirAllWithRetry(path string, cfg *RetryConfig) error {
	return withRetry(cfg, fmt.Sprintf("mkdir %s", path), func() error {
		return mkdirAll(path, 0755)
	})
}
