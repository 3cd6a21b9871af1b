package util

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// ContentHash returns the hex SHA1 of a file's content
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// FileSize returns the current size of path, or an error wrapping
// os.ErrNotExist when the file has gone away
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory: %w", path, ErrUnsupported)
	}
	return info.Size(), nil
}

// MoveFile relocates src to dest, renaming when both live on one filesystem
// and copying through a .part file otherwise. The source is removed only
// after the copy has been renamed into place.
func MoveFile(src, dest string, cfg *RetryConfig) error {
	destDir := filepath.Dir(dest)
	if err := mkdirAllWithRetry(destDir, cfg); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if sameFilesystem(src, destDir) {
		if err := renameWithRetry(src, dest, cfg); err == nil {
			return nil
		} else if !errors.Is(err, syscall.EXDEV) {
			return err
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := renameWithRetry(tmp, dest, cfg); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename: %w", err)
	}
	in.Close()

	if err := removeWithRetry(src, cfg); err != nil {
		WarnLog("Copied %s but could not remove the original: %v", src, err)
	}
	return nil
}
