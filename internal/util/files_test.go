package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "take1.wav")
	dest := filepath.Join(dir, "Completed", "take1.wav")

	if err := os.WriteFile(src, []byte("RIFF....WAVE"), 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	if err := MoveFile(src, dest, NoRetry()); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("Source should be gone after move, stat err = %v", err)
	}
	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("Destination missing: %v", err)
	}
	if string(content) != "RIFF....WAVE" {
		t.Errorf("Unexpected destination content: %q", content)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("Temporary .part file left behind")
	}
}

func TestMoveFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := MoveFile(filepath.Join(dir, "gone.mp3"), filepath.Join(dir, "out", "gone.mp3"), NoRetry())
	if err == nil {
		t.Fatal("Expected error for missing source")
	}
}

func TestContentHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp3")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	hash, err := ContentHash(path)
	if err != nil {
		t.Fatalf("ContentHash failed: %v", err)
	}
	if hash != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("Unexpected sha1: %s", hash)
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp3")
	if err := os.WriteFile(path, make([]byte, 1024), 0644); err != nil {
		t.Fatal(err)
	}

	size, err := FileSize(path)
	if err != nil || size != 1024 {
		t.Errorf("FileSize = %d, %v; want 1024, nil", size, err)
	}

	if _, err := FileSize(filepath.Join(dir, "missing.mp3")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
	if _, err := FileSize(dir); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for a directory, got %v", err)
	}
}
