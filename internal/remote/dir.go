package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/franz/ridgemont-catalog/internal/util"
)

// DirStore mirrors the bucket layout under a local directory. It backs
// offline runs and tests.
type DirStore struct {
	root string
}

// NewDirStore creates root if needed
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: dir backend needs a directory", util.ErrInvalidConfig)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", root, err)
	}
	return &DirStore{root: root}, nil
}

func (d *DirStore) String() string {
	return "dir://" + d.root
}

// Root returns the directory objects are written under
func (d *DirStore) Root() string {
	return d.root
}

func (d *DirStore) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(key)), nil
}

// Exists stats the object's file
func (d *DirStore) Exists(ctx context.Context, key string) bool {
	p, err := d.path(key)
	if err != nil {
		util.WarnLog("Existence check failed: %v", err)
		return true
	}
	_, err = os.Stat(p)
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	util.WarnLog("Existence check failed for %s: %v", key, err)
	return true
}

// UploadFile copies the file at path to key
func (d *DirStore) UploadFile(ctx context.Context, path, key, contentType string) bool {
	dest, err := d.path(key)
	if err != nil {
		util.ErrorLog("Upload rejected: %v", err)
		return false
	}
	src, err := os.Open(path)
	if err != nil {
		util.ErrorLog("Upload failed for %s: %v", key, err)
		return false
	}
	defer src.Close()

	if err := d.write(dest, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}); err != nil {
		util.ErrorLog("Upload failed for %s: %v", key, err)
		return false
	}
	util.DebugLog("Stored %s (%s)", key, contentType)
	return true
}

// UploadJSON writes v as indented JSON to key
func (d *DirStore) UploadJSON(ctx context.Context, v interface{}, key string) bool {
	dest, err := d.path(key)
	if err != nil {
		util.ErrorLog("Upload rejected: %v", err)
		return false
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		util.ErrorLog("Failed to encode %s: %v", key, err)
		return false
	}
	if err := d.write(dest, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		util.ErrorLog("Upload failed for %s: %v", key, err)
		return false
	}
	return true
}

// GetJSON decodes the object at key into out
func (d *DirStore) GetJSON(ctx context.Context, key string, out interface{}) bool {
	p, err := d.path(key)
	if err != nil {
		util.WarnLog("Download rejected: %v", err)
		return false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			util.WarnLog("Failed to read %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		util.WarnLog("Failed to decode %s: %v", key, err)
		return false
	}
	return true
}

// write fills a temp file next to dest and renames it into place so a
// reader never sees a partial object
func (d *DirStore) write(dest string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
