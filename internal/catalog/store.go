package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/ridgemont-catalog/internal/util"
)

const (
	backupPrefix = "catalog_backup_"
	backupLayout = "20060102_150405"

	// DefaultRetention is how many backups survive pruning
	DefaultRetention = 10
)

// StoreConfig locates the catalog document and its backups
type StoreConfig struct {
	Path      string
	BackupDir string
	Retention int              // <= 0 means DefaultRetention
	Now       func() time.Time // nil means time.Now
}

// Store owns the catalog document. It is not safe for concurrent use;
// Manager serializes access.
type Store struct {
	cfg StoreConfig
	doc *Catalog
}

// OpenStore loads the catalog at cfg.Path. A missing file yields an empty
// catalog.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(filepath.Dir(cfg.Path), "backups")
	}
	s := &Store{cfg: cfg}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Catalog returns the live document
func (s *Store) Catalog() *Catalog {
	return s.doc
}

// Load replaces the in-memory document with the file contents
func (s *Store) Load() error {
	data, err := os.ReadFile(s.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		s.doc = &Catalog{SchemaVersion: SchemaVersion, Songs: []*Song{}}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	var doc Catalog
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", s.cfg.Path, err)
	}
	if doc.Songs == nil {
		doc.Songs = []*Song{}
	}
	for _, song := range doc.Songs {
		normalizeSong(song)
	}
	s.doc = &doc
	return nil
}

// normalizeSong fills the collections older documents leave out
func normalizeSong(song *Song) {
	if song.Writers == nil {
		song.Writers = []WriterShare{}
	}
	if song.Revenue.Expenses == nil {
		song.Revenue.Expenses = []Expense{}
	}
	song.Deployments.Distribution = normalizePlatforms(song.Deployments.Distribution)
	song.Deployments.SyncLibraries = normalizePlatforms(song.Deployments.SyncLibraries)
	song.Deployments.Streaming = normalizePlatforms(song.Deployments.Streaming)
}

// Save writes a backup of the current primary file and then atomically
// replaces it with the in-memory document. Backup failures are logged and
// never block the save.
func (s *Store) Save() error {
	if _, err := s.Backup(); err != nil {
		util.WarnLog("Backup skipped: %v", err)
	}

	s.doc.SchemaVersion = SchemaVersion
	data, err := marshalDocument(s.doc)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := writeFileAtomic(s.cfg.Path, data); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	util.DebugLog("Catalog saved to %s (%d songs)", s.cfg.Path, len(s.doc.Songs))
	return nil
}

// Backup snapshots the catalog into the backup directory and prunes old
// snapshots. The snapshot holds the primary file's bytes; before the first
// save it holds the encoded in-memory document.
func (s *Store) Backup() (string, error) {
	data, err := os.ReadFile(s.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = marshalDocument(s.doc)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read catalog for backup: %v", util.ErrTransient, err)
	}

	if err := os.MkdirAll(s.cfg.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("%w: create backup dir: %v", util.ErrTransient, err)
	}

	path, err := s.nextBackupPath()
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("%w: write backup: %v", util.ErrTransient, err)
	}
	util.DebugLog("Backup created: %s", filepath.Base(path))

	if err := s.prune(); err != nil {
		util.WarnLog("Backup pruning failed: %v", err)
	}
	return path, nil
}

// nextBackupPath picks an unused name for the current second
func (s *Store) nextBackupPath() (string, error) {
	stamp := s.cfg.Now().Format(backupLayout)
	base := filepath.Join(s.cfg.BackupDir, backupPrefix+stamp)
	path := base + ".json"
	for i := 1; i < 100; i++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		path = fmt.Sprintf("%s_%02d.json", base, i)
	}
	return "", fmt.Errorf("%w: too many backups for %s", util.ErrTransient, stamp)
}

// Backups lists backup files oldest first
func (s *Store) Backups() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, filepath.Join(s.cfg.BackupDir, name))
	}
	// Timestamp names sort chronologically; a same-second counter sorts
	// after the plain name
	sort.Strings(names)
	return names, nil
}

func (s *Store) prune() error {
	backups, err := s.Backups()
	if err != nil {
		return err
	}
	for len(backups) > s.cfg.Retention {
		if err := os.Remove(backups[0]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		backups = backups[1:]
	}
	return nil
}

// Update merges u into the song with songID and stamps last_modified.
// It reports false, mutating nothing, when no song matches. The change is
// in memory only; callers persist with Save.
func (s *Store) Update(songID string, u SongUpdate) (bool, error) {
	song := s.doc.FindByID(songID)
	if song == nil {
		return false, nil
	}
	if u.LegacyCode != nil && *u.LegacyCode != "" {
		code, err := validateCodeFor(s.doc, *u.LegacyCode, song)
		if err != nil {
			return true, err
		}
		u.LegacyCode = &code
	}
	if u.Status != nil && *u.Status != StatusFinished {
		if _, ok := ParseStatus(string(*u.Status)); !ok {
			return true, fmt.Errorf("%w: unknown status %q", util.ErrValidation, *u.Status)
		}
	}
	u.apply(song)
	song.Dates.LastModified = s.cfg.Now().Format(time.RFC3339)
	return true, nil
}

func marshalDocument(doc *Catalog) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place so readers never observe a partial document
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
