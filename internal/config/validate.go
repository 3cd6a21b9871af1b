package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/franz/ridgemont-catalog/internal/remote"
	"github.com/franz/ridgemont-catalog/internal/report"
	"github.com/franz/ridgemont-catalog/internal/util"
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", util.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	return c.validateActs()
}

func (c *Config) validatePaths() error {
	if c.CatalogPath == "" {
		return invalid("catalog path must be set")
	}
	if c.SupervisorsPath == "" {
		return invalid("supervisors path must be set")
	}
	if c.CatalogPath == c.SupervisorsPath {
		return invalid("catalog and supervisors must be different files")
	}
	if c.BackupDir == "" {
		return invalid("backup_dir must be set")
	}
	if c.BackupRetention < 1 {
		return invalid("backup_retention must be at least 1 (got %d)", c.BackupRetention)
	}
	if c.LedgerPath == "" {
		return invalid("ledger path must be set")
	}
	switch report.EventLevel(c.EventLevel) {
	case report.LevelDebug, report.LevelInfo, report.LevelWarning, report.LevelError:
	default:
		return invalid("event_level must be debug, info, warning or error (got %q)", c.EventLevel)
	}
	return nil
}

func (c *Config) validateWatch() error {
	w := c.Watch
	if w.Dir == "" {
		return invalid("watch.dir must be set")
	}
	if w.Workers < 1 {
		return invalid("watch.workers must be at least 1 (got %d)", w.Workers)
	}
	if w.SettleDelay < 0 || w.RecheckDelay < 0 || w.GrowDelay < 0 {
		return invalid("watch delays must not be negative")
	}
	if w.MaxSettle < w.RecheckDelay {
		return invalid("watch.max_settle (%s) must not be shorter than watch.recheck_delay (%s)", w.MaxSettle, w.RecheckDelay)
	}
	if filepath.Clean(w.CompletedDir) == filepath.Clean(w.Dir) {
		return invalid("watch.completed_dir must differ from watch.dir")
	}
	return nil
}

func (c *Config) validateRemote() error {
	switch strings.ToLower(c.Remote.Backend) {
	case remote.BackendR2:
		// credentials are checked when the client is built, so commands
		// that never upload work without them
	case remote.BackendDir:
		if c.Remote.Dir == "" {
			return invalid("remote.dir must be set for the dir backend")
		}
	default:
		return invalid("remote.backend must be %q or %q (got %q)", remote.BackendR2, remote.BackendDir, c.Remote.Backend)
	}
	return nil
}

func (c *Config) validateActs() error {
	seen := make(map[string]bool)
	for i, a := range c.Acts {
		if strings.TrimSpace(a.ID) == "" {
			return invalid("acts[%d].id must be set", i)
		}
		keys := []string{strings.ToUpper(strings.TrimSpace(a.ID))}
		if abbr := strings.ToUpper(strings.TrimSpace(a.Abbreviation)); abbr != "" && abbr != keys[0] {
			keys = append(keys, abbr)
		}
		for _, k := range keys {
			if seen[k] {
				return invalid("act key %q is used twice", k)
			}
			seen[k] = true
		}
		total := 0.0
		for _, s := range a.DefaultSplits {
			total += s.Percentage
		}
		if len(a.DefaultSplits) > 0 && (total < 99.99 || total > 100.01) {
			util.WarnLog("Default splits of act %s add up to %.2f%%", a.ID, total)
		}
	}
	return nil
}
