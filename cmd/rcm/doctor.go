package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/config"
	"github.com/franz/ridgemont-catalog/internal/ledger"
	"github.com/franz/ridgemont-catalog/internal/remote"
	"github.com/franz/ridgemont-catalog/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure rcm can operate correctly.

This command checks:
- ffprobe (used for durations and fallback tags)
- SQLite and the ingest ledger
- The catalog document and its writer lock
- Watch and Completed folders
- Remote store configuration
- Disk space in the watch folder

Nothing is uploaded and the catalog is not modified.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	util.InfoLog("=== rcm doctor ===")
	util.InfoLog("")

	results := []checkResult{
		checkFFprobe(),
		checkSQLite(),
		checkLedger(cfg.LedgerPath),
		checkCatalog(cfg),
		checkWatchDir(cfg.Watch.Dir),
		checkWritableDir("Completed folder", cfg.Watch.CompletedDir),
		checkRemote(&cfg.Remote),
		checkDiskSpace(cfg.Watch.Dir, "watch folder"),
	}

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		symbol := "ok"
		if r.error {
			symbol = "FAIL"
			hasErrors = true
		} else if r.warning {
			symbol = "WARN"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += ": " + r.message
		}
		switch {
		case r.error:
			util.ErrorLog("%s", line)
		case r.warning:
			util.WarnLog("%s", line)
		default:
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Resolve them before running rcm.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed.")
	}
	return nil
}

// checkFFprobe verifies ffprobe is available and reports its version
func checkFFprobe() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffprobe", "-version").CombinedOutput()
	if err != nil {
		return checkResult{
			name:    "ffprobe",
			warning: true,
			message: "not found (MP3 durations and untagged files fall back to defaults)",
		}
	}

	version := "unknown"
	if parts := strings.Fields(strings.SplitN(string(output), "\n", 2)[0]); len(parts) >= 3 {
		version = parts[2]
	}
	return checkResult{name: "ffprobe", message: "version " + version}
}

func checkSQLite() checkResult {
	version := ledger.SQLiteVersion()
	if version == "" {
		return checkResult{name: "SQLite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "SQLite", message: fmt.Sprintf("version %s (built-in)", version)}
}

// checkLedger opens an existing ledger and runs an integrity check
func checkLedger(path string) checkResult {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return checkResult{name: "Ledger", message: fmt.Sprintf("%s (will be created on first run)", path)}
	}
	if err != nil {
		return checkResult{name: "Ledger", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.Mode().IsRegular() {
		return checkResult{name: "Ledger", error: true, message: fmt.Sprintf("%s is not a regular file", path)}
	}

	db, err := ledger.Open(path)
	if err != nil {
		return checkResult{name: "Ledger", error: true, message: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer db.Close()
	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: "Ledger", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}

	counts, _ := db.CountRunsByState()
	total := 0
	for _, n := range counts {
		total += n
	}
	return checkResult{
		name:    "Ledger",
		message: fmt.Sprintf("%s (%s, %d runs)", path, humanize.Bytes(uint64(info.Size())), total),
	}
}

// checkCatalog parses the catalog document and reports whether another
// process holds the writer lock
func checkCatalog(cfg *config.Config) checkResult {
	store, err := catalog.OpenStore(catalog.StoreConfig{Path: cfg.CatalogPath, BackupDir: cfg.BackupDir})
	if err != nil {
		return checkResult{name: "Catalog", error: true, message: err.Error()}
	}
	songs := len(store.Catalog().Songs)

	lock := flock.New(cfg.CatalogPath + ".lock")
	if _, err := os.Stat(filepath.Dir(cfg.CatalogPath)); err == nil {
		ok, err := lock.TryLock()
		if err != nil {
			return checkResult{name: "Catalog", warning: true, message: fmt.Sprintf("cannot check writer lock: %v", err)}
		}
		if !ok {
			return checkResult{
				name:    "Catalog",
				warning: true,
				message: fmt.Sprintf("%s (%d songs, held by another rcm process)", cfg.CatalogPath, songs),
			}
		}
		_ = lock.Unlock()
	}
	return checkResult{name: "Catalog", message: fmt.Sprintf("%s (%d songs)", cfg.CatalogPath, songs)}
}

func checkWatchDir(path string) checkResult {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return checkResult{name: "Watch folder", warning: true, message: fmt.Sprintf("%s does not exist (created by 'rcm watch')", path)}
	}
	if err != nil {
		return checkResult{name: "Watch folder", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: "Watch folder", error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{name: "Watch folder", error: true, message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	return checkResult{name: "Watch folder", message: fmt.Sprintf("%s (%d entries)", path, len(entries))}
}

// checkWritableDir verifies path is a writable directory, if it exists
func checkWritableDir(name, path string) checkResult {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return checkResult{name: name, message: fmt.Sprintf("%s (will be created on first move)", path)}
	}
	if err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: name, error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}

	f, err := os.CreateTemp(path, ".rcm_write_test")
	if err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("cannot write to %s: %v", path, err)}
	}
	f.Close()
	os.Remove(f.Name())
	return checkResult{name: name, message: fmt.Sprintf("%s (writable)", path)}
}

// checkRemote builds the remote client without contacting it
func checkRemote(cfg *remote.Config) checkResult {
	store, err := remote.New(cfg)
	if err != nil {
		return checkResult{name: "Remote store", error: true, message: err.Error()}
	}
	return checkResult{name: "Remote store", message: store.String()}
}

// checkDiskSpace reports free space on the filesystem holding path
func checkDiskSpace(path string, label string) checkResult {
	name := fmt.Sprintf("Disk space (%s)", label)
	for path != "" {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{name: name, warning: true, message: fmt.Sprintf("cannot determine disk space: %v", err)}
	}

	avail := stat.Bavail * uint64(stat.Bsize)
	if avail < 1<<30 {
		return checkResult{name: name, warning: true, message: fmt.Sprintf("%s available (low space)", humanize.Bytes(avail))}
	}
	return checkResult{name: name, message: fmt.Sprintf("%s available", humanize.Bytes(avail))}
}
