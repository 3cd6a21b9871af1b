package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/config"
	"github.com/franz/ridgemont-catalog/internal/ingest"
	"github.com/franz/ridgemont-catalog/internal/ledger"
	"github.com/franz/ridgemont-catalog/internal/meta"
	"github.com/franz/ridgemont-catalog/internal/pitch"
	"github.com/franz/ridgemont-catalog/internal/remote"
	"github.com/franz/ridgemont-catalog/internal/report"
	"github.com/franz/ridgemont-catalog/internal/shortcode"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// loadConfig decodes the global viper state and applies the log switches
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	util.SetVerbose(cfg.Verbose)
	util.SetQuiet(cfg.Quiet)
	return cfg, nil
}

// app holds the components one command invocation works with
type app struct {
	cfg     *config.Config
	manager *catalog.Manager
	ledger  *ledger.Store
	logger  *report.EventLogger
	remote  remote.Store // nil unless requested
}

// openApp acquires the catalog writer, opens the ledger and the event log
// and, when withRemote is set, connects the remote store
func openApp(cfg *config.Config, withRemote bool) (*app, error) {
	a := &app{cfg: cfg, logger: report.NullLogger()}

	var err error
	a.manager, err = catalog.NewManager(&catalog.Config{
		CatalogPath:     cfg.CatalogPath,
		SupervisorsPath: cfg.SupervisorsPath,
		BackupDir:       cfg.BackupDir,
		Retention:       cfg.BackupRetention,
		Acts:            cfg.ActRegistry(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0755); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create ledger dir: %w", err)
	}
	a.ledger, err = ledger.Open(cfg.LedgerPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	level := report.ParseLevel(cfg.EventLevel)
	if cfg.Verbose {
		level = report.LevelDebug
	}
	if logger, err := report.NewEventLogger(cfg.ArtifactsDir, level); err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
	} else {
		a.logger = logger
		util.DebugLog("Event log: %s", logger.Path())
	}

	if withRemote {
		a.remote, err = remote.New(&cfg.Remote)
		if err != nil {
			a.Close()
			return nil, err
		}
		util.DebugLog("Remote store: %s", a.remote)
	}
	return a, nil
}

// Close releases everything openApp acquired
func (a *app) Close() {
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			util.WarnLog("Failed to release catalog lock: %v", err)
		}
	}
	if err := a.ledger.Close(); err != nil {
		util.WarnLog("Failed to close ledger: %v", err)
	}
	if err := a.logger.Close(); err != nil {
		util.WarnLog("Failed to close event log: %v", err)
	}
}

func (a *app) pitchGenerator() *pitch.Generator {
	return pitch.New(&pitch.Config{
		Dir:    a.cfg.Pitch.Dir,
		Acts:   a.manager.Acts(),
		Sender: a.cfg.Pitch.Sender,
		Studio: a.cfg.Pitch.Studio,
	})
}

func (a *app) engine() *shortcode.Engine {
	return shortcode.New(&shortcode.Config{
		Catalog: a.manager,
		Pitch:   a.pitchGenerator(),
		Ledger:  a.ledger,
		Logger:  a.logger,
	})
}

func (a *app) pipeline() *ingest.Pipeline {
	w := a.cfg.Watch
	return ingest.New(&ingest.Config{
		Catalog:      a.manager,
		Remote:       a.remote,
		Extractor:    meta.New(&meta.Config{Logger: a.logger}),
		Ledger:       a.ledger,
		Logger:       a.logger,
		CompletedDir: w.CompletedDir,
		SettleDelay:  w.SettleDelay,
		RecheckDelay: w.RecheckDelay,
		GrowDelay:    w.GrowDelay,
		MaxSettle:    w.MaxSettle,
		RetryConfig:  a.cfg.MoveRetry(),
	})
}
