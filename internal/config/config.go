// Package config assembles runtime configuration from the config file,
// RCM_* environment variables, .env credentials and flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/remote"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// EnvPrefix prefixes environment overrides, e.g. RCM_WATCH_WORKERS
const EnvPrefix = "RCM"

// WatchConfig configures the watch folder and the ingestion pipeline
type WatchConfig struct {
	Dir          string        `mapstructure:"dir"`
	CompletedDir string        `mapstructure:"completed_dir"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	RecheckDelay time.Duration `mapstructure:"recheck_delay"`
	GrowDelay    time.Duration `mapstructure:"grow_delay"`
	MaxSettle    time.Duration `mapstructure:"max_settle"`
	Workers      int           `mapstructure:"workers"`
	// SyncedFolder retries local moves that fail with transient errors,
	// as happens in Drive or Dropbox folders
	SyncedFolder bool `mapstructure:"synced_folder"`
}

// PitchConfig configures pitch pages and emails
type PitchConfig struct {
	Dir    string `mapstructure:"dir"`
	Sender string `mapstructure:"sender"`
	Studio string `mapstructure:"studio"`
}

// Config holds every path and setting the commands need
type Config struct {
	// Root anchors every relative path below
	Root string `mapstructure:"root"`

	CatalogPath     string `mapstructure:"catalog"`
	SupervisorsPath string `mapstructure:"supervisors"`
	BackupDir       string `mapstructure:"backup_dir"`
	BackupRetention int    `mapstructure:"backup_retention"`

	ArtifactsDir string `mapstructure:"artifacts_dir"`
	LedgerPath   string `mapstructure:"ledger"`
	EventLevel   string `mapstructure:"event_level"`

	Watch  WatchConfig   `mapstructure:"watch"`
	Pitch  PitchConfig   `mapstructure:"pitch"`
	Remote remote.Config `mapstructure:"remote"`

	Acts          []catalog.Act     `mapstructure:"acts"`
	ArtistAliases map[string]string `mapstructure:"artist_aliases"`

	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
}

// SetDefaults registers defaults and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("catalog", "data/catalog.json")
	v.SetDefault("supervisors", "data/supervisors.json")
	v.SetDefault("backup_dir", "backups")
	v.SetDefault("backup_retention", 10)
	v.SetDefault("artifacts_dir", "artifacts")
	v.SetDefault("ledger", "artifacts/rcm-ledger.db")
	v.SetDefault("event_level", "info")

	v.SetDefault("watch.dir", "~/Music/Ridgemont-Upload")
	v.SetDefault("watch.completed_dir", "")
	v.SetDefault("watch.settle_delay", 2*time.Second)
	v.SetDefault("watch.recheck_delay", time.Second)
	v.SetDefault("watch.grow_delay", 3*time.Second)
	v.SetDefault("watch.max_settle", 2*time.Minute)
	v.SetDefault("watch.workers", 1)
	v.SetDefault("watch.synced_folder", false)

	v.SetDefault("pitch.dir", "pitch_decks")
	v.SetDefault("pitch.sender", "John York")
	v.SetDefault("pitch.studio", "Ridgemont Studio")

	v.SetDefault("remote.backend", remote.BackendR2)
	v.SetDefault("remote.dir", "")
	v.SetDefault("remote.bucket", remote.DefaultBucket)
	v.SetDefault("remote.endpoint", "")
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the R2 credentials keep their conventional names
	_ = v.BindEnv("remote.account_id", "CLOUDFLARE_ACCOUNT_ID")
	_ = v.BindEnv("remote.access_key_id", "CLOUDFLARE_R2_ACCESS_KEY_ID")
	_ = v.BindEnv("remote.secret_access_key", "CLOUDFLARE_R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("remote.bucket", "R2_BUCKET_NAME", "RCM_REMOTE_BUCKET")
}

// Load decodes v into a Config, resolves paths and validates the result
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

func (c *Config) resolvePaths() error {
	root, err := expandHome(c.Root)
	if err != nil {
		return err
	}
	if root == "" {
		root = "."
	}
	c.Root = root

	resolve := func(p *string) error {
		if *p == "" {
			return nil
		}
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(root, expanded)
		}
		*p = filepath.Clean(expanded)
		return nil
	}

	for _, p := range []*string{
		&c.CatalogPath, &c.SupervisorsPath, &c.BackupDir, &c.ArtifactsDir,
		&c.LedgerPath, &c.Watch.Dir, &c.Watch.CompletedDir, &c.Pitch.Dir, &c.Remote.Dir,
	} {
		if err := resolve(p); err != nil {
			return err
		}
	}
	if c.Watch.CompletedDir == "" && c.Watch.Dir != "" {
		c.Watch.CompletedDir = filepath.Join(c.Watch.Dir, "Completed")
	}
	return nil
}

// ActRegistry returns the configured acts, or the studio defaults, with
// any extra artist aliases applied
func (c *Config) ActRegistry() *catalog.Acts {
	if len(c.Acts) > 0 {
		acts := make([]catalog.Act, len(c.Acts))
		copy(acts, c.Acts)
		return catalog.NewActs(acts, c.ArtistAliases)
	}
	if len(c.ArtistAliases) > 0 {
		return catalog.DefaultActs().WithAliases(c.ArtistAliases)
	}
	return catalog.DefaultActs()
}

// MoveRetry returns the retry policy for relocating processed files
func (c *Config) MoveRetry() *util.RetryConfig {
	if c.Watch.SyncedFolder {
		return util.SyncedFolderRetryConfig()
	}
	return util.NoRetry()
}
