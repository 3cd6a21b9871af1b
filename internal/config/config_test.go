package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/franz/ridgemont-catalog/internal/util"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
			t.Fatalf("ReadConfig: %v", err)
		}
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	v := newViper(t, "")
	v.Set("root", root)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CatalogPath != filepath.Join(root, "data", "catalog.json") {
		t.Errorf("CatalogPath = %s", cfg.CatalogPath)
	}
	if cfg.BackupRetention != 10 || cfg.Watch.Workers != 1 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.Watch.SettleDelay != 2*time.Second || cfg.Watch.RecheckDelay != time.Second {
		t.Errorf("Unexpected delays %+v", cfg.Watch)
	}
	if cfg.Watch.CompletedDir != filepath.Join(cfg.Watch.Dir, "Completed") {
		t.Errorf("CompletedDir = %s", cfg.Watch.CompletedDir)
	}
	if strings.HasPrefix(cfg.Watch.Dir, "~") {
		t.Errorf("Watch dir not expanded: %s", cfg.Watch.Dir)
	}
	if cfg.Remote.Bucket != "ridgemont-studio" {
		t.Errorf("Bucket = %s", cfg.Remote.Bucket)
	}
	if cfg.MoveRetry().MaxAttempts != 1 {
		t.Error("Moves should not retry by default")
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct123")
	t.Setenv("R2_BUCKET_NAME", "demo-bucket")
	t.Setenv("RCM_WATCH_WORKERS", "3")

	v := newViper(t, `
root: `+root+`
catalog: catalog/main.json
watch:
  dir: /srv/upload
  settle_delay: 500ms
  synced_folder: true
remote:
  backend: dir
  dir: mirror
acts:
  - id: night_shift
    abbreviation: NS
    display_name: The Night Shift
    default_splits:
      - writer_id: W-0009
        percentage: 100
artist_aliases:
  "night shift": NIGHT_SHIFT
`)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CatalogPath != filepath.Join(root, "catalog", "main.json") {
		t.Errorf("CatalogPath = %s", cfg.CatalogPath)
	}
	if cfg.Watch.Dir != "/srv/upload" || cfg.Watch.CompletedDir != "/srv/upload/Completed" {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if cfg.Watch.SettleDelay != 500*time.Millisecond || cfg.Watch.Workers != 3 {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if cfg.Remote.AccountID != "acct123" || cfg.Remote.Bucket != "demo-bucket" {
		t.Errorf("Remote = %+v", cfg.Remote)
	}
	if cfg.Remote.Dir != filepath.Join(root, "mirror") {
		t.Errorf("Remote.Dir = %s", cfg.Remote.Dir)
	}
	if cfg.MoveRetry().MaxAttempts <= 1 {
		t.Error("Synced folders should retry moves")
	}

	acts := cfg.ActRegistry()
	act, ok := acts.Resolve("ns")
	if !ok || act.ID != "NIGHT_SHIFT" || len(act.DefaultSplits) != 1 || act.DefaultSplits[0].Percentage != 100 {
		t.Errorf("Configured act not loaded: %+v", act)
	}
	if _, ok := acts.Resolve("FC"); ok {
		t.Error("Configured acts replace the defaults")
	}
	if got := acts.ActIDForArtist("Night Shift"); got != "NIGHT_SHIFT" {
		t.Errorf("alias = %s", got)
	}
}

func TestActRegistryAliasesOnly(t *testing.T) {
	cfg := &Config{ArtistAliases: map[string]string{"dj frost": "FROZEN_CLOUD"}}
	acts := cfg.ActRegistry()
	if got := acts.ActIDForArtist("DJ Frost"); got != "FROZEN_CLOUD" {
		t.Errorf("alias = %s", got)
	}
	if _, ok := acts.Resolve("PB"); !ok {
		t.Error("default acts should remain")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*viper.Viper)
	}{
		{"retention", func(v *viper.Viper) { v.Set("backup_retention", 0) }},
		{"workers", func(v *viper.Viper) { v.Set("watch.workers", 0) }},
		{"negative delay", func(v *viper.Viper) { v.Set("watch.grow_delay", "-1s") }},
		{"max settle", func(v *viper.Viper) { v.Set("watch.max_settle", "100ms") }},
		{"completed equals watch", func(v *viper.Viper) {
			v.Set("watch.dir", "/srv/up")
			v.Set("watch.completed_dir", "/srv/up")
		}},
		{"backend", func(v *viper.Viper) { v.Set("remote.backend", "ftp") }},
		{"dir backend", func(v *viper.Viper) { v.Set("remote.backend", "dir") }},
		{"event level", func(v *viper.Viper) { v.Set("event_level", "loud") }},
		{"same documents", func(v *viper.Viper) { v.Set("supervisors", "data/catalog.json") }},
		{"duplicate act", func(v *viper.Viper) {
			v.Set("acts", []map[string]interface{}{
				{"id": "A", "abbreviation": "X"},
				{"id": "B", "abbreviation": "x"},
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t, "")
			v.Set("root", t.TempDir())
			tt.mutate(v)
			_, err := Load(v)
			if !errors.Is(err, util.ErrInvalidConfig) {
				t.Errorf("Load error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
