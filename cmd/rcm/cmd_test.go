package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/config"
	"github.com/franz/ridgemont-catalog/internal/ingest"
	"github.com/franz/ridgemont-catalog/internal/remote"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// testConfig returns a validated config rooted in a temp dir with the
// filesystem remote backend
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("root", root)
	v.Set("watch.dir", filepath.Join(root, "upload"))
	v.Set("remote.backend", remote.BackendDir)
	v.Set("remote.dir", "mirror")
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestExecuteLines(t *testing.T) {
	cfg := testConfig(t)
	a, err := openApp(cfg, false)
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	in := strings.NewReader(`> FC New "Midnight Drive" DRIV demo

> FC List
> Forecast "Midnight Drive" 2m
`)
	var out bytes.Buffer
	if err := executeLines(context.Background(), a.engine(), in, &out); err != nil {
		t.Fatalf("executeLines: %v", err)
	}

	lines := strings.Split(out.String(), "\n")
	if !strings.HasPrefix(lines[0], "Added 'Midnight Drive' to FROZEN_CLOUD as RS-") {
		t.Errorf("unexpected first message: %q", lines[0])
	}
	if !strings.Contains(out.String(), "| Midnight Drive | DRIV | demo |") {
		t.Errorf("list output missing song:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Forecast (2m): $8,000.00") {
		t.Errorf("forecast missing:\n%s", out.String())
	}

	cmds, err := a.ledger.RecentCommands(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 3 {
		t.Errorf("expected 3 recorded commands (blank line skipped), got %d", len(cmds))
	}
}

func TestOpenAppSecondWriterIsBusy(t *testing.T) {
	cfg := testConfig(t)
	a, err := openApp(cfg, false)
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	if _, err := openApp(cfg, false); !errors.Is(err, util.ErrWriterBusy) {
		t.Errorf("second openApp error = %v, want ErrWriterBusy", err)
	}
}

func TestPipelineIngestsIntoDirBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.SettleDelay = 1
	cfg.Watch.RecheckDelay = 1
	cfg.Watch.GrowDelay = 1

	a, err := openApp(cfg, true)
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	if err := os.MkdirAll(cfg.Watch.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(cfg.Watch.Dir, "Night Bus.mp3")
	if err := os.WriteFile(src, bytes.Repeat([]byte{0}, 512), 0644); err != nil {
		t.Fatal(err)
	}

	results, stats := ingest.ProcessAll(context.Background(), a.pipeline(), []string{src}, 1)
	if stats.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %+v (err %v)", stats, results[0].Err)
	}
	res := results[0]
	if res.RemoteKey != "Unknown Artist/Unknown Album/Night Bus.mp3" {
		t.Errorf("RemoteKey = %s", res.RemoteKey)
	}
	for _, key := range []string{res.RemoteKey, catalog.ListingKey} {
		if _, err := os.Stat(filepath.Join(cfg.Remote.Dir, filepath.FromSlash(key))); err != nil {
			t.Errorf("%s not uploaded: %v", key, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Watch.CompletedDir, "Night Bus.mp3")); err != nil {
		t.Errorf("source not relocated: %v", err)
	}
}

func TestDecodeSongUpdate(t *testing.T) {
	u, err := decodeSongUpdate([]byte(`{"status":"mastered","musical_info":{"bpm":128}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Status == nil || *u.Status != catalog.StatusMastered {
		t.Errorf("status = %v", u.Status)
	}
	if u.MusicalInfo == nil || u.MusicalInfo.BPM != 128 {
		t.Errorf("musical_info = %+v", u.MusicalInfo)
	}

	for _, bad := range []string{`{"colour":"red"}`, `{"status":`, `[]`} {
		if _, err := decodeSongUpdate([]byte(bad)); !errors.Is(err, util.ErrValidation) {
			t.Errorf("decode(%s) error = %v, want ErrValidation", bad, err)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	sum := catalog.Summary{
		TotalSongs: 3,
		ByAct:      map[string]int{"FROZEN_CLOUD": 2, "BAJAN_SUN": 1},
		ByStatus:   map[string]int{"demo": 1, "finished": 2},
	}
	rev := catalog.RevenueSummary{TotalRevenue: 1250.5, TotalExpenses: 300}

	var out bytes.Buffer
	printSummary(&out, catalog.DefaultActs(), sum, rev)
	got := out.String()
	for _, want := range []string{"Songs: 3", "Frozen Cloud", "Bajan Sun", "finished", "Total earned: $1,250.50", "Total expenses: $300.00"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestShowSongLogsCoverOriginal(t *testing.T) {
	doc := &catalog.Catalog{Songs: []*catalog.Song{
		{SongID: "RS-2026-0001", Title: "Horizon", ActID: "FROZEN_CLOUD", LegacyCode: "HRZN"},
		{SongID: "RS-2026-0002", Title: "Horizon (Island Mix)", ActID: "BAJAN_SUN", LegacyCode: "HRZN",
			IsCover: true, CoverOf: "Horizon", CoverOfID: "RS-2026-0001"},
		{SongID: "RS-2026-0003", Title: "Lost Signal", ActID: "BAJAN_SUN", IsCover: true, CoverOf: "Gone Song"},
	}}
	var logs bytes.Buffer
	util.SetOutput(&logs)
	util.SetColors(false)
	t.Cleanup(func() {
		util.SetOutput(os.Stderr)
		util.SetColors(true)
	})

	var out bytes.Buffer
	if err := showSong(&out, doc, "horizon (island mix)"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"RS-2026-0002"`) {
		t.Errorf("Unexpected output:\n%s", out.String())
	}
	if !strings.Contains(logs.String(), `covers RS-2026-0001 "Horizon"`) {
		t.Errorf("Original not reported:\n%s", logs.String())
	}

	logs.Reset()
	if err := showSong(&out, doc, "Lost Signal"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "not in the catalog") {
		t.Errorf("Missing original not reported:\n%s", logs.String())
	}

	if err := showSong(&out, doc, "Nope"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
