package shortcode

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/ledger"
	"github.com/franz/ridgemont-catalog/internal/pitch"
)

type harness struct {
	engine   *Engine
	manager  *catalog.Manager
	ledger   *ledger.Store
	pitchDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	now := func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC) }

	m, err := catalog.NewManager(&catalog.Config{
		CatalogPath:     filepath.Join(root, "data", "catalog.json"),
		SupervisorsPath: filepath.Join(root, "data", "supervisors.json"),
		BackupDir:       filepath.Join(root, "backups"),
		Now:             now,
		Rand:            rand.New(rand.NewPCG(7, 11)),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })

	db, err := ledger.Open(filepath.Join(root, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	pitchDir := filepath.Join(root, "pitch_decks")
	return &harness{
		engine: New(&Config{
			Catalog: m,
			Pitch:   pitch.New(&pitch.Config{Dir: pitchDir, Now: now}),
			Ledger:  db,
		}),
		manager:  m,
		ledger:   db,
		pitchDir: pitchDir,
	}
}

func (h *harness) run(t *testing.T, line string) string {
	t.Helper()
	return h.engine.Execute(context.Background(), line)
}

func TestNewSongCommand(t *testing.T) {
	h := newHarness(t)

	out := h.run(t, `> FC New "Midnight Run"`)
	if out != "Added 'Midnight Run' to FROZEN_CLOUD as RS-2026-0001 (Code: MIDN)" {
		t.Errorf("unexpected output %q", out)
	}

	out = h.run(t, `> PB New "Glass House" demo GLAS`)
	if !strings.Contains(out, "PARK_BELLEVUE") || !strings.Contains(out, "(Code: GLAS)") {
		t.Errorf("unexpected output %q", out)
	}
	song, err := h.manager.FindSongByTitle(context.Background(), "glass house")
	if err != nil {
		t.Fatal(err)
	}
	if song.Status != catalog.StatusDemo {
		t.Errorf("Status = %s, want demo", song.Status)
	}

	// explicit code collision is reported and nothing is added
	out = h.run(t, `> BS New "Another" GLAS`)
	if out != "Error: Code 'GLAS' already used by 'Glass House'" {
		t.Errorf("unexpected output %q", out)
	}
	doc, _ := h.manager.Snapshot(context.Background())
	if len(doc.Songs) != 2 {
		t.Errorf("Expected 2 songs, got %d", len(doc.Songs))
	}
}

func TestNewSongCommandErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		line string
		want string
	}{
		{`> XX New "Song"`, "Unknown Act: XX"},
		{`> FC`, UsageAct},
		{`> FC Delete "Song"`, "Unknown command."},
		{`> FC New`, UsageNew},
		{`> FC New "Song" ABC`, "Error: unexpected argument 'ABC'. " + UsageNew},
		{`> FC New "Song" finished`, "Error: unexpected argument 'finished'. " + UsageNew},
	}
	for _, tt := range tests {
		if got := h.run(t, tt.line); got != tt.want {
			t.Errorf("%s => %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestListCommand(t *testing.T) {
	h := newHarness(t)
	if got := h.run(t, `> FC List`); got != "No songs." {
		t.Errorf("empty list = %q", got)
	}
	for i := 0; i < 12; i++ {
		h.run(t, `> FC New "Track `+string(rune('A'+i))+`"`)
	}
	h.run(t, `> BS New "Sunrise"`)

	out := h.run(t, `> fc list`)
	if !strings.Contains(out, "| Track A |") || !strings.Contains(out, "| Title | Code | Status |") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, "Track K") || strings.Contains(out, "Sunrise") {
		t.Errorf("list should show the first 10 songs of the act only:\n%s", out)
	}
}

func TestForecastCommand(t *testing.T) {
	h := newHarness(t)
	h.run(t, `> FC New "Horizon"`)

	if got := h.run(t, `> Forecast "Horizon" 2m`); got != "Forecast (2m): $8,000.00" {
		t.Errorf("forecast = %q", got)
	}
	if got := h.run(t, `> Forecast "Horizon" 250`); got != "Forecast (250): $1,000.00" {
		t.Errorf("forecast = %q", got)
	}
	if got := h.run(t, `> Forecast "Nope" 1m`); got != "Error: Song 'Nope' not found." {
		t.Errorf("forecast missing = %q", got)
	}
	if got := h.run(t, `> Forecast "Horizon"`); got != UsageForecast {
		t.Errorf("forecast usage = %q", got)
	}
}

func TestCostCommand(t *testing.T) {
	h := newHarness(t)
	h.run(t, `> FC New "Horizon"`)

	if got := h.run(t, `> Cost "Horizon" 1250.5 Mixing Engineer`); got != "Logged $1,250.50 for Horizon." {
		t.Errorf("cost = %q", got)
	}
	song, _ := h.manager.FindSongByTitle(context.Background(), "Horizon")
	if len(song.Revenue.Expenses) != 1 || song.Revenue.Expenses[0].Category != "Mixing Engineer" {
		t.Errorf("expenses = %+v", song.Revenue.Expenses)
	}
	if got := h.run(t, `> Cost "Horizon" lots Mixing`); got != UsageCost {
		t.Errorf("bad amount = %q", got)
	}
	if got := h.run(t, `> Cost "Missing" 10 Fees`); got != "Error: Song 'Missing' not found." {
		t.Errorf("missing song = %q", got)
	}
}

func TestPitchCommand(t *testing.T) {
	h := newHarness(t)
	h.run(t, `> FC New "Horizon"`)

	out := h.run(t, `> Pitch "horizon" "Jane Smith"`)
	for _, want := range []string{
		"Pitch Generated for Jane Smith** (New Contact Created)",
		"**To:** Jane Smith <TBD>",
		`Energy track for your consideration: "Horizon"`,
		"pitch_RS-2026-0001_JaneSmith.html",
		"Added to supervisor history",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("pitch output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(h.pitchDir, "pitch_RS-2026-0001_JaneSmith.html")); err != nil {
		t.Errorf("pitch page not written: %v", err)
	}

	out = h.run(t, `> Pitch "Horizon" "jane smith"`)
	if strings.Contains(out, "New Contact Created") {
		t.Error("existing supervisor should be matched case-insensitively")
	}

	if got := h.run(t, `> Pitch "Nope" "Jane Smith"`); got != "Error: Song 'Nope' not found." {
		t.Errorf("missing song = %q", got)
	}
	if got := h.run(t, `> Pitch "Horizon"`); got != UsagePitch {
		t.Errorf("usage = %q", got)
	}
}

func TestStubAndBackupCommands(t *testing.T) {
	h := newHarness(t)
	if got := h.run(t, "> Sync"); got != "Excel Sync Stub Executed." {
		t.Errorf("sync = %q", got)
	}
	h.run(t, `> FC New "Horizon"`)
	out := h.run(t, "> backup")
	if !strings.HasPrefix(out, "Backup: ") || !strings.Contains(out, "catalog_backup_20261017_093000") {
		t.Errorf("backup = %q", out)
	}
	if got := h.run(t, "hello"); got != "Invalid command." {
		t.Errorf("no prefix = %q", got)
	}
}

func TestCommandsAreRecorded(t *testing.T) {
	h := newHarness(t)
	h.run(t, "> sync")
	h.run(t, `> Forecast "Nope" 1m`)

	cmds, err := h.ledger.RecentCommands(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 {
		t.Fatalf("Expected 2 recorded commands, got %d", len(cmds))
	}
	if cmds[0].Verb != "forecast" || cmds[0].Result != "Error: Song 'Nope' not found." {
		t.Errorf("latest command = %+v", cmds[0])
	}
}
