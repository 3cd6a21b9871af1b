package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/ridgemont-catalog/internal/ledger"
)

func setupLedger(t *testing.T) *ledger.Store {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	runs := []*ledger.Run{
		{SrcPath: "/watch/a.mp3", SizeBytes: 3_000_000, State: "done", RemoteKey: "A/B/a.mp3", SongID: "RS-2026-0001"},
		{SrcPath: "/watch/b.mp3", SizeBytes: 2_000_000, State: "done", RemoteKey: "A/B/b.mp3", SongID: "RS-2026-0002"},
		{SrcPath: "/watch/c.wav", State: "failed", Error: "upload failed"},
		{SrcPath: "/watch/d.wav", State: "failed", Error: "upload failed"},
		{SrcPath: "/watch/e.wav", State: "failed", Error: "file still being written"},
	}
	for i, run := range runs {
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.StartRun(run); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestGenerateSummaryReport(t *testing.T) {
	db := setupLedger(t)

	report, err := GenerateSummaryReport(db, "done", "failed", 3)
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	if report.TotalRuns != 5 {
		t.Errorf("Expected 5 runs, got %d", report.TotalRuns)
	}
	if report.RunsByState["done"] != 2 || report.RunsByState["failed"] != 3 {
		t.Errorf("Unexpected state counts %v", report.RunsByState)
	}
	if report.BytesUploaded != 5_000_000 {
		t.Errorf("Expected 5000000 bytes, got %d", report.BytesUploaded)
	}
	if len(report.TopErrors) != 2 || report.TopErrors[0].Error != "upload failed" || report.TopErrors[0].Count != 2 {
		t.Errorf("Unexpected top errors %+v", report.TopErrors)
	}
	if len(report.RecentRuns) != 3 || report.RecentRuns[0].SrcPath != "/watch/e.wav" {
		t.Errorf("Unexpected recent runs")
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	db := setupLedger(t)
	report, err := GenerateSummaryReport(db, "done", "failed", 10)
	if err != nil {
		t.Fatal(err)
	}
	report.LedgerPath = "ledger.db"

	outputPath := filepath.Join(t.TempDir(), "reports", "summary.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}

	md := string(content)
	for _, want := range []string{
		"# Ridgemont Ingestion Report",
		"**Ledger:** `ledger.db`",
		"| Runs | 5 |",
		"| done | 2 |",
		"| Uploaded | 5.0 MB |",
		"## Top Errors",
		"| 2 | upload failed |",
		"## Recent Runs",
		"RS-2026-0001",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Report missing %q", want)
		}
	}
}

func TestReportWithEmptyData(t *testing.T) {
	db, err := ledger.Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	report, err := GenerateSummaryReport(db, "done", "failed", 10)
	if err != nil {
		t.Fatal(err)
	}
	md := RenderMarkdown(report)
	if !strings.Contains(md, "| Runs | 0 |") {
		t.Error("Expected zero runs in overview")
	}
	if strings.Contains(md, "## Top Errors") || strings.Contains(md, "## Recent Runs") {
		t.Error("Empty report should omit detail sections")
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		maxLen int
	}{
		{"Short path - no truncation", "/watch/song.mp3", 50},
		{"Long path - truncate middle", "/very/long/path/to/some/music/collection/artist/album/song.mp3", 30},
		{"Exactly at limit", "/watch/test.mp3", 15},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncatePath(tc.path, tc.maxLen)
			if len(result) > tc.maxLen {
				t.Errorf("Result length %d exceeds maxLen %d", len(result), tc.maxLen)
			}
			if len(tc.path) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("Expected truncated path to contain '...'")
			}
			if len(tc.path) <= tc.maxLen && result != tc.path {
				t.Errorf("Short path should not be truncated: expected '%s', got '%s'", tc.path, result)
			}
		})
	}
}
