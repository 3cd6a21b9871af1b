package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/ridgemont-catalog/internal/ledger"
)

// SummaryReport describes ingestion activity recorded in the ledger
type SummaryReport struct {
	GeneratedAt time.Time

	TotalRuns     int
	RunsByState   map[string]int
	BytesUploaded int64

	TopErrors  []ErrorSummary
	RecentRuns []*ledger.Run

	LedgerPath   string
	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// GenerateSummaryReport reads run statistics from the ledger. doneState
// and failedState name the pipeline's terminal states.
func GenerateSummaryReport(db *ledger.Store, doneState, failedState string, recent int) (*SummaryReport, error) {
	counts, err := db.CountRunsByState()
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	bytes, err := db.TotalBytesUploaded(doneState)
	if err != nil {
		return nil, fmt.Errorf("failed to sum uploads: %w", err)
	}
	failed, err := db.RunsByState(failedState)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed runs: %w", err)
	}
	runs, err := db.RecentRuns(recent)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}

	r := &SummaryReport{
		GeneratedAt:   time.Now(),
		RunsByState:   counts,
		BytesUploaded: bytes,
		TopErrors:     topErrors(failed, 10),
		RecentRuns:    runs,
	}
	for _, n := range counts {
		r.TotalRuns += n
	}
	return r, nil
}

func topErrors(runs []*ledger.Run, limit int) []ErrorSummary {
	counts := make(map[string]int)
	for _, run := range runs {
		if run.Error != "" {
			counts[run.Error]++
		}
	}

	errs := make([]ErrorSummary, 0, len(counts))
	for msg, n := range counts {
		errs = append(errs, ErrorSummary{Error: msg, Count: n})
	}
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Count != errs[j].Count {
			return errs[i].Count > errs[j].Count
		}
		return errs[i].Error < errs[j].Error
	})
	if len(errs) > limit {
		errs = errs[:limit]
	}
	return errs
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown formats the report
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Ridgemont Ingestion Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.LedgerPath != "" {
		md.WriteString(fmt.Sprintf("**Ledger:** `%s`\n\n", report.LedgerPath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Runs | %d |\n", report.TotalRuns))
	states := make([]string, 0, len(report.RunsByState))
	for s := range report.RunsByState {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		md.WriteString(fmt.Sprintf("| %s | %d |\n", s, report.RunsByState[s]))
	}
	md.WriteString(fmt.Sprintf("| Uploaded | %s |\n", humanize.Bytes(uint64(report.BytesUploaded))))
	md.WriteString("\n")

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, e := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", e.Count, e.Error))
		}
		md.WriteString("\n")
	}

	if len(report.RecentRuns) > 0 {
		md.WriteString("## Recent Runs\n\n")
		md.WriteString("| Started | File | State | Remote Key | Song |\n")
		md.WriteString("|---------|------|-------|------------|------|\n")
		for _, run := range report.RecentRuns {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %s | `%s` | %s |\n",
				run.StartedAt.Format("2006-01-02 15:04"),
				truncatePath(run.SrcPath, 40),
				run.State,
				truncatePath(run.RemoteKey, 50),
				run.SongID))
		}
		md.WriteString("\n")
	}

	return md.String()
}

// truncatePath truncates a path to maxLen, keeping both ends
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
