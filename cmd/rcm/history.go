package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/ingest"
	"github.com/franz/ridgemont-catalog/internal/ledger"
	"github.com/franz/ridgemont-catalog/internal/report"
	"github.com/franz/ridgemont-catalog/internal/util"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ingest runs and shortcodes from the ledger",
	Long: `Show the most recent ingest runs and executed shortcodes recorded in
the ledger. Failed runs are not retried automatically; drop the file into
the watch folder again (or use 'rcm ingest') to retry it.

With --report, a Markdown summary is also written to
<artifacts>/reports/<timestamp>/summary.md.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	historyCmd.Flags().Bool("report", false, "write a Markdown summary report")
	historyCmd.Flags().String("out", "", "report output directory (default: <artifacts>/reports/<timestamp>)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}
	db, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer db.Close()

	runs, err := db.RecentRuns(limit)
	if err != nil {
		return err
	}
	cmds, err := db.RecentCommands(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingest runs")
	fmt.Fprintln(out, runsTable(runs))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Shortcodes")
	fmt.Fprintln(out, commandsTable(cmds))

	if ok, _ := cmd.Flags().GetBool("report"); ok {
		return writeReport(cmd, db, cfg.LedgerPath, cfg.ArtifactsDir, out)
	}
	return nil
}

func runsTable(runs []*ledger.Run) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Started", "File", "State", "Size", "Remote key", "Song", "Error"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.StartedAt.Format("2006-01-02 15:04:05"),
			filepath.Base(r.SrcPath),
			r.State,
			humanize.Bytes(uint64(r.SizeBytes)),
			r.RemoteKey,
			r.SongID,
			r.Error,
		})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

func commandsTable(cmds []*ledger.Command) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Executed", "Command", "Result"})
	for _, c := range cmds {
		t.AppendRow(table.Row{c.ExecutedAt.Format("2006-01-02 15:04:05"), c.Command, c.Result})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

func writeReport(cmd *cobra.Command, db *ledger.Store, ledgerPath, artifactsDir string, out io.Writer) error {
	summary, err := report.GenerateSummaryReport(db, string(ingest.StateDone), string(ingest.StateFailed), 20)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summary.LedgerPath = ledgerPath

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = filepath.Join(artifactsDir, "reports", time.Now().Format("20060102-150405"))
	}
	outputPath := filepath.Join(outputDir, "summary.md")
	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	util.SuccessLog("Report saved to: %s", outputPath)
	fmt.Fprintf(out, "%d runs, %s uploaded\n", summary.TotalRuns, humanize.Bytes(uint64(summary.BytesUploaded)))
	return nil
}
