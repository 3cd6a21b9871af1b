package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/catalog"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show catalog totals by act and status, and revenue",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	sum, err := a.manager.CatalogSummary(ctx)
	if err != nil {
		return err
	}
	rev, err := a.manager.RevenueSummary(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), a.manager.Acts(), sum, rev)
	return nil
}

func printSummary(w io.Writer, acts *catalog.Acts, sum catalog.Summary, rev catalog.RevenueSummary) {
	fmt.Fprintf(w, "Songs: %d\n\n", sum.TotalSongs)

	byAct := table.NewWriter()
	byAct.AppendHeader(table.Row{"Act", "Songs"})
	for _, id := range sum.ActIDs() {
		byAct.AppendRow(table.Row{acts.DisplayName(id), sum.ByAct[id]})
	}
	byAct.SetStyle(table.StyleLight)
	fmt.Fprintln(w, byAct.Render())

	byStatus := table.NewWriter()
	byStatus.AppendHeader(table.Row{"Status", "Songs"})
	for _, st := range sum.Statuses() {
		byStatus.AppendRow(table.Row{st, sum.ByStatus[st]})
	}
	byStatus.SetStyle(table.StyleLight)
	fmt.Fprintln(w, byStatus.Render())

	fmt.Fprintf(w, "\nTotal earned: $%s\n", humanize.FormatFloat("#,###.##", rev.TotalRevenue))
	fmt.Fprintf(w, "Total expenses: $%s\n", humanize.FormatFloat("#,###.##", rev.TotalExpenses))
}
