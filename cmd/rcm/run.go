package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/shortcode"
)

var runCmd = &cobra.Command{
	Use:   "run ['<shortcode>']",
	Short: "Execute a studio shortcode",
	Long: `Execute a '>' shortcode against the catalog and print its message.

Examples:
  rcm run '> FC New "Midnight Drive" DRIV demo'
  rcm run '> PB List'
  rcm run '> Pitch "Midnight Drive" "Alex Patsavas"'
  rcm run '> Cost "Midnight Drive" 150 Mixing'
  rcm run '> Forecast "Midnight Drive" 2m'
  rcm run '> Backup'

Without an argument, shortcodes are read from stdin, one per line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShortcode,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runShortcode(cmd *cobra.Command, args []string) error {
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
	engine := a.engine()
	if len(args) == 1 {
		fmt.Fprintln(cmd.OutOrStdout(), engine.Execute(ctx, args[0]))
		return nil
	}
	return executeLines(ctx, engine, cmd.InOrStdin(), cmd.OutOrStdout())
}

// executeLines runs every non-blank line of r and writes each message to w
func executeLines(ctx context.Context, engine *shortcode.Engine, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(w, engine.Execute(ctx, line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read shortcodes: %w", err)
	}
	return nil
}
