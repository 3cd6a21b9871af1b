package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/ingest"
	"github.com/franz/ridgemont-catalog/internal/util"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Run the given audio files through the ingest pipeline once",
	Long: `Run the given audio files through the same pipeline the watcher uses,
without watching the folder. Processed files are moved into the
Completed folder. Failed files stay where they are and can be ingested
again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Int("workers", 0, "files processed in parallel (default watch.workers)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workers := cfg.Watch.Workers
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		workers = n
	}

	a, err := openApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := a.pipeline()
	var paths []string
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		if !p.Accepts(path) {
			util.WarnLog("Skipping %s: only .mp3 and .wav files are ingested", arg)
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no audio files to ingest")
	}

	start := time.Now()
	results, stats := ingest.ProcessAll(ctx, p, paths, workers)
	for _, res := range results {
		switch {
		case res == nil:
		case res.Err != nil:
			util.ErrorLog("%s: %v", filepath.Base(res.SrcPath), res.Err)
		case res.State == ingest.StateDone:
			util.SuccessLog("%s -> %s (%s)", filepath.Base(res.SrcPath), res.RemoteKey, res.SongID)
		default:
			util.InfoLog("%s: %s", filepath.Base(res.SrcPath), res.State)
		}
	}
	printStats(stats, time.Since(start))

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", stats.Failed, len(paths))
	}
	return nil
}
