package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/ingest"
	"github.com/franz/ridgemont-catalog/internal/util"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the upload folder and ingest finished tracks",
	Long: `Watch the upload folder and ingest every .mp3 or .wav dropped into it.

Files already waiting in the folder are processed first. Each file:
1. Waits until its size stops changing
2. Has its tags and duration read
3. Is uploaded as artist/album/title (a date suffix avoids overwrites)
4. Is recorded in the catalog as a finished song
5. Triggers a refresh of the public tracks.json listing
6. Is moved into the Completed folder

Stop with Ctrl-C; files in progress finish their current step first.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Int("workers", 0, "files processed in parallel (default watch.workers)")
	watchCmd.Flags().Bool("drain", false, "process files already in the folder, then exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.Watch.Workers = n
	}

	a, err := openApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := ingest.NewWatcher(&ingest.WatcherConfig{
		Dir:      cfg.Watch.Dir,
		Pipeline: a.pipeline(),
		Workers:  cfg.Watch.Workers,
	})
	if err != nil {
		return err
	}

	util.InfoLog("=== Ridgemont Ingest ===")
	util.InfoLog("Watch folder: %s", cfg.Watch.Dir)
	util.InfoLog("Completed folder: %s", cfg.Watch.CompletedDir)
	util.InfoLog("Remote: %s", a.remote)
	util.InfoLog("Workers: %d", cfg.Watch.Workers)

	start := time.Now()
	drainOnly, _ := cmd.Flags().GetBool("drain")
	if drainOnly {
		if _, err := w.Drain(ctx); err != nil {
			return err
		}
	} else if err := w.Run(ctx); err != nil {
		return err
	}

	printStats(w.Stats(), time.Since(start))
	return nil
}

func printStats(s ingest.Stats, elapsed time.Duration) {
	util.InfoLog("")
	util.SuccessLog("=== Ingest Summary ===")
	util.InfoLog("Total time: %v", elapsed.Round(time.Millisecond))
	util.InfoLog("Files processed: %d", s.Processed)
	util.InfoLog("  Succeeded: %d", s.Succeeded)
	if s.Abandoned > 0 {
		util.InfoLog("  Abandoned: %d", s.Abandoned)
	}
	if s.Skipped > 0 {
		util.InfoLog("  Skipped (in flight): %d", s.Skipped)
	}
	if s.Failed > 0 {
		util.WarnLog("  Failed: %d", s.Failed)
	}
	util.InfoLog("Bytes uploaded: %s", humanize.Bytes(uint64(s.Bytes)))
}
