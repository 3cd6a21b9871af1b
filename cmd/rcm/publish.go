package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/ingest"
	"github.com/franz/ridgemont-catalog/internal/util"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Regenerate and upload the public tracks.json listing",
	Long: `Build the public track listing from the catalog and upload it as
tracks.json. The watcher does this after every ingested file; use this
command after editing songs by hand.`,
	RunE: runPublish,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a timestamped backup of the catalog",
	RunE:  runBackup,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(backupCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := ingest.Publish(context.Background(), a.manager, a.remote); err != nil {
		return err
	}
	util.SuccessLog("Published %s to %s", catalog.ListingKey, a.remote)
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := a.manager.Backup(context.Background())
	if err != nil {
		return err
	}
	util.SuccessLog("Backup written to %s", path)
	return nil
}
