package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/ridgemont-catalog/internal/config"
	"github.com/franz/ridgemont-catalog/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "rcm",
		Short: "Ridgemont catalog manager - ingest, catalog and pitch studio songs",
		Long: `rcm (Ridgemont Catalog Manager) keeps the studio's song catalog.
It watches an upload folder, pushes finished tracks to object storage,
records them in the catalog, publishes the public track listing and runs
the studio's '>' shortcodes (New, List, Pitch, Cost, Forecast, Backup).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/rcm.yaml)")
	rootCmd.PersistentFlags().String("root", ".", "directory that relative paths resolve against")
	rootCmd.PersistentFlags().String("catalog", "", "catalog document (default data/catalog.json)")
	rootCmd.PersistentFlags().String("ledger", "", "ingest ledger database (default artifacts/rcm-ledger.db)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	for _, name := range []string{"root", "catalog", "ledger", "verbose", "quiet"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	// .env carries the R2 credentials; a missing file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		util.WarnLog("Failed to load .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("rcm")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if !viper.GetBool("quiet") {
			util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		util.ErrorLog("Failed to read config %s: %v", cfgFile, err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
