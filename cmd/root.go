package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Saksham338101/menu-scanner1/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "menuscan",
	Short: "Turn menu photos into structured dishes.",
	Long: `menuscan reads photos and PDFs of restaurant menus, asks a vision model for
the dishes in small batches, repairs whatever JSON comes back and merges the
results into one deduplicated list of items.

Menus can be printed, saved to the graph, vector and Postgres stores, or served
over HTTP for partner dashboards.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.menuscan/config.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning: could not determine home directory:", err)
		} else {
			viper.AddConfigPath(filepath.Join(home, ".menuscan"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "warning: reading config:", err)
		}
	}
}
