package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leadflow",
	Short: "Leadflow routes conversations and extracts structured records",
	Long: `Leadflow classifies free-text messages into registration, workshop and
feedback flows, accumulates the structured fields each flow needs across the
conversation, and reconciles completed records into a deduplicated store.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "leadflow.yaml", "Path to the configuration file")
}
