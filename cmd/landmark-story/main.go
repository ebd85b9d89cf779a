package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhe.chen/landmark-story/internal/logging"
)

const defaultConfigPath = "configs/landmark-story.yaml"

// Global flags
var (
	configPath string
	logLevel   string
	jsonLogs   bool
)

// rootCmd is the main Cobra command for the landmark-story CLI.
var rootCmd = &cobra.Command{
	Use:   "landmark-story",
	Short: "Turn a landmark photo into a narrated historical video story",
	Long: `Landmark Story analyzes a photo of a historical building, identifies the
landmark, writes a short documentary narrative about it, plans video shots,
and optionally renders narration audio and video clips.

Examples:
  landmark-story run photos/karnak.jpg
  landmark-story run photo.jpg --landmark "Karnak Temple" --note "slower pacing"
  landmark-story recommend --name "Karnak Temple" --top 3
  landmark-story cache list`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		if err := godotenv.Load(); err == nil {
			log.Debug().Msg("Loaded .env")
		}
		logging.Init(logLevel, jsonLogs)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "Write logs as JSON instead of console text")

	rootCmd.AddCommand(runCmd, recommendCmd, cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
