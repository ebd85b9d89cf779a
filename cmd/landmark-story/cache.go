package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhe.chen/landmark-story/internal/cache"
	"github.com/zhe.chen/landmark-story/internal/config"
)

var (
	cacheLandmarkFlag  string
	cacheStoryTypeFlag string
	cacheAllFlag       bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the video cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache(cmd)
		if err != nil {
			return err
		}
		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Videos:    %d\n", stats.TotalVideos)
		fmt.Printf("Clips:     %d\n", stats.TotalClips)
		fmt.Printf("Landmarks: %d\n", stats.UniqueLandmarks)
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache(cmd)
		if err != nil {
			return err
		}
		entries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LANDMARK\tSTORY TYPE\tUPDATED\tPATH")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.LandmarkName, e.StoryType, e.UpdatedAt.Format("2006-01-02 15:04"), e.VideoPath)
		}
		return w.Flush()
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete cached videos by landmark, or everything with --all",
	Example: `  landmark-story cache delete --landmark "Karnak Temple"
  landmark-story cache delete --landmark "Karnak Temple" --story-type documentary
  landmark-story cache delete --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheAllFlag && cacheLandmarkFlag == "" {
			return errors.New("--landmark or --all is required")
		}
		store, err := openCache(cmd)
		if err != nil {
			return err
		}

		var n int
		if cacheAllFlag {
			n, err = store.DeleteAll(cmd.Context())
		} else {
			n, err = store.Delete(cmd.Context(), cacheLandmarkFlag, cacheStoryTypeFlag)
		}
		if err != nil {
			return err
		}
		// cached video files are left on disk
		log.Info().Int("deleted", n).Msg("Cache entries removed")
		fmt.Printf("Deleted %d cache entries.\n", n)
		return nil
	},
}

func init() {
	cacheDeleteCmd.Flags().StringVar(&cacheLandmarkFlag, "landmark", "", "Landmark whose entries to delete")
	cacheDeleteCmd.Flags().StringVar(&cacheStoryTypeFlag, "story-type", "", "Only delete this story type")
	cacheDeleteCmd.Flags().BoolVar(&cacheAllFlag, "all", false, "Delete every entry")
	cacheDeleteCmd.MarkFlagsMutuallyExclusive("landmark", "all")

	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheDeleteCmd)
}

func openCache(cmd *cobra.Command) (cache.Store, error) {
	cfg, err := config.Read(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Backend == "memory" {
		log.Warn().Msg("cache.backend is memory; nothing persists between runs")
	}
	return newCacheStore(cmd.Context(), cfg.Cache)
}
