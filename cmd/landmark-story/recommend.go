package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhe.chen/landmark-story/internal/config"
	"github.com/zhe.chen/landmark-story/internal/landmarks"
)

var (
	recNameFlag     string
	recLatFlag      float64
	recLonFlag      float64
	recCategoryFlag string
	recTopFlag      int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "List landmarks near a named landmark or a coordinate",
	Example: `  landmark-story recommend --name "Karnak Temple"
  landmark-story recommend --lat 29.9792 --lon 31.1342 --category museum --top 3`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVar(&recNameFlag, "name", "", "Landmark to search around")
	recommendCmd.Flags().Float64Var(&recLatFlag, "lat", 0, "Latitude to search around")
	recommendCmd.Flags().Float64Var(&recLonFlag, "lon", 0, "Longitude to search around")
	recommendCmd.Flags().StringVar(&recCategoryFlag, "category", "", "Only include this category (default: all)")
	recommendCmd.Flags().IntVar(&recTopFlag, "top", landmarks.DefaultTopN, "Number of results")
	recommendCmd.MarkFlagsRequiredTogether("lat", "lon")
	recommendCmd.MarkFlagsMutuallyExclusive("name", "lat")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	store, err := loadLandmarks(cfg.Landmarks)
	if err != nil {
		return err
	}

	var recs []landmarks.Recommendation
	switch {
	case recNameFlag != "":
		if _, ok, err := landmarks.Find(cmd.Context(), store, recNameFlag); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("landmark %q is not in the gazetteer", recNameFlag)
		}
		recs, err = landmarks.Recommend(cmd.Context(), store, recNameFlag, recCategoryFlag, recTopFlag)
	case cmd.Flags().Changed("lat"):
		recs, err = landmarks.NearestTo(cmd.Context(), store, recLatFlag, recLonFlag, recCategoryFlag, recTopFlag)
	default:
		return errors.New("either --name or --lat/--lon is required")
	}
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		fmt.Println("No landmarks found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tGOVERNORATE\tDISTANCE")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f km\n", r.Name, r.Category, r.Governorate, r.DistanceKM)
	}
	return w.Flush()
}
