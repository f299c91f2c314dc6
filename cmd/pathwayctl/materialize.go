package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
)

func init() {
	var (
		planPath     string
		existingPath string
		tripID       string
		location     string
		imageBaseURL string
	)
	materializeCmd := &cobra.Command{
		Use:   "materialize",
		Short: "Merge a finalized plan into an existing block list",
		RunE: func(cmd *cobra.Command, args []string) error {
			var plan models.FinalPathwayPlan
			if err := readJSONFile(planPath, &plan); err != nil {
				return err
			}
			var existing []models.ScheduleBlock
			if existingPath != "" {
				if err := readJSONFile(existingPath, &existing); err != nil {
					return err
				}
			}
			m := pathway.NewMaterializer(nil, imageBaseURL)
			return runMaterialize(m, plan, existing, tripID, location, os.Stdout)
		},
	}
	materializeCmd.Flags().StringVarP(&planPath, "plan", "p", "", "Final plan JSON file (required)")
	materializeCmd.Flags().StringVarP(&existingPath, "existing", "e", "", "Existing schedule blocks JSON file")
	materializeCmd.Flags().StringVarP(&tripID, "trip", "t", "", "Trip ID stamped on generated blocks (required)")
	materializeCmd.Flags().StringVar(&location, "location", "", "Trip base location")
	materializeCmd.Flags().StringVar(&imageBaseURL, "image-base-url", "/static/activities", "Base URL for activity images")
	_ = materializeCmd.MarkFlagRequired("plan")
	_ = materializeCmd.MarkFlagRequired("trip")
	rootCmd.AddCommand(materializeCmd)
}

func runMaterialize(m *pathway.Materializer, plan models.FinalPathwayPlan, existing []models.ScheduleBlock, tripID, location string, w io.Writer) error {
	blocks, err := m.Materialize(plan, existing, tripID, location)
	if err != nil {
		return err
	}
	return printJSON(w, map[string]any{"blocks": blocks})
}
