package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
)

func init() {
	var req models.DaySetRequest
	daysCmd := &cobra.Command{
		Use:   "days",
		Short: "Resolve the trip days a pathway covers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDays(req, os.Stdout)
		},
	}
	daysCmd.Flags().StringVar(&req.StartDate, "start", "", "Trip start date, YYYY-MM-DD (required)")
	daysCmd.Flags().StringVar(&req.EndDate, "end", "", "Trip end date, YYYY-MM-DD (required)")
	daysCmd.Flags().StringVarP(&req.Mode, "mode", "m", string(pathway.ModeEntireTrip), "entire-trip, date-range or select-days")
	daysCmd.Flags().StringVar(&req.RangeStart, "range-start", "", "First day for date-range")
	daysCmd.Flags().StringVar(&req.RangeEnd, "range-end", "", "Last day for date-range")
	daysCmd.Flags().StringSliceVarP(&req.SelectedDays, "day", "d", nil, "Selected day for select-days (repeatable)")
	_ = daysCmd.MarkFlagRequired("start")
	_ = daysCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(daysCmd)
}

func runDays(req models.DaySetRequest, w io.Writer) error {
	days, err := pathway.ResolveDays(pathway.DaySelection{
		TripStart:  req.StartDate,
		TripEnd:    req.EndDate,
		Mode:       pathway.SelectionMode(req.Mode),
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
		Selected:   req.SelectedDays,
	})
	if err != nil {
		return err
	}
	return printJSON(w, map[string]any{"days": days, "count": len(days)})
}
