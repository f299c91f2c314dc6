package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pathways-backend/internal/logger"
	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
	"pathways-backend/internal/services"
)

func init() {
	var (
		requestPath string
		fallback    bool
		apiKey      string
		model       string
		timeout     time.Duration
	)
	draftsCmd := &cobra.Command{
		Use:   "drafts",
		Short: "Generate three pathway drafts for a draft request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req models.DraftRequest
			if err := readJSONFile(requestPath, &req); err != nil {
				return err
			}
			if fallback {
				return runFallbackDrafts(req, os.Stdout)
			}
			if apiKey == "" {
				return fmt.Errorf("--api-key or GEMINI_API_KEY required unless --fallback is set")
			}

			log := logger.New("pathwayctl", logLevelFlag)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			gemini, err := services.NewGeminiGenerator(ctx, apiKey, model, 1, log)
			if err != nil {
				return err
			}
			defer gemini.Close()
			return runDrafts(ctx, pathway.NewDraftGenerator(gemini, log), req, os.Stdout)
		},
	}
	draftsCmd.Flags().StringVarP(&requestPath, "request", "r", "", "Draft request JSON file (required)")
	draftsCmd.Flags().BoolVar(&fallback, "fallback", false, "Print the basic continuous drafts without calling the model")
	draftsCmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key")
	draftsCmd.Flags().StringVar(&model, "model", services.DefaultGeminiModel, "Gemini model name")
	draftsCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall generation timeout")
	_ = draftsCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(draftsCmd)
}

type draftSource interface {
	Generate(ctx context.Context, profile models.LearnerProfile, trip models.Trip, dateSet []string, effort pathway.EffortMode) ([]models.PathwayDraft, error)
}

func runDrafts(ctx context.Context, gen draftSource, req models.DraftRequest, w io.Writer) error {
	effort, err := pathway.ParseEffort(req.EffortMode)
	if err != nil {
		return err
	}
	drafts, err := gen.Generate(ctx, req.LearnerProfile, req.Trip, req.SelectedDates, effort)
	if err != nil {
		return err
	}
	return printJSON(w, models.DraftResponse{Drafts: drafts})
}

func runFallbackDrafts(req models.DraftRequest, w io.Writer) error {
	effort, err := pathway.ParseEffort(req.EffortMode)
	if err != nil {
		return err
	}
	if len(req.SelectedDates) == 0 {
		return pathway.ErrNothingToPlan
	}
	drafts := pathway.FallbackDrafts(req.Trip, req.SelectedDates, effort)
	return printJSON(w, models.DraftResponse{Drafts: drafts, Fallback: true})
}
