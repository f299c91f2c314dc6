// Command pathwayctl runs the pathway pipeline stages offline against JSON
// files, without the API server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pathways-backend/internal/logger"
)

var (
	logLevelFlag string
	rootCmd      = &cobra.Command{
		Use:           "pathwayctl",
		Short:         "Offline tools for the learning pathway pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&logLevelFlag, "log-level", "l", "warn", "Log level for diagnostics on stderr")

	if err := rootCmd.Execute(); err != nil {
		log := logger.New("pathwayctl", "error")
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
