package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mzurek/szperacz/internal/config"
	"github.com/mzurek/szperacz/internal/preflight"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment: data directory, database, sidecar servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Paths.DataDir = dataDir
		}

		results := preflight.Run(cmd.Context(), cfg)
		for _, r := range results {
			fmt.Printf("%-4s %-18s %s\n", r.Status, r.Name, r.Message)
		}
		if preflight.HasCriticalFailure(results) {
			return fmt.Errorf("environment check failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
