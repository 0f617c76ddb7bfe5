package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"model-retrain-service/internal/adapters/primary/http/dto"
	"model-retrain-service/internal/config"
)

func runCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the retraining flow once and print the run record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.cleanup()

			run, err := a.flow.Run(cmd.Context())
			if run != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(dto.ToFlowRunResponse(run))
			}
			return err
		},
	}
}
