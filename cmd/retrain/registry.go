package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"model-retrain-service/internal/core/domain"
	"model-retrain-service/internal/config"
)

func saveCmd(cfg *config.Config) *cobra.Command {
	var modelPath, paramsFile, metricsFile string

	c := &cobra.Command{
		Use:   "save",
		Short: "Save a model, params and metrics to the configured target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var model domain.Model
			if modelPath != "" {
				dir, err := domain.NewArtifactDir(modelPath)
				if err != nil {
					return err
				}
				model = dir
			}

			var params domain.Params
			if paramsFile != "" {
				if err := readYAML(paramsFile, &params); err != nil {
					return err
				}
			}
			var metrics domain.Metrics
			if metricsFile != "" {
				if err := readYAML(metricsFile, &metrics); err != nil {
					return err
				}
			}

			registry, cleanup, err := buildRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ts, err := registry.Save(cmd.Context(), model, params, metrics)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ts)
			return nil
		},
	}

	c.Flags().StringVar(&modelPath, "model", "", "Model file or directory")
	c.Flags().StringVar(&paramsFile, "params", "", "YAML file of training params")
	c.Flags().StringVar(&metricsFile, "metrics", "", "YAML file of metrics")
	return c
}

func loadCmd(cfg *config.Config) *cobra.Command {
	var out string

	c := &cobra.Command{
		Use:   "load",
		Short: "Load the latest model from the configured target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, cleanup, err := buildRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			model, err := registry.RequireModel(cmd.Context())
			if err != nil {
				return err
			}
			if out != "" {
				if err := model.Save(out); err != nil {
					return fmt.Errorf("copy model to %s: %w", out, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), model)
			return nil
		},
	}

	c.Flags().StringVar(&out, "out", "", "Copy the loaded model to this path")
	return c
}

func versionCmd(cfg *config.Config) *cobra.Command {
	var stageName string

	c := &cobra.Command{
		Use:   "version",
		Short: "Print the latest registered model version in a stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stage, err := domain.ParseStage(stageName)
			if err != nil {
				return err
			}

			registry, cleanup, err := buildRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			version, found, err := registry.GetVersion(cmd.Context(), stage)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s version\n", stage)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}

	c.Flags().StringVar(&stageName, "stage", string(domain.StageProduction), "Stage: None|Staging|Production|Archived")
	return c
}

func readYAML(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
