package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coverdex/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set the OMDb api_key (or export OMDB_API_KEY) before running coverdex.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults are shown")
			}
			rows := [][]string{
				{"data_dir", cfg.Paths.DataDir},
				{"covers_dir", cfg.Paths.CoversDir},
				{"log_dir", cfg.Paths.LogDir},
				{"database", cfg.DatabasePath()},
				{"vision.base_url", cfg.Vision.BaseURL},
				{"vision.title_model", cfg.Vision.TitleModel},
				{"vision.team_model", cfg.Vision.TeamModel},
				{"translation.model", cfg.Translation.Model},
				{"imdb.search_base_url", cfg.IMDb.SearchBaseURL},
				{"omdb.base_url", cfg.OMDb.BaseURL},
				{"omdb.api_key", maskSecret(cfg.OMDb.APIKey)},
				{"omdb.plot_mode", cfg.OMDb.PlotMode},
				{"workflow.max_attempts", fmt.Sprintf("%d", cfg.Workflow.MaxAttempts)},
				{"workflow.batch_limit", fmt.Sprintf("%d", cfg.Workflow.BatchLimit)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
