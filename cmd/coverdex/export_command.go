package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write the catalog as tab-separated values",
		Long: "Dumps every item's enrichment columns as TSV, one row per item.\n" +
			"With a path the file is created (parent directories included);\n" +
			"without one the rows stream to stdout.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				_, err := store.ExportTSV(cmd.Context(), cmd.OutOrStdout())
				return err
			}

			path := args[0]
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create export directory: %w", err)
			}
			file, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			count, err := store.ExportTSV(cmd.Context(), file)
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			cmd.Printf("Exported %d item(s) to %s\n", count, path)
			return nil
		},
	}
}
