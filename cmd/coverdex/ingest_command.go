package main

import (
	"github.com/spf13/cobra"

	"coverdex/internal/ingest"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Register cover images from the covers directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			release, err := ctx.acquireLock()
			if err != nil {
				return err
			}
			defer release()

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			created, err := ingest.Scan(cmd.Context(), store, cfg.Paths.CoversDir, logger)
			if err != nil {
				return err
			}
			cmd.Printf("Registered %d new cover(s)\n", len(created))
			for _, id := range created {
				cmd.Printf("  %s\n", id)
			}

			if !watchFlag {
				return nil
			}

			watcher, err := ingest.NewWatcher(store, cfg.Paths.CoversDir, logger)
			if err != nil {
				return err
			}
			defer watcher.Close()
			cmd.Printf("Watching %s for new covers...\n", cfg.Paths.CoversDir)
			return watcher.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Keep running and register covers as they appear")
	return cmd
}
