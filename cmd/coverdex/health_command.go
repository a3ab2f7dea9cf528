package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the stage dependencies and the catalog database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			controller, err := ctx.newController(store)
			if err != nil {
				return err
			}

			ready := true
			rows := make([][]string, 0, 8)
			for _, check := range controller.Health(cmd.Context()) {
				state := "ok"
				if !check.Ready {
					state = "down"
					ready = false
				}
				rows = append(rows, []string{string(check.Stage), state, check.Detail})
			}
			cmd.Println(renderTable(
				[]string{"Component", "State", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if !ready {
				return fmt.Errorf("one or more components are not ready")
			}
			return nil
		},
	}
}
