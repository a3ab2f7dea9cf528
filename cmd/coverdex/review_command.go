package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coverdex/internal/pipeline"
	"coverdex/internal/workflow"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve items flagged for manual review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newReviewListCommand(ctx))
	cmd.AddCommand(newReviewApproveCommand(ctx))
	cmd.AddCommand(newReviewRetryCommand(ctx))
	cmd.AddCommand(newReviewMarkCommand(ctx))
	return cmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the review queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			limit := limitFlag
			if limit <= 0 {
				limit = cfg.Workflow.ReviewLimit
			}
			items, err := store.ListReview(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println("Review queue is empty")
				return nil
			}
			cmd.Println(renderReviewTable(items))
			return nil
		},
	}
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum entries, defaults to workflow.review_limit")
	return cmd
}

func newReviewApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <item-id>",
		Short: "Approve an item as-is and mark it done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviewAction(ctx, cmd, args[0], "approve")
		},
	}
}

func newReviewRetryCommand(ctx *commandContext) *cobra.Command {
	var fromFlag string

	cmd := &cobra.Command{
		Use:   "retry <item-id>",
		Short: "Reset a stage and re-run the workflow from there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := pipeline.ParseStage(fromFlag)
			if err != nil {
				return err
			}
			return runReviewAction(ctx, cmd, args[0], "retry_from_"+string(stage))
		},
	}
	cmd.Flags().StringVar(&fromFlag, "from", "", "Stage to reset and restart from (required)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newReviewMarkCommand(ctx *commandContext) *cobra.Command {
	var reasonFlag string

	cmd := &cobra.Command{
		Use:   "mark <item-id>",
		Short: "Escalate an item to manual review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reasonFlag == "" {
				return fmt.Errorf("--reason is required")
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			controller, err := ctx.newController(store)
			if err != nil {
				return err
			}
			if err := controller.MarkReview(cmd.Context(), args[0], "operator", reasonFlag); err != nil {
				return err
			}
			cmd.Printf("%s: marked for review\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reasonFlag, "reason", "", "Why the item needs a human (required)")
	return cmd
}

func runReviewAction(ctx *commandContext, cmd *cobra.Command, id, action string) error {
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

	controller, err := ctx.newController(store)
	if err != nil {
		return err
	}
	result, err := controller.ReviewAction(cmd.Context(), id, action)
	if err != nil {
		return err
	}
	printRunResult(cmd, result)
	if result.Outcome == workflow.OutcomeReview {
		cmd.Println("Item is back in the review queue")
	}
	return nil
}
