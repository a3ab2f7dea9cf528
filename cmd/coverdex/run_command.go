package main

import (
	"github.com/spf13/cobra"

	"coverdex/internal/pipeline"
	"coverdex/internal/stage"
	"coverdex/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		stageFlag       string
		stopFlag        string
		overwriteFlag   bool
		limitFlag       int
		actionFlag      string
		maxAttemptsFlag int
		stageOpts       stage.Options
	)

	cmd := &cobra.Command{
		Use:   "run [item-id]",
		Short: "Run the enrichment workflow for one item or a batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if _, err := controller.Recover(cmd.Context()); err != nil {
				return err
			}

			start, stop, err := parseStageFlags(stageFlag, stopFlag)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				action, err := workflow.ParseAction(actionFlag)
				if err != nil {
					return err
				}
				result, err := controller.RunOne(cmd.Context(), workflow.RunRequest{
					ItemID:      args[0],
					StartStage:  start,
					StopStage:   stop,
					Action:      action,
					Overwrite:   overwriteFlag,
					MaxAttempts: maxAttemptsFlag,
					Stage:       stageOpts,
				})
				if err != nil {
					return err
				}
				printRunResult(cmd, result)
				return nil
			}

			action, err := workflow.ParseAction(actionFlag)
			if err != nil {
				return err
			}
			batch, err := controller.RunBatch(cmd.Context(), workflow.BatchRequest{
				StartStage:  start,
				StopStage:   stop,
				Limit:       limitFlag,
				Action:      action,
				Overwrite:   overwriteFlag,
				MaxAttempts: maxAttemptsFlag,
				Stage:       stageOpts,
			})
			if err != nil {
				return err
			}
			cmd.Printf("Batch finished: %d requested, %d processed\n", batch.Requested, batch.Processed)
			for _, result := range batch.Items {
				printRunResult(cmd, result)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stageFlag, "stage", "", "Start stage (extraction, imdb, title_es, omdb, translation)")
	cmd.Flags().StringVar(&stopFlag, "stop", "", "Stop stage, defaults to the last stage")
	cmd.Flags().BoolVar(&overwriteFlag, "overwrite", false, "Re-run stages whose output already looks complete")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Batch size limit, defaults to workflow.batch_limit")
	cmd.Flags().StringVar(&actionFlag, "action", "", "Action to apply first: approve or retry_from_<stage>")
	cmd.Flags().IntVar(&maxAttemptsFlag, "max-attempts", 0, "Retry budget for this run, defaults to workflow.max_attempts")
	cmd.Flags().StringVar(&stageOpts.TitleModel, "title-model", "", "Vision model for title extraction, defaults to vision.title_model")
	cmd.Flags().StringVar(&stageOpts.TeamModel, "team-model", "", "Vision model for credits extraction, defaults to vision.team_model")
	cmd.Flags().StringVar(&stageOpts.TranslationModel, "translation-model", "", "Model for plot translation, defaults to translation.model")
	cmd.Flags().IntVar(&stageOpts.MaxResults, "max-results", 0, "Suggestion results considered per title, defaults to imdb.max_results")

	return cmd
}

func parseStageFlags(start, stop string) (pipeline.Stage, pipeline.Stage, error) {
	var startStage, stopStage pipeline.Stage
	if start != "" {
		parsed, err := pipeline.ParseStage(start)
		if err != nil {
			return "", "", err
		}
		startStage = parsed
	}
	if stop != "" {
		parsed, err := pipeline.ParseStage(stop)
		if err != nil {
			return "", "", err
		}
		stopStage = parsed
	}
	return startStage, stopStage, nil
}

func printRunResult(cmd *cobra.Command, result workflow.RunResult) {
	switch result.Outcome {
	case workflow.OutcomeReview:
		cmd.Printf("%s: needs review (%s)\n", result.ItemID, result.FailedNode)
	case workflow.OutcomePartial:
		cmd.Printf("%s: %s remaining\n", result.ItemID, result.Derived)
	case workflow.OutcomeFailed:
		cmd.Printf("%s: failed: %v\n", result.ItemID, result.Err)
	default:
		cmd.Printf("%s: %s\n", result.ItemID, result.Outcome)
	}
}
