package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coverdex/internal/catalog"
	"coverdex/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		limitFlag int
		jsonFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show collection counts and the review queue",
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
			snapshot, err := controller.Snapshot(cmd.Context(), limitFlag, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonFlag {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(snapshot)
			}
			fmt.Fprintf(out, "Items: %d\n\n", snapshot.Total)

			stageRows := make([][]string, 0, len(snapshot.StageCounts))
			for _, bucket := range stageBuckets() {
				if count := snapshot.StageCounts[bucket]; count > 0 {
					stageRows = append(stageRows, []string{bucket, strconv.Itoa(count)})
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Next Stage", "Items"},
				stageRows,
				[]columnAlignment{alignLeft, alignRight},
			))

			statusRows := make([][]string, 0, len(snapshot.StatusCounts))
			for _, status := range catalog.AllStatuses() {
				if count := snapshot.StatusCounts[status]; count > 0 {
					statusRows = append(statusRows, []string{string(status), strconv.Itoa(count)})
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Items"},
				statusRows,
				[]columnAlignment{alignLeft, alignRight},
			))

			if len(snapshot.RunningNodes) > 0 {
				nodes := make([]string, 0, len(snapshot.RunningNodes))
				for node := range snapshot.RunningNodes {
					nodes = append(nodes, node)
				}
				sort.Strings(nodes)
				parts := make([]string, 0, len(nodes))
				for _, node := range nodes {
					parts = append(parts, fmt.Sprintf("%s (%d)", node, snapshot.RunningNodes[node]))
				}
				fmt.Fprintf(out, "In flight: %s\n", strings.Join(parts, ", "))
			}

			if len(snapshot.Review) > 0 {
				header := fmt.Sprintf("Review queue (%d):", len(snapshot.Review))
				if isTerminal(out) {
					header = ansiYellow + header + ansiReset
				}
				fmt.Fprintf(out, "\n%s\n", header)
				fmt.Fprintln(out, renderReviewTable(snapshot.Review))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Snapshot window size, defaults to workflow.snapshot_limit")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the snapshot as JSON")
	return cmd
}

// stageBuckets fixes the display order: pipeline stages first, then the
// terminal buckets.
func stageBuckets() []string {
	buckets := make([]string, 0, 8)
	for _, stage := range pipeline.DeriveStages() {
		buckets = append(buckets, string(stage))
	}
	return append(buckets, "running", pipeline.DeriveReview, pipeline.DeriveDone)
}

func renderReviewTable(items []*catalog.Item) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		title := item.EffectiveTitle()
		if title == "" {
			title = item.DisplayTitle
		}
		rows = append(rows, []string{
			item.ID,
			truncate(title, 40),
			truncate(item.WorkflowReviewReason, 60),
			strconv.Itoa(item.WorkflowAttempt),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Reason", "Attempts"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	if max <= 3 {
		return text[:max]
	}
	return text[:max-3] + "..."
}
