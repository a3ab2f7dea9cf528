package workflow

import (
	"context"
	"strings"

	"coverdex/internal/catalog"
	"coverdex/internal/pipeline"
)

// Snapshot is a pure read aggregation over a capped window of items.
// All counts are zero on an empty collection.
type Snapshot struct {
	Total        int
	StageCounts  map[string]int
	StatusCounts map[catalog.Status]int
	RunningNodes map[string]int
	Review       []*catalog.Item
	Items        []*catalog.Item
}

// Snapshot derives each item's next stage and buckets the window by
// derived stage, workflow status, and in-flight node, then lists the
// review queue ordered by identifier.
func (c *Controller) Snapshot(ctx context.Context, limit, reviewLimit int) (*Snapshot, error) {
	if limit <= 0 {
		limit = c.cfg.Workflow.SnapshotLimit
	}
	if reviewLimit <= 0 {
		reviewLimit = c.cfg.Workflow.ReviewLimit
	}

	items, err := c.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Total:        len(items),
		StageCounts:  make(map[string]int),
		StatusCounts: make(map[catalog.Status]int),
		RunningNodes: make(map[string]int),
		Items:        items,
	}
	for _, item := range items {
		derived := pipeline.DeriveStage(item)
		snap.StatusCounts[item.WorkflowStatus]++
		if node, ok := strings.CutPrefix(derived, pipeline.RunningPrefix); ok {
			snap.RunningNodes[node]++
			snap.StageCounts["running"]++
			continue
		}
		snap.StageCounts[derived]++
	}

	review, err := c.store.ListReview(ctx, reviewLimit)
	if err != nil {
		return nil, err
	}
	snap.Review = review
	return snap, nil
}
