package pipeline

import (
	"strings"

	"coverdex/internal/catalog"
	"coverdex/internal/multivalue"
)

// Sentinel results from DeriveStage alongside the stage names.
const (
	DeriveReview  = "review"
	DeriveDone    = "done"
	RunningPrefix = "running:"
)

// StageComplete reports whether an item's persisted fields satisfy the
// given stage. Composite driving fields require the output to carry the
// same number of parts; a single-part driving field only requires a
// non-empty output. Pure function over the snapshot, no store access.
func StageComplete(stage Stage, item *catalog.Item) bool {
	if item == nil {
		return false
	}
	switch stage {
	case StageExtraction:
		return strings.TrimSpace(item.ExtractionTitle) != "" &&
			strings.TrimSpace(item.ExtractionTeam) != ""
	case StageIMDb:
		driving := item.EffectiveTitle()
		if strings.TrimSpace(driving) == "" {
			return false
		}
		return partsMatch(driving, item.IMDbURL, multivalue.Separator)
	case StageTitleES:
		if strings.TrimSpace(item.IMDbURL) == "" {
			return false
		}
		return strings.TrimSpace(item.IMDbTitleES) != ""
	case StageOMDb:
		driving := item.IMDbID
		if strings.TrimSpace(driving) == "" {
			return false
		}
		if item.OMDbStatus != "fetched" {
			return false
		}
		return partsMatch(driving, item.OMDbTitle, multivalue.Separator)
	case StageTranslation:
		// Nothing to translate is complete.
		if strings.TrimSpace(item.OMDbPlotEN) == "" {
			return true
		}
		return partsMatch(item.OMDbPlotEN, item.OMDbPlotES, multivalue.PlotSeparator)
	default:
		return false
	}
}

// DeriveStage classifies an item snapshot: "review" when flagged,
// "running:<node>" while a run is in flight, otherwise the first
// incomplete gating stage, or "done" when everything is satisfied.
func DeriveStage(item *catalog.Item) string {
	if item == nil {
		return string(StageExtraction)
	}
	if item.WorkflowNeedsReview {
		return DeriveReview
	}
	if item.IsRunning() {
		return RunningPrefix + item.WorkflowCurrentNode
	}
	for _, stage := range deriveStages {
		if !StageComplete(stage, item) {
			return string(stage)
		}
	}
	return DeriveDone
}

// partsMatch checks an output field against its driving field: with one
// driving part the output just has to be non-empty, with K parts the
// output needs exactly K.
func partsMatch(driving, output, separator string) bool {
	k := multivalue.CountWith(driving, separator)
	if k <= 1 {
		return strings.TrimSpace(output) != ""
	}
	return multivalue.CountWith(output, separator) == k
}
