// Package pipeline defines the fixed enrichment stage order, the
// failed-stage to retry-stage mapping, and the completeness evaluator
// that decides which stage an item needs next.
package pipeline

import (
	"fmt"
	"strings"
)

// Stage identifies one enrichment step. Stages form a total order used
// both for start-stage comparisons and for rewinding a failed stage to
// its upstream dependency.
type Stage string

const (
	StageExtraction  Stage = "extraction"
	StageIMDb        Stage = "imdb"
	StageTitleES     Stage = "title_es"
	StageOMDb        Stage = "omdb"
	StageTranslation Stage = "translation"
)

var stageOrder = []Stage{
	StageExtraction,
	StageIMDb,
	StageTitleES,
	StageOMDb,
	StageTranslation,
}

// deriveStages is the subset the completeness evaluator walks. The
// Spanish title fetch is best effort and never blocks advancement.
var deriveStages = []Stage{
	StageExtraction,
	StageIMDb,
	StageOMDb,
	StageTranslation,
}

// Order returns all stages in execution order.
func Order() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// DeriveStages returns the stages that gate advancement, in order.
func DeriveStages() []Stage {
	out := make([]Stage, len(deriveStages))
	copy(out, deriveStages)
	return out
}

// ParseStage validates a user-supplied stage name.
func ParseStage(name string) (Stage, error) {
	candidate := Stage(strings.ToLower(strings.TrimSpace(name)))
	for _, stage := range stageOrder {
		if stage == candidate {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %s", name)
}

// Index returns the position of stage in the total order, or -1 for an
// unknown stage.
func Index(stage Stage) int {
	for i, candidate := range stageOrder {
		if candidate == stage {
			return i
		}
	}
	return -1
}

// AtOrAfter reports whether stage runs at or after reference.
func AtOrAfter(stage, reference Stage) bool {
	si, ri := Index(stage), Index(reference)
	return si >= 0 && ri >= 0 && si >= ri
}

// RetryMap maps a failed stage to the stage a retry restarts from.
type RetryMap map[Stage]Stage

// DefaultRetryMap returns the stock mapping. A metadata fetch failure
// rewinds to the search stage so a stale IMDb match can be replaced;
// every other stage retries itself.
func DefaultRetryMap() RetryMap {
	return RetryMap{
		StageExtraction:  StageExtraction,
		StageIMDb:        StageIMDb,
		StageTitleES:     StageTitleES,
		StageOMDb:        StageIMDb,
		StageTranslation: StageTranslation,
	}
}

// Target resolves the retry start stage for a failed stage. Unknown
// stages retry themselves.
func (m RetryMap) Target(failed Stage) Stage {
	if target, ok := m[failed]; ok {
		return target
	}
	return failed
}

// Validate rejects a retry map that names unknown stages or rewinds
// forward past the failed stage.
func (m RetryMap) Validate() error {
	for failed, target := range m {
		if Index(failed) < 0 {
			return fmt.Errorf("retry map: unknown failed stage %s", failed)
		}
		if Index(target) < 0 {
			return fmt.Errorf("retry map: unknown target stage %s", target)
		}
		if Index(target) > Index(failed) {
			return fmt.Errorf("retry map: %s may not retry forward to %s", failed, target)
		}
	}
	return nil
}
