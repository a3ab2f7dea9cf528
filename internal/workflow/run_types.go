package workflow

import (
	"fmt"
	"strings"

	"coverdex/internal/pipeline"
	"coverdex/internal/stage"
)

// Action is an operator instruction applied before any stage node runs.
type Action struct {
	// Approve short-circuits the run: clear review, mark done.
	Approve bool
	// RetryFrom names the stage whose fields are reset before the run
	// restarts there with overwrite.
	RetryFrom pipeline.Stage
}

// IsZero reports whether the action is a no-op.
func (a Action) IsZero() bool {
	return !a.Approve && a.RetryFrom == ""
}

// ParseAction turns an operator string into an Action. Recognized forms
// are "", "none", "approve" and "retry_from_<stage>".
func ParseAction(raw string) (Action, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch text {
	case "", "none":
		return Action{}, nil
	case "approve":
		return Action{Approve: true}, nil
	}
	if name, ok := strings.CutPrefix(text, "retry_from_"); ok {
		parsed, err := pipeline.ParseStage(name)
		if err != nil {
			return Action{}, fmt.Errorf("invalid action %q: %w", raw, err)
		}
		return Action{RetryFrom: parsed}, nil
	}
	return Action{}, fmt.Errorf("invalid action %q", raw)
}

// RunRequest describes one controller invocation against one item.
// MaxAttempts and Stage override the configured defaults for this run
// only; zero values fall back to config.
type RunRequest struct {
	ItemID      string
	StartStage  pipeline.Stage
	StopStage   pipeline.Stage
	Action      Action
	Overwrite   bool
	MaxAttempts int
	Stage       stage.Options
}

// BatchRequest drives a sequential run over every item whose persisted
// fields leave StartStage incomplete. Action, when set, is applied to
// every selected item; the selection includes review items, so a batch
// approve or retry_from clears the review queue in bulk.
type BatchRequest struct {
	StartStage  pipeline.Stage
	StopStage   pipeline.Stage
	Limit       int
	Action      Action
	Overwrite   bool
	MaxAttempts int
	Stage       stage.Options
}

// Outcome is the closed set of run results.
type Outcome string

const (
	// OutcomeApproved: an approve action short-circuited the run.
	OutcomeApproved Outcome = "approved"
	// OutcomeDone: every gating stage is complete.
	OutcomeDone Outcome = "done"
	// OutcomePartial: the run stopped before the last stage and work
	// remains downstream.
	OutcomePartial Outcome = "partial"
	// OutcomeReview: the attempt budget is spent, a human has the item.
	OutcomeReview Outcome = "review"
	// OutcomeFailed: the run itself could not proceed (missing item,
	// invalid request); nothing was retried.
	OutcomeFailed Outcome = "failed"
)

// RunResult reports what one run did.
type RunResult struct {
	ItemID     string
	RequestID  string
	Outcome    Outcome
	Derived    string
	FailedNode string
	Attempts   int
	Err        error
}

// BatchResult aggregates sequential runs.
type BatchResult struct {
	Requested int
	Processed int
	Items     []RunResult
}

// runState is the in-memory context threaded through the graph nodes of
// a single run.
type runState struct {
	req         RunRequest
	requestID   string
	attempt     int
	maxAttempts int
	failedNode  pipeline.Stage
	failure     error
	overwrite   bool
	start       pipeline.Stage
	stop        pipeline.Stage
}
