package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"coverdex/internal/catalog"
	"coverdex/internal/logging"
	"coverdex/internal/pipeline"
	"coverdex/internal/services"
	"coverdex/internal/stage"
)

// RunOne drives a single item through the graph: load, apply_action,
// the stage chain, then evaluate with its retry loop. Stage errors
// never escape; they are captured into the run state and routed to
// retry or review. Only load and action validation fail the call
// itself.
func (c *Controller) RunOne(ctx context.Context, req RunRequest) (RunResult, error) {
	state, err := c.newRunState(req)
	if err != nil {
		return RunResult{ItemID: req.ItemID, Outcome: OutcomeFailed, Err: err}, err
	}

	ctx = services.WithItemID(ctx, req.ItemID)
	ctx = services.WithRequestID(ctx, state.requestID)
	logger := logging.WithContext(ctx, c.logger)

	item, err := c.store.GetByID(ctx, req.ItemID)
	if err != nil {
		return c.failResult(state, err), err
	}
	if item == nil {
		err := fmt.Errorf("item %s does not exist", req.ItemID)
		return c.failResult(state, err), err
	}
	state.attempt = item.WorkflowAttempt

	item, result, handled, err := c.applyAction(ctx, logger, state, item)
	if handled || err != nil {
		return result, err
	}

	return c.runStages(ctx, logger, state, item)
}

// RunBatch computes the target set once up front, then runs each item
// sequentially. The single-writer model makes the per-item runs safe to
// interleave with readers.
func (c *Controller) RunBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	start := req.StartStage
	if start == "" {
		start = pipeline.StageExtraction
	}
	if pipeline.Index(start) < 0 {
		return BatchResult{}, fmt.Errorf("unknown start stage: %s", start)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = c.cfg.Workflow.BatchLimit
	}

	ids, err := c.store.IDsForWorkflow(ctx, string(start), limit, req.Overwrite)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Requested: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		run, err := c.RunOne(ctx, RunRequest{
			ItemID:      id,
			StartStage:  start,
			StopStage:   req.StopStage,
			Action:      req.Action,
			Overwrite:   req.Overwrite,
			MaxAttempts: req.MaxAttempts,
			Stage:       req.Stage,
		})
		result.Items = append(result.Items, run)
		if err == nil {
			result.Processed++
		}
	}
	c.logger.Info("batch finished",
		logging.Int("requested", result.Requested),
		logging.Int("processed", result.Processed),
		logging.String(logging.FieldStage, string(start)),
		logging.String(logging.FieldEventType, "batch_complete"),
	)
	return result, nil
}

// newRunState validates the request before any node executes.
func (c *Controller) newRunState(req RunRequest) (*runState, error) {
	if req.ItemID == "" {
		return nil, fmt.Errorf("item id is required")
	}
	start := req.StartStage
	if start == "" {
		start = pipeline.StageExtraction
	}
	stop := req.StopStage
	if stop == "" {
		stop = pipeline.StageTranslation
	}
	if pipeline.Index(start) < 0 {
		return nil, fmt.Errorf("unknown start stage: %s", start)
	}
	if pipeline.Index(stop) < 0 {
		return nil, fmt.Errorf("unknown stop stage: %s", stop)
	}
	if !pipeline.AtOrAfter(stop, start) {
		return nil, fmt.Errorf("stop stage %s precedes start stage %s", stop, start)
	}
	budget := req.MaxAttempts
	if budget <= 0 {
		budget = c.maxAttempts()
	}
	return &runState{
		req:         req,
		requestID:   uuid.NewString(),
		maxAttempts: budget,
		overwrite:   req.Overwrite,
		start:       start,
		stop:        stop,
	}, nil
}

// applyAction executes the operator action ahead of the stage chain.
// Approve is terminal; retry_from resets the target stage's fields,
// bumps the attempt counter once and restarts there with overwrite.
func (c *Controller) applyAction(ctx context.Context, logger *slog.Logger, state *runState, item *catalog.Item) (*catalog.Item, RunResult, bool, error) {
	action := state.req.Action
	if action.IsZero() {
		return item, RunResult{}, false, nil
	}

	if action.Approve {
		if err := c.store.ResetWorkflowAttempt(ctx, item.ID); err != nil {
			return item, c.failResult(state, err), true, err
		}
		if err := c.store.SetWorkflowDone(ctx, item.ID, NodeDone, "approve"); err != nil {
			return item, c.failResult(state, err), true, err
		}
		logger.Info("item approved",
			logging.String(logging.FieldNode, NodeApplyAction),
			logging.String(logging.FieldEventType, "action_approve"),
		)
		return item, RunResult{
			ItemID:    item.ID,
			RequestID: state.requestID,
			Outcome:   OutcomeApproved,
			Derived:   pipeline.DeriveDone,
		}, true, nil
	}

	if err := c.store.ResetFromStage(ctx, item.ID, string(action.RetryFrom)); err != nil {
		return item, c.failResult(state, err), true, err
	}
	attempt, err := c.store.IncrementWorkflowAttempt(ctx, item.ID)
	if err != nil {
		return item, c.failResult(state, err), true, err
	}
	state.attempt = attempt
	state.start = action.RetryFrom
	state.overwrite = true
	logger.Info("retry action applied",
		logging.String(logging.FieldNode, NodeApplyAction),
		logging.String(logging.FieldStage, string(action.RetryFrom)),
		logging.Int("attempt", attempt),
		logging.String(logging.FieldEventType, "action_retry"),
	)

	item, err = c.store.GetByID(ctx, item.ID)
	if err != nil {
		return nil, c.failResult(state, err), true, err
	}
	return item, RunResult{}, false, nil
}

// runStages walks the chain from the run's start stage, feeding
// failures to the evaluate node until the item completes, stalls, or
// exhausts its attempt budget.
func (c *Controller) runStages(ctx context.Context, logger *slog.Logger, state *runState, item *catalog.Item) (RunResult, error) {
	for {
		state.failure = nil
		state.failedNode = ""

		startIdx := pipeline.Index(state.start)
		stopIdx := pipeline.Index(state.stop)

		for _, stg := range pipeline.Order() {
			idx := pipeline.Index(stg)
			if idx < startIdx || idx > stopIdx {
				continue
			}
			if stg == pipeline.StageTitleES {
				c.runBestEffortStage(ctx, logger, state, item, stg)
				continue
			}
			if !state.overwrite && pipeline.StageComplete(stg, item) {
				continue
			}
			if err := c.runStage(ctx, logger, state, item, stg); err != nil {
				state.failure = err
				state.failedNode = stg
				break
			}
		}

		result, retry := c.evaluate(ctx, logger, state, item)
		if !retry {
			return result, nil
		}

		refreshed, err := c.store.GetByID(ctx, item.ID)
		if err != nil {
			return c.failResult(state, err), err
		}
		item = refreshed
	}
}

func (c *Controller) runStage(ctx context.Context, logger *slog.Logger, state *runState, item *catalog.Item, stg pipeline.Stage) error {
	handler, ok := c.handlers[stg]
	if !ok {
		return services.Wrap(services.ErrConfiguration, string(stg), "execute",
			fmt.Sprintf("no handler registered for stage %s", stg), nil)
	}

	node := NodeForStage(stg)
	ctx = services.WithStage(ctx, string(stg))
	stageLogger := logging.WithContext(ctx, logger)

	if err := c.store.SetWorkflowRunning(ctx, item.ID, node, ""); err != nil {
		return err
	}
	stageLogger.Info("stage started",
		logging.String(logging.FieldNode, node),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	if err := handler.Execute(ctx, item, stage.RunConfig{Overwrite: state.overwrite, Options: state.req.Stage}); err != nil {
		// Persist whatever partial output the handler wrote before the
		// failure so operators can inspect it.
		if updateErr := c.store.Update(ctx, item); updateErr != nil {
			stageLogger.Error("failed to persist partial stage output", logging.Error(updateErr))
		}
		if setErr := c.store.SetWorkflowError(ctx, item.ID, node, err.Error()); setErr != nil {
			stageLogger.Error("failed to record stage error", logging.Error(setErr))
		}
		stageLogger.Error("stage failed",
			logging.String(logging.FieldNode, node),
			logging.Error(err),
			logging.String(logging.FieldEventType, "stage_failure"),
		)
		return err
	}

	if err := c.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldNode, node),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return nil
}

// runBestEffortStage executes the Spanish title fetch. Its failures are
// recorded on the item but never fail the run and never consume the
// attempt budget.
func (c *Controller) runBestEffortStage(ctx context.Context, logger *slog.Logger, state *runState, item *catalog.Item, stg pipeline.Stage) {
	handler, ok := c.handlers[stg]
	if !ok {
		return
	}
	if !state.overwrite && pipeline.StageComplete(stg, item) {
		return
	}
	node := NodeForStage(stg)
	if err := c.store.SetWorkflowRunning(ctx, item.ID, node, ""); err != nil {
		logger.Error("failed to mark best-effort stage running", logging.Error(err))
		return
	}
	if err := handler.Execute(ctx, item, stage.RunConfig{Overwrite: state.overwrite, Options: state.req.Stage}); err != nil {
		logger.Warn("best-effort stage failed",
			logging.String(logging.FieldNode, node),
			logging.Error(err),
			logging.String(logging.FieldEventType, "stage_skipped"),
		)
	}
	if err := c.store.Update(ctx, item); err != nil {
		logger.Error("failed to persist best-effort stage output", logging.Error(err))
	}
}

// evaluate routes the run: a failure either consumes one attempt and
// loops back to the mapped retry stage, or escalates to review with the
// failing node named first in the reason. A clean pass derives the
// item's next stage and finishes as done, partial, or pending.
func (c *Controller) evaluate(ctx context.Context, logger *slog.Logger, state *runState, item *catalog.Item) (RunResult, bool) {
	if state.failure != nil {
		node := NodeForStage(state.failedNode)
		attempt, err := c.store.IncrementWorkflowAttempt(ctx, item.ID)
		if err != nil {
			logger.Error("failed to increment attempt counter", logging.Error(err))
			attempt = state.attempt + 1
		}
		state.attempt = attempt

		if services.Retryable(state.failure) && attempt <= state.maxAttempts {
			target := c.retryMap.Target(state.failedNode)
			// Clear the mapped stage and everything downstream so the re-run
			// starts from clean fields instead of trusting handlers to
			// overwrite every stale output.
			if err := c.store.ResetFromStage(ctx, item.ID, string(target)); err != nil {
				logger.Error("failed to reset retry stage", logging.Error(err))
			}
			logger.Info("retrying failed stage",
				logging.String(logging.FieldNode, NodeRetry),
				logging.String(logging.FieldStage, string(target)),
				logging.Int("attempt", attempt),
				logging.String(logging.FieldEventType, "stage_retry"),
			)
			state.start = target
			state.overwrite = true
			return RunResult{}, true
		}

		reason := fmt.Sprintf("%s: %v", node, state.failure)
		if err := c.store.SetWorkflowReview(ctx, item.ID, node, reason, state.failure.Error()); err != nil {
			logger.Error("failed to escalate to review", logging.Error(err))
		}
		logger.Warn("attempts exhausted, escalated to review",
			logging.String(logging.FieldNode, node),
			logging.Int("attempt", attempt),
			logging.String(logging.FieldEventType, "review_escalation"),
		)
		return RunResult{
			ItemID:     item.ID,
			RequestID:  state.requestID,
			Outcome:    OutcomeReview,
			Derived:    pipeline.DeriveReview,
			FailedNode: node,
			Attempts:   attempt,
			Err:        state.failure,
		}, false
	}

	refreshed, err := c.store.GetByID(ctx, item.ID)
	if err != nil || refreshed == nil {
		if err == nil {
			err = fmt.Errorf("item %s disappeared mid-run", item.ID)
		}
		logger.Error("failed to reload item for evaluation", logging.Error(err))
		return c.failResult(state, err), false
	}
	// The row still says running; derive against the pending view so the
	// answer reflects field completeness, not the in-flight marker.
	refreshed.WorkflowStatus = catalog.StatusPending
	derived := pipeline.DeriveStage(refreshed)

	if derived == pipeline.DeriveDone {
		if err := c.store.SetWorkflowDone(ctx, item.ID, NodeDone, ""); err != nil {
			logger.Error("failed to mark item done", logging.Error(err))
		}
		logger.Info("workflow completed",
			logging.String(logging.FieldNode, NodeDone),
			logging.String(logging.FieldEventType, "workflow_done"),
		)
		return RunResult{
			ItemID:    item.ID,
			RequestID: state.requestID,
			Outcome:   OutcomeDone,
			Derived:   derived,
			Attempts:  state.attempt,
		}, false
	}

	node := NodePaused
	if state.req.StopStage != "" {
		node = PausedNode(state.stop)
	}
	reason := fmt.Sprintf("stopped with %s remaining", derived)
	if err := c.store.SetWorkflowPending(ctx, item.ID, node, reason); err != nil {
		logger.Error("failed to mark item pending", logging.Error(err))
	}
	logger.Info("run left work remaining",
		logging.String(logging.FieldNode, node),
		logging.String("derived", derived),
		logging.String(logging.FieldEventType, "workflow_partial"),
	)
	return RunResult{
		ItemID:    item.ID,
		RequestID: state.requestID,
		Outcome:   OutcomePartial,
		Derived:   derived,
		Attempts:  state.attempt,
	}, false
}

func (c *Controller) failResult(state *runState, err error) RunResult {
	return RunResult{
		ItemID:    state.req.ItemID,
		RequestID: state.requestID,
		Outcome:   OutcomeFailed,
		Err:       err,
	}
}
