package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"coverdex/internal/catalog"
	"coverdex/internal/config"
	"coverdex/internal/logging"
	"coverdex/internal/pipeline"
	"coverdex/internal/stage"
)

// Handlers maps each stage to its executor.
type Handlers map[pipeline.Stage]stage.Handler

// Controller drives items through the enrichment graph. It is the
// single writer for workflow_* state; construct one per process and
// share it.
type Controller struct {
	cfg      *config.Config
	store    *catalog.Store
	logger   *slog.Logger
	handlers Handlers
	retryMap pipeline.RetryMap
}

// Option configures optional Controller behavior.
type Option func(*Controller)

// WithRetryMap overrides the stock failed-stage to retry-stage mapping.
// Changing this table changes routing behavior and the tests that pin
// it.
func WithRetryMap(m pipeline.RetryMap) Option {
	return func(c *Controller) {
		if m != nil {
			c.retryMap = m
		}
	}
}

// NewController validates the handler set and retry map up front so a
// misconfigured process fails before any node executes.
func NewController(cfg *config.Config, store *catalog.Store, logger *slog.Logger, handlers Handlers, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow: config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("workflow: store is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	for key, handler := range handlers {
		if pipeline.Index(key) < 0 {
			return nil, fmt.Errorf("workflow: unknown handler stage %s", key)
		}
		if handler == nil {
			return nil, fmt.Errorf("workflow: nil handler for stage %s", key)
		}
		if handler.Stage() != key {
			return nil, fmt.Errorf("workflow: handler for %s reports stage %s", key, handler.Stage())
		}
	}

	c := &Controller{
		cfg:      cfg,
		store:    store,
		logger:   logger.With(logging.String(logging.FieldComponent, "workflow")),
		handlers: handlers,
		retryMap: pipeline.DefaultRetryMap(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.retryMap.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	return c, nil
}

// Recover sweeps items stranded in the running state by an unclean
// shutdown back to pending. Call once at startup before the first run.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	recovered, err := c.store.RecoverStuck(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover stuck items: %w", err)
	}
	if recovered > 0 {
		c.logger.Info("recovered interrupted items",
			logging.Int("count", recovered),
			logging.String(logging.FieldEventType, "recover_sweep"),
		)
	}
	return recovered, nil
}

// MarkReview escalates an item directly, outside a run.
func (c *Controller) MarkReview(ctx context.Context, id, node, reason string) error {
	item, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %s does not exist", id)
	}
	if err := c.store.SetWorkflowReview(ctx, id, node, reason, ""); err != nil {
		return err
	}
	c.logger.Info("item escalated to review",
		logging.String(logging.FieldItemID, id),
		logging.String(logging.FieldNode, node),
		logging.String("reason", reason),
		logging.String(logging.FieldEventType, "review_escalation"),
	)
	return nil
}

// ReviewAction resolves a reviewed item: "approve" or
// "retry_from_<stage>", expressed as a full run so the usual graph
// semantics apply.
func (c *Controller) ReviewAction(ctx context.Context, id, rawAction string) (RunResult, error) {
	action, err := ParseAction(rawAction)
	if err != nil {
		return RunResult{ItemID: id, Outcome: OutcomeFailed, Err: err}, err
	}
	if action.IsZero() {
		err := fmt.Errorf("review action must not be empty")
		return RunResult{ItemID: id, Outcome: OutcomeFailed, Err: err}, err
	}
	return c.RunOne(ctx, RunRequest{ItemID: id, Action: action})
}

// Health probes every registered handler plus the store, in stage
// order, so operators can see which external dependency is down before
// starting a batch.
func (c *Controller) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(c.handlers)+1)
	for _, stg := range pipeline.Order() {
		handler, ok := c.handlers[stg]
		if !ok {
			continue
		}
		checks = append(checks, handler.HealthCheck(ctx))
	}
	if _, err := c.store.Health(ctx); err != nil {
		checks = append(checks, stage.Health{Stage: "catalog", Detail: err.Error()})
	} else {
		checks = append(checks, stage.Health{Stage: "catalog", Ready: true})
	}
	return checks
}

func (c *Controller) maxAttempts() int {
	if c.cfg.Workflow.MaxAttempts > 0 {
		return c.cfg.Workflow.MaxAttempts
	}
	return 1
}
