package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetWorkflowRunning marks an item as mid-run at the given graph node.
func (s *Store) SetWorkflowRunning(ctx context.Context, id, node, action string) error {
	now := time.Now().UTC()
	query := `UPDATE items SET workflow_status = ?, workflow_current_node = ?, workflow_last_error = '', updated_at = ?`
	args := []any{string(StatusRunning), node, timestamp(now)}
	if strings.TrimSpace(action) != "" {
		query += `, workflow_last_action = ?`
		args = append(args, action)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.execWithRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("set workflow running: %w", err)
	}
	return s.appendEvent(ctx, id, Event{
		Timestamp: now,
		Type:      EventRunning,
		Node:      node,
		Message:   fmt.Sprintf("Running node %s", node),
	})
}

// SetWorkflowPending returns an item to the idle state, typically after a
// pause or recovery sweep.
func (s *Store) SetWorkflowPending(ctx context.Context, id, node, reason string) error {
	now := time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET workflow_status = ?, workflow_current_node = ?, workflow_last_error = '', updated_at = ?
         WHERE id = ?`,
		string(StatusPending), node, timestamp(now), id,
	); err != nil {
		return fmt.Errorf("set workflow pending: %w", err)
	}
	return s.appendEvent(ctx, id, Event{
		Timestamp: now,
		Type:      EventPending,
		Node:      node,
		Message:   reason,
	})
}

// SetWorkflowError records a node-level failure without leaving the running
// state; routing to retry or review is the evaluate node's call.
func (s *Store) SetWorkflowError(ctx context.Context, id, node, errMsg string) error {
	now := time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET workflow_status = ?, workflow_current_node = ?, workflow_last_error = ?, updated_at = ?
         WHERE id = ?`,
		string(StatusRunning), node, errMsg, timestamp(now), id,
	); err != nil {
		return fmt.Errorf("set workflow error: %w", err)
	}
	return s.appendEvent(ctx, id, Event{
		Timestamp: now,
		Type:      EventError,
		Node:      node,
		Message:   errMsg,
	})
}

// SetWorkflowReview escalates an item to manual review.
func (s *Store) SetWorkflowReview(ctx context.Context, id, node, reason, errMsg string) error {
	now := time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET workflow_status = ?, workflow_current_node = ?, workflow_needs_review = 1,
            workflow_review_reason = ?, workflow_last_error = ?, updated_at = ?
         WHERE id = ?`,
		string(StatusReview), node, reason, errMsg, timestamp(now), id,
	); err != nil {
		return fmt.Errorf("set workflow review: %w", err)
	}
	return s.appendEvent(ctx, id, Event{
		Timestamp: now,
		Type:      EventReview,
		Node:      node,
		Message:   reason,
	})
}

// ClearWorkflowReview drops the review flag and reason without touching the
// rest of the workflow state.
func (s *Store) ClearWorkflowReview(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET workflow_needs_review = 0, workflow_review_reason = '', updated_at = ?
         WHERE id = ?`,
		timestamp(time.Now()), id,
	); err != nil {
		return fmt.Errorf("clear workflow review: %w", err)
	}
	return nil
}

// SetWorkflowDone marks an item as fully enriched or manually approved.
func (s *Store) SetWorkflowDone(ctx context.Context, id, node, action string) error {
	now := time.Now().UTC()
	query := `UPDATE items SET workflow_status = ?, workflow_current_node = ?, workflow_needs_review = 0,
        workflow_review_reason = '', workflow_last_error = '', updated_at = ?`
	args := []any{string(StatusDone), node, timestamp(now)}
	if strings.TrimSpace(action) != "" {
		query += `, workflow_last_action = ?`
		args = append(args, action)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.execWithRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("set workflow done: %w", err)
	}
	return s.appendEvent(ctx, id, Event{
		Timestamp: now,
		Type:      EventDone,
		Node:      node,
		Message:   "Workflow completed",
	})
}

// IncrementWorkflowAttempt bumps the persisted attempt counter and returns
// the new value.
func (s *Store) IncrementWorkflowAttempt(ctx context.Context, id string) (int, error) {
	var current int
	err := s.db.QueryRowContext(ctx, `SELECT workflow_attempt FROM items WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("item %s does not exist", id)
	}
	if err != nil {
		return 0, fmt.Errorf("read workflow attempt: %w", err)
	}

	next := current + 1
	now := time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET workflow_attempt = ?, updated_at = ? WHERE id = ?`,
		next, timestamp(now), id,
	); err != nil {
		return 0, fmt.Errorf("increment workflow attempt: %w", err)
	}
	if err := s.appendEvent(ctx, id, Event{
		Timestamp: now,
		Type:      EventAttempt,
		Node:      "retry",
		Message:   fmt.Sprintf("Attempt %d", next),
		Payload:   map[string]any{"attempt": next},
	}); err != nil {
		return 0, err
	}
	return next, nil
}

// ResetWorkflowAttempt zeroes the attempt counter.
func (s *Store) ResetWorkflowAttempt(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET workflow_attempt = 0, updated_at = ? WHERE id = ?`,
		timestamp(time.Now()), id,
	); err != nil {
		return fmt.Errorf("reset workflow attempt: %w", err)
	}
	return nil
}

// stageResets lists the stage-output columns owned by each stage, in stage
// order. ResetFromStage clears the named stage and everything after it.
var stageResets = []struct {
	stage       string
	assignments []string
}{
	{
		stage: "extraction",
		assignments: []string{
			"extraction_title = ''",
			"extraction_team = ''",
			"extraction_title_raw = ''",
			"extraction_team_raw = ''",
			"manual_title = ''",
			"manual_team = ''",
		},
	},
	{
		stage: "imdb",
		assignments: []string{
			"imdb_query = ''",
			"imdb_url = ''",
			"imdb_id = ''",
			"imdb_status = 'pending'",
			"imdb_last_error = ''",
		},
	},
	{
		stage: "title_es",
		assignments: []string{
			"imdb_title_es = ''",
			"imdb_title_es_status = 'pending'",
			"imdb_title_es_error = ''",
		},
	},
	{
		stage: "omdb",
		assignments: []string{
			"omdb_raw_json = ''",
			"omdb_status = 'pending'",
			"omdb_last_error = ''",
			"omdb_title = ''",
			"omdb_year = ''",
			"omdb_genre = ''",
			"omdb_director = ''",
			"omdb_actors = ''",
			"omdb_plot_en = ''",
			"omdb_plot_es = ''",
			"omdb_poster = ''",
			"omdb_imdb_rating = ''",
		},
	},
	{
		stage: "translation",
		assignments: []string{
			"omdb_plot_es = ''",
			"translation_status = 'pending'",
			"translation_model = ''",
			"translation_error = ''",
		},
	},
}

// ResetFromStage nulls every persisted field belonging to the given stage and
// all stages after it, and always clears the review flag and last error.
func (s *Store) ResetFromStage(ctx context.Context, id, stage string) error {
	stage = strings.ToLower(strings.TrimSpace(stage))

	start := -1
	for i, reset := range stageResets {
		if reset.stage == stage {
			start = i
			break
		}
	}
	if start == -1 {
		return fmt.Errorf("unknown stage: %s", stage)
	}

	assignments := []string{
		"workflow_needs_review = 0",
		"workflow_review_reason = ''",
		"workflow_last_error = ''",
	}
	for _, reset := range stageResets[start:] {
		assignments = append(assignments, reset.assignments...)
	}

	now := time.Now().UTC()
	query := `UPDATE items SET ` + strings.Join(assignments, ", ") + `, updated_at = ? WHERE id = ?`
	if _, err := s.execWithRetry(ctx, query, timestamp(now), id); err != nil {
		return fmt.Errorf("reset from stage %s: %w", stage, err)
	}
	return s.appendEvent(ctx, id, Event{
		Timestamp: now,
		Type:      EventReset,
		Node:      stage,
		Message:   fmt.Sprintf("Reset from stage %s", stage),
	})
}

// RecoverStuck sweeps items left in the running state by an unclean shutdown
// back to pending. An existing last error is preserved so operators can see
// what was in flight. Returns the number of recovered items.
func (s *Store) RecoverStuck(ctx context.Context) (int, error) {
	stuck, err := s.ListRunning(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, item := range stuck {
		now := time.Now().UTC()
		lastError := item.WorkflowLastError
		if lastError == "" {
			lastError = fmt.Sprintf("interrupted at node %s", item.WorkflowCurrentNode)
		}
		if _, err := s.execWithRetry(
			ctx,
			`UPDATE items SET workflow_status = ?, workflow_current_node = ?, workflow_last_error = ?, updated_at = ?
             WHERE id = ? AND workflow_status = ?`,
			string(StatusPending), RecoveredNode, lastError, timestamp(now), item.ID, string(StatusRunning),
		); err != nil {
			return recovered, fmt.Errorf("recover item %s: %w", item.ID, err)
		}
		if err := s.appendEvent(ctx, item.ID, Event{
			Timestamp: now,
			Type:      EventPending,
			Node:      RecoveredNode,
			Message:   "Recovered from interrupted run",
		}); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

func (s *Store) appendEvent(ctx context.Context, id string, event Event) error {
	var historyJSON string
	err := s.db.QueryRowContext(ctx, `SELECT workflow_history_json FROM items WHERE id = ?`, id).Scan(&historyJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read workflow history: %w", err)
	}

	var history []Event
	if historyJSON != "" && historyJSON != "[]" {
		if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
			// A corrupt trail should not wedge the workflow; start fresh.
			history = nil
		}
	}
	history = append(history, event)
	if excess := len(history) - HistoryLimit; excess > 0 {
		history = history[excess:]
	}

	encoded, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode workflow history: %w", err)
	}
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET workflow_history_json = ? WHERE id = ?`,
		string(encoded), id,
	); err != nil {
		return fmt.Errorf("append workflow history: %w", err)
	}
	return nil
}
