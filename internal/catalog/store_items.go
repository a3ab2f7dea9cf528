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

const itemColumns = `id, image_path, image_filename, display_title, created_at, updated_at,
    extraction_title, extraction_team, extraction_title_raw, extraction_team_raw,
    manual_title, manual_team,
    imdb_query, imdb_url, imdb_id, imdb_status, imdb_last_error,
    imdb_title_es, imdb_title_es_status, imdb_title_es_error,
    omdb_raw_json, omdb_status, omdb_last_error, omdb_title, omdb_year, omdb_genre,
    omdb_director, omdb_actors, omdb_plot_en, omdb_plot_es, omdb_poster, omdb_imdb_rating,
    translation_status, translation_model, translation_error,
    workflow_status, workflow_current_node, workflow_needs_review, workflow_review_reason,
    workflow_attempt, workflow_last_action, workflow_last_error, workflow_history_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item        Item
		createdAt   string
		updatedAt   string
		status      string
		needsReview int
		historyJSON string
	)
	err := row.Scan(
		&item.ID, &item.ImagePath, &item.ImageFilename, &item.DisplayTitle, &createdAt, &updatedAt,
		&item.ExtractionTitle, &item.ExtractionTeam, &item.ExtractionTitleRaw, &item.ExtractionTeamRaw,
		&item.ManualTitle, &item.ManualTeam,
		&item.IMDbQuery, &item.IMDbURL, &item.IMDbID, &item.IMDbStatus, &item.IMDbLastError,
		&item.IMDbTitleES, &item.IMDbTitleESStatus, &item.IMDbTitleESError,
		&item.OMDbRawJSON, &item.OMDbStatus, &item.OMDbLastError, &item.OMDbTitle, &item.OMDbYear, &item.OMDbGenre,
		&item.OMDbDirector, &item.OMDbActors, &item.OMDbPlotEN, &item.OMDbPlotES, &item.OMDbPoster, &item.OMDbIMDbRating,
		&item.TranslationStatus, &item.TranslationModel, &item.TranslationError,
		&status, &item.WorkflowCurrentNode, &needsReview, &item.WorkflowReviewReason,
		&item.WorkflowAttempt, &item.WorkflowLastAction, &item.WorkflowLastError, &historyJSON,
	)
	if err != nil {
		return nil, err
	}

	item.CreatedAt = parseTimestamp(createdAt)
	item.UpdatedAt = parseTimestamp(updatedAt)
	if parsed, ok := ParseStatus(status); ok {
		item.WorkflowStatus = parsed
	} else {
		item.WorkflowStatus = StatusPending
	}
	item.WorkflowNeedsReview = needsReview != 0
	if historyJSON != "" && historyJSON != "[]" {
		if err := json.Unmarshal([]byte(historyJSON), &item.WorkflowHistory); err != nil {
			return nil, fmt.Errorf("decode workflow history: %w", err)
		}
	}
	return &item, nil
}

// NewItem inserts a catalog entry for a cover image awaiting enrichment.
func (s *Store) NewItem(ctx context.Context, id, imagePath, imageFilename, displayTitle string) (*Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("item id must not be empty")
	}
	now := timestamp(time.Now())

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (id, image_path, image_filename, display_title, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id, imagePath, imageFilename, displayTitle, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a catalog item by identifier. A missing item yields
// (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists all mutable fields of an existing item and touches
// updated_at.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()

	historyJSON, err := encodeHistory(item.WorkflowHistory)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET
            image_path = ?, image_filename = ?, display_title = ?, updated_at = ?,
            extraction_title = ?, extraction_team = ?, extraction_title_raw = ?, extraction_team_raw = ?,
            manual_title = ?, manual_team = ?,
            imdb_query = ?, imdb_url = ?, imdb_id = ?, imdb_status = ?, imdb_last_error = ?,
            imdb_title_es = ?, imdb_title_es_status = ?, imdb_title_es_error = ?,
            omdb_raw_json = ?, omdb_status = ?, omdb_last_error = ?, omdb_title = ?, omdb_year = ?, omdb_genre = ?,
            omdb_director = ?, omdb_actors = ?, omdb_plot_en = ?, omdb_plot_es = ?, omdb_poster = ?, omdb_imdb_rating = ?,
            translation_status = ?, translation_model = ?, translation_error = ?,
            workflow_status = ?, workflow_current_node = ?, workflow_needs_review = ?, workflow_review_reason = ?,
            workflow_attempt = ?, workflow_last_action = ?, workflow_last_error = ?, workflow_history_json = ?
         WHERE id = ?`,
		item.ImagePath, item.ImageFilename, item.DisplayTitle, timestamp(item.UpdatedAt),
		item.ExtractionTitle, item.ExtractionTeam, item.ExtractionTitleRaw, item.ExtractionTeamRaw,
		item.ManualTitle, item.ManualTeam,
		item.IMDbQuery, item.IMDbURL, item.IMDbID, item.IMDbStatus, item.IMDbLastError,
		item.IMDbTitleES, item.IMDbTitleESStatus, item.IMDbTitleESError,
		item.OMDbRawJSON, item.OMDbStatus, item.OMDbLastError, item.OMDbTitle, item.OMDbYear, item.OMDbGenre,
		item.OMDbDirector, item.OMDbActors, item.OMDbPlotEN, item.OMDbPlotES, item.OMDbPoster, item.OMDbIMDbRating,
		item.TranslationStatus, item.TranslationModel, item.TranslationError,
		string(item.WorkflowStatus), item.WorkflowCurrentNode, boolToInt(item.WorkflowNeedsReview), item.WorkflowReviewReason,
		item.WorkflowAttempt, item.WorkflowLastAction, item.WorkflowLastError, historyJSON,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s does not exist", item.ID)
	}
	return nil
}

// Delete removes an item from the catalog.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// List returns items ordered by identifier, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY id LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListReview returns items flagged for manual review, ordered by identifier.
func (s *Store) ListReview(ctx context.Context, limit int) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items WHERE workflow_needs_review = 1 ORDER BY id LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListRunning returns items whose workflow status is running.
func (s *Store) ListRunning(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items WHERE workflow_status = ? ORDER BY id`,
		string(StatusRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("list running items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// IDsForWorkflow selects batch targets whose persisted fields leave the given
// start stage incomplete. With overwrite the whole collection qualifies.
// Items already flagged for review are included so a batch with an explicit
// action can pick them up.
func (s *Store) IDsForWorkflow(ctx context.Context, startStage string, limit int, overwrite bool) ([]string, error) {
	stage := strings.ToLower(strings.TrimSpace(startStage))

	var where string
	switch {
	case overwrite:
		where = ""
	case stage == "extraction":
		where = `WHERE extraction_title = '' OR extraction_team = '' OR workflow_needs_review = 1`
	case stage == "imdb":
		where = `WHERE imdb_url = '' OR workflow_needs_review = 1`
	case stage == "title_es":
		where = `WHERE (imdb_url <> '' AND imdb_title_es = '') OR workflow_needs_review = 1`
	case stage == "omdb":
		where = `WHERE imdb_id <> '' AND (omdb_status <> 'fetched' OR workflow_needs_review = 1)`
	case stage == "translation":
		where = `WHERE omdb_plot_en <> '' AND (omdb_plot_es = '' OR workflow_needs_review = 1)`
	default:
		where = `WHERE workflow_status <> 'done'`
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM items `+where+` ORDER BY id LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("select workflow targets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan target id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}
	return ids, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func encodeHistory(history []Event) (string, error) {
	if len(history) == 0 {
		return "[]", nil
	}
	if excess := len(history) - HistoryLimit; excess > 0 {
		history = history[excess:]
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode workflow history: %w", err)
	}
	return string(data), nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	return limit
}
