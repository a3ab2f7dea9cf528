package catalog_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"coverdex/internal/catalog"
	"coverdex/internal/testsupport"
)

func TestNewItemDefaults(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.NewItem(t, store, "cover-001")

	if item.WorkflowStatus != catalog.StatusPending {
		t.Fatalf("status = %s, want pending", item.WorkflowStatus)
	}
	if item.WorkflowAttempt != 0 {
		t.Fatalf("attempt = %d, want 0", item.WorkflowAttempt)
	}
	if len(item.WorkflowHistory) != 0 {
		t.Fatalf("expected empty history, got %d events", len(item.WorkflowHistory))
	}
}

func TestGetByIDMissing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	item, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item != nil {
		t.Fatal("expected nil item for missing id")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := testsupport.NewItem(t, store, "cover-001")

	item.ExtractionTitle = "Alien;Aliens"
	item.IMDbURL = "https://www.imdb.com/title/tt0078748/"
	item.IMDbID = "tt0078748"
	item.OMDbStatus = "fetched"

	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.GetByID(context.Background(), "cover-001")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ExtractionTitle != "Alien;Aliens" || got.IMDbID != "tt0078748" || got.OMDbStatus != "fetched" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatalf("updated_at not touched: %v vs %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestUpdateMissingItem(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	item := &catalog.Item{ID: "ghost"}
	if err := store.Update(context.Background(), item); err == nil {
		t.Fatal("expected error updating missing item")
	}
}

func TestWorkflowTransitions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.NewItem(t, store, "cover-001")
	ctx := context.Background()

	if err := store.SetWorkflowRunning(ctx, "cover-001", "search_links", "none"); err != nil {
		t.Fatalf("SetWorkflowRunning: %v", err)
	}
	item, _ := store.GetByID(ctx, "cover-001")
	if item.WorkflowStatus != catalog.StatusRunning || item.WorkflowCurrentNode != "search_links" {
		t.Fatalf("unexpected state after running: %+v", item)
	}

	if err := store.SetWorkflowReview(ctx, "cover-001", "fetch_metadata", "fetch_metadata: boom", "boom"); err != nil {
		t.Fatalf("SetWorkflowReview: %v", err)
	}
	item, _ = store.GetByID(ctx, "cover-001")
	if item.WorkflowStatus != catalog.StatusReview || !item.WorkflowNeedsReview {
		t.Fatalf("unexpected state after review: %+v", item)
	}
	if item.WorkflowReviewReason != "fetch_metadata: boom" {
		t.Fatalf("review reason = %q", item.WorkflowReviewReason)
	}

	if err := store.ClearWorkflowReview(ctx, "cover-001"); err != nil {
		t.Fatalf("ClearWorkflowReview: %v", err)
	}
	item, _ = store.GetByID(ctx, "cover-001")
	if item.WorkflowNeedsReview || item.WorkflowReviewReason != "" {
		t.Fatalf("review flag not cleared: %+v", item)
	}

	if err := store.SetWorkflowDone(ctx, "cover-001", "workflow_done", "approve"); err != nil {
		t.Fatalf("SetWorkflowDone: %v", err)
	}
	item, _ = store.GetByID(ctx, "cover-001")
	if item.WorkflowStatus != catalog.StatusDone || item.WorkflowLastAction != "approve" {
		t.Fatalf("unexpected state after done: %+v", item)
	}

	if len(item.WorkflowHistory) < 3 {
		t.Fatalf("expected history events for each transition, got %d", len(item.WorkflowHistory))
	}
	last := item.WorkflowHistory[len(item.WorkflowHistory)-1]
	if last.Type != catalog.EventDone {
		t.Fatalf("last event type = %s, want done", last.Type)
	}
}

func TestHistoryCapFIFO(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.NewItem(t, store, "cover-001")
	ctx := context.Background()

	for i := 0; i <= catalog.HistoryLimit; i++ {
		if err := store.SetWorkflowError(ctx, "cover-001", fmt.Sprintf("node-%d", i), "err"); err != nil {
			t.Fatalf("SetWorkflowError: %v", err)
		}
	}

	item, err := store.GetByID(ctx, "cover-001")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(item.WorkflowHistory) != catalog.HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(item.WorkflowHistory), catalog.HistoryLimit)
	}
	if item.WorkflowHistory[0].Node != "node-1" {
		t.Fatalf("oldest surviving event = %s, want node-1 (node-0 evicted)", item.WorkflowHistory[0].Node)
	}
	newest := item.WorkflowHistory[len(item.WorkflowHistory)-1]
	if newest.Node != fmt.Sprintf("node-%d", catalog.HistoryLimit) {
		t.Fatalf("newest event = %s", newest.Node)
	}
}

func TestIncrementWorkflowAttempt(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.NewItem(t, store, "cover-001")
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementWorkflowAttempt(ctx, "cover-001")
		if err != nil {
			t.Fatalf("IncrementWorkflowAttempt: %v", err)
		}
		if got != want {
			t.Fatalf("attempt = %d, want %d", got, want)
		}
	}

	if err := store.ResetWorkflowAttempt(ctx, "cover-001"); err != nil {
		t.Fatalf("ResetWorkflowAttempt: %v", err)
	}
	item, _ := store.GetByID(ctx, "cover-001")
	if item.WorkflowAttempt != 0 {
		t.Fatalf("attempt after reset = %d", item.WorkflowAttempt)
	}
}

func seedEnriched(t *testing.T, store *catalog.Store, id string) *catalog.Item {
	t.Helper()
	item := testsupport.NewItem(t, store, id)
	item.ExtractionTitle = "Alien"
	item.ExtractionTeam = "Ridley Scott, Sigourney Weaver"
	item.IMDbQuery = "Alien"
	item.IMDbURL = "https://www.imdb.com/title/tt0078748/"
	item.IMDbID = "tt0078748"
	item.IMDbStatus = "found"
	item.IMDbTitleES = "Alien, el octavo pasajero"
	item.IMDbTitleESStatus = "fetched"
	item.OMDbStatus = "fetched"
	item.OMDbTitle = "Alien"
	item.OMDbPlotEN = "A crew encounters a deadly lifeform."
	item.OMDbPlotES = "Una tripulacion encuentra una forma de vida letal."
	item.TranslationStatus = "translated"
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return item
}

func TestExportTSV(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	item := seedEnriched(t, store, "cover-001")
	item.OMDbPlotEN = "A crew\tencounters\na deadly lifeform."
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	testsupport.NewItem(t, store, "cover-002")

	var buf bytes.Buffer
	count, err := store.ExportTSV(ctx, &buf)
	if err != nil {
		t.Fatalf("ExportTSV: %v", err)
	}
	if count != 2 {
		t.Fatalf("rows = %d, want 2", count)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header plus 2 rows", len(lines))
	}
	header := strings.Split(lines[0], "\t")
	if header[0] != "id" || header[len(header)-1] != "omdb_plot_es" {
		t.Fatalf("unexpected header: %v", header)
	}

	first := strings.Split(lines[1], "\t")
	if len(first) != len(header) {
		t.Fatalf("row width = %d, want %d", len(first), len(header))
	}
	if first[0] != "cover-001" {
		t.Fatalf("first row id = %q", first[0])
	}
	// Tabs collapse to spaces and newlines to a literal escape so every
	// item stays on one row.
	if !strings.Contains(lines[1], `A crew encounters\na deadly lifeform.`) {
		t.Fatalf("plot not sanitized: %q", lines[1])
	}
}

func TestResetFromStageCascades(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedEnriched(t, store, "cover-001")
	ctx := context.Background()

	if err := store.SetWorkflowReview(ctx, "cover-001", "search_links", "stale", "stale"); err != nil {
		t.Fatalf("SetWorkflowReview: %v", err)
	}
	if err := store.ResetFromStage(ctx, "cover-001", "imdb"); err != nil {
		t.Fatalf("ResetFromStage: %v", err)
	}

	item, _ := store.GetByID(ctx, "cover-001")
	if item.ExtractionTitle != "Alien" {
		t.Fatal("extraction fields must survive an imdb reset")
	}
	if item.IMDbURL != "" || item.IMDbID != "" || item.IMDbStatus != "pending" {
		t.Fatalf("imdb fields not cleared: %+v", item)
	}
	if item.IMDbTitleES != "" || item.OMDbStatus != "pending" || item.OMDbTitle != "" {
		t.Fatalf("downstream fields not cleared: %+v", item)
	}
	if item.OMDbPlotES != "" || item.TranslationStatus != "pending" {
		t.Fatalf("translation fields not cleared: %+v", item)
	}
	if item.WorkflowNeedsReview || item.WorkflowReviewReason != "" || item.WorkflowLastError != "" {
		t.Fatalf("review state not cleared: %+v", item)
	}
}

func TestResetFromStageTranslationOnly(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedEnriched(t, store, "cover-001")
	ctx := context.Background()

	if err := store.ResetFromStage(ctx, "cover-001", "translation"); err != nil {
		t.Fatalf("ResetFromStage: %v", err)
	}
	item, _ := store.GetByID(ctx, "cover-001")
	if item.OMDbStatus != "fetched" || item.OMDbPlotEN == "" {
		t.Fatal("omdb fields must survive a translation reset")
	}
	if item.OMDbPlotES != "" || item.TranslationStatus != "pending" {
		t.Fatalf("translation fields not cleared: %+v", item)
	}
}

func TestResetFromStageUnknown(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.NewItem(t, store, "cover-001")
	if err := store.ResetFromStage(context.Background(), "cover-001", "shipping"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestRecoverStuck(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.NewItem(t, store, "cover-001")
	testsupport.NewItem(t, store, "cover-002")
	ctx := context.Background()

	if err := store.SetWorkflowRunning(ctx, "cover-001", "fetch_metadata", ""); err != nil {
		t.Fatalf("SetWorkflowRunning: %v", err)
	}

	recovered, err := store.RecoverStuck(ctx)
	if err != nil {
		t.Fatalf("RecoverStuck: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("recovered = %d, want 1", recovered)
	}

	item, _ := store.GetByID(ctx, "cover-001")
	if item.WorkflowStatus != catalog.StatusPending {
		t.Fatalf("status = %s, want pending", item.WorkflowStatus)
	}
	if item.WorkflowCurrentNode != catalog.RecoveredNode {
		t.Fatalf("node = %q, want %q", item.WorkflowCurrentNode, catalog.RecoveredNode)
	}
	if item.WorkflowLastError == "" {
		t.Fatal("expected preserved last error describing the interrupted node")
	}

	untouched, _ := store.GetByID(ctx, "cover-002")
	if untouched.WorkflowStatus != catalog.StatusPending || untouched.WorkflowCurrentNode != "" {
		t.Fatalf("idle item should be untouched: %+v", untouched)
	}
}

func TestIDsForWorkflowSelection(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	// cover-001 has nothing; cover-002 has extraction done; cover-003 is fully enriched.
	testsupport.NewItem(t, store, "cover-001")
	partial := testsupport.NewItem(t, store, "cover-002")
	partial.ExtractionTitle = "Aliens"
	partial.ExtractionTeam = "James Cameron"
	if err := store.Update(ctx, partial); err != nil {
		t.Fatalf("Update: %v", err)
	}
	seedEnriched(t, store, "cover-003")

	ids, err := store.IDsForWorkflow(ctx, "extraction", 10, false)
	if err != nil {
		t.Fatalf("IDsForWorkflow: %v", err)
	}
	if len(ids) != 1 || ids[0] != "cover-001" {
		t.Fatalf("extraction targets = %v", ids)
	}

	ids, err = store.IDsForWorkflow(ctx, "imdb", 10, false)
	if err != nil {
		t.Fatalf("IDsForWorkflow: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("imdb targets = %v, want cover-001 and cover-002", ids)
	}

	ids, err = store.IDsForWorkflow(ctx, "extraction", 10, true)
	if err != nil {
		t.Fatalf("IDsForWorkflow overwrite: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("overwrite targets = %v, want all items", ids)
	}
}

func TestHealthCounts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewItem(t, store, "cover-001")
	testsupport.NewItem(t, store, "cover-002")
	if err := store.SetWorkflowDone(ctx, "cover-002", "workflow_done", ""); err != nil {
		t.Fatalf("SetWorkflowDone: %v", err)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Total != 2 || summary.Pending != 1 || summary.Done != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
