package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"coverdex/internal/catalog"
	"coverdex/internal/config"
	"coverdex/internal/logging"
	"coverdex/internal/multivalue"
	"coverdex/internal/pipeline"
	"coverdex/internal/stage"
	"coverdex/internal/testsupport"
	"coverdex/internal/workflow"
)

// fakeHandler counts calls and delegates to an optional execute func.
type fakeHandler struct {
	stageName pipeline.Stage
	execute   func(context.Context, *catalog.Item, stage.RunConfig) error
	calls     int
}

func (h *fakeHandler) Stage() pipeline.Stage { return h.stageName }

func (h *fakeHandler) Execute(ctx context.Context, item *catalog.Item, rc stage.RunConfig) error {
	h.calls++
	if h.execute != nil {
		return h.execute(ctx, item, rc)
	}
	return nil
}

func (h *fakeHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(h.stageName)
}

// handlerSet bundles one fake per stage, defaulting to handlers that
// produce consistent happy-path output.
type handlerSet struct {
	extraction  *fakeHandler
	imdb        *fakeHandler
	titleES     *fakeHandler
	omdb        *fakeHandler
	translation *fakeHandler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{
		extraction: &fakeHandler{
			stageName: pipeline.StageExtraction,
			execute: func(_ context.Context, item *catalog.Item, _ stage.RunConfig) error {
				item.ExtractionTitle = "Alien"
				item.ExtractionTeam = "Ridley Scott, Sigourney Weaver"
				return nil
			},
		},
		imdb: &fakeHandler{
			stageName: pipeline.StageIMDb,
			execute: func(_ context.Context, item *catalog.Item, _ stage.RunConfig) error {
				parts := multivalue.Split(item.EffectiveTitle())
				urls := make([]string, len(parts))
				ids := make([]string, len(parts))
				for i := range parts {
					ids[i] = fmt.Sprintf("tt%07d", i+1)
					urls[i] = "https://www.imdb.com/title/" + ids[i] + "/"
				}
				item.IMDbURL = multivalue.Join(urls)
				item.IMDbID = multivalue.Join(ids)
				item.IMDbStatus = "found"
				return nil
			},
		},
		titleES: &fakeHandler{
			stageName: pipeline.StageTitleES,
			execute: func(_ context.Context, item *catalog.Item, _ stage.RunConfig) error {
				item.IMDbTitleES = "Alien, el octavo pasajero"
				item.IMDbTitleESStatus = "fetched"
				return nil
			},
		},
		omdb: &fakeHandler{
			stageName: pipeline.StageOMDb,
			execute: func(_ context.Context, item *catalog.Item, _ stage.RunConfig) error {
				parts := multivalue.Split(item.IMDbID)
				titles := make([]string, len(parts))
				for i := range parts {
					titles[i] = fmt.Sprintf("Title %d", i+1)
				}
				item.OMDbStatus = "fetched"
				item.OMDbTitle = multivalue.Join(titles)
				item.OMDbPlotEN = "A crew encounters a deadly lifeform."
				return nil
			},
		},
		translation: &fakeHandler{
			stageName: pipeline.StageTranslation,
			execute: func(_ context.Context, item *catalog.Item, _ stage.RunConfig) error {
				parts := multivalue.SplitWith(item.OMDbPlotEN, multivalue.PlotSeparator)
				out := make([]string, len(parts))
				for i, part := range parts {
					out[i] = "ES: " + part
				}
				item.OMDbPlotES = multivalue.JoinWith(out, multivalue.PlotSeparator)
				item.TranslationStatus = "translated"
				return nil
			},
		},
	}
}

func (s *handlerSet) handlers() workflow.Handlers {
	return workflow.Handlers{
		pipeline.StageExtraction:  s.extraction,
		pipeline.StageIMDb:        s.imdb,
		pipeline.StageTitleES:     s.titleES,
		pipeline.StageOMDb:        s.omdb,
		pipeline.StageTranslation: s.translation,
	}
}

func failingHandler(stageName pipeline.Stage, message string) *fakeHandler {
	return &fakeHandler{
		stageName: stageName,
		execute: func(context.Context, *catalog.Item, stage.RunConfig) error {
			return errors.New(message)
		},
	}
}

func newTestController(t *testing.T, cfg *config.Config, store *catalog.Store, set *handlerSet, opts ...workflow.Option) *workflow.Controller {
	t.Helper()
	controller, err := workflow.NewController(cfg, store, testLogger(), set.handlers(), opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return controller
}

func testLogger() *slog.Logger {
	return logging.NewNop()
}

func mustGet(t *testing.T, store *catalog.Store, id string) *catalog.Item {
	t.Helper()
	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item == nil {
		t.Fatalf("item %s does not exist", id)
	}
	return item
}

func newFixture(t *testing.T) (*config.Config, *catalog.Store, *handlerSet) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return cfg, store, newHandlerSet()
}
