package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coverdex/internal/catalog"
	"coverdex/internal/config"
	"coverdex/internal/logging"
	"coverdex/internal/multivalue"
	"coverdex/internal/pipeline"
	"coverdex/internal/services"
	"coverdex/internal/stage"
)

const translatePrompt = `Translate the following movie plot from English to Spanish. ` +
	`Answer with the translated text only, no commentary.

%s`

// Translation turns each English plot part into Spanish with a local
// language model.
type Translation struct {
	cfg    config.Translation
	client *ollamaClient
	logger *slog.Logger
}

// NewTranslation constructs the plot translation handler.
func NewTranslation(cfg config.Translation, logger *slog.Logger) (*Translation, error) {
	client, err := newOllamaClient(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("translation: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Translation{cfg: cfg, client: client, logger: logger}, nil
}

func (h *Translation) Stage() pipeline.Stage { return pipeline.StageTranslation }

func (h *Translation) Execute(ctx context.Context, item *catalog.Item, req stage.RunConfig) error {
	plots := multivalue.SplitWith(item.OMDbPlotEN, multivalue.PlotSeparator)
	if len(plots) == 0 {
		// Nothing to translate; the stage is satisfied as-is.
		item.TranslationStatus = "skipped"
		return nil
	}

	model := h.cfg.Model
	if req.Options.TranslationModel != "" {
		model = req.Options.TranslationModel
	}

	translated := make([]string, 0, len(plots))
	for _, plot := range plots {
		text, err := h.client.Generate(ctx, model, fmt.Sprintf(translatePrompt, plot), nil)
		if err != nil {
			item.TranslationStatus = "error"
			item.TranslationError = err.Error()
			return services.Wrap(services.ErrExternalService, string(h.Stage()), "translate",
				"translation model request failed", err)
		}
		if strings.TrimSpace(text) == "" {
			item.TranslationStatus = "error"
			item.TranslationError = "model returned an empty translation"
			return services.Wrap(services.ErrExternalService, string(h.Stage()), "translate",
				"model returned an empty translation", nil)
		}
		translated = append(translated, text)
	}

	item.OMDbPlotES = multivalue.JoinWith(translated, multivalue.PlotSeparator)
	item.TranslationStatus = "translated"
	item.TranslationModel = model
	item.TranslationError = ""

	logging.WithContext(ctx, h.logger).Info("plots translated",
		logging.Int("parts", len(translated)),
		logging.String("model", model),
	)
	return nil
}

func (h *Translation) HealthCheck(ctx context.Context) stage.Health {
	if err := h.client.Ping(ctx); err != nil {
		return stage.Unhealthy(h.Stage(), err.Error())
	}
	return stage.Healthy(h.Stage())
}
