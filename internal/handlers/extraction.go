package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
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

const (
	titlePrompt = `Read the movie title(s) printed on this cover. ` +
		`If the cover bundles several films, list every title separated by ";". ` +
		`Answer with the title text only, no commentary.`
	teamPrompt = `List the director and main credited actors printed on this cover, ` +
		`separated by commas. Answer with the names only, no commentary.`
)

// Extraction reads title and credited people off a cover image with a
// local vision model.
type Extraction struct {
	cfg    config.Vision
	client *ollamaClient
	logger *slog.Logger
}

// NewExtraction constructs the vision extraction handler.
func NewExtraction(cfg config.Vision, logger *slog.Logger) (*Extraction, error) {
	client, err := newOllamaClient(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extraction{cfg: cfg, client: client, logger: logger}, nil
}

func (h *Extraction) Stage() pipeline.Stage { return pipeline.StageExtraction }

func (h *Extraction) Execute(ctx context.Context, item *catalog.Item, req stage.RunConfig) error {
	data, err := os.ReadFile(item.ImagePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, string(h.Stage()), "read image",
			fmt.Sprintf("cover image %s is unreadable", item.ImagePath), err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	titleModel := h.cfg.TitleModel
	if req.Options.TitleModel != "" {
		titleModel = req.Options.TitleModel
	}
	teamModel := h.cfg.TeamModel
	if req.Options.TeamModel != "" {
		teamModel = req.Options.TeamModel
	}

	title, err := h.client.Generate(ctx, titleModel, titlePrompt, []string{encoded})
	if err != nil {
		return services.Wrap(services.ErrExternalService, string(h.Stage()), "extract title",
			"vision model failed to read the title", err)
	}
	team, err := h.client.Generate(ctx, teamModel, teamPrompt, []string{encoded})
	if err != nil {
		return services.Wrap(services.ErrExternalService, string(h.Stage()), "extract team",
			"vision model failed to read the credits", err)
	}

	item.ExtractionTitleRaw = title
	item.ExtractionTeamRaw = team
	item.ExtractionTitle = cleanModelOutput(title)
	item.ExtractionTeam = cleanModelOutput(team)

	logging.WithContext(ctx, h.logger).Info("cover extracted",
		logging.String("title", item.ExtractionTitle),
		logging.Int("parts", multivalue.Count(item.ExtractionTitle)),
	)
	return nil
}

func (h *Extraction) HealthCheck(ctx context.Context) stage.Health {
	if err := h.client.Ping(ctx); err != nil {
		return stage.Unhealthy(h.Stage(), err.Error())
	}
	return stage.Healthy(h.Stage())
}

// cleanModelOutput strips quoting and markdown the models like to wrap
// answers in and normalizes composite separators.
func cleanModelOutput(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'`")
	text = strings.TrimPrefix(text, "**")
	text = strings.TrimSuffix(text, "**")
	parts := multivalue.SplitWith(strings.ReplaceAll(text, "\n", multivalue.Separator), multivalue.Separator)
	return multivalue.Join(parts)
}
