package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
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

// omdbPayload models one OMDb title response.
type omdbPayload struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Genre      string `json:"Genre"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	IMDbRating string `json:"imdbRating"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// OMDb fetches movie metadata for every resolved IMDb id.
type OMDb struct {
	cfg        config.OMDb
	httpClient *http.Client
	logger     *slog.Logger
}

// OMDbOption configures an OMDb handler.
type OMDbOption func(*OMDb)

// WithOMDbHTTPClient overrides the default HTTP client.
func WithOMDbHTTPClient(client *http.Client) OMDbOption {
	return func(h *OMDb) {
		if client != nil {
			h.httpClient = client
		}
	}
}

// NewOMDb constructs the metadata fetch handler.
func NewOMDb(cfg config.OMDb, logger *slog.Logger, opts ...OMDbOption) (*OMDb, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("omdb: api key required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("omdb: base url required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &OMDb{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *OMDb) Stage() pipeline.Stage { return pipeline.StageOMDb }

func (h *OMDb) Execute(ctx context.Context, item *catalog.Item, _ stage.RunConfig) error {
	ids := multivalue.Split(item.IMDbID)
	if len(ids) == 0 {
		return services.Wrap(services.ErrValidation, string(h.Stage()), "fetch",
			"no imdb id available for metadata lookup", nil)
	}

	payloads := make([]omdbPayload, 0, len(ids))
	for _, id := range ids {
		payload, err := h.fetch(ctx, id)
		if err != nil {
			item.OMDbStatus = "error"
			item.OMDbLastError = err.Error()
			return services.Wrap(services.ErrExternalService, string(h.Stage()), "fetch",
				fmt.Sprintf("omdb lookup failed for %s", id), err)
		}
		payloads = append(payloads, payload)
	}

	raw, err := json.Marshal(payloads)
	if err != nil {
		return services.Wrap(services.ErrTransient, string(h.Stage()), "encode",
			"could not encode omdb payloads", err)
	}

	titles := make([]string, len(payloads))
	years := make([]string, len(payloads))
	genres := make([]string, len(payloads))
	directors := make([]string, len(payloads))
	actors := make([]string, len(payloads))
	plots := make([]string, len(payloads))
	posters := make([]string, len(payloads))
	ratings := make([]string, len(payloads))
	for i, p := range payloads {
		titles[i] = p.Title
		years[i] = p.Year
		genres[i] = p.Genre
		directors[i] = p.Director
		actors[i] = p.Actors
		plots[i] = p.Plot
		posters[i] = p.Poster
		ratings[i] = p.IMDbRating
	}

	item.OMDbRawJSON = string(raw)
	item.OMDbStatus = "fetched"
	item.OMDbLastError = ""
	item.OMDbTitle = multivalue.Join(titles)
	item.OMDbYear = multivalue.Join(years)
	item.OMDbGenre = multivalue.Join(genres)
	item.OMDbDirector = multivalue.Join(directors)
	item.OMDbActors = multivalue.Join(actors)
	item.OMDbPlotEN = multivalue.JoinWith(plots, multivalue.PlotSeparator)
	item.OMDbPoster = multivalue.Join(posters)
	item.OMDbIMDbRating = multivalue.Join(ratings)

	logging.WithContext(ctx, h.logger).Info("omdb metadata fetched",
		logging.Int("titles", len(payloads)),
	)
	return nil
}

func (h *OMDb) fetch(ctx context.Context, imdbID string) (omdbPayload, error) {
	endpoint, err := url.Parse(strings.TrimRight(h.cfg.BaseURL, "/") + "/")
	if err != nil {
		return omdbPayload{}, fmt.Errorf("parse omdb url: %w", err)
	}
	params := url.Values{}
	params.Set("apikey", h.cfg.APIKey)
	params.Set("i", imdbID)
	params.Set("plot", h.plotMode())
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return omdbPayload{}, fmt.Errorf("build omdb request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return omdbPayload{}, fmt.Errorf("execute omdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return omdbPayload{}, fmt.Errorf("omdb returned %d", resp.StatusCode)
	}
	var payload omdbPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return omdbPayload{}, fmt.Errorf("decode omdb response: %w", err)
	}
	if !strings.EqualFold(payload.Response, "true") {
		return omdbPayload{}, fmt.Errorf("omdb: %s", payload.Error)
	}
	// OMDb uses "N/A" for absent fields; keep the stored columns clean.
	payload.Plot = dropNA(payload.Plot)
	payload.Poster = dropNA(payload.Poster)
	payload.IMDbRating = dropNA(payload.IMDbRating)
	return payload, nil
}

func (h *OMDb) plotMode() string {
	if h.cfg.PlotMode == "full" {
		return "full"
	}
	return "short"
}

func dropNA(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), "N/A") {
		return ""
	}
	return value
}

func (h *OMDb) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(h.cfg.APIKey) == "" {
		return stage.Unhealthy(h.Stage(), "api key missing")
	}
	return stage.Healthy(h.Stage())
}
