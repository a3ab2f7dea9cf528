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
	"unicode/utf8"

	"coverdex/internal/catalog"
	"coverdex/internal/config"
	"coverdex/internal/logging"
	"coverdex/internal/multivalue"
	"coverdex/internal/pipeline"
	"coverdex/internal/services"
	"coverdex/internal/stage"
)

// suggestionResponse models the IMDb suggestion API payload.
type suggestionResponse struct {
	Entries []suggestionEntry `json:"d"`
}

type suggestionEntry struct {
	ID    string `json:"id"`
	Label string `json:"l"`
	Year  int    `json:"y"`
	Kind  string `json:"qid"`
}

// IMDbSearch resolves one IMDb URL and id per title part via the
// suggestion endpoint.
type IMDbSearch struct {
	cfg        config.IMDb
	httpClient *http.Client
	logger     *slog.Logger
}

// IMDbOption configures an IMDbSearch handler.
type IMDbOption func(*IMDbSearch)

// WithIMDbHTTPClient overrides the default HTTP client.
func WithIMDbHTTPClient(client *http.Client) IMDbOption {
	return func(h *IMDbSearch) {
		if client != nil {
			h.httpClient = client
		}
	}
}

// NewIMDbSearch constructs the title search handler.
func NewIMDbSearch(cfg config.IMDb, logger *slog.Logger, opts ...IMDbOption) (*IMDbSearch, error) {
	if strings.TrimSpace(cfg.SearchBaseURL) == "" {
		return nil, fmt.Errorf("imdb: search base url required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &IMDbSearch{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *IMDbSearch) Stage() pipeline.Stage { return pipeline.StageIMDb }

func (h *IMDbSearch) Execute(ctx context.Context, item *catalog.Item, req stage.RunConfig) error {
	driving := item.EffectiveTitle()
	parts := multivalue.Split(driving)
	if len(parts) == 0 {
		return services.Wrap(services.ErrValidation, string(h.Stage()), "search",
			"no title available to search for", nil)
	}

	maxResults := h.cfg.MaxResults
	if req.Options.MaxResults > 0 {
		maxResults = req.Options.MaxResults
	}

	urls := make([]string, 0, len(parts))
	ids := make([]string, 0, len(parts))
	var misses []string
	for _, title := range parts {
		id, err := h.search(ctx, title, maxResults)
		if err != nil {
			return services.Wrap(services.ErrExternalService, string(h.Stage()), "search",
				fmt.Sprintf("imdb suggestion lookup failed for %q", title), err)
		}
		if id == "" {
			misses = append(misses, title)
			continue
		}
		ids = append(ids, id)
		urls = append(urls, "https://www.imdb.com/title/"+id+"/")
	}

	item.IMDbQuery = driving
	item.IMDbURL = multivalue.Join(urls)
	item.IMDbID = multivalue.Join(ids)
	if len(misses) > 0 {
		item.IMDbStatus = "not_found"
		item.IMDbLastError = fmt.Sprintf("no match for: %s", strings.Join(misses, ", "))
	} else {
		item.IMDbStatus = "found"
		item.IMDbLastError = ""
	}

	logging.WithContext(ctx, h.logger).Info("imdb search finished",
		logging.String("status", item.IMDbStatus),
		logging.Int("matches", len(ids)),
	)
	return nil
}

// search returns the first title match, or "" when the suggestion list
// holds none.
func (h *IMDbSearch) search(ctx context.Context, title string, maxResults int) (string, error) {
	title = strings.TrimSpace(title)
	slug := strings.ToLower(strings.ReplaceAll(title, " ", "_"))
	// The bucket segment is the first rune, not the first byte; titles
	// like "Águila" must not emit a bare continuation byte.
	first, _ := utf8.DecodeRuneInString(slug)
	endpoint := strings.TrimRight(h.cfg.SearchBaseURL, "/") +
		"/suggestion/" + url.PathEscape(string(first)) + "/" + url.PathEscape(slug) + ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build suggestion request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute suggestion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imdb suggestion returned %d", resp.StatusCode)
	}
	var payload suggestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode suggestion response: %w", err)
	}

	limit := maxResults
	if limit <= 0 || limit > len(payload.Entries) {
		limit = len(payload.Entries)
	}
	for _, entry := range payload.Entries[:limit] {
		if strings.HasPrefix(entry.ID, "tt") {
			return entry.ID, nil
		}
	}
	return "", nil
}

func (h *IMDbSearch) HealthCheck(ctx context.Context) stage.Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(h.cfg.SearchBaseURL, "/")+"/suggestion/a/a.json", nil)
	if err != nil {
		return stage.Unhealthy(h.Stage(), err.Error())
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return stage.Unhealthy(h.Stage(), err.Error())
	}
	resp.Body.Close()
	return stage.Healthy(h.Stage())
}
