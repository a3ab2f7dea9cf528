package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"coverdex/internal/catalog"
	"coverdex/internal/config"
	"coverdex/internal/logging"
	"coverdex/internal/multivalue"
	"coverdex/internal/pipeline"
	"coverdex/internal/services"
	"coverdex/internal/stage"
)

// TitleES scrapes the Spanish display title from each resolved IMDb
// page. The stage is best effort: the controller never fails a run or
// spends attempts on it.
type TitleES struct {
	cfg        config.IMDb
	httpClient *http.Client
	logger     *slog.Logger
	// rewriteURL lets tests point stored IMDb URLs at a local server.
	rewriteURL func(string) string
}

// TitleESOption configures a TitleES handler.
type TitleESOption func(*TitleES)

// WithTitleESHTTPClient overrides the default HTTP client.
func WithTitleESHTTPClient(client *http.Client) TitleESOption {
	return func(h *TitleES) {
		if client != nil {
			h.httpClient = client
		}
	}
}

// WithTitleESURLRewrite installs a URL rewriter applied before fetching.
func WithTitleESURLRewrite(fn func(string) string) TitleESOption {
	return func(h *TitleES) {
		if fn != nil {
			h.rewriteURL = fn
		}
	}
}

// NewTitleES constructs the Spanish title handler.
func NewTitleES(cfg config.IMDb, logger *slog.Logger, opts ...TitleESOption) *TitleES {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &TitleES{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger,
		rewriteURL: func(u string) string { return u },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TitleES) Stage() pipeline.Stage { return pipeline.StageTitleES }

func (h *TitleES) Execute(ctx context.Context, item *catalog.Item, _ stage.RunConfig) error {
	urls := multivalue.Split(item.IMDbURL)
	if len(urls) == 0 {
		item.IMDbTitleESStatus = "skipped"
		return nil
	}

	titles := make([]string, 0, len(urls))
	for _, pageURL := range urls {
		title, err := h.fetchTitle(ctx, h.rewriteURL(pageURL))
		if err != nil {
			item.IMDbTitleESStatus = "error"
			item.IMDbTitleESError = err.Error()
			return services.Wrap(services.ErrExternalService, string(h.Stage()), "fetch page",
				fmt.Sprintf("could not read spanish title from %s", pageURL), err)
		}
		titles = append(titles, title)
	}

	item.IMDbTitleES = multivalue.Join(titles)
	item.IMDbTitleESStatus = "fetched"
	item.IMDbTitleESError = ""
	logging.WithContext(ctx, h.logger).Debug("spanish titles fetched",
		logging.Int("count", len(titles)),
	)
	return nil
}

// fetchTitle requests the page with a Spanish Accept-Language and takes
// the main heading, falling back to the document title with its suffix
// stripped.
func (h *TitleES) fetchTitle(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")
	req.Header.Set("User-Agent", "coverdex/1.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute page request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imdb page returned %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse imdb page: %w", err)
	}

	if heading := strings.TrimSpace(doc.Find("h1").First().Text()); heading != "" {
		return heading, nil
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if idx := strings.LastIndex(title, " - IMDb"); idx > 0 {
		title = title[:idx]
	}
	if title == "" {
		return "", fmt.Errorf("imdb page has no title heading")
	}
	return title, nil
}

func (h *TitleES) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(h.Stage())
}
