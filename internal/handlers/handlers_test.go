package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coverdex/internal/catalog"
	"coverdex/internal/config"
	"coverdex/internal/handlers"
	"coverdex/internal/logging"
	"coverdex/internal/multivalue"
	"coverdex/internal/stage"
)

func writeCover(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cover-001.jpg")
	if err := os.WriteFile(path, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("write cover: %v", err)
	}
	return path
}

func ollamaServer(t *testing.T, respond func(model, prompt string) string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req struct {
			Model  string   `json:"model"`
			Prompt string   `json:"prompt"`
			Images []string `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode generate request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": respond(req.Model, req.Prompt),
			"done":     true,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExtractionExecute(t *testing.T) {
	server := ollamaServer(t, func(model, prompt string) string {
		if strings.Contains(prompt, "title") {
			return "\"Alien; Aliens\""
		}
		return "Ridley Scott, Sigourney Weaver"
	})

	handler, err := handlers.NewExtraction(config.Vision{
		BaseURL:        server.URL,
		TitleModel:     "vision-title",
		TeamModel:      "vision-team",
		TimeoutSeconds: 5,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewExtraction: %v", err)
	}

	item := &catalog.Item{ID: "cover-001", ImagePath: writeCover(t)}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.ExtractionTitle != "Alien;Aliens" {
		t.Fatalf("title = %q", item.ExtractionTitle)
	}
	if item.ExtractionTeam != "Ridley Scott, Sigourney Weaver" {
		t.Fatalf("team = %q", item.ExtractionTeam)
	}
	if item.ExtractionTitleRaw == "" {
		t.Fatal("raw model output must be preserved")
	}
}

func TestExtractionMissingImage(t *testing.T) {
	server := ollamaServer(t, func(string, string) string { return "x" })
	handler, err := handlers.NewExtraction(config.Vision{
		BaseURL:    server.URL,
		TitleModel: "m",
		TeamModel:  "m",
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewExtraction: %v", err)
	}

	item := &catalog.Item{ID: "cover-001", ImagePath: "/nonexistent/cover.jpg"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err == nil {
		t.Fatal("expected error for unreadable image")
	}
}

func TestIMDbSearchExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "alien_3"):
			_, _ = w.Write([]byte(`{"d":[]}`))
		case strings.Contains(r.URL.Path, "aliens"):
			_, _ = w.Write([]byte(`{"d":[{"id":"tt0090605","l":"Aliens","y":1986}]}`))
		default:
			_, _ = w.Write([]byte(`{"d":[{"id":"nm0000102","l":"Somebody"},{"id":"tt0078748","l":"Alien","y":1979}]}`))
		}
	}))
	t.Cleanup(server.Close)

	handler, err := handlers.NewIMDbSearch(config.IMDb{
		SearchBaseURL:  server.URL,
		MaxResults:     5,
		TimeoutSeconds: 5,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewIMDbSearch: %v", err)
	}

	item := &catalog.Item{ID: "cover-001", ExtractionTitle: "Alien;Aliens"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.IMDbStatus != "found" {
		t.Fatalf("status = %q (%s)", item.IMDbStatus, item.IMDbLastError)
	}
	if item.IMDbID != "tt0078748;tt0090605" {
		t.Fatalf("ids = %q", item.IMDbID)
	}
	if multivalue.Count(item.IMDbURL) != 2 {
		t.Fatalf("urls = %q", item.IMDbURL)
	}

	// Non-title entries are skipped, not matched.
	if strings.Contains(item.IMDbID, "nm") {
		t.Fatalf("person result leaked into ids: %q", item.IMDbID)
	}
}

func TestIMDbSearchNonASCIIBucket(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"d":[{"id":"tt0094648","l":"Águila de acero II","y":1988}]}`))
	}))
	t.Cleanup(server.Close)

	handler, err := handlers.NewIMDbSearch(config.IMDb{
		SearchBaseURL:  server.URL,
		TimeoutSeconds: 5,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewIMDbSearch: %v", err)
	}

	item := &catalog.Item{ID: "cover-001", ExtractionTitle: "Águila de acero II"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// The bucket segment must be the whole first rune, never a bare
	// UTF-8 continuation byte.
	if !strings.HasPrefix(gotPath, "/suggestion/á/") {
		t.Fatalf("request path = %q, want /suggestion/á/ prefix", gotPath)
	}
	if item.IMDbID != "tt0094648" {
		t.Fatalf("ids = %q", item.IMDbID)
	}
}

func TestIMDbSearchNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"d":[]}`))
	}))
	t.Cleanup(server.Close)

	handler, err := handlers.NewIMDbSearch(config.IMDb{SearchBaseURL: server.URL}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewIMDbSearch: %v", err)
	}

	item := &catalog.Item{ID: "cover-001", ExtractionTitle: "Alien 3"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.IMDbStatus != "not_found" {
		t.Fatalf("status = %q", item.IMDbStatus)
	}
	if item.IMDbLastError == "" {
		t.Fatal("expected last error naming the missing title")
	}
}

func TestIMDbSearchManualTitleWins(t *testing.T) {
	var queried []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queried = append(queried, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"d":[{"id":"tt0078748","l":"Alien"}]}`))
	}))
	t.Cleanup(server.Close)

	handler, err := handlers.NewIMDbSearch(config.IMDb{SearchBaseURL: server.URL}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewIMDbSearch: %v", err)
	}

	item := &catalog.Item{
		ID:              "cover-001",
		ExtractionTitle: "Wrong Guess",
		ManualTitle:     "Alien",
	}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(queried) != 1 || !strings.Contains(queried[0], "alien") {
		t.Fatalf("queries = %v, manual title must drive the search", queried)
	}
	if item.IMDbQuery != "Alien" {
		t.Fatalf("query = %q", item.IMDbQuery)
	}
}

func TestTitleESExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") == "" {
			t.Fatal("expected spanish accept-language header")
		}
		_, _ = w.Write([]byte(`<html><head><title>ignored</title></head><body><h1>Alien, el octavo pasajero</h1></body></html>`))
	}))
	t.Cleanup(server.Close)

	handler := handlers.NewTitleES(config.IMDb{TimeoutSeconds: 5}, logging.NewNop(),
		handlers.WithTitleESURLRewrite(func(string) string { return server.URL }))

	item := &catalog.Item{ID: "cover-001", IMDbURL: "https://www.imdb.com/title/tt0078748/"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.IMDbTitleES != "Alien, el octavo pasajero" {
		t.Fatalf("title_es = %q", item.IMDbTitleES)
	}
	if item.IMDbTitleESStatus != "fetched" {
		t.Fatalf("status = %q", item.IMDbTitleESStatus)
	}
}

func TestTitleESNoURL(t *testing.T) {
	handler := handlers.NewTitleES(config.IMDb{}, logging.NewNop())
	item := &catalog.Item{ID: "cover-001"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.IMDbTitleESStatus != "skipped" {
		t.Fatalf("status = %q", item.IMDbTitleESStatus)
	}
}

func TestOMDbExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "key" {
			t.Fatalf("missing api key: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("i") {
		case "tt0078748":
			_, _ = w.Write([]byte(`{"Title":"Alien","Year":"1979","Genre":"Horror, Sci-Fi","Director":"Ridley Scott","Actors":"Sigourney Weaver","Plot":"A crew encounters a deadly lifeform.","Poster":"N/A","imdbRating":"8.5","Response":"True"}`))
		case "tt0090605":
			_, _ = w.Write([]byte(`{"Title":"Aliens","Year":"1986","Genre":"Action, Sci-Fi","Director":"James Cameron","Actors":"Sigourney Weaver","Plot":"Ripley returns to LV-426.","Poster":"http://img/aliens.jpg","imdbRating":"8.4","Response":"True"}`))
		default:
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Incorrect IMDb ID."}`))
		}
	}))
	t.Cleanup(server.Close)

	handler, err := handlers.NewOMDb(config.OMDb{
		APIKey:         "key",
		BaseURL:        server.URL,
		PlotMode:       "short",
		TimeoutSeconds: 5,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOMDb: %v", err)
	}

	item := &catalog.Item{ID: "cover-001", IMDbID: "tt0078748;tt0090605"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.OMDbStatus != "fetched" {
		t.Fatalf("status = %q", item.OMDbStatus)
	}
	if item.OMDbTitle != "Alien;Aliens" {
		t.Fatalf("titles = %q", item.OMDbTitle)
	}
	if multivalue.CountWith(item.OMDbPlotEN, multivalue.PlotSeparator) != 2 {
		t.Fatalf("plots = %q", item.OMDbPlotEN)
	}
	// "N/A" poster for the first film is dropped, so only one part.
	if multivalue.Count(item.OMDbPoster) != 1 {
		t.Fatalf("posters = %q", item.OMDbPoster)
	}
	if item.OMDbRawJSON == "" {
		t.Fatal("raw payload must be stored")
	}
}

func TestOMDbUnknownID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Incorrect IMDb ID."}`))
	}))
	t.Cleanup(server.Close)

	handler, err := handlers.NewOMDb(config.OMDb{APIKey: "key", BaseURL: server.URL}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOMDb: %v", err)
	}

	item := &catalog.Item{ID: "cover-001", IMDbID: "tt9999999"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err == nil {
		t.Fatal("expected error for rejected id")
	}
	if item.OMDbStatus != "error" || item.OMDbLastError == "" {
		t.Fatalf("failure must be recorded on the item: %+v", item)
	}
}

func TestOMDbRequiresAPIKey(t *testing.T) {
	if _, err := handlers.NewOMDb(config.OMDb{BaseURL: "https://example.com"}, logging.NewNop()); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestTranslationExecute(t *testing.T) {
	server := ollamaServer(t, func(model, prompt string) string {
		if strings.Contains(prompt, "LV-426") {
			return "Ripley vuelve a LV-426."
		}
		return "Una tripulacion encuentra una forma de vida letal."
	})

	handler, err := handlers.NewTranslation(config.Translation{
		BaseURL:        server.URL,
		Model:          "translator",
		TimeoutSeconds: 5,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewTranslation: %v", err)
	}

	item := &catalog.Item{
		ID:         "cover-001",
		OMDbPlotEN: "A crew encounters a deadly lifeform.;\nRipley returns to LV-426.",
	}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if multivalue.CountWith(item.OMDbPlotES, multivalue.PlotSeparator) != 2 {
		t.Fatalf("plots = %q", item.OMDbPlotES)
	}
	if item.TranslationStatus != "translated" || item.TranslationModel != "translator" {
		t.Fatalf("unexpected state: %+v", item)
	}
}

func TestTranslationEmptyPlot(t *testing.T) {
	server := ollamaServer(t, func(string, string) string { return "x" })
	handler, err := handlers.NewTranslation(config.Translation{
		BaseURL: server.URL,
		Model:   "translator",
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewTranslation: %v", err)
	}

	item := &catalog.Item{ID: "cover-001"}
	if err := handler.Execute(context.Background(), item, stage.RunConfig{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.TranslationStatus != "skipped" {
		t.Fatalf("status = %q", item.TranslationStatus)
	}
	if item.OMDbPlotES != "" {
		t.Fatalf("plot_es = %q", item.OMDbPlotES)
	}
}
