package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ollamaClient speaks the Ollama generate API. Both the vision
// extraction and the plot translation handlers share it.
type ollamaClient struct {
	baseURL    string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func newOllamaClient(baseURL string, timeout time.Duration) (*ollamaClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ollama base url required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ollamaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Generate runs one non-streaming prompt, optionally with base64 image
// attachments, and returns the trimmed model output.
func (c *ollamaClient) Generate(ctx context.Context, model, prompt string, images []string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  model,
		Prompt: prompt,
		Images: images,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate returned %d", resp.StatusCode)
	}
	var payload ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("ollama: %s", payload.Error)
	}
	return strings.TrimSpace(payload.Response), nil
}

// Ping checks that the server answers on its version endpoint.
func (c *ollamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama version returned %d", resp.StatusCode)
	}
	return nil
}
