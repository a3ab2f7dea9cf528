package config

import (
	"fmt"
	"os"
	"strings"
)

// normalize expands paths, applies environment overrides, and fills gaps left
// by partial config files so validation sees final values.
func (c *Config) normalize() error {
	if key := strings.TrimSpace(os.Getenv("OMDB_API_KEY")); key != "" && c.OMDb.APIKey == "" {
		c.OMDb.APIKey = key
	}

	var err error
	if c.Paths.DataDir, err = expandPath(valueOr(c.Paths.DataDir, defaultDataDir)); err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	if c.Paths.CoversDir, err = expandPath(valueOr(c.Paths.CoversDir, defaultCoversDir)); err != nil {
		return fmt.Errorf("covers_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}

	c.Vision.BaseURL = trimTrailingSlash(valueOr(c.Vision.BaseURL, defaultVisionBaseURL))
	c.Translation.BaseURL = trimTrailingSlash(valueOr(c.Translation.BaseURL, defaultVisionBaseURL))
	c.IMDb.SearchBaseURL = trimTrailingSlash(valueOr(c.IMDb.SearchBaseURL, defaultIMDbSearchBaseURL))
	c.OMDb.BaseURL = trimTrailingSlash(valueOr(c.OMDb.BaseURL, defaultOMDbBaseURL))
	c.OMDb.PlotMode = strings.ToLower(valueOr(c.OMDb.PlotMode, defaultOMDbPlotMode))

	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultClientTimeout
	}
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultClientTimeout
	}
	if c.IMDb.TimeoutSeconds <= 0 {
		c.IMDb.TimeoutSeconds = defaultIMDbTimeout
	}
	if c.OMDb.TimeoutSeconds <= 0 {
		c.OMDb.TimeoutSeconds = defaultOMDbTimeout
	}
	if c.IMDb.MaxResults <= 0 {
		c.IMDb.MaxResults = defaultIMDbMaxResults
	}
	if c.Workflow.MaxAttempts < 0 {
		c.Workflow.MaxAttempts = defaultWorkflowMaxAttempts
	}
	if c.Workflow.BatchLimit <= 0 {
		c.Workflow.BatchLimit = defaultWorkflowBatchLimit
	}
	if c.Workflow.ReviewLimit <= 0 {
		c.Workflow.ReviewLimit = defaultReviewLimit
	}
	if c.Workflow.SnapshotLimit <= 0 {
		c.Workflow.SnapshotLimit = defaultSnapshotLimit
	}

	c.Logging.Format = strings.ToLower(valueOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(valueOr(c.Logging.Level, defaultLogLevel))
	return nil
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func trimTrailingSlash(value string) string {
	return strings.TrimRight(value, "/")
}
