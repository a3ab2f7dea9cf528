package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIMDb(); err != nil {
		return err
	}
	if err := c.validateOMDb(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.CoversDir == "" {
		return errors.New("paths.covers_dir must be set")
	}
	return nil
}

func (c *Config) validateIMDb() error {
	if c.IMDb.MaxResults < 1 || c.IMDb.MaxResults > 30 {
		return errors.New("imdb.max_results must be between 1 and 30")
	}
	return nil
}

func (c *Config) validateOMDb() error {
	switch c.OMDb.PlotMode {
	case "short", "full":
		return nil
	default:
		return fmt.Errorf("omdb.plot_mode must be %q or %q", "short", "full")
	}
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxAttempts > 20 {
		return errors.New("workflow.max_attempts must be at most 20")
	}
	if c.Workflow.BatchLimit > 5000 {
		return errors.New("workflow.batch_limit must be at most 5000")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q", "console", "json")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
