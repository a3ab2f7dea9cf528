package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	CoversDir string `toml:"covers_dir"`
	LogDir    string `toml:"log_dir"`
}

// Vision contains configuration for the cover extraction models.
type Vision struct {
	BaseURL        string `toml:"base_url"`
	TitleModel     string `toml:"title_model"`
	TeamModel      string `toml:"team_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation contains configuration for the plot translation model.
type Translation struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// IMDb contains configuration for title search and page fetches.
type IMDb struct {
	SearchBaseURL  string `toml:"search_base_url"`
	MaxResults     int    `toml:"max_results"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OMDb contains configuration for the OMDb metadata API.
type OMDb struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	PlotMode       string `toml:"plot_mode"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains configuration for the enrichment workflow supervisor.
type Workflow struct {
	MaxAttempts   int `toml:"max_attempts"`
	BatchLimit    int `toml:"batch_limit"`
	ReviewLimit   int `toml:"review_limit"`
	SnapshotLimit int `toml:"snapshot_limit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for coverdex.
//
// Configuration sections by subsystem:
//   - Paths: data, covers, and log directories
//   - Vision: cover extraction models
//   - Translation: plot translation model
//   - IMDb: title search settings
//   - OMDb: metadata API settings
//   - Workflow: retry budget and batch/snapshot limits
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Vision      Vision      `toml:"vision"`
	Translation Translation `toml:"translation"`
	IMDb        IMDb        `toml:"imdb"`
	OMDb        OMDb        `toml:"omdb"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/coverdex/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("coverdex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the configured directories when missing.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.CoversDir, c.Paths.LogDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the catalog database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LockPath returns the location of the controller lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "coverdex.lock")
}

// LogPath returns the location of the primary log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "coverdex.log")
}

// Sample returns the embedded sample configuration file contents.
func Sample() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to the given path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}
