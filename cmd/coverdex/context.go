package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"coverdex/internal/catalog"
	"coverdex/internal/config"
	"coverdex/internal/handlers"
	"coverdex/internal/logging"
	"coverdex/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", cfg.LogPath()},
	})
}

func (c *commandContext) openStore() (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg)
}

// newController builds the full stack for commands that execute runs.
func (c *commandContext) newController(store *catalog.Store) (*workflow.Controller, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	set, err := handlers.NewSet(cfg, logger)
	if err != nil {
		return nil, err
	}
	return workflow.NewController(cfg, store, logger, set)
}

// acquireLock takes the single-writer file lock. Mutating commands hold
// it for their whole lifetime; the returned release func drops it.
func (c *commandContext) acquireLock() (func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workflow lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another coverdex process holds %s", cfg.LockPath())
	}
	return func() { _ = lock.Unlock() }, nil
}
