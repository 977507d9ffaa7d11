package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"mixdown/internal/config"
	"mixdown/internal/logging"
	"mixdown/internal/toolchain"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
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

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) runner() (*toolchain.Runner, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return toolchain.NewRunner(logger), nil
}

func (c *commandContext) probeTimeout() time.Duration {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return time.Minute
	}
	return time.Duration(cfg.Toolchain.ProbeTimeoutSeconds) * time.Second
}
