package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"repack/internal/config"
	"repack/internal/queue"
)

// commandContext carries the lazily loaded configuration shared by all
// subcommands of one invocation.
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
		c.config, c.configErr = c.loadConfig()
	})
	return c.config, c.configErr
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(c.configPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// withStore opens the job store for the duration of fn. Every queue-touching
// command goes through here so connections never outlive their command.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// configIsOptional reports whether cmd or an ancestor opted out of config
// loading (version, config init, and friends work without one).
func configIsOptional(cmd *cobra.Command) bool {
	for at := cmd; at != nil; at = at.Parent() {
		if at.Annotations["configOptional"] == "true" {
			return true
		}
	}
	return false
}

func boolWord(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
