package main

import (
	"strings"
	"sync"

	"byline/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
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

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiAddress resolves the daemon API address from the --api flag, falling
// back to the configured bind address.
func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return strings.TrimSpace(cfg.Paths.APIBind)
	}
	return ""
}

func (c *commandContext) apiToken() string {
	if cfg := c.configValue(); cfg != nil {
		return strings.TrimSpace(cfg.Paths.APIToken)
	}
	return ""
}

func (c *commandContext) withClient(fn func(*apiClient) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	return fn(client)
}

func (c *commandContext) dialClient() (*apiClient, error) {
	return newAPIClient(c.apiAddress(), c.apiToken())
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
