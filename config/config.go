package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/studycore/core/validator"
	"github.com/kochabx/studycore/log"
)

// Config manages loading and reloading a configuration target
type Config struct {
	mu        sync.RWMutex
	viper     *viper.Viper
	validate  validator.Validator
	target    any
	loader    Loader
	name      string
	paths     []string
	envPrefix string
	optional  bool
	onChange  []func()
}

// New creates a Config for target.
// Without WithLoader a FileLoader is used on "config.yaml" in ".".
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:    viper.New(),
		validate: validator.Validate,
		target:   target,
		name:     "config.yaml",
		paths:    []string{"."},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.loader == nil {
		if c.envPrefix != "" {
			c.viper.SetEnvPrefix(c.envPrefix)
		}
		fl := NewFileLoader(c.name, c.paths, c.viper, c.validate)
		fl.optional = c.optional
		c.loader = fl
	}

	return c
}

// Load reads the configuration using the configured loader
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loader.Load(c.target)
}

// Reload reloads the configuration and runs the change callbacks
func (c *Config) Reload() error {
	if err := c.Load(); err != nil {
		return err
	}

	c.mu.RLock()
	callbacks := c.onChange
	c.mu.RUnlock()
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Watch reloads the target whenever the source changes
func (c *Config) Watch() error {
	return c.loader.Watch(func() {
		log.Info().Msg("config change detected")

		if err := c.Reload(); err != nil {
			log.Error().Err(err).Msg("failed to reload config after change")
			return
		}

		log.Info().Msg("config reloaded successfully")
	})
}

// Viper returns the underlying viper instance
func (c *Config) Viper() *viper.Viper {
	return c.viper
}
