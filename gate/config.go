/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"fmt"
	"time"

	"github.com/orangeslice/orangeslice-go/config"
)

const (
	cfgKeyConcurrency = "concurrency"
	cfgKeyMinDelay    = "minDelay"
)

// Config represents a set of configuration parameters for Gate.
type Config struct {
	// Concurrency is the maximum number of simultaneously running tasks.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`

	// MinDelay is the minimum time between the starts of consecutive tasks.
	MinDelay time.Duration `mapstructure:"minDelay" yaml:"minDelay" json:"minDelay"`

	keyPrefix string
	defaults  configDefaults
}

type configDefaults struct {
	concurrency int
	minDelay    time.Duration
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfigWithKeyPrefix creates a new instance of the Config.
// The given defaults are used for the parameters that are missing in the data provider.
func NewConfigWithKeyPrefix(keyPrefix string, defaultConcurrency int, defaultMinDelay time.Duration) *Config {
	return &Config{
		keyPrefix: keyPrefix,
		defaults:  configDefaults{concurrency: defaultConcurrency, minDelay: defaultMinDelay},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for gate in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyConcurrency, c.defaults.concurrency)
	dp.SetDefault(cfgKeyMinDelay, c.defaults.minDelay.String())
}

// Set sets gate configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Concurrency, err = dp.GetInt(cfgKeyConcurrency); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return dp.WrapKeyErr(cfgKeyConcurrency, fmt.Errorf("should be >= 1"))
	}
	if c.MinDelay, err = dp.GetDuration(cfgKeyMinDelay); err != nil {
		return err
	}
	if c.MinDelay < 0 {
		return dp.WrapKeyErr(cfgKeyMinDelay, fmt.Errorf("should not be negative"))
	}
	return nil
}
