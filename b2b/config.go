/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package b2b

import (
	"os"
	"time"

	"github.com/orangeslice/orangeslice-go/config"
	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/httpclient"
	"github.com/orangeslice/orangeslice-go/internal/remotefn"
)

// Default values.
const (
	DefaultURL         = "https://orangeslice.ai/api/function?functionId=b2b"
	DefaultConcurrency = 2
	DefaultMinDelay    = 100 * time.Millisecond // at most 10 query starts per second
)

// URLEnvVar is the environment variable that overrides DefaultURL.
const URLEnvVar = "ORANGESLICE_API_URL"

const cfgDefaultKeyPrefix = "b2b"

const cfgKeyURL = "url"

// Config represents a set of configuration parameters for the database-query client.
type Config struct {
	URL        string             `mapstructure:"url" yaml:"url" json:"url"`
	Gate       *gate.Config       `mapstructure:"gate" yaml:"gate" json:"gate"`
	HTTPClient *httpclient.Config `mapstructure:"http" yaml:"http" json:"http"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config that is loaded from the "b2b" key.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{
		Gate:       gate.NewConfigWithKeyPrefix("gate", DefaultConcurrency, DefaultMinDelay),
		HTTPClient: httpclient.NewConfigWithKeyPrefix("http"),
		keyPrefix:  keyPrefix,
	}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	cfg := NewConfig()
	cfg.URL = defaultURL()
	cfg.Gate.Concurrency = DefaultConcurrency
	cfg.Gate.MinDelay = DefaultMinDelay
	cfg.HTTPClient = httpclient.NewDefaultConfigWithKeyPrefix("http")
	return cfg
}

func defaultURL() string {
	if u := os.Getenv(URLEnvVar); u != "" {
		return u
	}
	return DefaultURL
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyURL, defaultURL())
	c.Gate.SetProviderDefaults(config.DataProviderFor(dp, c.Gate))
	c.HTTPClient.SetProviderDefaults(config.DataProviderFor(dp, c.HTTPClient))
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.URL, err = dp.GetString(cfgKeyURL); err != nil {
		return err
	}
	if err = remotefn.ValidateURL(c.URL); err != nil {
		return dp.WrapKeyErr(cfgKeyURL, err)
	}
	if err = c.Gate.Set(config.DataProviderFor(dp, c.Gate)); err != nil {
		return err
	}
	return c.HTTPClient.Set(config.DataProviderFor(dp, c.HTTPClient))
}
