/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/orangeslice/orangeslice-go/config"
)

const (
	// DefaultClientWaitTimeout is a default timeout for a client to wait for a response.
	DefaultClientWaitTimeout = 60 * time.Second

	// DefaultMaxRedirects is a default maximum number of redirects followed for a single request.
	DefaultMaxRedirects = 5

	// DefaultSlowRequestThreshold is a default threshold for logging requests as slow.
	DefaultSlowRequestThreshold = 5 * time.Second
)

const (
	cfgKeyTimeout                 = "timeout"
	cfgKeyUserAgent               = "userAgent"
	cfgKeyRedirectsEnabled        = "redirects.enabled"
	cfgKeyRedirectsMax            = "redirects.maxRedirects"
	cfgKeyLogEnabled              = "log.enabled"
	cfgKeyLogMode                 = "log.mode"
	cfgKeyLogSlowRequestThreshold = "log.slowRequestThreshold"
	cfgKeyMetricsEnabled          = "metrics.enabled"
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// Config represents options for HTTP client configuration.
type Config struct {
	// Timeout is the maximum time to wait for a request to be made (redirects included).
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// UserAgent is sent in all requests that have no User-Agent header.
	UserAgent string `mapstructure:"userAgent" yaml:"userAgent" json:"userAgent"`

	// Redirects is a configuration for following redirects with the same method and body.
	Redirects RedirectsConfig `mapstructure:"redirects" yaml:"redirects" json:"redirects"`

	// Log is a configuration for logging requests.
	Log LogConfig `mapstructure:"log" yaml:"log" json:"log"`

	// Metrics is a configuration for collecting metrics.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	keyPrefix string
}

// RedirectsConfig represents configuration options for following redirects.
type RedirectsConfig struct {
	// Enabled is a flag that enables following redirects by RedirectRoundTripper.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// MaxRedirects is the maximum number of redirects followed for a single request.
	MaxRedirects int `mapstructure:"maxRedirects" yaml:"maxRedirects" json:"maxRedirects"`
}

// LogConfig represents configuration options for HTTP client logs.
type LogConfig struct {
	// Enabled is a flag that enables logging.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// SlowRequestThreshold is a threshold for slow requests.
	SlowRequestThreshold time.Duration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"`

	// Mode of logging: [none, all, failed]. 'failed' by default.
	Mode LoggingMode `mapstructure:"mode" yaml:"mode" json:"mode"`
}

// TransportOpts returns transport options.
func (c *LogConfig) TransportOpts() LoggingRoundTripperOpts {
	return LoggingRoundTripperOpts{
		Mode:                 c.Mode,
		SlowRequestThreshold: c.SlowRequestThreshold,
	}
}

// MetricsConfig represents configuration options for HTTP client metrics.
type MetricsConfig struct {
	// Enabled is a flag that enables metrics.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// NewConfig creates a new instance of the Config without key prefix.
func NewConfig() *Config {
	return &Config{}
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return NewDefaultConfigWithKeyPrefix("")
}

// NewDefaultConfigWithKeyPrefix creates a new instance of the Config with default values and the given key prefix.
func NewDefaultConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{
		keyPrefix: keyPrefix,
		Timeout:   DefaultClientWaitTimeout,
		Redirects: RedirectsConfig{Enabled: true, MaxRedirects: DefaultMaxRedirects},
		Log: LogConfig{
			Enabled:              true,
			Mode:                 LoggingModeFailed,
			SlowRequestThreshold: DefaultSlowRequestThreshold,
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for HTTP client in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultClientWaitTimeout.String())
	dp.SetDefault(cfgKeyRedirectsEnabled, true)
	dp.SetDefault(cfgKeyRedirectsMax, DefaultMaxRedirects)
	dp.SetDefault(cfgKeyLogEnabled, true)
	dp.SetDefault(cfgKeyLogMode, string(LoggingModeFailed))
	dp.SetDefault(cfgKeyLogSlowRequestThreshold, DefaultSlowRequestThreshold.String())
}

var availableLoggingModes = []string{string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed)}

// Set sets HTTP client configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, fmt.Errorf("should not be negative"))
	}
	if c.UserAgent, err = dp.GetString(cfgKeyUserAgent); err != nil {
		return err
	}

	if c.Redirects.Enabled, err = dp.GetBool(cfgKeyRedirectsEnabled); err != nil {
		return err
	}
	if c.Redirects.MaxRedirects, err = dp.GetInt(cfgKeyRedirectsMax); err != nil {
		return err
	}
	if c.Redirects.MaxRedirects < 1 {
		return dp.WrapKeyErr(cfgKeyRedirectsMax, fmt.Errorf("should be >= 1"))
	}

	if c.Log.Enabled, err = dp.GetBool(cfgKeyLogEnabled); err != nil {
		return err
	}
	var modeStr string
	if modeStr, err = dp.GetStringFromSet(cfgKeyLogMode, availableLoggingModes, true); err != nil {
		return err
	}
	c.Log.Mode = LoggingMode(strings.ToLower(modeStr))
	if c.Log.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLogSlowRequestThreshold); err != nil {
		return err
	}

	if c.Metrics.Enabled, err = dp.GetBool(cfgKeyMetricsEnabled); err != nil {
		return err
	}

	return nil
}
