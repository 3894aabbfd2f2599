/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli"

	"github.com/orangeslice/orangeslice-go/ai"
	"github.com/orangeslice/orangeslice-go/b2b"
	"github.com/orangeslice/orangeslice-go/config"
	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/httpclient"
	"github.com/orangeslice/orangeslice-go/internal/libinfo"
	"github.com/orangeslice/orangeslice-go/log"
)

const envVarsPrefix = "orangeslice"

const metricsNamespace = "orangeslice"

const (
	flagConfig  = "config"
	flagMetrics = "metrics"
	flagNoColor = "no-color"
)

type appConfig struct {
	B2B *b2b.Config
	AI  *ai.Config
	Log *log.Config
}

func loadAppConfig(path string) (*appConfig, error) {
	cfg := &appConfig{B2B: b2b.NewConfig(), AI: ai.NewConfig(), Log: log.NewConfig()}
	loader := config.NewDefaultLoader(envVarsPrefix)
	if path == "" {
		if err := loader.Load(cfg.B2B, cfg.AI, cfg.Log); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	dataType := config.DataTypeYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dataType = config.DataTypeJSON
	}
	if err := loader.LoadFromFile(path, dataType, cfg.B2B, cfg.AI, cfg.Log); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}
	return cfg, nil
}

// appEnv holds everything commands need. It is filled in the Before hook of the app.
type appEnv struct {
	out       io.Writer
	errOut    io.Writer
	withColor bool
	logger    log.FieldLogger
	closeLog  log.CloseFunc
	b2b       *b2b.Client
	ai        *ai.Client
	registry  *prometheus.Registry
}

func (env *appEnv) init(c *cli.Context) error {
	cfg, err := loadAppConfig(c.GlobalString(flagConfig))
	if err != nil {
		return err
	}
	env.withColor = !c.GlobalBool(flagNoColor)
	env.logger, env.closeLog = log.NewLogger(cfg.Log)

	env.registry = prometheus.NewRegistry()
	gateMetrics := gate.NewPrometheusMetricsCollector(metricsNamespace)
	gateMetrics.MustRegisterWith(env.registry)
	httpMetrics := httpclient.NewPrometheusMetricsCollector(metricsNamespace)
	httpMetrics.MustRegisterWith(env.registry)
	if c.GlobalBool(flagMetrics) {
		cfg.B2B.HTTPClient.Metrics.Enabled = true
		cfg.AI.HTTPClient.Metrics.Enabled = true
	}

	if env.b2b, err = b2b.NewClientWithOpts(cfg.B2B, b2b.Opts{
		Logger:               env.logger,
		GateMetricsCollector: gateMetrics,
		HTTPMetricsCollector: httpMetrics,
	}); err != nil {
		return err
	}
	if env.ai, err = ai.NewClientWithOpts(cfg.AI, ai.Opts{
		Logger:               env.logger,
		GateMetricsCollector: gateMetrics,
		HTTPMetricsCollector: httpMetrics,
	}); err != nil {
		return err
	}
	return nil
}

func (env *appEnv) close(c *cli.Context) error {
	if c.GlobalBool(flagMetrics) && env.registry != nil {
		if err := writeMetrics(env.errOut, env.registry); err != nil {
			return err
		}
	}
	if env.closeLog != nil {
		env.closeLog()
	}
	return nil
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err = expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func newApp(out, errOut io.Writer) *cli.App {
	env := &appEnv{out: out, errOut: errOut}

	app := cli.NewApp()
	app.Name = "orangeslice"
	app.Usage = "query the B2B database and generate structured data with AI"
	app.Version = libinfo.GetLibVersion()
	app.Writer = out
	app.ErrWriter = errOut
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   flagConfig + ", c",
			Usage:  "path to a YAML or JSON config file",
			EnvVar: "ORANGESLICE_CONFIG",
		},
		cli.BoolFlag{
			Name:  flagMetrics,
			Usage: "print collected metrics to stderr after the command",
		},
		cli.BoolFlag{
			Name:  flagNoColor,
			Usage: "disable colored output",
		},
	}
	app.Before = env.init
	app.After = env.close
	app.Commands = []cli.Command{
		newSQLCommand(env),
		newQueryCommand(env),
		newGenerateCommand(env),
		newExtractCommand(env),
		newBenchCommand(env),
	}
	return app
}
