/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/orangeslice/orangeslice-go/ai"
)

const (
	flagFormat       = "format"
	flagPrompt       = "prompt"
	flagSchema       = "schema"
	flagSystem       = "system"
	flagText         = "text"
	flagInstructions = "instructions"
	flagCount        = "count"
	flagQuery        = "query"
)

const defaultBenchQuery = "SELECT company_name, employee_count FROM linkedin_company " +
	"WHERE universal_name = 'stripe' LIMIT 1"

func formatFlag(value string, allowed ...outputFormat) cli.StringFlag {
	names := make([]string, 0, len(allowed))
	for _, f := range allowed {
		names = append(names, string(f))
	}
	return cli.StringFlag{
		Name:  flagFormat + ", f",
		Value: value,
		Usage: "output format: " + strings.Join(names, ", "),
	}
}

func queryArg(c *cli.Context) (string, error) {
	query := strings.TrimSpace(strings.Join(c.Args(), " "))
	if query == "" {
		return "", errors.New("SQL query is required")
	}
	return query, nil
}

func newSQLCommand(env *appEnv) cli.Command {
	return cli.Command{
		Name:      "sql",
		Usage:     "run a SQL query against the B2B database and print its rows",
		ArgsUsage: "QUERY",
		Flags:     []cli.Flag{formatFlag(string(formatTable), formatTable, formatJSON, formatYAML)},
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String(flagFormat), formatTable, formatJSON, formatYAML)
			if err != nil {
				return err
			}
			query, err := queryArg(c)
			if err != nil {
				return err
			}
			rows, err := env.b2b.SQL(context.Background(), query)
			if err != nil {
				return err
			}
			return renderRows(env.out, rows, format, env.withColor)
		},
	}
}

func newQueryCommand(env *appEnv) cli.Command {
	return cli.Command{
		Name:      "query",
		Usage:     "run a SQL query and print its rows with metadata",
		ArgsUsage: "QUERY",
		Flags:     []cli.Flag{formatFlag(string(formatJSON), formatJSON, formatYAML)},
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String(flagFormat), formatJSON, formatYAML)
			if err != nil {
				return err
			}
			query, err := queryArg(c)
			if err != nil {
				return err
			}
			res, err := env.b2b.Query(context.Background(), query)
			if err != nil {
				return err
			}
			return renderValue(env.out, res, format)
		},
	}
}

func loadSchemaFlag(c *cli.Context) (*ai.JSONSchema, error) {
	path := c.String(flagSchema)
	if path == "" {
		return nil, fmt.Errorf("--%s is required", flagSchema)
	}
	return ai.LoadSchemaFromFile(path)
}

func newGenerateCommand(env *appEnv) cli.Command {
	return cli.Command{
		Name:  "generate",
		Usage: "generate a structured object from a prompt",
		Flags: []cli.Flag{
			cli.StringFlag{Name: flagPrompt + ", p", Usage: "prompt describing the object"},
			cli.StringFlag{Name: flagSchema + ", s", Usage: "path to a JSON or YAML file with the object schema"},
			cli.StringFlag{Name: flagSystem, Usage: "optional system prompt"},
			formatFlag(string(formatJSON), formatJSON, formatYAML),
		},
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String(flagFormat), formatJSON, formatYAML)
			if err != nil {
				return err
			}
			if c.String(flagPrompt) == "" {
				return fmt.Errorf("--%s is required", flagPrompt)
			}
			schema, err := loadSchemaFlag(c)
			if err != nil {
				return err
			}
			raw, err := env.ai.GenerateObject(context.Background(), ai.GenerateObjectOptions{
				Prompt: c.String(flagPrompt),
				Schema: schema,
				System: c.String(flagSystem),
			})
			if err != nil {
				return err
			}
			return renderRawJSON(env.out, raw, format)
		},
	}
}

func newExtractCommand(env *appEnv) cli.Command {
	return cli.Command{
		Name:  "extract",
		Usage: "extract structured data from a text",
		Flags: []cli.Flag{
			cli.StringFlag{Name: flagText + ", t", Usage: "text to extract data from"},
			cli.StringFlag{Name: flagSchema + ", s", Usage: "path to a JSON or YAML file with the data schema"},
			cli.StringFlag{Name: flagInstructions + ", i", Usage: "optional extraction instructions"},
			formatFlag(string(formatJSON), formatJSON, formatYAML),
		},
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String(flagFormat), formatJSON, formatYAML)
			if err != nil {
				return err
			}
			if c.String(flagText) == "" {
				return fmt.Errorf("--%s is required", flagText)
			}
			schema, err := loadSchemaFlag(c)
			if err != nil {
				return err
			}
			raw, err := env.ai.Extract(context.Background(), c.String(flagText), schema, c.String(flagInstructions))
			if err != nil {
				return err
			}
			return renderRawJSON(env.out, raw, format)
		},
	}
}

type benchResult struct {
	rows    int
	elapsed time.Duration
	err     error
}

func newBenchCommand(env *appEnv) cli.Command {
	return cli.Command{
		Name:  "bench",
		Usage: "run parallel queries and report how the gate spreads them over time",
		Flags: []cli.Flag{
			cli.IntFlag{Name: flagCount + ", n", Value: 6, Usage: "number of parallel queries"},
			cli.StringFlag{Name: flagQuery + ", q", Value: defaultBenchQuery, Usage: "query to run"},
		},
		Action: func(c *cli.Context) error {
			count := c.Int(flagCount)
			if count < 1 {
				return fmt.Errorf("--%s should be >= 1", flagCount)
			}
			return runBench(env, c.String(flagQuery), count)
		},
	}
}

func runBench(env *appEnv, query string, count int) error {
	g := env.b2b.Gate()
	fmt.Fprintf(env.out, "Running %d parallel queries (concurrency %d, min delay %s)\n",
		count, g.Queue().Limit(), g.Limiter().MinDelay())

	results := make([]benchResult, count)
	var outMu sync.Mutex
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			queryStart := time.Now()
			rows, err := env.b2b.SQL(context.Background(), query)
			results[i] = benchResult{rows: len(rows), elapsed: time.Since(queryStart), err: err}

			outMu.Lock()
			defer outMu.Unlock()
			if err != nil {
				fmt.Fprintf(env.out, "  [%d] %s after %s: %v\n",
					i+1, colorize(env, color.RedString, "failed"), results[i].elapsed.Round(time.Millisecond), err)
				return
			}
			fmt.Fprintf(env.out, "  [%d] %s in %s, %d rows\n",
				i+1, colorize(env, color.GreenString, "finished"), results[i].elapsed.Round(time.Millisecond), len(rows))
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	fmt.Fprintf(env.out, "All %d queries completed in %s (%d failed)\n", count, elapsed.Round(time.Millisecond), failed)
	if failed != 0 {
		return fmt.Errorf("%d of %d queries failed", failed, count)
	}
	return nil
}

func colorize(env *appEnv, colorFn func(format string, a ...interface{}) string, s string) string {
	if !env.withColor {
		return s
	}
	return colorFn(s)
}
