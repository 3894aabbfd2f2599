/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/orangeslice/orangeslice-go/b2b"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

var tableHeaderColor = tablewriter.Colors{tablewriter.FgHiBlueColor}

func parseOutputFormat(s string, allowed ...outputFormat) (outputFormat, error) {
	names := make([]string, 0, len(allowed))
	for _, f := range allowed {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
		names = append(names, string(f))
	}
	return "", fmt.Errorf("unknown output format %q, should be one of [%s]", s, strings.Join(names, " "))
}

func renderValue(w io.Writer, v interface{}, format outputFormat) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// renderRawJSON re-encodes a raw JSON document in the given format.
func renderRawJSON(w io.Writer, raw json.RawMessage, format outputFormat) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode generated object: %w", err)
	}
	return renderValue(w, v, format)
}

func renderRows(w io.Writer, rows []b2b.Row, format outputFormat, withColor bool) error {
	if format != formatTable {
		return renderValue(w, rows, format)
	}
	if len(rows) == 0 {
		return nil
	}

	columns := rowColumns(rows)
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetColumnSeparator("|")
	table.SetHeaderLine(false)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(columns)
	if withColor {
		colors := make([]tablewriter.Colors, len(columns))
		for i := range colors {
			colors[i] = tableHeaderColor
		}
		table.SetHeaderColor(colors...)
	}
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(row[col])
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}

// rowColumns returns the sorted union of column names of all rows.
func rowColumns(rows []b2b.Row) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, row := range rows {
		for col := range row {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		buf, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(buf)
	}
}
