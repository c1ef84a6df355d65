// Package parser turns raw CSV bytes from the blob store into typed bars.
// Both row schemas are parsed lazily in a single pass; malformed rows are
// skipped and counted, never fatal, so one bad export line cannot stop a
// backtest.
package parser

import (
	"strings"
	"time"

	"fximport/logger"
)

// quoteTimeLayout is the naive timestamp format of quote exports,
// interpreted as UTC with no offset.
const quoteTimeLayout = "2006-01-02 15:04:05"

// Diagnostics accumulates per-parse counters. RowErrors keeps at most
// maxRecordedErrors samples so a fully corrupt file cannot balloon memory.
type Diagnostics struct {
	LinesRead     int
	BarsEmitted   int
	MalformedRows int
	RowErrors     []RowError
}

// RowError records one skipped row.
type RowError struct {
	Line int
	Text string
	Err  error
}

const maxRecordedErrors = 20

func (d *Diagnostics) recordMalformed(line int, text string, err error) {
	d.MalformedRows++
	if len(d.RowErrors) < maxRecordedErrors {
		d.RowErrors = append(d.RowErrors, RowError{Line: line, Text: text, Err: err})
	}
}

// Log emits a single summary entry for the parse, with a warning when rows
// were dropped, and publishes the counters through the runtime report and
// metric pipeline. size is the byte length of the parsed input.
func (d *Diagnostics) Log(log *logger.Log, key string, size int) {
	logger.IncrementBarsParsed(key, d.BarsEmitted, size)
	log.LogMetric("parser", "bars_parsed", d.BarsEmitted, "counter", logger.Fields{"key": key})
	if d.MalformedRows > 0 {
		logger.IncrementMalformedRows(d.MalformedRows)
		log.LogMetric("parser", "malformed_rows", d.MalformedRows, "counter", logger.Fields{"key": key})
	}
	entry := log.WithComponent("parser").WithFields(logger.Fields{
		"key":            key,
		"lines_read":     d.LinesRead,
		"bars_emitted":   d.BarsEmitted,
		"malformed_rows": d.MalformedRows,
	})
	if d.MalformedRows > 0 {
		entry.Warn("parse completed with skipped rows")
		return
	}
	entry.Debug("parse completed")
}

// parseUTC parses the quote date column as a naive UTC timestamp.
func parseUTC(s string) (time.Time, error) {
	return time.ParseInLocation(quoteTimeLayout, strings.TrimSpace(s), time.UTC)
}

// isHeaderOrBlank reports whether a line carries no data row. Data rows in
// both schemas start with a digit; everything else (headers, blanks) is
// skipped without being counted as malformed.
func isHeaderOrBlank(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	c := trimmed[0]
	return c < '0' || c > '9'
}
