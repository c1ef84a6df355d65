package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"fximport/models"
)

// quote rows: Date,BidOpen,BidHigh,BidLow,BidClose,AskOpen,AskHigh,AskLow,AskClose,Volume
const quoteFieldCount = 10

// QuoteScanner yields QuoteBars from raw CSV bytes one row at a time,
// preserving file order. It is a pure function of (bytes, granularity);
// callers own the Diagnostics after the scan finishes.
type QuoteScanner struct {
	symbol  string
	gran    models.Granularity
	scanner *bufio.Scanner
	diags   Diagnostics
}

// NewQuoteScanner prepares a lazy one-pass scan over raw quote CSV bytes.
// symbol is stamped onto every emitted bar.
func NewQuoteScanner(symbol string, raw []byte, g models.Granularity) *QuoteScanner {
	return &QuoteScanner{
		symbol:  symbol,
		gran:    g,
		scanner: bufio.NewScanner(bytes.NewReader(raw)),
	}
}

// Next returns the next parseable quote bar. ok is false once the input is
// exhausted; malformed rows are skipped and counted.
func (s *QuoteScanner) Next() (models.QuoteBar, bool) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		s.diags.LinesRead++
		if isHeaderOrBlank(line) {
			continue
		}
		bar, err := s.parseRow(line)
		if err != nil {
			s.diags.recordMalformed(s.diags.LinesRead, line, err)
			continue
		}
		s.diags.BarsEmitted++
		return bar, true
	}
	return models.QuoteBar{}, false
}

// Diagnostics returns the counters accumulated so far.
func (s *QuoteScanner) Diagnostics() Diagnostics {
	return s.diags
}

func (s *QuoteScanner) parseRow(line string) (models.QuoteBar, error) {
	fields := strings.Split(line, ",")
	if len(fields) != quoteFieldCount {
		return models.QuoteBar{}, fmt.Errorf("expected %d fields, got %d", quoteFieldCount, len(fields))
	}

	start, err := parseUTC(fields[0])
	if err != nil {
		return models.QuoteBar{}, fmt.Errorf("date: %w", err)
	}

	var prices [8]float64
	for i := 0; i < 8; i++ {
		prices[i], err = strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return models.QuoteBar{}, fmt.Errorf("price field %d: %w", i+1, err)
		}
	}

	volume, err := strconv.ParseInt(strings.TrimSpace(fields[9]), 10, 64)
	if err != nil {
		return models.QuoteBar{}, fmt.Errorf("volume: %w", err)
	}

	return models.QuoteBar{
		Symbol: s.symbol,
		Start:  start,
		Period: s.gran.Duration,
		Bid:    models.OHLC{Open: prices[0], High: prices[1], Low: prices[2], Close: prices[3]},
		Ask:    models.OHLC{Open: prices[4], High: prices[5], Low: prices[6], Close: prices[7]},
		Volume: volume,
	}, nil
}

// ParseQuotes drains a QuoteScanner into a slice. File order is preserved;
// out-of-order rows are emitted as-is, never re-sorted.
func ParseQuotes(symbol string, raw []byte, g models.Granularity) ([]models.QuoteBar, Diagnostics) {
	s := NewQuoteScanner(symbol, raw, g)
	var bars []models.QuoteBar
	for {
		bar, ok := s.Next()
		if !ok {
			break
		}
		bars = append(bars, bar)
	}
	return bars, s.Diagnostics()
}
