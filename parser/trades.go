package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fximport/models"
)

// trade rows: time,open,high,low,close,Volume with time in epoch seconds.
const tradeFieldCount = 6

// Epoch values above this are taken to be milliseconds. TradingView exports
// have been seen with both units.
const msEpochThreshold = int64(1e12)

// TradeScanner yields TradeBars from raw CSV bytes one row at a time with
// the same skip-malformed policy as QuoteScanner.
type TradeScanner struct {
	symbol  string
	gran    models.Granularity
	scanner *bufio.Scanner
	diags   Diagnostics
}

// NewTradeScanner prepares a lazy one-pass scan over raw trade CSV bytes.
func NewTradeScanner(symbol string, raw []byte, g models.Granularity) *TradeScanner {
	return &TradeScanner{
		symbol:  symbol,
		gran:    g,
		scanner: bufio.NewScanner(bytes.NewReader(raw)),
	}
}

// Next returns the next parseable trade bar in file order.
func (s *TradeScanner) Next() (models.TradeBar, bool) {
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
	return models.TradeBar{}, false
}

// Diagnostics returns the counters accumulated so far.
func (s *TradeScanner) Diagnostics() Diagnostics {
	return s.diags
}

func (s *TradeScanner) parseRow(line string) (models.TradeBar, error) {
	fields := strings.Split(line, ",")
	if len(fields) != tradeFieldCount {
		return models.TradeBar{}, fmt.Errorf("expected %d fields, got %d", tradeFieldCount, len(fields))
	}

	epoch, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return models.TradeBar{}, fmt.Errorf("time: %w", err)
	}
	if epoch > msEpochThreshold {
		epoch /= 1000
	}
	start := time.Unix(epoch, 0).UTC()

	var prices [4]float64
	for i := 0; i < 4; i++ {
		prices[i], err = strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return models.TradeBar{}, fmt.Errorf("price field %d: %w", i+1, err)
		}
	}

	volume, err := strconv.ParseInt(strings.TrimSpace(fields[5]), 10, 64)
	if err != nil {
		return models.TradeBar{}, fmt.Errorf("volume: %w", err)
	}

	return models.TradeBar{
		Symbol: s.symbol,
		Start:  start,
		Period: s.gran.Duration,
		Price:  models.OHLC{Open: prices[0], High: prices[1], Low: prices[2], Close: prices[3]},
		Volume: volume,
	}, nil
}

// ParseTrades drains a TradeScanner into a slice, preserving file order.
func ParseTrades(symbol string, raw []byte, g models.Granularity) ([]models.TradeBar, Diagnostics) {
	s := NewTradeScanner(symbol, raw, g)
	var bars []models.TradeBar
	for {
		bar, ok := s.Next()
		if !ok {
			break
		}
		bars = append(bars, bar)
	}
	return bars, s.Diagnostics()
}
