package models

import (
	"errors"
	"time"
)

// Sentinel errors shared across packages. Everything here degrades to
// "no data / no fill" at runtime except ErrUnsupportedResolution, which is
// surfaced at subscription setup.
var (
	ErrUnsupportedResolution = errors.New("unsupported resolution")
	ErrNoQuoteAvailable      = errors.New("no quote available")
)

// DataKind selects between the two imported CSV schemas.
type DataKind string

const (
	KindQuotes DataKind = "quotes"
	KindTrades DataKind = "trades"
)

// Valid reports whether the kind is one of the two supported values.
func (k DataKind) Valid() bool {
	return k == KindQuotes || k == KindTrades
}

// OHLC holds one side of a quote bar or the traded prices of a trade bar.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Bar is the common view the feed and host loop use for both bar kinds.
type Bar interface {
	OpenTime() time.Time
	CloseTime() time.Time
	Value() float64
}

// QuoteBar is a period-aggregated bid/ask record. Start is the period start
// in UTC; the period end is Start + Period. Bid <= Ask is expected from the
// source but passed through unenforced.
type QuoteBar struct {
	Symbol string        `json:"symbol"`
	Start  time.Time     `json:"start"`
	Period time.Duration `json:"period"`
	Bid    OHLC          `json:"bid"`
	Ask    OHLC          `json:"ask"`
	Volume int64         `json:"volume"`
}

func (b QuoteBar) OpenTime() time.Time  { return b.Start }
func (b QuoteBar) CloseTime() time.Time { return b.Start.Add(b.Period) }

// Value returns the mid close, mirroring how the host derives a bar value
// from bid/ask.
func (b QuoteBar) Value() float64 { return (b.Bid.Close + b.Ask.Close) / 2 }

// Spread returns the closing ask-bid spread.
func (b QuoteBar) Spread() float64 { return b.Ask.Close - b.Bid.Close }

// Mid returns the mid OHLC derived from bid and ask.
func (b QuoteBar) Mid() OHLC {
	return OHLC{
		Open:  (b.Bid.Open + b.Ask.Open) / 2,
		High:  (b.Bid.High + b.Ask.High) / 2,
		Low:   (b.Bid.Low + b.Ask.Low) / 2,
		Close: (b.Bid.Close + b.Ask.Close) / 2,
	}
}

// TradeBar is a period-aggregated traded-price record with UTC timestamps.
type TradeBar struct {
	Symbol string        `json:"symbol"`
	Start  time.Time     `json:"start"`
	Period time.Duration `json:"period"`
	Price  OHLC          `json:"price"`
	Volume int64         `json:"volume"`
}

func (b TradeBar) OpenTime() time.Time  { return b.Start }
func (b TradeBar) CloseTime() time.Time { return b.Start.Add(b.Period) }
func (b TradeBar) Value() float64       { return b.Price.Close }
