// Package feed turns one (alias, kind) subscription into a replayable
// stream of bars pulled from the blob store. A feed materializes its whole
// file on first read and then hands bars to the host loop one at a time as
// simulated time reaches them.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fximport/keys"
	"fximport/logger"
	"fximport/models"
	"fximport/parser"
	"fximport/store"
)

// ErrDataNotFound is reported once, on the first read, when the store holds
// no blob under the subscription's key. The feed then goes straight to
// Exhausted and later reads return no data without error.
var ErrDataNotFound = errors.New("no data found for subscription")

// State tracks where a feed is in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReading
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReading:
		return "reading"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Subscription describes one imported data stream request.
type Subscription struct {
	Alias          string
	Kind           models.DataKind
	Source         string
	HostResolution time.Duration
}

// Feed is a single-subscription data source. It is not safe for concurrent
// use; the host loop owns it on one logical thread of simulated time.
type Feed struct {
	sub    Subscription
	blob   store.Blob
	symbol string
	gran   models.Granularity
	key    string

	// readFrom drops bars that start before the backtest window.
	readFrom time.Time

	state  State
	quotes []models.QuoteBar
	trades []models.TradeBar
	next   int
	diags  parser.Diagnostics
	log    *logger.Log
}

// New resolves the subscription's granularity and storage key up front so
// an unsupported resolution fails at setup, not mid-run. readFrom is the
// earliest bar start the feed will deliver.
func New(sub Subscription, blob store.Blob, readFrom time.Time) (*Feed, error) {
	if !sub.Kind.Valid() {
		return nil, fmt.Errorf("subscription %s: invalid kind %q", sub.Alias, sub.Kind)
	}

	gran, err := keys.ResolveGranularity(sub.Alias, sub.HostResolution)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", sub.Alias, err)
	}

	symbol := keys.PairFromAlias(sub.Alias)
	key, err := keys.BuildKey(symbol, sub.Kind, gran, sub.Source)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", sub.Alias, err)
	}

	return &Feed{
		sub:      sub,
		blob:     blob,
		symbol:   symbol,
		gran:     gran,
		key:      key,
		readFrom: readFrom,
		state:    StateUninitialized,
		log:      logger.GetLogger(),
	}, nil
}

func (f *Feed) Symbol() string                  { return f.symbol }
func (f *Feed) Alias() string                   { return f.sub.Alias }
func (f *Feed) Kind() models.DataKind           { return f.sub.Kind }
func (f *Feed) Granularity() models.Granularity { return f.gran }
func (f *Feed) Key() string                     { return f.key }
func (f *Feed) State() State                    { return f.state }
func (f *Feed) Exhausted() bool                 { return f.state == StateExhausted }

// Diagnostics exposes the parse counters once the feed has materialized.
func (f *Feed) Diagnostics() parser.Diagnostics { return f.diags }

// Read returns the next undelivered bar whose start time has been reached
// (start ≤ cursor). A nil bar with nil error means nothing is available at
// this cursor: either the next bar is still in the future or the feed is
// exhausted. Each bar is delivered exactly once, in file order.
func (f *Feed) Read(ctx context.Context, cursor time.Time) (models.Bar, error) {
	switch f.state {
	case StateExhausted:
		return nil, nil
	case StateUninitialized:
		if err := f.materialize(ctx); err != nil {
			return nil, err
		}
	}

	if f.next >= f.remaining() {
		f.state = StateExhausted
		f.log.WithComponent("feed").WithFields(logger.Fields{
			"alias": f.sub.Alias,
			"key":   f.key,
		}).Debug("feed exhausted")
		return nil, nil
	}

	bar := f.barAt(f.next)
	if bar.OpenTime().After(cursor) {
		return nil, nil
	}
	f.next++
	return bar, nil
}

func (f *Feed) remaining() int {
	if f.sub.Kind == models.KindQuotes {
		return len(f.quotes)
	}
	return len(f.trades)
}

func (f *Feed) barAt(i int) models.Bar {
	if f.sub.Kind == models.KindQuotes {
		return &f.quotes[i]
	}
	return &f.trades[i]
}

// materialize fetches and parses the whole blob. A missing blob exhausts
// the feed and surfaces ErrDataNotFound exactly once.
func (f *Feed) materialize(ctx context.Context) error {
	raw, err := f.blob.Get(ctx, f.key)
	if err != nil {
		f.state = StateExhausted
		if errors.Is(err, store.ErrNotFound) {
			f.log.WithComponent("feed").WithFields(logger.Fields{
				"alias": f.sub.Alias,
				"key":   f.key,
			}).Warn("no data found for subscription")
			return fmt.Errorf("%w: %s", ErrDataNotFound, f.key)
		}
		return fmt.Errorf("fetch %s: %w", f.key, err)
	}

	switch f.sub.Kind {
	case models.KindQuotes:
		bars, diags := parser.ParseQuotes(f.symbol, raw, f.gran)
		f.quotes = trimQuotes(bars, f.readFrom)
		f.diags = diags
	case models.KindTrades:
		bars, diags := parser.ParseTrades(f.symbol, raw, f.gran)
		f.trades = trimTrades(bars, f.readFrom)
		f.diags = diags
	}
	f.diags.Log(f.log, f.key, len(raw))

	f.state = StateReading
	f.log.WithComponent("feed").WithFields(logger.Fields{
		"alias": f.sub.Alias,
		"key":   f.key,
		"bars":  f.remaining(),
	}).Info("feed materialized")
	return nil
}

func trimQuotes(bars []models.QuoteBar, floor time.Time) []models.QuoteBar {
	if floor.IsZero() {
		return bars
	}
	out := bars[:0]
	for _, b := range bars {
		if !b.Start.Before(floor) {
			out = append(out, b)
		}
	}
	return out
}

func trimTrades(bars []models.TradeBar, floor time.Time) []models.TradeBar {
	if floor.IsZero() {
		return bars
	}
	out := bars[:0]
	for _, b := range bars {
		if !b.Start.Before(floor) {
			out = append(out, b)
		}
	}
	return out
}
