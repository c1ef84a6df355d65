// Package backtest drives the imported feeds through simulated time. It is
// the host side of the import pipeline: a single logical clock steps from
// the configured start to end, pulling bars from every feed, routing quotes
// to the fill model, attempting the scripted orders and collecting the
// results into a final report.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fximport/charts"
	appconfig "fximport/config"
	"fximport/feed"
	"fximport/fills"
	"fximport/logger"
	"fximport/models"
	"fximport/store"
	"fximport/writer"
)

// scheduledOrder pairs a scripted order with its activation time.
type scheduledOrder struct {
	order models.Order
	at    time.Time
}

// Report summarizes one completed run.
type Report struct {
	RunID         string
	Start         time.Time
	End           time.Time
	Steps         int
	BarsRead      int
	MalformedRows int
	Fills         []models.Fill
	Unfilled      []models.Order
	SkippedFeeds  []string
}

// Runner owns all run state. Build one per run; it is not reusable.
type Runner struct {
	cfg    *appconfig.Config
	blob   store.Blob
	feeds  []*feed.Feed
	model  *fills.Model
	charts *charts.Manager

	scheduled []scheduledOrder
	pending   []models.Order

	// bars read per feed key, kept for archiving after the run.
	quotesByKey map[string][]models.QuoteBar
	tradesByKey map[string][]models.TradeBar

	log *logger.Log
}

// NewRunner builds feeds for every configured subscription and schedules
// the scripted orders. Subscription errors (unsupported resolution, bad
// kind) fail here, before any simulated time passes.
func NewRunner(cfg *appconfig.Config, blob store.Blob) (*Runner, error) {
	start, err := cfg.Backtest.StartTime()
	if err != nil {
		return nil, fmt.Errorf("backtest start: %w", err)
	}

	r := &Runner{
		cfg:         cfg,
		blob:        blob,
		model:       fills.NewModel(),
		quotesByKey: make(map[string][]models.QuoteBar),
		tradesByKey: make(map[string][]models.TradeBar),
		log:         logger.GetLogger(),
	}
	if cfg.Charts.Enabled {
		r.charts = charts.NewManager()
	}

	for _, sub := range cfg.Subscriptions {
		res, err := sub.HostResolution()
		if err != nil {
			return nil, err
		}
		f, err := feed.New(feed.Subscription{
			Alias:          sub.Alias,
			Kind:           models.DataKind(sub.Kind),
			Source:         sub.Source,
			HostResolution: res,
		}, blob, start)
		if err != nil {
			return nil, err
		}
		r.feeds = append(r.feeds, f)
	}
	if len(r.feeds) == 0 {
		return nil, fmt.Errorf("no subscriptions configured")
	}

	for _, oc := range cfg.Backtest.Orders {
		at := start
		if oc.At != "" {
			at, err = appconfig.ParseTime(oc.At)
			if err != nil {
				return nil, fmt.Errorf("order at: %w", err)
			}
		}
		orderType := models.OrderType(oc.Type)
		if oc.Type == "" {
			orderType = models.OrderMarket
		}
		direction := models.OrderDirection(oc.Direction)
		if oc.Direction == "" {
			direction = models.DirectionBuy
		}
		r.scheduled = append(r.scheduled, scheduledOrder{
			order: models.Order{
				ID:           uuid.New().String(),
				Symbol:       oc.Symbol,
				Type:         orderType,
				Direction:    direction,
				Quantity:     oc.Quantity,
				LimitPrice:   oc.LimitPrice,
				StopPrice:    oc.StopPrice,
				TriggerPrice: oc.TriggerPrice,
				SubmittedAt:  at,
			},
			at: at,
		})
	}

	return r, nil
}

// Charts exposes the chart manager, nil when charts are disabled.
func (r *Runner) Charts() *charts.Manager { return r.charts }

// step returns the finest granularity among the feeds; simulated time
// advances by this much per iteration so no bar is skipped over.
func (r *Runner) step() time.Duration {
	step := r.feeds[0].Granularity().Duration
	for _, f := range r.feeds[1:] {
		if d := f.Granularity().Duration; d < step {
			step = d
		}
	}
	return step
}

// Run steps simulated time from start to end and returns the report. Feed
// data errors degrade to skipped feeds; only store failures and context
// cancellation abort the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start, err := r.cfg.Backtest.StartTime()
	if err != nil {
		return nil, err
	}
	end, err := r.cfg.Backtest.EndTime()
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID: uuid.New().String(),
		Start: start,
		End:   end,
	}
	step := r.step()
	wall := time.Now()

	r.log.WithComponent("backtest").WithFields(logger.Fields{
		"run_id": report.RunID,
		"start":  start,
		"end":    end,
		"step":   step.String(),
		"feeds":  len(r.feeds),
		"orders": len(r.scheduled),
	}).Info("backtest starting")

	for cursor := start; !cursor.After(end); cursor = cursor.Add(step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Steps++

		for _, f := range r.feeds {
			if err := r.drainFeed(ctx, f, cursor, report); err != nil {
				return nil, err
			}
		}

		r.activateOrders(cursor)
		r.attemptFills(report)
	}

	for _, f := range r.feeds {
		report.MalformedRows += f.Diagnostics().MalformedRows
	}
	report.Unfilled = append(report.Unfilled, r.pending...)
	for _, so := range r.scheduled {
		report.Unfilled = append(report.Unfilled, so.order)
	}

	if r.cfg.Archive.Enabled {
		if err := r.archive(ctx); err != nil {
			r.log.WithComponent("backtest").WithError(err).Warn("archiving failed")
		}
	}

	entry := r.log.WithComponent("backtest").WithFields(logger.Fields{
		"run_id":         report.RunID,
		"steps":          report.Steps,
		"bars_read":      report.BarsRead,
		"malformed_rows": report.MalformedRows,
		"fills":          len(report.Fills),
		"unfilled":       len(report.Unfilled),
		"skipped_feeds":  report.SkippedFeeds,
	})
	entry.Info("backtest finished")
	logger.LogPerformanceEntry(entry, "backtest", "run", time.Since(wall), nil)

	return report, nil
}

// drainFeed reads every bar the feed has up to the cursor and routes it.
func (r *Runner) drainFeed(ctx context.Context, f *feed.Feed, cursor time.Time, report *Report) error {
	for {
		bar, err := f.Read(ctx, cursor)
		if err != nil {
			if errors.Is(err, feed.ErrDataNotFound) {
				report.SkippedFeeds = append(report.SkippedFeeds, f.Alias())
				return nil
			}
			return fmt.Errorf("feed %s: %w", f.Alias(), err)
		}
		if bar == nil {
			return nil
		}
		report.BarsRead++

		switch b := bar.(type) {
		case *models.QuoteBar:
			r.model.OnQuoteObserved(b.Symbol, *b)
			r.quotesByKey[f.Key()] = append(r.quotesByKey[f.Key()], *b)
			if r.charts != nil {
				r.charts.ObserveQuote(f.Alias(), *b)
			}
		case *models.TradeBar:
			r.tradesByKey[f.Key()] = append(r.tradesByKey[f.Key()], *b)
			if r.charts != nil {
				r.charts.ObserveTrade(f.Alias(), *b)
			}
		}
	}
}

// activateOrders moves scripted orders whose submit time has been reached
// into the pending set.
func (r *Runner) activateOrders(cursor time.Time) {
	remaining := r.scheduled[:0]
	for _, so := range r.scheduled {
		if !so.at.After(cursor) {
			r.pending = append(r.pending, so.order)
		} else {
			remaining = append(remaining, so)
		}
	}
	r.scheduled = remaining
}

// attemptFills runs every pending order through the fill model. Orders
// without a quote yet, or not marketable, stay pending.
func (r *Runner) attemptFills(report *Report) {
	remaining := r.pending[:0]
	for _, order := range r.pending {
		fill, err := r.model.Fill(order)
		if err != nil {
			if errors.Is(err, models.ErrNoQuoteAvailable) {
				remaining = append(remaining, order)
				continue
			}
			r.log.WithComponent("backtest").WithError(err).WithFields(logger.Fields{
				"order_id": order.ID,
			}).Warn("order rejected")
			continue
		}
		if fill == nil {
			remaining = append(remaining, order)
			continue
		}
		report.Fills = append(report.Fills, *fill)
	}
	r.pending = remaining
}

// archive writes every materialized bar stream back as parquet.
func (r *Runner) archive(ctx context.Context) error {
	a := writer.NewArchiver(r.blob, r.cfg.Archive.Compression)
	for key, bars := range r.quotesByKey {
		if err := a.ArchiveQuotes(ctx, key, bars); err != nil {
			return err
		}
	}
	for key, bars := range r.tradesByKey {
		if err := a.ArchiveTrades(ctx, key, bars); err != nil {
			return err
		}
	}
	return nil
}
