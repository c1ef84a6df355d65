// Package fills prices simulated order fills from the latest imported
// quote bar per symbol. Fills are deterministic and all-or-nothing: the
// same quotes and orders always produce the same fills.
package fills

import (
	"fmt"
	"math"

	"fximport/logger"
	"fximport/models"
)

// Model matches orders against the most recently observed quote bar for
// their symbol. It owns the latest-quote state; entries are created lazily
// and overwritten unconditionally, never removed. Not safe for concurrent
// use: the host loop drives it on one logical thread of simulated time.
type Model struct {
	latest map[string]models.QuoteBar

	// triggered remembers stop and touch conditions that have fired, so a
	// stop-limit order stays armed once its stop is crossed even if the
	// limit is not yet marketable.
	triggered map[string]bool

	log *logger.Log
}

// NewModel creates an empty fill model.
func NewModel() *Model {
	return &Model{
		latest:    make(map[string]models.QuoteBar),
		triggered: make(map[string]bool),
		log:       logger.GetLogger(),
	}
}

// OnQuoteObserved records the latest quote bar for a symbol. Last write
// wins; stale data is the caller's concern.
func (m *Model) OnQuoteObserved(symbol string, bar models.QuoteBar) {
	m.latest[symbol] = bar
}

// LatestQuote returns the last observed quote for a symbol.
func (m *Model) LatestQuote(symbol string) (models.QuoteBar, bool) {
	q, ok := m.latest[symbol]
	return q, ok
}

// Fill attempts to price an order against the latest quote for its symbol.
// A nil fill with nil error means the order is not marketable at the
// current quote and stays pending. ErrNoQuoteAvailable is returned when no
// quote has been observed for the symbol yet.
func (m *Model) Fill(order models.Order) (*models.Fill, error) {
	quote, ok := m.latest[order.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNoQuoteAvailable, order.Symbol)
	}

	var price float64
	var filled bool

	switch order.Type {
	case models.OrderMarket, models.OrderMarketOnOpen, models.OrderMarketOnClose:
		price, filled = m.marketFill(order, quote), true
	case models.OrderLimit:
		price, filled = m.limitFill(order, quote)
	case models.OrderStopMarket, models.OrderTrailingStop:
		price, filled = m.stopMarketFill(order, quote)
	case models.OrderStopLimit:
		price, filled = m.stopLimitFill(order, quote)
	case models.OrderLimitIfTouched:
		price, filled = m.limitIfTouchedFill(order, quote)
	default:
		return nil, fmt.Errorf("unsupported order type %q", order.Type)
	}

	if !filled {
		return nil, nil
	}

	fill := &models.Fill{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Price:    price,
		Quantity: order.Quantity,
		Time:     quote.CloseTime(),
	}
	delete(m.triggered, order.ID)
	logger.IncrementOrdersFilled()
	m.log.WithComponent("fills").WithFields(logger.Fields{
		"order_id":  order.ID,
		"symbol":    order.Symbol,
		"type":      string(order.Type),
		"direction": string(order.Direction),
		"price":     price,
		"quantity":  order.Quantity,
	}).Info("order filled")
	return fill, nil
}

// reference returns the side-appropriate closing price: buyers cross the
// ask, sellers hit the bid.
func reference(order models.Order, quote models.QuoteBar) float64 {
	if order.Direction == models.DirectionBuy {
		return quote.Ask.Close
	}
	return quote.Bid.Close
}

func (m *Model) marketFill(order models.Order, quote models.QuoteBar) float64 {
	return reference(order, quote)
}

// limitFill fills only when the reference price is marketable against the
// limit, at the price better for the order holder.
func (m *Model) limitFill(order models.Order, quote models.QuoteBar) (float64, bool) {
	ref := reference(order, quote)
	if order.Direction == models.DirectionBuy {
		if ref <= order.LimitPrice {
			return math.Min(ref, order.LimitPrice), true
		}
		return 0, false
	}
	if ref >= order.LimitPrice {
		return math.Max(ref, order.LimitPrice), true
	}
	return 0, false
}

// stopMarketFill fills once the reference price crosses the stop, at the
// worse of reference and stop to model slippage through the stop level.
func (m *Model) stopMarketFill(order models.Order, quote models.QuoteBar) (float64, bool) {
	ref := reference(order, quote)
	if order.Direction == models.DirectionBuy {
		if ref >= order.StopPrice {
			return math.Max(ref, order.StopPrice), true
		}
		return 0, false
	}
	if ref <= order.StopPrice {
		return math.Min(ref, order.StopPrice), true
	}
	return 0, false
}

// stopLimitFill arms the order when the stop is crossed, then behaves like
// a limit order. Once armed it stays armed across quotes.
func (m *Model) stopLimitFill(order models.Order, quote models.QuoteBar) (float64, bool) {
	ref := reference(order, quote)
	if !m.triggered[order.ID] {
		crossed := (order.Direction == models.DirectionBuy && ref >= order.StopPrice) ||
			(order.Direction == models.DirectionSell && ref <= order.StopPrice)
		if !crossed {
			return 0, false
		}
		m.triggered[order.ID] = true
	}
	return m.limitFill(order, quote)
}

// limitIfTouchedFill arms the order when the trigger is touched, then
// behaves like a limit order.
func (m *Model) limitIfTouchedFill(order models.Order, quote models.QuoteBar) (float64, bool) {
	ref := reference(order, quote)
	if !m.triggered[order.ID] {
		touched := (order.Direction == models.DirectionBuy && ref <= order.TriggerPrice) ||
			(order.Direction == models.DirectionSell && ref >= order.TriggerPrice)
		if !touched {
			return 0, false
		}
		m.triggered[order.ID] = true
	}
	return m.limitFill(order, quote)
}
