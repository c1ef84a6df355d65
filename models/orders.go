package models

import "time"

// OrderType enumerates the order shapes the fill model prices.
type OrderType string

const (
	OrderMarket         OrderType = "market"
	OrderLimit          OrderType = "limit"
	OrderStopMarket     OrderType = "stop_market"
	OrderStopLimit      OrderType = "stop_limit"
	OrderLimitIfTouched OrderType = "limit_if_touched"

	// With one quote bar per step there is no intra-bar trail to ratchet
	// and no session open/close distinct from the bar close, so these
	// collapse onto the stop-market and market pricing rules.
	OrderTrailingStop  OrderType = "trailing_stop"
	OrderMarketOnOpen  OrderType = "market_on_open"
	OrderMarketOnClose OrderType = "market_on_close"
)

// OrderDirection is the side of the order.
type OrderDirection string

const (
	DirectionBuy  OrderDirection = "buy"
	DirectionSell OrderDirection = "sell"
)

// Order is a pending order request consumed by the fill model. The fill
// model only reads it; ownership stays with the host.
type Order struct {
	ID           string         `json:"id"`
	Symbol       string         `json:"symbol"`
	Type         OrderType      `json:"type"`
	Direction    OrderDirection `json:"direction"`
	Quantity     int64          `json:"quantity"`
	LimitPrice   float64        `json:"limit_price,omitempty"`
	StopPrice    float64        `json:"stop_price,omitempty"`
	TriggerPrice float64        `json:"trigger_price,omitempty"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

// Fill is the result of matching an order against the latest imported
// quote. Fills are all-or-nothing; Quantity always equals the order's.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`
	Quantity int64     `json:"quantity"`
	Time     time.Time `json:"time"`
}
