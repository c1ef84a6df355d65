package fills

import (
	"errors"
	"testing"
	"time"

	"fximport/models"
)

func quoteAt(bidClose, askClose float64) models.QuoteBar {
	return models.QuoteBar{
		Symbol: "EURUSD",
		Start:  time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		Period: time.Minute,
		Bid:    models.OHLC{Open: bidClose, High: bidClose, Low: bidClose, Close: bidClose},
		Ask:    models.OHLC{Open: askClose, High: askClose, Low: askClose, Close: askClose},
		Volume: 100,
	}
}

func TestFillNoQuoteAvailable(t *testing.T) {
	m := NewModel()
	_, err := m.Fill(models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderMarket, Direction: models.DirectionBuy, Quantity: 1000})
	if !errors.Is(err, models.ErrNoQuoteAvailable) {
		t.Fatalf("expected ErrNoQuoteAvailable, got %v", err)
	}
}

func TestMarketFillUsesSideClose(t *testing.T) {
	m := NewModel()
	m.OnQuoteObserved("EURUSD", quoteAt(1.17359, 1.17369))

	buy, err := m.Fill(models.Order{ID: "b", Symbol: "EURUSD", Type: models.OrderMarket, Direction: models.DirectionBuy, Quantity: 1000})
	if err != nil || buy == nil {
		t.Fatalf("buy fill: %v %v", buy, err)
	}
	if buy.Price != 1.17369 {
		t.Errorf("buy price = %v, want ask close", buy.Price)
	}

	sell, err := m.Fill(models.Order{ID: "s", Symbol: "EURUSD", Type: models.OrderMarket, Direction: models.DirectionSell, Quantity: 1000})
	if err != nil || sell == nil {
		t.Fatalf("sell fill: %v %v", sell, err)
	}
	if sell.Price != 1.17359 {
		t.Errorf("sell price = %v, want bid close", sell.Price)
	}

	wantTime := time.Date(2025, 7, 10, 0, 1, 0, 0, time.UTC)
	if !buy.Time.Equal(wantTime) {
		t.Errorf("fill time = %v, want quote close time %v", buy.Time, wantTime)
	}
	if buy.Quantity != 1000 {
		t.Errorf("quantity = %d", buy.Quantity)
	}
}

func TestLatestQuoteOverwrite(t *testing.T) {
	m := NewModel()
	m.OnQuoteObserved("EURUSD", quoteAt(1.1, 1.2))
	m.OnQuoteObserved("EURUSD", quoteAt(1.3, 1.4))

	fill, err := m.Fill(models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderMarket, Direction: models.DirectionBuy, Quantity: 1})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if fill.Price != 1.4 {
		t.Errorf("price = %v, want latest ask", fill.Price)
	}
}

func TestLatestQuote(t *testing.T) {
	m := NewModel()
	if _, ok := m.LatestQuote("EURUSD"); ok {
		t.Fatal("no quote observed yet")
	}

	want := quoteAt(1.17359, 1.17369)
	m.OnQuoteObserved("EURUSD", want)
	got, ok := m.LatestQuote("EURUSD")
	if !ok {
		t.Fatal("quote should be available after observation")
	}
	if got != want {
		t.Fatalf("latest quote = %+v, want %+v", got, want)
	}
}

func TestLimitFillMarketability(t *testing.T) {
	m := NewModel()
	m.OnQuoteObserved("EURUSD", quoteAt(1.17359, 1.17369))

	// Buy limit below the ask: not marketable, no fill, no error.
	fill, err := m.Fill(models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderLimit, Direction: models.DirectionBuy, Quantity: 1000, LimitPrice: 1.17360})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if fill != nil {
		t.Fatalf("expected no fill, got %v", fill.Price)
	}

	// Buy limit above the ask: fills at the ask, never worse than limit.
	fill, err = m.Fill(models.Order{ID: "2", Symbol: "EURUSD", Type: models.OrderLimit, Direction: models.DirectionBuy, Quantity: 1000, LimitPrice: 1.17400})
	if err != nil || fill == nil {
		t.Fatalf("fill: %v %v", fill, err)
	}
	if fill.Price != 1.17369 {
		t.Errorf("buy limit price = %v", fill.Price)
	}

	// Sell limit below the bid: fills at the bid.
	fill, err = m.Fill(models.Order{ID: "3", Symbol: "EURUSD", Type: models.OrderLimit, Direction: models.DirectionSell, Quantity: 1000, LimitPrice: 1.17300})
	if err != nil || fill == nil {
		t.Fatalf("fill: %v %v", fill, err)
	}
	if fill.Price != 1.17359 {
		t.Errorf("sell limit price = %v", fill.Price)
	}

	// Sell limit above the bid: not marketable.
	fill, err = m.Fill(models.Order{ID: "4", Symbol: "EURUSD", Type: models.OrderLimit, Direction: models.DirectionSell, Quantity: 1000, LimitPrice: 1.17400})
	if err != nil || fill != nil {
		t.Fatalf("expected no fill, got %v err=%v", fill, err)
	}
}

func TestStopMarketFill(t *testing.T) {
	m := NewModel()
	m.OnQuoteObserved("EURUSD", quoteAt(1.17359, 1.17369))

	// Buy stop above the ask: not triggered.
	fill, err := m.Fill(models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderStopMarket, Direction: models.DirectionBuy, Quantity: 100, StopPrice: 1.17400})
	if err != nil || fill != nil {
		t.Fatalf("expected no fill, got %v err=%v", fill, err)
	}

	// Ask crosses the stop: fills at the worse of ask and stop.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17410, 1.17420))
	fill, err = m.Fill(models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderStopMarket, Direction: models.DirectionBuy, Quantity: 100, StopPrice: 1.17400})
	if err != nil || fill == nil {
		t.Fatalf("fill: %v %v", fill, err)
	}
	if fill.Price != 1.17420 {
		t.Errorf("buy stop price = %v", fill.Price)
	}

	// Sell stop below the bid triggers when bid drops through it.
	fill, err = m.Fill(models.Order{ID: "2", Symbol: "EURUSD", Type: models.OrderStopMarket, Direction: models.DirectionSell, Quantity: 100, StopPrice: 1.17500})
	if err != nil || fill == nil {
		t.Fatalf("fill: %v %v", fill, err)
	}
	if fill.Price != 1.17410 {
		t.Errorf("sell stop price = %v", fill.Price)
	}
}

func TestStopLimitStaysArmed(t *testing.T) {
	m := NewModel()
	order := models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderStopLimit, Direction: models.DirectionBuy, Quantity: 100, StopPrice: 1.17400, LimitPrice: 1.17410}

	// Below the stop: nothing.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17350, 1.17360))
	if fill, err := m.Fill(order); err != nil || fill != nil {
		t.Fatalf("expected no fill, got %v err=%v", fill, err)
	}

	// Stop crossed but ask above the limit: armed, not filled.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17420, 1.17430))
	if fill, err := m.Fill(order); err != nil || fill != nil {
		t.Fatalf("expected armed no-fill, got %v err=%v", fill, err)
	}

	// Ask retreats under the limit: fills even though the stop condition no
	// longer holds, because the order stayed armed.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17390, 1.17400))
	fill, err := m.Fill(order)
	if err != nil || fill == nil {
		t.Fatalf("fill: %v %v", fill, err)
	}
	if fill.Price != 1.17400 {
		t.Errorf("stop limit price = %v", fill.Price)
	}
}

func TestLimitIfTouched(t *testing.T) {
	m := NewModel()
	order := models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderLimitIfTouched, Direction: models.DirectionBuy, Quantity: 100, TriggerPrice: 1.17360, LimitPrice: 1.17380}

	// Ask above the trigger: untouched.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17390, 1.17400))
	if fill, err := m.Fill(order); err != nil || fill != nil {
		t.Fatalf("expected no fill, got %v err=%v", fill, err)
	}

	// Ask touches the trigger and is under the limit: fills at the ask.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17350, 1.17360))
	fill, err := m.Fill(order)
	if err != nil || fill == nil {
		t.Fatalf("fill: %v %v", fill, err)
	}
	if fill.Price != 1.17360 {
		t.Errorf("lit price = %v", fill.Price)
	}
}

func TestMarketOnOpenAndCloseFillLikeMarket(t *testing.T) {
	m := NewModel()
	m.OnQuoteObserved("EURUSD", quoteAt(1.17359, 1.17369))

	for _, typ := range []models.OrderType{models.OrderMarketOnOpen, models.OrderMarketOnClose} {
		fill, err := m.Fill(models.Order{ID: string(typ), Symbol: "EURUSD", Type: typ, Direction: models.DirectionBuy, Quantity: 100})
		if err != nil || fill == nil {
			t.Fatalf("%s: %v %v", typ, fill, err)
		}
		if fill.Price != 1.17369 {
			t.Errorf("%s price = %v, want ask close", typ, fill.Price)
		}
	}
}

func TestTrailingStopFillsLikeStopMarket(t *testing.T) {
	m := NewModel()
	order := models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderTrailingStop, Direction: models.DirectionSell, Quantity: 100, StopPrice: 1.17350}

	// Bid above the stop: not triggered.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17359, 1.17369))
	if fill, err := m.Fill(order); err != nil || fill != nil {
		t.Fatalf("expected no fill above the stop, got %v err=%v", fill, err)
	}

	// Bid drops through the stop: fills at the worse of bid and stop.
	m.OnQuoteObserved("EURUSD", quoteAt(1.17340, 1.17350))
	fill, err := m.Fill(order)
	if err != nil || fill == nil {
		t.Fatalf("fill: %v %v", fill, err)
	}
	if fill.Price != 1.17340 {
		t.Errorf("trailing stop price = %v", fill.Price)
	}
}

func TestFillDeterminism(t *testing.T) {
	run := func() *models.Fill {
		m := NewModel()
		m.OnQuoteObserved("EURUSD", quoteAt(1.17359, 1.17369))
		fill, err := m.Fill(models.Order{ID: "1", Symbol: "EURUSD", Type: models.OrderMarket, Direction: models.DirectionBuy, Quantity: 1000})
		if err != nil {
			t.Fatalf("fill: %v", err)
		}
		return fill
	}

	a, b := run(), run()
	if *a != *b {
		t.Fatalf("fills differ: %+v vs %+v", a, b)
	}
}
