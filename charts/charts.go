// Package charts renders the imported bar streams as an HTML page of
// candlestick charts, one block per subscription, for eyeballing the data a
// backtest ran on. It consumes bars only; it never touches the store.
package charts

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"fximport/logger"
	"fximport/models"
)

const (
	chartWidthPx  = 1400
	klineHeightPx = 500
	lineHeightPx  = 240

	colorMid    = "#3b82f6"
	colorBull   = "#34d399"
	colorBear   = "#f87171"
	colorSpread = "#fbbf24"
)

// Manager accumulates bars per subscription alias during a run and renders
// them all in one page afterwards. Not safe for concurrent use.
type Manager struct {
	quotes map[string][]models.QuoteBar
	trades map[string][]models.TradeBar
	log    *logger.Log
}

func NewManager() *Manager {
	return &Manager{
		quotes: make(map[string][]models.QuoteBar),
		trades: make(map[string][]models.TradeBar),
		log:    logger.GetLogger(),
	}
}

// ObserveQuote appends a quote bar to the alias's series.
func (m *Manager) ObserveQuote(alias string, bar models.QuoteBar) {
	m.quotes[alias] = append(m.quotes[alias], bar)
}

// ObserveTrade appends a trade bar to the alias's series.
func (m *Manager) ObserveTrade(alias string, bar models.TradeBar) {
	m.trades[alias] = append(m.trades[alias], bar)
}

// Render writes the whole page as HTML. An error is returned when no bars
// were observed at all.
func (m *Manager) Render(w io.Writer) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	for _, alias := range m.sortedAliases(m.quotes) {
		bars := m.quotes[alias]
		xAxis := quoteXAxis(bars)
		page.AddCharts(
			quoteKline(alias, "mid", xAxis, bars, func(b models.QuoteBar) models.OHLC { return b.Mid() }),
			quoteKline(alias, "bid", xAxis, bars, func(b models.QuoteBar) models.OHLC { return b.Bid }),
			quoteKline(alias, "ask", xAxis, bars, func(b models.QuoteBar) models.OHLC { return b.Ask }),
			spreadLine(alias, xAxis, bars),
		)
	}

	for _, alias := range m.sortedAliases(m.trades) {
		bars := m.trades[alias]
		page.AddCharts(tradeKline(alias, bars))
	}

	if len(page.Charts) == 0 {
		return fmt.Errorf("no bars observed, nothing to render")
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	m.log.WithComponent("charts").WithFields(logger.Fields{
		"quote_series": len(m.quotes),
		"trade_series": len(m.trades),
	}).Info("charts rendered")
	return nil
}

func (m *Manager) sortedAliases(series any) []string {
	var aliases []string
	switch s := series.(type) {
	case map[string][]models.QuoteBar:
		for alias := range s {
			aliases = append(aliases, alias)
		}
	case map[string][]models.TradeBar:
		for alias := range s {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)
	return aliases
}

func axisLabel(t time.Time) string {
	return t.UTC().Format("01-02 15:04")
}

func quoteXAxis(bars []models.QuoteBar) []string {
	x := make([]string, len(bars))
	for i, b := range bars {
		x[i] = axisLabel(b.Start)
	}
	return x
}

func newKline(title string) *charts.Kline {
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", klineHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "left"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	return kline
}

func quoteKline(alias, side string, xAxis []string, bars []models.QuoteBar, pick func(models.QuoteBar) models.OHLC) *charts.Kline {
	kline := newKline(fmt.Sprintf("%s %s", strings.ToUpper(alias), side))
	data := make([]opts.KlineData, 0, len(bars))
	for _, b := range bars {
		ohlc := pick(b)
		data = append(data, opts.KlineData{Value: [4]float64{ohlc.Open, ohlc.Close, ohlc.Low, ohlc.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries(side, data)
	return kline
}

func spreadLine(alias string, xAxis []string, bars []models.QuoteBar) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", lineHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s spread", strings.ToUpper(alias)), Left: "left"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	data := make([]opts.LineData, 0, len(bars))
	for _, b := range bars {
		data = append(data, opts.LineData{Value: b.Spread()})
	}
	line.SetXAxis(xAxis)
	line.AddSeries("spread", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorSpread, Width: 2}))
	return line
}

func tradeKline(alias string, bars []models.TradeBar) *charts.Kline {
	kline := newKline(fmt.Sprintf("%s trades", strings.ToUpper(alias)))
	xAxis := make([]string, len(bars))
	data := make([]opts.KlineData, 0, len(bars))
	for i, b := range bars {
		xAxis[i] = axisLabel(b.Start)
		data = append(data, opts.KlineData{Value: [4]float64{b.Price.Open, b.Price.Close, b.Price.Low, b.Price.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("trades", data)
	return kline
}
