package keys

import (
	"errors"
	"testing"
	"time"

	"fximport/models"
)

func TestSplitAlias(t *testing.T) {
	base, g, ok := SplitAlias("EURUSD_IMPORT_5MIN")
	if !ok {
		t.Fatalf("suffix not recognized")
	}
	if base != "EURUSD_IMPORT" {
		t.Fatalf("unexpected base: %s", base)
	}
	if g.Token != "5min" {
		t.Fatalf("unexpected granularity: %s", g.Token)
	}

	// Lowercase suffixes are accepted.
	if _, g, ok := SplitAlias("gbpusd_1h"); !ok || g.Token != "1h" {
		t.Fatalf("lowercase suffix not resolved: ok=%v g=%s", ok, g.Token)
	}

	if _, _, ok := SplitAlias("EURUSD_IMPORT"); ok {
		t.Fatalf("IMPORT should not parse as a granularity token")
	}
	if _, _, ok := SplitAlias("EURUSD"); ok {
		t.Fatalf("alias without underscore should have no suffix")
	}
}

func TestResolveGranularitySuffixWins(t *testing.T) {
	// The suffix takes precedence regardless of the host resolution.
	for _, res := range []time.Duration{0, time.Minute, time.Hour} {
		g, err := ResolveGranularity("EURUSD_IMPORT_1D", res)
		if err != nil {
			t.Fatalf("resolution %s: %v", res, err)
		}
		if g.Token != "1d" {
			t.Fatalf("resolution %s: expected 1d, got %s", res, g.Token)
		}
	}
}

func TestResolveGranularityFromResolution(t *testing.T) {
	g, err := ResolveGranularity("EURUSD_IMPORT", 15*time.Minute)
	if err != nil {
		t.Fatalf("15min: %v", err)
	}
	if g.Token != "15min" {
		t.Fatalf("expected 15min, got %s", g.Token)
	}

	if _, err := ResolveGranularity("EURUSD_IMPORT", 2*time.Minute); !errors.Is(err, models.ErrUnsupportedResolution) {
		t.Fatalf("expected ErrUnsupportedResolution, got %v", err)
	}
}

func TestResolveGranularityDefault(t *testing.T) {
	g, err := ResolveGranularity("EURUSD_IMPORT", 0)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if g.Token != "1min" {
		t.Fatalf("expected 1min default, got %s", g.Token)
	}
}

func TestPairFromAlias(t *testing.T) {
	if p := PairFromAlias("eurusd_import_5min"); p != "EURUSD" {
		t.Fatalf("unexpected pair: %s", p)
	}
	if p := PairFromAlias("GBPUSD"); p != "GBPUSD" {
		t.Fatalf("unexpected pair: %s", p)
	}
}

func TestBuildKey(t *testing.T) {
	oneMin, _ := models.GranularityFromToken("1min")
	fiveMin, _ := models.GranularityFromToken("5min")

	key, err := BuildKey("eurusd", models.KindQuotes, oneMin, "")
	if err != nil {
		t.Fatalf("quotes key: %v", err)
	}
	if key != "fx-EURUSD-quotes-1min-utc.csv" {
		t.Fatalf("unexpected key: %s", key)
	}

	key, err = BuildKey("GBPUSD", models.KindTrades, fiveMin, "tradingview")
	if err != nil {
		t.Fatalf("trades key: %v", err)
	}
	if key != "fx-GBPUSD-trades-5min-utc-tradingview.csv" {
		t.Fatalf("unexpected key: %s", key)
	}

	if _, err := BuildKey("EURUSD", models.DataKind("ticks"), oneMin, ""); err == nil {
		t.Fatalf("expected error for invalid kind")
	}
}
