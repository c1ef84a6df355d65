// Package keys maps subscription aliases and host resolutions to the
// storage keys the imported FX files live under.
//
// Key convention (the blob key is the file name):
//
//	fx-<PAIR>-<kind>-<granularity>-<tz>[-<source>].csv
//
// Examples:
//
//	fx-EURUSD-quotes-1min-utc.csv
//	fx-EURUSD-trades-1h-utc-tradingview.csv
package keys

import (
	"fmt"
	"strings"
	"time"

	"fximport/models"
)

// suffix tokens accepted at the end of an alias, e.g. EURUSD_IMPORT_5MIN.
var aliasSuffixTokens = map[string]string{
	"1S":    "1s",
	"1MIN":  "1min",
	"5MIN":  "5min",
	"15MIN": "15min",
	"30MIN": "30min",
	"1H":    "1h",
	"4H":    "4h",
	"1D":    "1d",
}

// SplitAlias separates a trailing granularity token from an alias. The base
// alias (suffix stripped) is returned for display purposes. ok is false when
// no recognized suffix is present.
func SplitAlias(alias string) (base string, g models.Granularity, ok bool) {
	upper := strings.ToUpper(alias)
	idx := strings.LastIndex(upper, "_")
	if idx < 0 {
		return alias, models.Granularity{}, false
	}
	token, found := aliasSuffixTokens[upper[idx+1:]]
	if !found {
		return alias, models.Granularity{}, false
	}
	g, _ = models.GranularityFromToken(token)
	return alias[:idx], g, true
}

// ResolveGranularity selects the granularity for a subscription. A valid
// alias suffix always wins over the host-requested resolution; without a
// suffix, the resolution must match a supported duration exactly
// (ErrUnsupportedResolution otherwise); with neither, the default applies.
func ResolveGranularity(alias string, hostResolution time.Duration) (models.Granularity, error) {
	if _, g, ok := SplitAlias(alias); ok {
		return g, nil
	}
	if hostResolution > 0 {
		return models.GranularityFromDuration(hostResolution)
	}
	return models.DefaultGranularity, nil
}

// PairFromAlias extracts the FX pair from an alias like EURUSD_IMPORT_5MIN.
// The alias is expected to start with the six pair letters.
func PairFromAlias(alias string) string {
	upper := strings.ToUpper(alias)
	if len(upper) < 6 {
		return upper
	}
	return upper[:6]
}

// BuildKey constructs the storage key for a pair/kind/granularity triple.
// The time zone tag is always utc in the current scope. source is an
// optional lowercase origin tag such as "tradingview".
func BuildKey(pair string, kind models.DataKind, g models.Granularity, source string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("invalid data kind %q", kind)
	}
	key := fmt.Sprintf("fx-%s-%s-%s-utc", strings.ToUpper(pair), kind, g.Token)
	if source != "" {
		key += "-" + strings.ToLower(source)
	}
	return key + ".csv", nil
}
