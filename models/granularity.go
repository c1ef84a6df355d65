package models

import (
	"fmt"
	"sort"
	"time"
)

// Granularity describes the fixed time period a single bar represents.
// Token is the canonical lowercase label used inside storage keys
// (1s, 1min, 5min, 15min, 30min, 1h, 4h, 1d).
type Granularity struct {
	Token    string
	Duration time.Duration
}

var supportedGranularities = map[string]Granularity{
	"1s":    {Token: "1s", Duration: time.Second},
	"1min":  {Token: "1min", Duration: time.Minute},
	"5min":  {Token: "5min", Duration: 5 * time.Minute},
	"15min": {Token: "15min", Duration: 15 * time.Minute},
	"30min": {Token: "30min", Duration: 30 * time.Minute},
	"1h":    {Token: "1h", Duration: time.Hour},
	"4h":    {Token: "4h", Duration: 4 * time.Hour},
	"1d":    {Token: "1d", Duration: 24 * time.Hour},
}

// DefaultGranularity is used when neither an alias suffix nor a host
// resolution selects one.
var DefaultGranularity = supportedGranularities["1min"]

// GranularityFromToken returns the granularity for a canonical token.
func GranularityFromToken(token string) (Granularity, bool) {
	g, ok := supportedGranularities[token]
	return g, ok
}

// GranularityFromDuration maps a host-requested resolution to a supported
// granularity. Only exact duration matches are accepted; anything else is
// ErrUnsupportedResolution since a near-miss would silently mis-time every
// bar of the subscription.
func GranularityFromDuration(d time.Duration) (Granularity, error) {
	for _, g := range supportedGranularities {
		if g.Duration == d {
			return g, nil
		}
	}
	return Granularity{}, fmt.Errorf("%w: %s", ErrUnsupportedResolution, d)
}

// SupportedGranularities returns all canonical tokens sorted by duration.
func SupportedGranularities() []string {
	tokens := make([]string, 0, len(supportedGranularities))
	for t := range supportedGranularities {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return supportedGranularities[tokens[i]].Duration < supportedGranularities[tokens[j]].Duration
	})
	return tokens
}
