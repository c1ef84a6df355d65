package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validConfig = `
fximport:
  name: fximport
  version: 1.0.0
storage:
  backend: fs
  fs:
    root: testdata
subscriptions:
  - alias: EURUSD_1MIN
    kind: quotes
    resolution: 1m
  - alias: GBPUSD
    kind: trades
    source: tradingview
    resolution: 5m
backtest:
  start: 2025-07-10
  end: 2025-07-11
  cash: 100000
  orders:
    - symbol: EURUSD
      type: limit
      direction: buy
      quantity: 1000
      limit_price: 1.173
      at: 2025-07-10 00:05:00
charts:
  enabled: true
  output: out/charts.html
logging:
  level: debug
  format: text
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	path := writeTempConfig(t, validConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Fximport.Name != "fximport" {
		t.Errorf("name = %q", cfg.Fximport.Name)
	}
	if cfg.Storage.Backend != "fs" || cfg.Storage.FS.Root != "testdata" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Subscriptions) != 2 {
		t.Fatalf("subscriptions = %d", len(cfg.Subscriptions))
	}
	res, err := cfg.Subscriptions[0].HostResolution()
	if err != nil || res != time.Minute {
		t.Errorf("resolution = %v err=%v", res, err)
	}
	if cfg.Subscriptions[1].Source != "tradingview" {
		t.Errorf("source = %q", cfg.Subscriptions[1].Source)
	}
	start, err := cfg.Backtest.StartTime()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !start.Equal(time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if len(cfg.Backtest.Orders) != 1 || cfg.Backtest.Orders[0].LimitPrice != 1.173 {
		t.Errorf("orders = %+v", cfg.Backtest.Orders)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	// Defaults survive partial sections
	if cfg.Logging.Output != "stdout" {
		t.Errorf("logging output default = %q", cfg.Logging.Output)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", `
fximport:
  version: 1.0.0
storage:
  backend: fs
  fs:
    root: data
subscriptions:
  - alias: EURUSD
    kind: quotes
backtest:
  start: 2025-07-10
  end: 2025-07-11
`},
		{"bad backend", `
fximport:
  name: fximport
  version: 1.0.0
storage:
  backend: ftp
subscriptions:
  - alias: EURUSD
    kind: quotes
backtest:
  start: 2025-07-10
  end: 2025-07-11
`},
		{"s3 without bucket", `
fximport:
  name: fximport
  version: 1.0.0
storage:
  backend: s3
  s3:
    region: us-east-1
subscriptions:
  - alias: EURUSD
    kind: quotes
backtest:
  start: 2025-07-10
  end: 2025-07-11
`},
		{"bad kind", `
fximport:
  name: fximport
  version: 1.0.0
storage:
  backend: fs
  fs:
    root: data
subscriptions:
  - alias: EURUSD
    kind: ticks
backtest:
  start: 2025-07-10
  end: 2025-07-11
`},
		{"end before start", `
fximport:
  name: fximport
  version: 1.0.0
storage:
  backend: fs
  fs:
    root: data
subscriptions:
  - alias: EURUSD
    kind: quotes
backtest:
  start: 2025-07-11
  end: 2025-07-10
`},
		{"no subscriptions", `
fximport:
  name: fximport
  version: 1.0.0
storage:
  backend: fs
  fs:
    root: data
backtest:
  start: 2025-07-10
  end: 2025-07-11
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.content)
			if _, err := LoadConfig(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigFsBackendRejectedInProduction(t *testing.T) {
	path := writeTempConfig(t, validConfig)

	t.Setenv("APP_ENV", "production")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected fs backend to be rejected in production")
	}

	t.Setenv("APP_ENV", "stagging")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected fs backend to be rejected in staging")
	}

	t.Setenv("APP_ENV", "development")
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("fs backend should be allowed in development: %v", err)
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	valid := []string{"my-bucket", "fx.data.store", "abc"}
	invalid := []string{"ab", "My-Bucket", "-bucket", "bucket-", "a..b", string(make([]byte, 64))}

	for _, name := range valid {
		if !isValidS3Bucket(name) {
			t.Errorf("%q should be valid", name)
		}
	}
	for _, name := range invalid {
		if isValidS3Bucket(name) {
			t.Errorf("%q should be invalid", name)
		}
	}
}

func TestParseTimeLayouts(t *testing.T) {
	for _, v := range []string{"2025-07-10", "2025-07-10 12:30:00", "2025-07-10T12:30:00Z"} {
		if _, err := ParseTime(v); err != nil {
			t.Errorf("ParseTime(%q): %v", v, err)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected error for unrecognized time")
	}
}
