package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestLogMetricEmitsEntry(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "json", "stdout", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.LogMetric("parser", "bars_parsed", 4, "counter", Fields{"key": "fx-EURUSD-quotes-1min-utc.csv"})

	out := buf.String()
	for _, want := range []string{`"component":"parser"`, `"metric":"bars_parsed"`, `"value":4`, `"metric_type":"counter"`, `"key":"fx-EURUSD-quotes-1min-utc.csv"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestJSONOutputCarriesComponent(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "json", "stdout", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithComponent("feed").WithFields(Fields{"alias": "EURUSD_1MIN"}).Info("feed materialized")

	out := buf.String()
	for _, want := range []string{`"component":"feed"`, `"alias":"EURUSD_1MIN"`, `"message":"feed materialized"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}
