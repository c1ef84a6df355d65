package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fximport/backtest"
	"fximport/config"
	"fximport/logger"
	"fximport/store"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	chartsPath := flag.String("charts", "", "Override chart output path")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Fximport.Name,
		"version":     cfg.Fximport.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting fximport")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Metrics.Dashboard)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	var blob store.Blob
	switch cfg.Storage.Backend {
	case "s3":
		blob, err = store.NewS3Store(cfg)
	default:
		blob, err = store.NewFSStore(cfg.Storage.FS.Root)
	}
	if err != nil {
		log.WithError(err).Error("Failed to initialize storage")
		os.Exit(1)
	}

	runner, err := backtest.NewRunner(cfg, blob)
	if err != nil {
		log.WithError(err).Error("Failed to set up backtest")
		os.Exit(1)
	}

	// Cancel the run on SIGINT/SIGTERM; the runner checks the context every
	// simulated step.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	report, err := runner.Run(ctx)
	if err != nil {
		log.WithError(err).Error("Backtest failed")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"run_id":         report.RunID,
		"steps":          report.Steps,
		"bars_read":      report.BarsRead,
		"malformed_rows": report.MalformedRows,
		"fills":          len(report.Fills),
		"unfilled":       len(report.Unfilled),
		"skipped_feeds":  report.SkippedFeeds,
	}).Info("run summary")

	if cfg.Charts.Enabled {
		output := cfg.Charts.Output
		if *chartsPath != "" {
			output = *chartsPath
		}
		if err := writeCharts(runner, output); err != nil {
			log.WithError(err).Warn("failed to write charts")
		} else {
			log.WithFields(logger.Fields{"output": output}).Info("charts written")
		}
	}

	log.Info("fximport stopped")
}

func writeCharts(runner *backtest.Runner, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return runner.Charts().Render(file)
}
