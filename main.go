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

	"unitflow/config"
	"unitflow/exchange/binance"
	"unitflow/internal/symbols"
	"unitflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	log.WithFields(logger.Fields{
		"service":     cfg.Unitflow.Name,
		"version":     cfg.Unitflow.Version,
		"environment": env,
	}).Info("starting unitflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		if !config.IsProductionLike(env) {
			log.WithFields(logger.Fields{"environment": env}).Warn("CloudWatch metrics enabled outside a production-like environment")
		}
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Metrics.Dashboard)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	client, err := binance.New(cfg)
	if err != nil {
		log.WithError(err).Error("failed to create venue client")
		os.Exit(1)
	}

	var stream *binance.MarkPriceStream
	if cfg.Venue.Stream.Enabled {
		watch := make([]string, 0, len(cfg.Venue.Contracts))
		for _, contract := range cfg.Venue.Contracts {
			watch = append(watch, symbols.ContractToSymbol(contract))
		}
		stream = binance.NewMarkPriceStream(cfg.Venue.Stream.URL, watch, log)
		stream.Start(ctx)
		client.AttachStream(stream)
	}

	if len(cfg.Venue.Contracts) > 0 {
		res := client.PreloadQuantoMultipliers(ctx, cfg.Venue.Contracts)
		log.WithFields(logger.Fields{
			"contracts": res.Resolved,
			"from_api":  res.FromAPI,
		}).Info("contract metadata warmed up")
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if stream != nil {
		log.Info("stopping mark price stream")
		stream.Stop()
	}

	log.Info("unitflow stopped")
}
