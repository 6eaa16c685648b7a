package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/sentinel/internal/alert"
	"github.com/rewired-gh/sentinel/internal/collector"
	"github.com/rewired-gh/sentinel/internal/config"
	"github.com/rewired-gh/sentinel/internal/engine"
	"github.com/rewired-gh/sentinel/internal/logger"
	"github.com/rewired-gh/sentinel/internal/models"
	"github.com/rewired-gh/sentinel/internal/storage"
	"github.com/rewired-gh/sentinel/internal/summarizer"
	"github.com/rewired-gh/sentinel/internal/telegram"
)

var (
	configPath     = flag.String("config", "configs/config.yaml", "Path to configuration file")
	scanTickerFlag = flag.String("ticker", "", "Restrict scanning to a single watchlist ticker")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *scanTickerFlag != "" {
		item, ok := cfg.WatchMap()[strings.ToUpper(*scanTickerFlag)]
		if !ok {
			log.Fatalf("Ticker %s is not on the watchlist", *scanTickerFlag)
		}
		cfg.Watchlist = []config.WatchItem{item}
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s (%d tickers)", *configPath, len(cfg.Watchlist))

	loc, err := time.LoadLocation(cfg.Scan.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone: %v", err)
	}

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// Initialize the scoring engine
	eng, err := engine.New(cfg.EngineConfig())
	if err != nil {
		logger.Fatal("Failed to initialize engine: %v", err)
	}

	// Initialize the collector
	col := collector.New(collector.Config{
		FinnhubAPIKey:     cfg.Collector.FinnhubAPIKey,
		Timeout:           cfg.Collector.Timeout,
		MaxRetries:        cfg.Collector.MaxRetries,
		RetryDelayBase:    cfg.Collector.RetryDelayBase,
		NewsWindow:        cfg.Collector.NewsWindow,
		RequestsPerSecond: cfg.Collector.RequestsPerSecond,
	})

	// Initialize the summarizer
	summ := summarizer.New(summarizer.Config{
		Enabled: cfg.Summarizer.Enabled,
		APIKey:  cfg.Summarizer.APIKey,
		Model:   cfg.Summarizer.Model,
		Timeout: cfg.Summarizer.Timeout,
	})

	// Initialize Telegram client
	var telegramClient *telegram.Client
	var notifier alert.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Initialize the alert manager
	alerts := alert.New(alert.Config{
		Cooldown:       cfg.Alerts.Cooldown,
		NoiseMaxPerDay: cfg.Alerts.NoiseMaxPerDay,
		Location:       loc,
	}, store, notifier)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting scan service (interval: %v, alert_threshold: %.1f, cause_threshold: %.1f)",
		cfg.Scan.Interval, cfg.Scoring.AlertThresholdPSI, cfg.Scoring.CauseThresholdPSI)

	ticker := time.NewTicker(cfg.Scan.Interval)
	defer ticker.Stop()

	consecutiveFailures := 0
	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Scan cycle failed (%d consecutive): %v", consecutiveFailures, err)
		} else {
			if consecutiveFailures > 0 {
				logger.Info("Scan cycle recovered after %d failures", consecutiveFailures)
			}
			consecutiveFailures = 0
		}
	}

	var lastSummaryDay string

	// Run initial scan immediately
	logger.Debug("Running initial scan cycle")
	handleCycleResult(runScanCycle(ctx, cfg, col, eng, summ, alerts, store))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled scan cycle")
			handleCycleResult(runScanCycle(ctx, cfg, col, eng, summ, alerts, store))

			localNow := time.Now().In(loc)
			day := localNow.Format("2006-01-02")
			if telegramClient != nil && localNow.Hour() >= cfg.Scan.DailySummaryHour && day != lastSummaryDay {
				if err := sendDailySummary(store, telegramClient, localNow, loc); err != nil {
					logger.Warn("Failed to send daily summary: %v", err)
				} else {
					lastSummaryDay = day
				}
			}
		}
	}
}

// runScanCycle collects evidence and evaluates every watchlist entry.
// Per-ticker failures are isolated; the cycle fails only when every
// ticker fails.
func runScanCycle(
	ctx context.Context,
	cfg *config.Config,
	col *collector.Client,
	eng *engine.Engine,
	summ *summarizer.Summarizer,
	alerts *alert.Manager,
	store *storage.Storage,
) error {
	startTime := time.Now()
	cycleID := uuid.NewString()[:8]
	logger.Info("Starting scan cycle %s", cycleID)

	failures := 0
	for _, item := range cfg.Watchlist {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := scanTicker(ctx, cfg, col, eng, summ, alerts, store, item); err != nil {
			failures++
			logger.Error("Scan failed for %s: %v", item.Ticker, err)
		}
	}

	logger.Info("Scan cycle %s completed in %v (%d/%d tickers ok)",
		cycleID, time.Since(startTime), len(cfg.Watchlist)-failures, len(cfg.Watchlist))

	if failures == len(cfg.Watchlist) {
		return fmt.Errorf("all %d tickers failed", failures)
	}
	return nil
}

// scanTicker runs the full pipeline for one watchlist entry
func scanTicker(
	ctx context.Context,
	cfg *config.Config,
	col *collector.Client,
	eng *engine.Engine,
	summ *summarizer.Summarizer,
	alerts *alert.Manager,
	store *storage.Storage,
	item config.WatchItem,
) error {
	target := collector.Target{Ticker: item.Ticker, Name: item.Name, Keywords: item.Keywords}

	// Collect and persist fresh news
	fresh, err := col.CollectNews(ctx, target)
	if err != nil {
		return fmt.Errorf("news collection: %w", err)
	}
	inserted, err := store.SaveNews(fresh)
	if err != nil {
		return fmt.Errorf("news persistence: %w", err)
	}
	logger.Debug("%s: %d news items collected, %d new", item.Ticker, len(fresh), inserted)

	// Collect the price snapshot; news-only evaluation still works
	price, err := col.CollectPrice(ctx, item.Ticker)
	if err != nil {
		logger.Warn("%s: price collection failed: %v", item.Ticker, err)
		price = nil
	} else if err := store.SavePrice(price, time.Now().UTC()); err != nil {
		logger.Warn("%s: price persistence failed: %v", item.Ticker, err)
	}

	// Score against the full stored window, not just this cycle's fetch
	news, err := store.RecentNews(item.Ticker, cfg.Collector.NewsWindow)
	if err != nil {
		return fmt.Errorf("news lookup: %w", err)
	}

	psi := eng.EvaluatePSI(item.Ticker, nil, nil, news, price)
	if err := store.SavePSI(item.Ticker, psi, psi.Timestamp); err != nil {
		logger.Warn("%s: psi persistence failed: %v", item.Ticker, err)
	}
	logger.Info("%s: PSI %.1f (%s) options=%.1f attention=%.1f fact=%.1f boost=%.1f",
		item.Ticker, psi.PSITotal, psi.Level,
		psi.OptionsScore, psi.AttentionScore, psi.FactScore, psi.PriceBoost)

	causeRan := false
	if psi.PSITotal >= cfg.Scoring.CauseThresholdPSI {
		causeRan = true
		cause := eng.EvaluateCause(item.Ticker, news, price)
		logger.Info("%s: classified %s (confidence %.2f): %s",
			item.Ticker, cause.Classification.Type, cause.Classification.Confidence, cause.Classification.Reasoning)

		if psi.PSITotal >= cfg.Scoring.AlertThresholdPSI {
			return dispatchAlert(ctx, summ, alerts, item.Ticker, psi, cause, alert.TriggerPSICritical)
		}
	}

	// A sharp move or volume spike on a quiet score still alerts; the
	// cooldown and noise cap in the alert manager keep this from spamming.
	if !causeRan && priceTriggerFired(cfg, price) {
		cause := eng.EvaluateCause(item.Ticker, news, price)
		logger.Info("%s: price trigger fired (%.1f%%, volume ratio %.1f), classified %s (confidence %.2f)",
			item.Ticker, price.ChangePct, price.VolumeRatio,
			cause.Classification.Type, cause.Classification.Confidence)
		return dispatchAlert(ctx, summ, alerts, item.Ticker, psi, cause, alert.TriggerPriceSurge)
	}
	return nil
}

// dispatchAlert summarizes one classified signal and hands it to the
// alert manager
func dispatchAlert(
	ctx context.Context,
	summ *summarizer.Summarizer,
	alerts *alert.Manager,
	ticker string,
	psi models.PSIResult,
	cause engine.CauseResult,
	trigger string,
) error {
	summary := summ.Summarize(ctx, ticker, psi, cause)
	sent, err := alerts.Dispatch(alert.Signal{
		Ticker:  ticker,
		PSI:     psi,
		Cause:   cause,
		Summary: summary,
		Trigger: trigger,
	})
	if err != nil {
		return fmt.Errorf("alert dispatch: %w", err)
	}
	if sent {
		logger.Info("%s: alert dispatched (%s)", ticker, trigger)
	}
	return nil
}

// priceTriggerFired reports whether the price move alone warrants an alert
func priceTriggerFired(cfg *config.Config, price *models.PriceSnapshot) bool {
	if price == nil {
		return false
	}
	if price.ChangePct >= cfg.Scoring.PriceChangeTrigger || price.ChangePct <= -cfg.Scoring.PriceChangeTrigger {
		return true
	}
	return price.VolumeRatio >= cfg.Scoring.VolumeRatioTrigger
}

// sendDailySummary delivers the digest of today's alerts
func sendDailySummary(store *storage.Storage, client *telegram.Client, localNow time.Time, loc *time.Location) error {
	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	todays, err := store.AlertsSince(dayStart)
	if err != nil {
		return err
	}
	return client.SendDailySummary(localNow, todays)
}
