package commands

import (
	"fmt"

	"github.com/yangirov/stock-background/internal/clients_api/tinvest"
	"github.com/yangirov/stock-background/internal/features/chart"
	"github.com/yangirov/stock-background/internal/features/notify"
	"github.com/yangirov/stock-background/internal/features/snapshot"
	"github.com/yangirov/stock-background/internal/infra/config"
	"github.com/yangirov/stock-background/internal/infra/log"
	"github.com/yangirov/stock-background/internal/infra/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	pipeline *snapshot.Pipeline
}

// newApp loads the configuration and wires one pipeline. A missing token
// fails here, before anything is scheduled.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfig(config.Options{
		ConfigPaths: []string{configDir},
		EnvFile:     envFile,
		Flags:       cmd.Flags(),
	})
	if err != nil {
		log.LogError("Failed to load configuration", zap.Error(err))
		return nil, err
	}

	if err := log.Init(cfg.Log.Dir); err != nil {
		return nil, err
	}

	font, err := chart.LoadFont(cfg.Chart.FontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	renderer := chart.NewRenderer(chart.NewGGSurfaceFactory(font),
		chart.WithLocation(cfg.Location),
		chart.WithPriceDecimals(int32(cfg.Chart.PriceDecimals)))

	client := tinvest.NewClient(tinvest.Options{
		BaseURL:   cfg.TInvest.BaseURL,
		Token:     cfg.TInvest.Token,
		Timeout:   cfg.RequestTimeout(),
		RateLimit: cfg.TInvest.RateLimit,
	})

	m := metrics.New()
	opts := []snapshot.Option{snapshot.WithMetrics(m)}

	if cfg.Telegram.BotToken != "" {
		sender, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.TelegramChatID())
		if err != nil {
			log.LogWarn("Failure alerts disabled", zap.Error(err))
		} else {
			opts = append(opts, snapshot.WithAlerts(notify.NewAlertGate(sender, cfg.Instrument.Ticker)))
		}
	}

	p := snapshot.New(client, renderer, snapshot.Options{
		Ticker:        cfg.Instrument.Ticker,
		ClassCode:     cfg.Instrument.ClassCode,
		Lookback:      cfg.Lookback,
		CandleLimit:   cfg.Instrument.CandleLimit,
		OutputPath:    cfg.Output.Path,
		PriceDecimals: int32(cfg.Chart.PriceDecimals),
	}, opts...)

	log.LogInfo("Configuration loaded",
		zap.String("ticker", cfg.Instrument.Ticker),
		zap.String("class_code", cfg.Instrument.ClassCode),
		zap.Duration("lookback", cfg.Lookback),
		zap.String("output", cfg.Output.Path),
		zap.String("timezone", cfg.Location.String()))

	return &app{cfg: cfg, metrics: m, pipeline: p}, nil
}
