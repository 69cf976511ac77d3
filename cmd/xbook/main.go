package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"xbook/internal/application/usecase/trader"
	"xbook/internal/infrastructure/config"
	"xbook/internal/infrastructure/logger"
	"xbook/internal/infrastructure/svc"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	logger.Setup(logger.Options{Level: "info"})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	closer := logger.Setup(logger.Options{
		Level:      cfg.App.LogLevel,
		File:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
		MaxAgeDays: cfg.App.LogMaxAgeDays,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	log.Info().
		Str("config", *configPath).
		Strs("exchanges", cfg.EnabledExchanges()).
		Strs("symbols", sc.Instruments.Symbols()).
		Int("strategies", len(sc.Engines)).
		Msg("xbook started")

	if err := trader.NewService(sc.BuildTraderServiceDeps()).Run(ctx); err != nil {
		log.Error().Err(err).Msg("trader service exited")
	}
}
