package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/gravitas-games/orp/internal/config"
	"github.com/gravitas-games/orp/internal/metrics"
	"github.com/gravitas-games/orp/internal/protection"
	"github.com/gravitas-games/orp/internal/server"
)

func main() {
	configPath := pflag.String("config", envOr("CONFIG_PATH", "./configs/server.yaml"), "path to the server YAML config")
	logFormat := pflag.String("log-format", "", "log output format (json|console), overrides the config file")
	pflag.Parse()

	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Str("path", *configPath).Msg("failed to load configuration")
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	log, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to configure logger")
	}
	log.Info().Str("path", *configPath).Msg("configuration loaded")

	protectionCfg := config.LoadProtection(cfg.Protection.Path, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	session := server.NewSession("main", log)
	engine := protection.NewEngine(protectionCfg, protection.SystemClock{}, session, metrics.NewCollector(registry), log)
	metrics.RegisterStateGauges(registry, engine)

	srv, err := server.New(cfg, engine, session, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Start(addr); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-errChan:
			log.Fatal().Err(err).Msg("server error")
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				engine.SetConfig(config.LoadProtection(cfg.Protection.Path, log))
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("shutting down")
		}
		break
	}

	if err := srv.Shutdown(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}

	log.Info().Msg("server stopped")
}

// newLogger builds the process logger from the log section
func newLogger(cfg config.LogConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to parse log level: %w", err)
	}

	switch cfg.Format {
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json", "":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
