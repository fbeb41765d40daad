package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/reactor/internal/client"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/config"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/logging"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		pageURL     string
		logLevel    string
		dev         bool
		metricsAddr string
		boost       bool
	)

	flagSet := pflag.NewFlagSet("reactor", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&pageURL, "url", "", "page to load (overrides REACTOR_URL)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&dev, "dev", false, "development logging")
	flagSet.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.BoolVar(&boost, "boost", false, "boost links even if the page does not ask for it")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	flagSet.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "url":
			cfg.Client.URL = pageURL
		case "log-level":
			cfg.Logging.Level = logLevel
		case "dev":
			cfg.Logging.Development = dev
		case "metrics-addr":
			cfg.Metrics.Addr = metricsAddr
		case "boost":
			cfg.Navigation.Boost = boost
		}
	})
	if cfg.Client.URL == "" {
		return errors.New("no page to load: pass --url or set REACTOR_URL")
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics := monitoring.NewMetrics()
	c, err := client.New(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(metrics), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	if err := c.Start(ctx, cfg.Client.URL); err != nil {
		return err
	}

	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func metricsMux(metrics *monitoring.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
