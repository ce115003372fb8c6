package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/libra/internal/config"
	"github.com/me/libra/internal/devserver"
	"github.com/me/libra/internal/logging"
)

func main() {
	cfg := config.DefaultDevServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.SeedFile, "seed", cfg.SeedFile, "YAML file with the initial catalog and members")
	flag.StringVar(&cfg.PathPrefix, "prefix", cfg.PathPrefix, "Path the API is served under")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	seed := devserver.DefaultSeed()
	if cfg.SeedFile != "" {
		var err error
		if seed, err = devserver.LoadSeed(cfg.SeedFile); err != nil {
			fmt.Fprintf(os.Stderr, "load seed: %v\n", err)
			os.Exit(1)
		}
	}
	lib, err := devserver.NewLibrary(seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build library: %v\n", err)
		os.Exit(1)
	}
	logger.Info("catalog ready", "books", len(seed.Books), "members", len(seed.Users))

	srv := devserver.New(cfg, lib, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "prefix", cfg.PathPrefix)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
