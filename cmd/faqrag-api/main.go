package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"faqrag/internal/api"
	"faqrag/internal/app"
	"faqrag/internal/config"
	"faqrag/internal/logger"
	"faqrag/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/faqrag/config.yaml if not provided)")
	flag.StringVar(&addr, "addr", "", "Listen address (default from config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if addr != "" {
		cfg.API.Addr = addr
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m := metrics.New()
	a, err := app.New(cfg, zl, m)
	if err != nil {
		zl.Error("init", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	summary, err := a.Service.Load(ctx)
	if err != nil {
		zl.Error("load documents", zap.Error(err))
		os.Exit(1)
	}
	zl.Info(summary)

	pinger, _ := a.Searcher.(api.Pinger)
	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.NewRouter(a.Service, pinger, m, zl),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// answers stream for as long as the model keeps generating
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		zl.Info("api server starting", zap.String("addr", cfg.API.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server stopped", zap.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	zl.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
}
