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

	"github.com/gin-gonic/gin"

	"pfp-sticker/internal/config"
	"pfp-sticker/internal/cutout"
	"pfp-sticker/internal/logging"
	"pfp-sticker/internal/server"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	addr := flag.String("addr", "", "Listen address (default: :8000)")
	cutoutURL := flag.String("cutout-url", "", "Forward cutouts to this service instead of processing in-process")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (default: info)")
	cacheSize := flag.Int("cache", 64, "Number of cutouts kept in memory (0 disables)")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		CutoutURL:  *cutoutURL,
		ListenAddr: *addr,
		LogLevel:   *logLevel,
	})

	log, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	gin.SetMode(gin.ReleaseMode)

	var provider cutout.Provider
	if cfg.CutoutURL != "" {
		timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
		provider = cutout.NewClient(cfg.CutoutURL, &http.Client{Timeout: timeout}, log)
		log.Info("cutout provider", "mode", "remote", "url", cfg.CutoutURL)
	} else {
		var cache *cutout.Cache
		if *cacheSize > 0 {
			cache = cutout.NewCache(*cacheSize)
		}
		provider = cutout.NewLocal(nil, cache, log)
		log.Info("cutout provider", "mode", "local", "cache", *cacheSize)
	}

	srv, err := server.New(cfg, provider, log)
	if err != nil {
		log.Error("build server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.Warm(ctx)

	if err := srv.Run(ctx); err != nil {
		log.Error("server", "error", err)
		os.Exit(1)
	}
}
