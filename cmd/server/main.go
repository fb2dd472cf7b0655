package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/DansiDanutz/ZmartBot-sub009/internal/app/di"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/app/router"
	cachehandler "github.com/DansiDanutz/ZmartBot-sub009/internal/feature/marketcache/transport/handler"
	"github.com/DansiDanutz/ZmartBot-sub009/internal/platform/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	mgr, err := di.NewCacheManager(context.Background(), cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Println("[ERROR] Failed to close cache manager:", err)
		}
	}()

	// Background refresh keeps monitored keys warm; Close stops it.
	if err := mgr.StartScheduler(); err != nil {
		log.Fatal(err)
	}

	router := router.NewRouter(cachehandler.NewCacheHandler(mgr))

	// JWT_SECRET check (heads-up during development)
	if os.Getenv("JWT_SECRET") == "" {
		log.Println("[WARN] JWT_SECRET is not set. Mutating cache endpoints will reject all requests.")
	}

	if err := router.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
