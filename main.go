package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"streamview/work/auth"
	"streamview/work/cache"
	"streamview/work/client"
	"streamview/work/config"
	"streamview/work/database"
	"streamview/work/epg"
	"streamview/work/handlers"
	"streamview/work/logger"
	"streamview/work/playback"
	"streamview/work/session"
	"streamview/work/upstream"
)

// cacheEntries bounds the response cache. Catalog payloads are large but
// few; a modest entry count covers every list for a handful of providers.
const cacheEntries = 512

func main() {
	stdLog := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog.Fatalf("configuration error: %v", err)
	}

	appLog := logger.New("INFO")
	if cfg.Debug {
		appLog.SetLevel("DEBUG")
		logger.SetLogLevel("DEBUG")
	}

	db, err := database.Open(cfg.DatabasePath, stdLog)
	if err != nil {
		stdLog.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	sessions, err := session.New(cfg.SessionSecret, cfg.Production)
	if err != nil {
		stdLog.Fatalf("failed to initialize sessions: %v", err)
	}

	httpClient := client.New(cfg.StreamTimeout)
	respCache := cache.New(cacheEntries, cfg.CacheDuration)

	gateway := upstream.NewGateway(httpClient, respCache, db, cfg, appLog)
	warmer, err := upstream.NewWarmer(gateway, cfg.WorkerThreads)
	if err != nil {
		stdLog.Fatalf("failed to start worker pool: %v", err)
	}
	defer warmer.Release()

	epgService := epg.NewService(httpClient, respCache, cfg, appLog)

	playbackMgr := playback.NewManager(httpClient, cfg, appLog)
	defer playbackMgr.Shutdown()

	h := &handlers.Handlers{
		Cfg:      cfg,
		Log:      appLog,
		DB:       db,
		Sessions: sessions,
		Auth:     auth.NewService(db, appLog),
		Gateway:  gateway,
		Warmer:   warmer,
		EPG:      epgService,
		Playback: playbackMgr,
		Cache:    respCache,
	}

	router := mux.NewRouter()
	registerRoutes(router, h, sessions)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdLog.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLog.Error("shutdown error: %v", err)
	}
}
