package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"office-queue-backend/config"
	"office-queue-backend/internal/api"
	"office-queue-backend/internal/db"
	"office-queue-backend/internal/dyncfg"
	"office-queue-backend/internal/engine"
	"office-queue-backend/internal/hardware"
	"office-queue-backend/internal/hub"
	"office-queue-backend/internal/notification"
	"office-queue-backend/internal/scheduler"
	"office-queue-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "office-queue ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded from %s", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatalf("push is enabled but VAPID keys are not configured")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	gormDB, err := db.Init(cfg)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tunables := dyncfg.New(appStore, cfg.Tunables)
	if err := tunables.SeedDefaults(ctx); err != nil {
		logger.Fatalf("failed to seed runtime configuration: %v", err)
	}

	// Real GPIO sensors only exist on the device; everywhere else the
	// simulated implementations back the same interfaces.
	if !cfg.Hardware.Simulation {
		logger.Println("GPIO hardware support not built in, falling back to simulation mode")
		cfg.Hardware.Simulation = true
	}
	simMotion := hardware.NewSimMotionSensor()
	simDistance := hardware.NewSimDistanceSensor()
	button := hardware.NewButton()
	display := hardware.NewLogDisplay()

	sensors := hardware.NewAggregator(tunables, simMotion, simDistance)

	gateway := notification.NewGateway(cfg.Push.Enabled, cfg.WorkerPool.Size, gormDB, webpushOptions)
	gateway.Start(ctx)

	eng := engine.New(appStore, tunables, sensors, button, gateway)
	if err := eng.Recover(ctx); err != nil {
		logger.Fatalf("startup recovery failed: %v", err)
	}

	statusHub := hub.New()
	sched := scheduler.New(eng, appStore, tunables, display, statusHub,
		cfg.Scheduler.Tick, cfg.Database.RetentionDays)

	// Separate contexts so shutdown can stop the tick loop before the
	// sensor loop goes away underneath it.
	hwCtx, hwCancel := context.WithCancel(ctx)
	schedCtx, schedCancel := context.WithCancel(ctx)
	go sensors.Run(hwCtx)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(schedCtx)
	}()

	router := api.NewRouter(api.Deps{
		Store:       appStore,
		Engine:      eng,
		Cfg:         tunables,
		Hub:         statusHub,
		Button:      button,
		Webpush:     webpushOptions,
		Admin:       cfg.Admin,
		SimMotion:   simMotion,
		SimDistance: simDistance,
	}, cfg.Server, cfg.Hardware.Simulation)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server shutdown: %v", err)
	}

	// The scheduler must stop before the hardware loops so no tick runs
	// against torn-down sensors.
	schedCancel()
	select {
	case <-schedDone:
	case <-time.After(5 * time.Second):
		logger.Println("Scheduler did not stop in time")
	}
	hwCancel()

	logger.Println("Server gracefully stopped")
}
