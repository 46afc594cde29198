package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/agara/backend/internal/push"
	"github.com/anonto42/agara/backend/internal/router"
	"github.com/anonto42/agara/backend/pkg/config"
	"github.com/anonto42/agara/backend/pkg/firebase"
	"github.com/anonto42/agara/backend/pkg/logging"
	"github.com/anonto42/agara/backend/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	genVAPID := flag.Bool("gen-vapid", false, "print a new VAPID key pair and exit")
	flag.Parse()

	if *genVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate VAPID keys:", err)
			os.Exit(1)
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	// Load configuration
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		slog.Error("failed to initialize databases", "error", err)
		os.Exit(1)
	}
	defer db.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Firebase is optional unless it is the auth provider
	var firebaseApp *firebase.App
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			slog.Error("failed to initialize Firebase", "error", err)
			os.Exit(1)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, cfg, logger)

	bg, err := router.SetupRoutes(e, router.Deps{
		Config:   cfg,
		DB:       db,
		Firebase: firebaseApp,
		Logger:   logger,
	})
	if err != nil {
		slog.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	bg.Sweeper.Start(ctx)
	go func() {
		if err := bg.Listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("realtime listener stopped", "error", err)
		}
	}()

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	bg.Sweeper.Stop()
	bg.Notifier.Wait()
}
