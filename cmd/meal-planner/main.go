package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"meal-planner/internal/app"
	"meal-planner/internal/config"
	"meal-planner/internal/spoonacular"
	"meal-planner/internal/storage"
	"meal-planner/internal/web"
)

func main() {
	log := logrus.New()
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout

	// 1. Load Configuration
	if err := config.LoadDotEnv(); err != nil {
		log.WithError(err).Warn("failed to load .env file")
	}
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	log.SetLevel(cfg.LogLevel)
	if cfg.SpoonacularAPIKey == "" {
		log.Warn("SPOONACULAR_API_KEY is not set; recipe service calls will fail authentication")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Load or generate the weekly plan
	client := spoonacular.NewClient(cfg)
	application, err := app.New(ctx, cfg, client, storage.NewJSONStore(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}

	srv, err := web.NewServer(application, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize web server")
	}

	// 3. Start Server with Graceful Shutdown
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("meal planner listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server failed")
	}
	log.Info("server exiting")
}
