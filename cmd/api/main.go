package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/handler"
	"github.com/Dan9191/credit-risk/internal/integrations/ecb"
	"github.com/Dan9191/credit-risk/internal/metrics"
	"github.com/Dan9191/credit-risk/internal/middleware"
	"github.com/Dan9191/credit-risk/internal/repository"
	"github.com/Dan9191/credit-risk/internal/scheduler"
	"github.com/Dan9191/credit-risk/internal/service"
	"github.com/Dan9191/credit-risk/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const runTimeout = 10 * time.Minute

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	m := metrics.New()
	opts := []service.Option{
		service.WithObserver(m),
		service.WithMacroSource(ecb.NewClient(cfg, logger.WithField("component", "ecb"))),
	}
	if cfg.MailEnabled() {
		opts = append(opts, service.WithNotifier(email.NewSender(cfg, logger)))
	}
	svc := service.NewService(repo, logger, cfg, opts...)
	h := handler.NewHandler(svc, logger)

	sched, err := scheduler.New(cfg.RunSchedule, svc, runTimeout, logger.WithField("component", "scheduler"))
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Router(middleware.AuthMiddleware(cfg), m.Handler()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: runTimeout,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")

	<-sched.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
