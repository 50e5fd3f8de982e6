package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/driveline/driveline-backend/internal/board"
	"github.com/driveline/driveline-backend/internal/kyc"
	"github.com/driveline/driveline-backend/internal/notify"
	"github.com/driveline/driveline-backend/internal/ocr"
	"github.com/driveline/driveline-backend/internal/onboarding/classifier"
	onboardinghandler "github.com/driveline/driveline-backend/internal/onboarding/handler"
	"github.com/driveline/driveline-backend/internal/onboarding/routing"
	onboardingservice "github.com/driveline/driveline-backend/internal/onboarding/service"
	"github.com/driveline/driveline-backend/internal/onboarding/watch"
	"github.com/driveline/driveline-backend/internal/record/extractor"
	recordhandler "github.com/driveline/driveline-backend/internal/record/handler"
	"github.com/driveline/driveline-backend/internal/record/repository"
	recordservice "github.com/driveline/driveline-backend/internal/record/service"
	"github.com/driveline/driveline-backend/internal/session"
	"github.com/driveline/driveline-backend/internal/underwriting"
	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/database"
	"github.com/driveline/driveline-backend/pkg/httputil"
	"github.com/driveline/driveline-backend/pkg/logger"
	"github.com/driveline/driveline-backend/pkg/messaging"
	"github.com/driveline/driveline-backend/pkg/ratelimit"
)

func main() {
	cfg, err := config.LoadWithValidation("onboarding-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("onboarding-service", cfg.Server.Environment)
	log.Info().Msg("starting Onboarding Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	recordPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeRecordEvents, "onboarding-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create record event publisher")
	}
	onboardingPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeOnboardingEvents, "onboarding-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create onboarding event publisher")
	}

	// Collaborator clients
	boardClient := board.NewClient(&cfg.Board, log.WithComponent("board"))
	ocrClient := ocr.NewClient(&cfg.OCR, log.WithComponent("ocr"))
	kycClient := kyc.NewClient(&cfg.KYC, log.WithComponent("kyc"))

	// Record processing pipeline
	policy := underwriting.NewPolicy(cfg.Underwriting)
	recordSvc := recordservice.New(
		boardClient,
		ocrClient,
		extractor.New(cfg.Underwriting.MaxRecordAgeDays),
		underwriting.NewEngine(policy),
		repository.NewAuditRepository(db),
		recordPublisher,
		log.WithComponent("record"),
	)

	// Onboarding workflow
	sessionManager := session.NewManager(&cfg.Session)
	cls := classifier.New(cfg.Underwriting.MaxRecordAgeDays)
	onboardingSvc := onboardingservice.New(
		boardClient,
		kycClient,
		sessionManager,
		cls,
		routing.New(log.WithComponent("routing")),
		watch.NewDetector(cls, watch.KYCCompletionFields),
		onboardingPublisher,
		log.WithComponent("onboarding"),
	)

	recordHandler := recordhandler.NewHandler(recordSvc, log)
	onboardingHandler := onboardinghandler.NewHandler(onboardingSvc, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Decision notification consumer
	mailer := notify.NewSMTPMailer(&cfg.Mail, log.WithComponent("mail"))
	notifier := notify.NewNotifier(
		mailer,
		ratelimit.NewFixedWindow(cfg.Mail.RateLimit, cfg.Mail.RateWindow),
		log.WithComponent("notify"),
	)
	go func() {
		if err := notify.StartConsumer(ctx, rmq, notifier, log.WithComponent("notify")); err != nil {
			log.Error().Err(err).Msg("notification consumer stopped")
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "onboarding-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	sessionAuth := session.Middleware(sessionManager, log.WithComponent("session"))
	r.Route("/api/v1", func(r chi.Router) {
		recordHandler.Routes(r, sessionAuth)
		onboardingHandler.Routes(r, sessionAuth)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
