// Package server assembles the API from configuration and runs it until the
// process is asked to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/db"
	"github.com/silentsos/silentsos/internal/auth"
	"github.com/silentsos/silentsos/internal/broadcast"
	"github.com/silentsos/silentsos/internal/config"
	"github.com/silentsos/silentsos/internal/handlers"
	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/metrics"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/router"
	"github.com/silentsos/silentsos/internal/scheduler"
	"github.com/silentsos/silentsos/internal/services"
	"github.com/silentsos/silentsos/internal/storage"
	"github.com/silentsos/silentsos/internal/types"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg       *config.Config
	conn      *gorm.DB
	hub       *broadcast.Hub
	notifier  *broadcast.Notifier
	mqtt      *broadcast.MQTTPublisher
	scheduler *scheduler.Scheduler
	http      *http.Server
	log       *slog.Logger
}

// Configure applies process-wide settings derived from cfg.
func Configure(cfg *config.Config) {
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	models.SetEmailDomain(cfg.EmailDomain)
	types.AllowedOrigins = cfg.AllowedOrigins
	gin.SetMode(cfg.GinMode)
}

// New connects to the database and wires every component. migrate runs the
// schema migration before anything else touches the database.
func New(ctx context.Context, cfg *config.Config, migrate bool) (*Server, error) {
	log := logging.For("server")

	if err := db.ConnectDatabase(cfg.DBDriver, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	conn := db.DB

	if migrate {
		if err := db.MigrateDatabase(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to set up audio storage: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		conn:      conn,
		hub:       broadcast.NewHub(m),
		scheduler: scheduler.NewScheduler(),
		log:       log,
	}

	publishers := []broadcast.Publisher{s.hub}

	if cfg.MQTT.Enabled() {
		p, err := broadcast.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			log.Error("MQTT publishing disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			s.mqtt = p
			publishers = append(publishers, p)
		}
	}

	if cfg.Webhooks.Enabled() {
		publishers = append(publishers, &broadcast.WebhookPublisher{
			DiscordURL: cfg.Webhooks.DiscordURL,
			SlackURL:   cfg.Webhooks.SlackURL,
			Client:     &http.Client{Timeout: cfg.PublishTimeout},
		})
	}

	s.notifier = broadcast.NewNotifier(cfg.PublishTimeout, m, publishers...)

	trust := services.NewTrustUpdater(conn, services.TrustPolicy{
		DeltaTrue:  cfg.TrustDeltaTrue,
		DeltaFalse: cfg.TrustDeltaFalse,
	})

	s.scheduler.Add(scheduler.Job{
		Name:     "trust-reconcile",
		Interval: cfg.TrustReconcileInterval,
		Run: func(ctx context.Context) error {
			n, err := trust.ApplyPending(ctx)
			if n > 0 {
				log.Info("applied pending trust deltas", "count", n)
			}
			return err
		},
	})

	alerts := services.NewAlertService(conn, store, s.notifier, services.AlertOptions{
		AlertTypes:     cfg.AlertTypes,
		Visibility:     cfg.AlertVisibility,
		AllowAnonymous: cfg.AllowAnonymousAlerts,
	}, m)

	auth.InitializeGoth(cfg.Google, cfg.SessionSecret, cfg.GinMode == gin.ReleaseMode)

	var verifier auth.GoogleVerifier
	if cfg.Google.ClientID != "" {
		verifier = auth.NewIDTokenVerifier(cfg.Google.ClientID)
	}

	h := handlers.New(handlers.Handler{
		DB:          conn,
		Config:      cfg,
		Issuer:      issuer,
		Verifier:    verifier,
		Alerts:      alerts,
		Validations: services.NewValidationService(conn, trust, cfg.AllowSelfValidation, m),
		Hub:         s.hub,
		Scheduler:   s.scheduler,
	})

	opts := router.Options{Metrics: m}
	if local, ok := store.(*storage.LocalStore); ok {
		opts.MediaRoot = local.Root()
	}

	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.NewRouter(h, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server listening", "addr", s.http.Addr)

		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		s.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.hub.Close()
		err := s.http.Shutdown(shutdownCtx)
		s.close()

		return err
	})

	return g.Wait()
}

func (s *Server) close() {
	s.scheduler.Stop()
	s.notifier.Wait()

	if s.mqtt != nil {
		s.mqtt.Close()
	}

	if sqlDB, err := s.conn.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.log.Warn("failed to close database", "error", err)
		}
	}
}
