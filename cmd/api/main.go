package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zllovesuki/subsync/auth"
	"github.com/zllovesuki/subsync/billing"
	"github.com/zllovesuki/subsync/config"
	"github.com/zllovesuki/subsync/db"
	"github.com/zllovesuki/subsync/eventlog"
	"github.com/zllovesuki/subsync/profile"
	resp "github.com/zllovesuki/subsync/response"
	"github.com/zllovesuki/subsync/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-redis/redis/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		logger, err = zap.NewProduction()
	} else {
		env = "development"
		dotFile = ".env.development"
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	// Load configurations from dotFile and the environment
	cfg, err := config.Load(dotFile)
	if err != nil {
		logger.Fatal("Cannot load configurations",
			zap.Error(err),
		)
	}

	// Attach sentry to zap so we can do automatic error capturing
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: env,
			Release:     Version,
		}); err != nil {
			logger.Fatal("Cannot initialize sentry",
				zap.Error(err),
			)
		}
		defer sentry.Flush(time.Second * 2)

		core, err := zapsentry.NewCore(zapsentry.Configuration{
			Level: zapcore.ErrorLevel,
			Tags: map[string]string{
				"component": "api",
			},
		}, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
		if err != nil {
			logger.Fatal("Cannot attach sentry to logger",
				zap.Error(err),
			)
		}
		logger = zapsentry.AttachCoreToLogger(core, logger)
	}

	// Initialize backend connections
	gormDB, err := db.New(db.Options{
		URI:    cfg.PostgresURI,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	profileManager, err := profile.NewManager(profile.ManagerOptions{
		DB:     gormDB,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize ProfileManager",
			zap.Error(err),
		)
	}
	if err := profileManager.Migrate(context.Background()); err != nil {
		logger.Fatal("Cannot migrate profiles table",
			zap.Error(err),
		)
	}

	var ledger subscription.EventLedger
	if cfg.LedgerEnabled() {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisURI},
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if _, err := rdb.Ping().Result(); err != nil {
			logger.Fatal("Cannot connect to Redis",
				zap.Error(err),
			)
		}
		defer rdb.Close()

		redisLedger, err := eventlog.New(eventlog.Options{
			Redis:  rdb,
			Logger: logger,
			TTL:    cfg.WebhookEventTTL,
		})
		if err != nil {
			logger.Fatal("Cannot initialize event ledger",
				zap.Error(err),
			)
		}
		ledger = redisLedger
	} else {
		logger.Info("REDIS_URI not set, webhook event ledger disabled")
	}

	stripeProvider, err := billing.NewStripeProvider(billing.StripeOptions{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Stripe",
			zap.Error(err),
		)
	}

	authenticator, err := auth.New(auth.Options{
		Logger:        logger,
		JWTSigningKey: cfg.JWTSigningKey,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := subscription.NewMetrics(registry)

	bootstrap, err := subscription.NewBootstrap(subscription.BootstrapOptions{
		Provider:      stripeProvider,
		Store:         profileManager,
		PriceID:       cfg.StripePriceID,
		DefaultOrigin: cfg.DefaultOrigin,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Bootstrap",
			zap.Error(err),
		)
	}

	reconciler, err := subscription.NewReconciler(subscription.ReconcilerOptions{
		Provider: stripeProvider,
		Store:    profileManager,
		Ledger:   ledger,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Reconciler",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		Bootstrap:      bootstrap,
		Reconciler:     reconciler,
		Auth:           authenticator,
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(middleware.RealIP)
	rootRouter.Use(requestLogger(logger))
	rootRouter.Use(middleware.Recoverer)

	rootRouter.Mount("/subscription", subscriptionRouter.Router())
	rootRouter.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp.WriteResponse(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := &http.Server{
		Handler:      rootRouter,
		Addr:         cfg.ListenAddr,
		ReadTimeout:  time.Second * 15,
		WriteTimeout: time.Second * 30,
	}

	go func() {
		logger.Info("API listening",
			zap.String("Addr", cfg.ListenAddr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Cannot start API server",
				zap.Error(err),
			)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("Shutting down API server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Cannot shutdown API server gracefully",
			zap.Error(err),
		)
	}
}
