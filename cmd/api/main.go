package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/accessor"
	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/config"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/infra/database"
	"github.com/xavierca1/firm-backoffice/internal/infra/http/handlers"
	"github.com/xavierca1/firm-backoffice/internal/infra/http/middleware"
	"github.com/xavierca1/firm-backoffice/internal/infra/mail"
	"github.com/xavierca1/firm-backoffice/internal/infra/metrics"
	"github.com/xavierca1/firm-backoffice/internal/infra/postgrest"
	"github.com/xavierca1/firm-backoffice/internal/infra/queue"
	"github.com/xavierca1/firm-backoffice/internal/infra/worker"
	"github.com/xavierca1/firm-backoffice/internal/querycache"
	"github.com/xavierca1/firm-backoffice/internal/store"
	"github.com/xavierca1/firm-backoffice/internal/store/memstore"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Backend
	backend, pinger, closeBackend, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	// 2. Cache and cross-instance invalidation
	recorder := metrics.Recorder{}
	cache := querycache.New(cfg.CacheTTL, querycache.WithObserver(recorder))

	var notifier accessor.Notifier
	var broker handlers.Broker
	if cfg.AMQPURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.AMQPURL, log)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer rabbit.Close()
		go rabbit.Run(ctx)
		broker = rabbit
		notifier = queue.NewPublisher(rabbit, cfg.InstanceID)

		consumer := queue.NewConsumer(rabbit, cfg.InstanceID, cache, log)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.WithError(err).Error("invalidation consumer stopped")
			}
		}()
	} else {
		log.Info("AMQP_URL not set, cache invalidation stays local")
	}

	// 3. Catalog
	c := catalog.New(accessor.Deps{
		Backend:  backend,
		Cache:    cache,
		Notifier: notifier,
		Validate: usecase.Validate,
		Logger:   log,
	})

	// 4. Gateways
	mailSender := mail.NewEmailSender(
		cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass,
		cfg.MailFrom, cfg.MailNotifyTo, cfg.MailLookupURL,
	)
	var mailer usecase.Mailer
	if mailSender.Enabled() {
		mailer = mailSender
	}

	var limiter usecase.RateLimiter
	if cfg.StoreBackend == config.BackendMemory {
		wl := usecase.NewWindowLimiter(cfg.ContactRateLimit, cfg.ContactRateWindow, time.Now)
		go wl.Run(ctx, cfg.ContactRateWindow)
		limiter = wl
	} else {
		limiter = usecase.NewStoreRateLimiter(backend, cfg.ContactRateLimit, cfg.ContactRateWindow)
	}

	// 5. UseCases
	queues := make(map[entity.QueueKind]*usecase.GenerationQueue)
	var sweepers []worker.LeaseSweeper
	for _, kind := range []entity.QueueKind{entity.QueueBlog, entity.QueueNews} {
		q, err := usecase.NewGenerationQueue(c, kind, log,
			usecase.WithLeaseDuration(cfg.QueueLeaseDuration),
			usecase.WithQueueRecorder(recorder),
		)
		if err != nil {
			return err
		}
		queues[kind] = q
		sweepers = append(sweepers, q)
	}

	// 6. Workers
	go worker.NewLeaseReaper(cfg.LeaseReapInterval, log, sweepers...).Start(ctx)

	// 7. Router
	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	throttle := middleware.NewThrottler(cfg.PublicRPS, cfg.PublicBurst, trusted)
	go throttle.Run(ctx, time.Minute)

	router := handlers.NewRouter(handlers.RouterConfig{
		Catalog:        c,
		Contact:        usecase.NewSubmitContactUseCase(c, limiter, mailer, recorder, log),
		Whistleblower:  usecase.NewWhistleblowerUseCase(c, mailer, log),
		LeadStatus:     usecase.NewChangeLeadStatusUseCase(c, time.Now, log),
		Calendar:       usecase.NewEditorialCalendarUseCase(c, cache),
		Queues:         queues,
		Health:         handlers.NewHealthHandler(pinger, broker, mailSender.Enabled(), version),
		AdminToken:     cfg.AdminToken,
		CORSOrigins:    cfg.CORSOrigins,
		PublicThrottle: throttle,
		Logger:         log,
	})
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_API_TOKEN not set, admin routes will reject every request")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "backend": cfg.StoreBackend, "instance": cfg.InstanceID}).
			Info("back-office API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openBackend returns the configured store, the health check for it (nil for
// memory) and a close func.
func openBackend(cfg *config.Config, log logrus.FieldLogger) (store.Backend, handlers.Pinger, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.NewDBConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(db); err != nil {
				db.Close()
				return nil, nil, nil, err
			}
			log.Info("migrations applied")
		}
		s := database.NewStore(db)
		return s, s, func() { db.Close() }, nil

	case config.BackendSupabase:
		b, err := postgrest.NewBackend(postgrest.Config{URL: cfg.SupabaseURL, ServiceKey: cfg.SupabaseServiceKey})
		if err != nil {
			return nil, nil, nil, err
		}
		return b, b, func() {}, nil
	}

	log.Warn("using the in-memory store, data is lost on restart")
	return memstore.New(), nil, func() {}, nil
}
