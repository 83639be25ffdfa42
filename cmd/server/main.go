package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gorilla/handlers"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"parkspot/internal/api"
	"parkspot/internal/auth"
	"parkspot/internal/config"
	"parkspot/internal/events"
	"parkspot/internal/logging"
	"parkspot/internal/middleware"
	"parkspot/internal/repository"
	"parkspot/internal/service"
)

type stores struct {
	lots         repository.LotStore
	reservations repository.ReservationStore
	jobs         repository.JobStore
	vendors      repository.VendorStore
	close        func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitURL != "" {
		rabbit := events.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		defer func() { _ = rabbit.Close() }()
		publisher = events.LoggingPublisher{Next: rabbit}

		sender := service.NewSenderService(emailSender(cfg), smsSender(cfg))
		consumer := events.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue, sender.HandleEvent)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("notification consumer stopped")
			}
		}()
	} else {
		logging.Warn().Msg("RABBITMQ_URL not set, reservation events are dropped")
	}

	var payments service.PaymentGateway
	if cfg.PaymentsEnabled() {
		payments = service.NewStripeService(cfg.StripeSecretKey)
	} else {
		logging.Warn().Msg("STRIPE_SECRET_KEY not set, reservations are paid on site")
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	availability := service.NewAvailabilityService(st.lots, st.reservations)
	uniqueness := service.NewUniquenessValidator(st.reservations)
	lots := service.NewLotService(st.lots)
	reservations := service.NewReservationService(service.ReservationDeps{
		Lots:         st.lots,
		Reservations: st.reservations,
		Availability: availability,
		Uniqueness:   uniqueness,
		Payments:     payments,
		Events:       publisher,
		Currency:     cfg.Currency,
	})

	jobs := service.NewJobService(st.jobs, cfg.NoShowGrace, cfg.PendingTTL)
	jobs.Payments = reservations
	scheduler := cron.New()
	if _, err := jobs.Register(scheduler, cfg.JobSchedule, time.Minute); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	h := api.Handlers{
		User:       api.NewUserReservationHandler(reservations, availability, uniqueness, lots),
		Vendor:     api.NewVendorHandler(lots, reservations),
		VendorAuth: api.NewVendorAuthHandler(service.NewVendorAuthService(st.vendors, tokens)),
		Tokens:     tokens,
	}
	if cfg.PaymentsEnabled() {
		h.Stripe = api.NewStripeWebhookHandler(cfg.StripeWebhookSecret, reservations)
	}
	if cfg.RedisURL != "" && cfg.RateLimit > 0 {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		h.Limiter = middleware.NewRedisRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitEvery, "parkspot:rl")
	}

	router := api.NewRouter(h)
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", middleware.RequestIDHeader}),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.CombinedLoggingHandler(logging.Writer(), cors(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("port", cfg.Port).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores uses Postgres when DATABASE_URL is set and falls back to the
// in-memory store for local development.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.DatabaseURL == "" {
		logging.Warn().Msg("DATABASE_URL not set, using in-memory store")
		mem := repository.NewMemoryStore()
		return &stores{lots: mem, reservations: mem, jobs: mem, vendors: mem, close: func() error { return nil }}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		lots:         repository.NewLotRepository(db),
		reservations: repository.NewReservationRepository(db),
		jobs:         repository.NewJobRepository(db),
		vendors:      repository.NewVendorRepository(db),
		close:        db.Close,
	}, nil
}

func emailSender(cfg *config.Config) service.EmailSender {
	if cfg.SendGridAPIKey == "" {
		return nil
	}
	return service.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFrom, "ParkSpot")
}

func smsSender(cfg *config.Config) service.SMSSender {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFrom == "" {
		return nil
	}
	return service.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
}
