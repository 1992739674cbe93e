package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iliyamo/barbershop-booking/internal/captcha"
	"github.com/iliyamo/barbershop-booking/internal/config"
	"github.com/iliyamo/barbershop-booking/internal/database"
	"github.com/iliyamo/barbershop-booking/internal/fieldcrypt"
	"github.com/iliyamo/barbershop-booking/internal/handler"
	"github.com/iliyamo/barbershop-booking/internal/logger"
	"github.com/iliyamo/barbershop-booking/internal/mailer"
	"github.com/iliyamo/barbershop-booking/internal/notify"
	"github.com/iliyamo/barbershop-booking/internal/queue"
	"github.com/iliyamo/barbershop-booking/internal/repository"
	"github.com/iliyamo/barbershop-booking/internal/router"
	"github.com/iliyamo/barbershop-booking/internal/service"
	"github.com/iliyamo/barbershop-booking/internal/telemetry"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins
	log := logger.New(os.Stdout)
	slog.SetDefault(log)
	if err := run(config.Load(), log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// run wires the server and blocks until SIGINT/SIGTERM or a listener
// failure, then shuts everything down.
func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, config.LoadTelemetryConfig("barbershop-booking"))
	if err != nil {
		log.Error("telemetry setup failed", "err", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			log.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("db connection: %w", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("schema migration: %w", err)
		}
	}

	codec, err := fieldcrypt.NewFromBase64(cfg.FieldKey)
	if err != nil {
		return fmt.Errorf("FIELD_ENCRYPTION_KEY: %w", err)
	}

	appointments := repository.NewAppointmentRepo(db)
	services := repository.NewServiceRepo(db)
	promos := repository.NewPromoRepo(db)
	schedule := repository.NewScheduleRepo(db)
	staff := repository.NewStaffRepo(db)
	tokens := repository.NewTokenRepo(db)

	mailCfg := config.LoadMailConfig()
	dispatcher := notify.NewEmailDispatcher(mailer.New(mailCfg, log), mailCfg.AdminEmail, log)

	booking := service.NewBookingService(appointments, services, promos, codec, dispatcher, log)
	if cfg.EventsEnabled {
		booking.Events = queue.NewPublisher(cfg.RabbitURL)
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.EventLogDir, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", "err", err)
			}
		}()
	}

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Warn("redis unavailable; rate limiting and cache disabled", "err", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	e := router.New(router.Deps{
		Appointments: handler.NewAppointmentHandler(booking, captcha.New(cfg.RecaptchaKey), log),
		Catalog:      handler.NewCatalogHandler(services, promos, schedule, log),
		Auth: handler.NewAuthHandler(handler.AuthSettings{
			JWTSecret:  cfg.JWTSecret,
			AccessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
		}, staff, tokens, log),
		DB:        db,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		JWTSecret: cfg.JWTSecret,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(e, "booking-api"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var listenErr error
	select {
	case <-ctx.Done():
	case listenErr = <-serveErr:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "err", err)
	}
	booking.Wait() // in-flight event publishes
	log.Info("http server stopped")
	return listenErr
}
