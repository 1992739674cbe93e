// Command digest emails the admin the day's appointments and each client a
// reminder, then purges expired refresh tokens.  It is meant to run once a
// day from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/barbershop-booking/internal/config"
	"github.com/iliyamo/barbershop-booking/internal/database"
	"github.com/iliyamo/barbershop-booking/internal/fieldcrypt"
	"github.com/iliyamo/barbershop-booking/internal/logger"
	"github.com/iliyamo/barbershop-booking/internal/mailer"
	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/notify"
	"github.com/iliyamo/barbershop-booking/internal/repository"
	"github.com/iliyamo/barbershop-booking/internal/service"
)

func main() {
	_ = godotenv.Load()
	dateFlag := flag.String("date", "", "day to report (YYYY-MM-DD); defaults to today in APP_TIMEZONE")
	flag.Parse()

	log := logger.New(os.Stdout)
	cfg := config.Load()

	day, err := reportDay(*dateFlag, time.Now().In(cfg.Location))
	if err != nil {
		log.Error("invalid -date", "value", *dateFlag, "err", err)
		os.Exit(2)
	}
	if err := run(cfg, day, log); err != nil {
		log.Error("digest failed", "date", day.Format(model.DateLayout), "err", err)
		os.Exit(1)
	}
}

// run sends the digest for day and purges expired refresh tokens.  Email
// failures are returned after the purge so both jobs always run.
func run(cfg config.Config, day time.Time, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("db connection: %w", err)
	}
	defer db.Close()

	codec, err := fieldcrypt.NewFromBase64(cfg.FieldKey)
	if err != nil {
		return fmt.Errorf("FIELD_ENCRYPTION_KEY: %w", err)
	}

	mailCfg := config.LoadMailConfig()
	dispatcher := notify.NewEmailDispatcher(mailer.New(mailCfg, log), mailCfg.AdminEmail, log)
	booking := service.NewBookingService(repository.NewAppointmentRepo(db), repository.NewServiceRepo(db),
		repository.NewPromoRepo(db), codec, dispatcher, log)

	notices, err := booking.DailyNotices(ctx, day)
	if err != nil {
		return fmt.Errorf("loading appointments: %w", err)
	}
	sent, sendErr := dispatcher.SendDailyDigest(ctx, day, notices)
	log.Info("digest finished", "date", day.Format(model.DateLayout), "appointments", len(notices), "emails", sent)

	purged, err := repository.NewTokenRepo(db).PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Warn("refresh token purge failed", "err", err)
	} else if purged > 0 {
		log.Info("expired refresh tokens purged", "rows", purged)
	}

	if sendErr != nil {
		return fmt.Errorf("some emails were not sent: %w", sendErr)
	}
	return nil
}

// reportDay returns the calendar day to report as a UTC midnight, the way
// appointment dates are stored.
func reportDay(flagValue string, now time.Time) (time.Time, error) {
	if flagValue != "" {
		return time.Parse(model.DateLayout, flagValue)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
