// Command staff creates a back-office account.  There is no sign-up
// endpoint; the first ADMIN is created with this tool.
//
//	staff -email admin@example.com -role ADMIN
//
// The password is read from STAFF_PASSWORD, or from -password.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/barbershop-booking/internal/config"
	"github.com/iliyamo/barbershop-booking/internal/database"
	"github.com/iliyamo/barbershop-booking/internal/logger"
	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/repository"
	"github.com/iliyamo/barbershop-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()
	email := flag.String("email", "", "login email")
	role := flag.String("role", model.RoleStaff, "ADMIN or STAFF")
	password := flag.String("password", os.Getenv("STAFF_PASSWORD"), "password (prefer STAFF_PASSWORD)")
	flag.Parse()

	log := logger.New(os.Stderr)
	r := strings.ToUpper(strings.TrimSpace(*role))
	if err := validateAccount(*email, *password, r); err != nil {
		fmt.Fprintln(os.Stderr, "staff:", err)
		flag.Usage()
		os.Exit(2)
	}

	id, err := create(config.Load(), *email, *password, r)
	if err != nil {
		log.Error("create account failed", "email", *email, "err", err)
		os.Exit(1)
	}
	log.Info("account created", "user_id", id, "role", r)
}

func create(cfg config.Config, email, password, role string) (uint64, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return 0, fmt.Errorf("db connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := repository.NewStaffRepo(db).Create(ctx, email, password, role, cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return 0, errors.New("account already exists")
	}
	return id, err
}

func validateAccount(email, password, role string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}
	if len(password) < utils.MinPasswordLength {
		return fmt.Errorf("password must have at least %d characters", utils.MinPasswordLength)
	}
	if role != model.RoleAdmin && role != model.RoleStaff {
		return fmt.Errorf("role must be %s or %s", model.RoleAdmin, model.RoleStaff)
	}
	return nil
}
