// seed-admin creates the first administrator account so that staff accounts
// can then be managed through the admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"etatcivil/internal/account/models"
	accountService "etatcivil/internal/account/service"
	accountStore "etatcivil/internal/account/store"
	"etatcivil/internal/platform/config"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/platform/logger"
	"etatcivil/internal/session"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	var req models.CreateUserRequest
	flags := pflag.NewFlagSet("seed-admin", pflag.ContinueOnError)
	flags.StringVar(&cfg.Database.URL, "database-url", cfg.Database.URL, "Postgres connection string (default $DATABASE_URL)")
	flags.StringVar(&req.Email, "email", "", "administrator email")
	flags.StringVar(&req.Password, "password", os.Getenv("SEED_ADMIN_PASSWORD"), "administrator password (default $SEED_ADMIN_PASSWORD)")
	flags.StringVar(&req.FirstName, "first-name", "", "administrator first name (derived from the email when empty)")
	flags.StringVar(&req.LastName, "last-name", "", "administrator last name (derived from the email when empty)")
	migrate := flags.Bool("migrate", true, "apply pending migrations first")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}
	req.Role = string(id.RoleAdmin)

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if *migrate {
		if err := database.Migrate(db, log); err != nil {
			return err
		}
	}

	svc := accountService.New(
		accountStore.NewPostgresCitizens(db),
		accountStore.NewPostgresUsers(db),
		session.NewJWTService(cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.TTL),
		accountService.WithLogger(log),
	)
	user, err := svc.CreateUser(ctx, &req)
	switch {
	case dErrors.HasCode(err, dErrors.CodeConflict):
		log.Info("administrator already exists, nothing to do", "email", req.Email)
		return nil
	case err != nil:
		return fmt.Errorf("create administrator: %w", err)
	}
	log.Info("administrator created", "user_id", user.ID.String(), "email", user.Email)
	return nil
}
