package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/log"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

var rootCmd = &cobra.Command{
	Use:           "taskctl",
	Short:         "Operator tooling for taskflow",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, _ *config.AppConfig, _ zerolog.Logger) error {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userInput service.CreateUserInput

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user without an existing admin session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, _ *config.AppConfig, logger zerolog.Logger) error {
			users := service.NewUserService(
				database.NewTransactor(pool),
				repository.NewUserRepository(pool),
				repository.NewSessionRepository(pool),
				repository.NewTaskRepository(pool),
				logger,
			)
			user, err := users.Provision(ctx, userInput)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Username, user.ID)
			return nil
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage login sessions",
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, cfg *config.AppConfig, logger zerolog.Logger) error {
			auth := service.NewAuthService(
				repository.NewUserRepository(pool),
				repository.NewSessionRepository(pool),
				cfg.Security,
				logger,
			)
			n, err := auth.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d sessions\n", n)
			return nil
		})
	},
}

// withPool loads configuration, opens the database and runs fn.
func withPool(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool, cfg *config.AppConfig, logger zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.New(cfg.Environment, cfg.Logging.Level)

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	return fn(ctx, pool, cfg, logger)
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&userInput.Username, "username", "", "login name")
	f.StringVar(&userInput.Email, "email", "", "email address")
	f.StringVar(&userInput.Password, "password", "", "initial password")
	f.StringVar(&userInput.FirstName, "first-name", "", "given name")
	f.StringVar(&userInput.LastName, "last-name", "", "family name")
	f.StringVar(&userInput.Role, "role", "user", "admin or user")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	sessionsCmd.AddCommand(sessionsPurgeCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
