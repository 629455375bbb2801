package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/silentsos/silentsos/db"
	"github.com/silentsos/silentsos/internal/config"
	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/server"
	"github.com/silentsos/silentsos/internal/services"
)

func main() {
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "silentsos",
		Short:         "SilentSOS campus safety alert API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error

			cfg, err = config.Load()
			if err != nil {
				return err
			}

			server.Configure(cfg)

			return nil
		},
	}

	loaded := func() *config.Config { return cfg }

	rootCmd.AddCommand(
		serveCommand(loaded),
		migrateCommand(loaded),
		createSuperuserCommand(loaded),
	)

	return rootCmd
}

// connect opens the database the same way the server does.
func connect(cfg *config.Config) error {
	if err := db.ConnectDatabase(cfg.DBDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func serveCommand(cfg func() *config.Config) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.New(cmd.Context(), cfg(), migrate)
			if err != nil {
				return err
			}

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "migrate the database schema before serving")

	return cmd
}

func migrateCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connect(cfg()); err != nil {
				return err
			}

			if err := db.MigrateDatabase(); err != nil {
				return err
			}

			logging.For("migrate").Info("database schema is up to date")

			return nil
		},
	}
}

func createSuperuserCommand(cfg func() *config.Config) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a staff account, or promote an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connect(cfg()); err != nil {
				return err
			}

			user, err := services.CreateSuperuser(cmd.Context(), db.DB, email, password)
			if err != nil {
				return err
			}

			logging.For("createsuperuser").Info("superuser ready", "user_id", user.ID, "email", user.Email)

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "institutional email of the account")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
