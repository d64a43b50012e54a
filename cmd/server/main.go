package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"compliancedesk/internal/app"
	"compliancedesk/internal/platform/config"
	"compliancedesk/internal/platform/database"
	"compliancedesk/internal/platform/logger"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Server, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.FromEnv()
}

var rootCmd = &cobra.Command{
	Use:          "compliancedesk",
	Short:        "Collaborator compliance and document signing service",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.New(cfg.LogLevel, cfg.LogFormat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		log.Info("starting compliance desk", "addr", cfg.Addr, "environment", cfg.Environment)
		return a.Run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|status]",
	Short: "Apply or inspect database migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		ctx := cmd.Context()
		db, err := database.Open(ctx, cfg.Database.DSN, database.Options{MaxOpenConns: 1})
		if err != nil {
			return err
		}
		defer db.Close()

		action := "up"
		if len(args) == 1 {
			action = args[0]
		}
		switch action {
		case "up":
			return database.Migrate(ctx, db)
		case "status":
			return database.Status(ctx, db)
		default:
			return fmt.Errorf("unknown migrate action %q", action)
		}
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Print the bcrypt hash to configure as ADMIN_TOKEN_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (defaults to $"+config.ConfigPathEnv+")")
	rootCmd.AddCommand(serveCmd, migrateCmd, hashTokenCmd)
}
