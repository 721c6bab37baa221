package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nurpe/invoice-engine/internal/auth"
	"github.com/nurpe/invoice-engine/internal/config"
	"github.com/nurpe/invoice-engine/internal/db"
	"github.com/nurpe/invoice-engine/internal/excel"
	httphandler "github.com/nurpe/invoice-engine/internal/http"
	"github.com/nurpe/invoice-engine/internal/http/middleware"
	"github.com/nurpe/invoice-engine/internal/logger"
	"github.com/nurpe/invoice-engine/internal/model"
	"github.com/nurpe/invoice-engine/internal/pdf"
	"github.com/nurpe/invoice-engine/internal/repository"
	"github.com/nurpe/invoice-engine/internal/service"
	"github.com/nurpe/invoice-engine/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "invoice-service",
		Short:        "Invoice payment lifecycle service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), sweepCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.Environment, cfg.Log.Level), nil
}

func buildService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*service.InvoiceService, error) {
	database, err := db.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	var docs service.DocumentStore
	if cfg.Minio.Enabled() {
		store, err := storage.NewDocumentStore(ctx, cfg.Minio, log)
		if err != nil {
			return nil, fmt.Errorf("failed to init document store: %w", err)
		}
		docs = store
	} else {
		log.Warn().Msg("MINIO_ENDPOINT not set; payment documents are disabled")
	}

	invoiceRepo := repository.NewInvoiceRepository(database)
	return service.NewInvoiceService(invoiceRepo, docs, pdf.NewGenerator(), excel.NewGenerator(), cfg, log), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			invoiceService, err := buildService(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
			handler := httphandler.NewHandler(invoiceService, cfg.Invoices.MaxUploadMB, log)
			authMiddleware := middleware.Auth(tokenParser)
			router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.CORSAllowedOrigins)

			addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
			log.Info().Str("addr", addr).Msg("starting invoice service")

			if err := router.Run(addr); err != nil {
				log.Error().Err(err).Msg("server stopped")
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if _, err := db.New(cfg, log); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var nowFlag string
	cmd := &cobra.Command{
		Use:     "sweep",
		Short:   "Move every pending invoice past its due date to overdue",
		Example: "  invoice-service sweep --now 2026-04-01",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			var now time.Time
			if nowFlag != "" {
				now, err = time.Parse("2006-01-02", nowFlag)
				if err != nil {
					return fmt.Errorf("invalid --now %q, expected YYYY-MM-DD", nowFlag)
				}
			}

			invoiceService, err := buildService(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			ids, err := invoiceService.SweepAll(cmd.Context(), now)
			if err != nil {
				return err
			}
			log.Info().Int("transitioned", len(ids)).Msg("sweep finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "evaluate due dates as of this day (YYYY-MM-DD, default: today)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userFlag string
		orgFlag  string
		roleFlag string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Sign an access token with JWT_ACCESS_SECRET",
		Example: "  invoice-service token --org 6f1c... --role accountant --ttl 8h",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			orgID, err := uuid.Parse(orgFlag)
			if err != nil {
				return fmt.Errorf("invalid --org %q: %w", orgFlag, err)
			}
			userID := uuid.New()
			if userFlag != "" {
				if userID, err = uuid.Parse(userFlag); err != nil {
					return fmt.Errorf("invalid --user %q: %w", userFlag, err)
				}
			}
			role := model.UserRole(strings.ToUpper(strings.TrimSpace(roleFlag)))
			switch role {
			case model.UserRoleAdmin, model.UserRoleAccountant, model.UserRoleViewer:
			default:
				return fmt.Errorf("invalid --role %q, expected admin, accountant or viewer", roleFlag)
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			token, err := auth.NewParser(cfg.Auth.AccessSecret).Issue(model.Principal{UserID: userID, OrgID: orgID, Role: role}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user id for the token (default: random)")
	cmd.Flags().StringVar(&orgFlag, "org", "", "organization id the token is scoped to")
	cmd.Flags().StringVar(&roleFlag, "role", string(model.UserRoleViewer), "admin, accountant or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
