package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"attire-api/internal/auth"
	"attire-api/internal/config"
	apphttp "attire-api/internal/http"
	"attire-api/internal/mailer"
	"attire-api/internal/repository/sqlite"
	"attire-api/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := newRootCommand(logger).Execute(); err != nil {
		logger.Fatal(err)
	}
}

func newRootCommand(logger *logrus.Logger) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:           "attire-api",
		Short:         "Attire account and session API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for one-shot commands")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(logger)
				if err != nil {
					return err
				}
				return serve(cfg, logger)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(logger)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				return migrate(ctx, cfg, logger)
			},
		},
		newOutboxCommand(logger, &timeout),
	)
	return cmd
}

func loadConfig(logger *logrus.Logger) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	configureLogger(logger, cfg)
	return cfg, nil
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func migrate(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := sqlite.NewUserRepository(db).Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}
	logger.Infof("schema ready at %s", cfg.Database.Path)
	return nil
}

func serve(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	transport, err := buildTransport(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup mail transport: %w", err)
	}
	dispatcher := mailer.NewDispatcher(mailer.DispatcherConfig{
		MaxConcurrent: cfg.Mail.Workers,
		Logger:        logger,
	}, transport)
	if err := dispatcher.Start(context.Background()); err != nil {
		return fmt.Errorf("start mail dispatcher: %w", err)
	}
	mail, err := mailer.New(mailer.Config{From: cfg.Mail.From, ResetTTL: cfg.Auth.ResetTTL}, transport, dispatcher)
	if err != nil {
		return err
	}

	userService, err := service.NewUserService(service.Config{
		Users:        userRepo,
		Tokens:       tokens,
		Hasher:       auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Notifier:     mail,
		AppURL:       cfg.App.URL,
		ResetURLBase: cfg.App.ResetURLBase,
		ResetTTL:     cfg.Auth.ResetTTL,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handler := apphttp.NewHandler(userService, apphttp.Options{
		Cookie: apphttp.CookieOptions{
			Name:     cfg.Auth.CookieName,
			SameSite: parseSameSite(cfg.Auth.CookieSameSite),
			Secure:   cfg.IsProduction(),
			MaxAge:   tokens.TTL(),
		},
		AllowedOrigins: cfg.CORS.Origins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Logger:         logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			dispatcher.Shutdown(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	dispatcher.Shutdown(shutdownCtx)

	logger.Info("bye")
	return nil
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteNoneMode
	}
}
