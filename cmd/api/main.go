package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"authgate/internal/auth"
	"authgate/internal/config"
	transporthttp "authgate/internal/http"
	"authgate/internal/mail"
	"authgate/internal/platform/database"
	"authgate/internal/platform/logging"
	"authgate/internal/platform/migrate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	repo, cleanup, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	codec := auth.NewTokenCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	blocklist := auth.NewMemoryBlocklist()
	codes := auth.NewCodeEngine(repo, buildMailer(cfg, logger), cfg.CodeTTL, logger)
	service := auth.NewService(repo, codec, blocklist, codes, logger)

	googleAuth, err := buildGoogle(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize google authenticator", "error", err)
		os.Exit(1)
	}
	var google transporthttp.GoogleAuthenticator
	if googleAuth != nil {
		google = googleAuth
	}

	go codes.Run(ctx, cfg.CleanupInterval)
	go service.RunSessionSweep(ctx, cfg.CleanupInterval)

	router := transporthttp.NewRouter(cfg, google, service, codes, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("Authgate API listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory repository")
		return auth.NewInMemoryRepository(), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return auth.NewPostgresRepository(db), cleanup, nil
}

func buildMailer(cfg config.Config, logger *slog.Logger) auth.Mailer {
	if cfg.UseSMTP() {
		sender := mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		return mail.NewVerificationMailer(sender, cfg.AppName)
	}
	logger.Warn("SMTP not configured; verification codes will only be logged")
	return mail.NewVerificationMailer(mail.NewLogSender(logger), cfg.AppName)
}

func buildGoogle(ctx context.Context, cfg config.Config, logger *slog.Logger) (*auth.GoogleAuthenticator, error) {
	if cfg.GoogleClientID == "" {
		logger.Warn("Google OAuth not configured; federated login disabled")
		return nil, nil
	}
	return auth.NewGoogleAuthenticator(
		ctx,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.GoogleAllowedDomains,
		cfg.GoogleAllowedEmails,
	)
}
