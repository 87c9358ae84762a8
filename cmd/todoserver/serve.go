package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Joseda-hg/todoserver/internal/auth"
	"github.com/Joseda-hg/todoserver/internal/config"
	"github.com/Joseda-hg/todoserver/internal/db"
	"github.com/Joseda-hg/todoserver/internal/notify"
	"github.com/Joseda-hg/todoserver/internal/web"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "http port, overrides PORT")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if logger.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("close store", "err", err)
		}
	}()
	logger.Info("store ready", "driver", cfg.Store)

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, issuing tokens with a per-process secret")
		if secret, err = auth.RandomSecret(); err != nil {
			return err
		}
	}
	tokens, err := auth.NewSigner(secret)
	if err != nil {
		return err
	}

	var mailer notify.Mailer = notify.LogMailer{Logger: logger}
	if cfg.SendGridAPIKey != "" {
		if mailer, err = notify.NewSendGridMailer(cfg.SendGridAPIKey); err != nil {
			return err
		}
	}

	server := web.NewServer(store, tokens, mailer, logger, web.Options{
		MailFrom:     notify.Address{Name: cfg.MailFromName, Email: cfg.MailFromEmail},
		AuthRequired: cfg.AuthRequired,
		CORSOrigins:  cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Web server running", "addr", "http://localhost"+httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(level string) (*log.Logger, error) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           parsed,
	}), nil
}

// loadConfig resolves the config path and applies the --db flag, which
// switches to the sqlite store.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		var err error
		if cfgPath, err = config.DefaultConfigPath(); err != nil {
			return config.Config{}, "", err
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, "", err
	}

	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.Store = config.DriverSQLite
		cfg.DBPath = dbPath
	}
	if cfg.Store == config.DriverSQLite && cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "todoserver.db")
	}
	return cfg, cfgPath, nil
}

func openStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	switch cfg.Store {
	case config.DriverSQLite:
		if err := config.EnsureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		sqlDB, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db.NewSQLStore(sqlDB), nil
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := db.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
