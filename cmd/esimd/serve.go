package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"esim-payments/internal/config"
	"esim-payments/internal/database"
	"esim-payments/internal/server"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the provisioning worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the database schema before serving")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	warnInsecureDefaults(cfg, log)

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("database schema applied")
	}

	a, err := newApp(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		DB:             database.New(db),
		Orders:         a.orders,
		Webhooks:       a.webhooks,
		Provisions:     a.provisions,
		Admin:          a.admin,
		Tokens:         a.tokens,
		Log:            log,
	}).HTTPServer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.worker.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server error: %w", err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully, press Ctrl+C again to force")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return err
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	wg.Wait()
	log.Info("server exiting")
	return nil
}

func warnInsecureDefaults(cfg *config.Config, log logrus.FieldLogger) {
	if cfg.DefaultJWTSecretInUse() {
		log.Warn("JWT_SECRET_KEY is not set, admin tokens are signed with the public default secret")
	}
}
