package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/andrrrrey/avito-crm/docs"
	"github.com/andrrrrey/avito-crm/internal/config"
	httpapi "github.com/andrrrrey/avito-crm/internal/http"
	"github.com/andrrrrey/avito-crm/internal/jobs"
	"github.com/andrrrrey/avito-crm/internal/observability"
)

const shutdownTimeout = 20 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook receiver and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = ":" + cfg.Port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, addr string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.AppEnv)
	if err != nil {
		// tracing is optional; keep serving without it
		log.Warn().Err(err).Msg("tracing disabled")
		shutdownOTel = func(context.Context) error { return nil }
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.bus.Start(ctx)

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}
	sched.Start()

	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.BasePath = cfg.APIBasePath

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, a.handlers(), a.db, cfg)

	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case serveErr = <-errCh:
		if serveErr != nil {
			serveErr = fmt.Errorf("http server: %w", serveErr)
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// SSE streams end when the bus stops, so stop it before draining.
	a.bus.Stop()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := sched.Stop(shCtx); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown")
	}
	if err := a.tasks.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Int("pending", a.tasks.Pending()).Msg("background tasks did not finish")
	}
	if err := shutdownOTel(shCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
	return serveErr
}

// newScheduler registers the periodic jobs. An empty cron spec disables a
// job, and the webhook watchdog never runs in mock mode.
func newScheduler(a *app) (*jobs.Scheduler, error) {
	s := jobs.NewScheduler(a.cfg.TaskTimeout)
	if err := s.Add("reconcile_unread", a.cfg.UnreadReconcileCron, jobs.ReconcileUnread(a.db)); err != nil {
		return nil, err
	}
	if !a.cfg.MockMode {
		if err := s.Add("webhook_watchdog", a.cfg.WebhookWatchdogCron, jobs.WebhookWatchdog(a.subs)); err != nil {
			return nil, err
		}
	}
	return s, nil
}
