package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesa-pos/api/internal/config"
	"github.com/mesa-pos/api/internal/events"
	"github.com/mesa-pos/api/internal/logging"
	"github.com/mesa-pos/api/internal/metrics"
	"github.com/mesa-pos/api/internal/notify"
	"github.com/mesa-pos/api/internal/router"
	"github.com/mesa-pos/api/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("unable to connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logrus.WithError(err).Fatal("unable to ping database")
	}
	logrus.Info("connected to database")

	bus, err := events.Open(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("open event bus")
	}
	defer bus.Close()
	logrus.WithField("bus", cfg.EventBus).Info("event bus ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := ws.NewHub()
	go hub.Run(ctx)

	r := router.New(cfg, pool, hub, notify.New(hub, bus), m, reg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown")
	}
}
