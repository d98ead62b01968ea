package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"counter-pipeline/config"
	"counter-pipeline/counter"
	"counter-pipeline/counter-api/api"
	"counter-pipeline/queue"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := counter.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("counter store: %v", err)
	}
	defer closer.Close()

	backend, err := queue.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}
	resolver := queue.NewResolver(backend, cfg.Queue.Name)
	publisher := queue.NewPublisher(resolver, backend, cfg.Queue.PublishTimeout)
	svc := counter.NewService(store, publisher)

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(echoprometheus.NewMiddleware("counter_api"))
	e.GET("/metrics", echoprometheus.NewHandler())

	logger := log.StandardLogger()
	api.Register(e, svc, logger)

	listenAddr := ":" + cfg.HTTP.Port
	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
}
