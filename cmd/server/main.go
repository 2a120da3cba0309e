package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/avanzo/foodshare/internal/config"
	"github.com/avanzo/foodshare/internal/database"
	"github.com/avanzo/foodshare/internal/handler"
	"github.com/avanzo/foodshare/internal/logger"
	"github.com/avanzo/foodshare/internal/mail"
	"github.com/avanzo/foodshare/internal/middleware"
	"github.com/avanzo/foodshare/internal/queue"
	"github.com/avanzo/foodshare/internal/repository"
	"github.com/avanzo/foodshare/internal/router"
	"github.com/avanzo/foodshare/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is not configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync(log)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unreachable; response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := service.NewEventPublisher(cfg.RabbitMQURL, log)
	if cfg.RabbitMQURL != "" {
		go func() {
			err := queue.StartReservationConsumer(ctx, cfg.RabbitMQURL, cfg.EventsLogDir, log)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("reservation consumer stopped", zap.Error(err))
			}
		}()
	}

	users := repository.NewUserRepo(db)
	foods := repository.NewFoodRepo(db)
	reservations := repository.NewReservationRepo(db)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)

	userHandler, err := handler.NewUserHandler(cfg, users, reservations, mail.NewSMTPSender(cfg.Mail))
	if err != nil {
		log.Fatal("user handler setup failed", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		echomw.Recover(),
		echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSAllowOrigins}),
		middleware.BearerSubject(cfg.JWTSecret),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	)

	router.RegisterRoutes(e, router.Handlers{
		Health:       handler.Health(db),
		Food:         handler.NewFoodHandler(cfg.Production(), users, foods, reservations, cache),
		User:         userHandler,
		Reservation:  handler.NewReservationHandler(cfg.Production(), users, foods, reservations, publisher),
		Cache:        cache,
		AuthRequired: cfg.AuthRequired,
		JWTSecret:    cfg.JWTSecret,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
