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

	"github.com/iliyamo/cinema-ticket-cart/internal/config"
	"github.com/iliyamo/cinema-ticket-cart/internal/database"
	"github.com/iliyamo/cinema-ticket-cart/internal/handler"
	"github.com/iliyamo/cinema-ticket-cart/internal/middleware"
	"github.com/iliyamo/cinema-ticket-cart/internal/queue"
	"github.com/iliyamo/cinema-ticket-cart/internal/repository"
	"github.com/iliyamo/cinema-ticket-cart/internal/router"
	"github.com/iliyamo/cinema-ticket-cart/internal/service"
	"github.com/iliyamo/cinema-ticket-cart/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger("server", "info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Conn{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName})
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), nil)
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	} else {
		e.Logger.Warn("redis unavailable; rate limiting disabled")
	}

	var events handler.EventPublisher
	if cfg.PublishEvents {
		events = service.NewPublisher(cfg.AMQPURL, utils.NewLogger("queue", "info"))
	}
	if cfg.ConsumeEvents {
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogPath: cfg.BookingLogPath, Log: utils.NewLogger("booking-consumer", "info")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.Logger.Errorf("booking consumer stopped: %v", err)
			}
		}()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	go purgeRevoked(ctx, tokens, e.Logger)

	router.RegisterRoutes(e)
	router.RegisterAPI(e,
		handler.NewAuthHandler(cfg, users, tokens),
		handler.NewBookingHandler(repository.NewBookingRepo(db), events),
		middleware.JWTAuth(cfg.JWTSecret, tokens),
		limiter,
	)

	addr := ":" + cfg.Port
	logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// purgeRevoked drops expired token revocations once an hour.
func purgeRevoked(ctx context.Context, tokens *repository.TokenRepo, logger echo.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := tokens.PurgeExpired(ctx, now)
			if err != nil {
				logger.Warnf("purge revoked tokens: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("purged %d expired revocations", n)
			}
		}
	}
}
