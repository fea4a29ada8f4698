package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/carpool-reservation/internal/config"
	"github.com/iliyamo/carpool-reservation/internal/database"
	"github.com/iliyamo/carpool-reservation/internal/handler"
	"github.com/iliyamo/carpool-reservation/internal/middleware"
	"github.com/iliyamo/carpool-reservation/internal/queue"
	"github.com/iliyamo/carpool-reservation/internal/repository"
	"github.com/iliyamo/carpool-reservation/internal/router"
	"github.com/iliyamo/carpool-reservation/internal/service"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: .env not loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient() // nil disables cache and rate limit
	cacheCfg := config.LoadCacheConfig()

	// Notifications leave the request path through the dispatcher.
	publisher := queue.NewPublisher(cfg.AMQPURL, cfg.NotifyQueue)
	dispatcher := queue.NewDispatcher(cfg.NotifyBuffer, publisher.Publish)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	if cfg.NotifyConsumerEnabled {
		go queue.NewConsumer(cfg.AMQPURL, cfg.NotifyQueue, cfg.NotifyLogDir).Run(workerCtx)
	}

	store := repository.NewSQLStore(db)
	policy := service.TxPolicy{MaxRetries: cfg.TxMaxRetries, Timeout: cfg.TxTimeout}
	rides := service.NewRides(store, dispatcher, policy)
	reservations := service.NewReservations(store, dispatcher, policy)
	ratings := service.NewRatings(store, policy)
	users, tokens := repository.NewUserRepo(db), repository.NewTokenRepo(db)

	if cfg.CompletionSweepInterval > 0 {
		go rides.RunCompletionSweeper(workerCtx, cfg.CompletionSweepInterval)
	}

	e := newEcho()
	deps := router.Deps{
		JWTSecret:    cfg.JWTSecret,
		DB:           db,
		Auth:         handler.NewAuthHandler(cfg, users, tokens),
		Rides:        handler.NewRideHandler(rides),
		Reservations: handler.NewReservationHandler(reservations),
		Ratings:      handler.NewRatingHandler(ratings),
		Admin:        handler.NewAdminHandler(users, tokens),
	}
	if rdb != nil {
		defer rdb.Close()
		deps.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		deps.Cache = middleware.NewRedisCache(cacheCfg, rdb)
		deps.PurgeOnWrite = middleware.PurgeOnWrite(cacheCfg, rdb)
	}
	router.Register(e, deps)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	// In-flight requests are done; flush pending notifications.
	stopWorkers()
	done := make(chan struct{})
	go func() { dispatcher.Wait(); close(done) }()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("notify: shutdown timeout, pending events dropped")
	}
}

// newEcho builds the server with the process-wide middleware.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(echomw.Logger())
	return e
}
