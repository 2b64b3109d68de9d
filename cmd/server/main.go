package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2" // scheduler driving the expiration sweeper
	"github.com/joho/godotenv"      // .env loading for local development
	"github.com/labstack/echo/v4"   // Echo web framework

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/database"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/router"
)

func main() {
	// Load .env when present; real deployments set env vars directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// Redis powers rate limiting and availability-response caching.  A
	// nil client disables both; the booking engine itself never needs it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response caching disabled")
	}

	reservations := repository.NewReservationRepo(db)
	showings := repository.NewShowingRepo(db)
	engine := booking.NewService(reservations, showings,
		time.Duration(cfg.HoldWindowMin)*time.Minute, nil)

	startSweeper(engine, time.Duration(cfg.SweepIntervalSec)*time.Second)

	// Consume reservation.paid events in the background; the consumer
	// reconnects on its own and never brings the server down.
	go func() {
		if err := queue.StartPaidConsumer(); err != nil {
			log.Printf("reservation-consumer: stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterBooking(e, handler.NewBookingHandler(engine), cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// startSweeper schedules the expiration sweep at a fixed interval.  The
// sweeper is idempotent and safe to run on every instance concurrently;
// a pass that finds nothing due is a cheap index range scan.
func startSweeper(engine *booking.Service, interval time.Duration) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		log.Fatalf("sweeper scheduler: %v", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := engine.SweepExpired(ctx, time.Now())
			if err != nil {
				log.Printf("sweeper: pass failed after %d expirations: %v", n, err)
				return
			}
			if n > 0 {
				log.Printf("sweeper: expired %d reservations", n)
			}
		}),
	)
	if err != nil {
		log.Fatalf("sweeper job: %v", err)
	}
	s.Start()
	log.Printf("sweeper started (every %s)", interval)
}
