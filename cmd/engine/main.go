package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	"github.com/tradepulse/paper-engine/internal/api"
	"github.com/tradepulse/paper-engine/internal/broker"
	"github.com/tradepulse/paper-engine/internal/config"
	"github.com/tradepulse/paper-engine/internal/database"
	"github.com/tradepulse/paper-engine/internal/engine"
	"github.com/tradepulse/paper-engine/internal/kafka"
	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/prices"
	"github.com/tradepulse/paper-engine/internal/redis"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	defer db.Close()
	log.Println("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v (continuing without price cache)", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Connected to Redis cache")
	}

	// Build the price oracle. The static oracle seeded from config backs the
	// Redis cache so dry runs work without a live quote feed.
	static := prices.NewStaticOracle()
	for symbol, price := range cfg.Engine.PaperPrices {
		static.SetPrice(symbol, decimal.NewFromFloat(price))
	}
	var oracle prices.Oracle = static
	if redisClient != nil {
		oracle = prices.NewCachedOracle(redisClient, static, cfg.Engine.PriceCacheTTL)
	}

	// Paper brokers fill at the oracle price plus configured slippage
	brokers := &broker.Router{
		Equity: broker.NewEquityPaper(oracle, cfg.Engine.SlippageBps),
		Crypto: broker.NewCryptoPaper(oracle, cfg.Engine.SlippageBps),
	}

	// Create Kafka producer for cycle reports
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ReportsTopic)
	defer producer.Close()
	log.Printf("Kafka producer initialized (brokers: %v)", cfg.Kafka.Brokers)

	eng := engine.New(db, oracle, brokers, cfg, producer)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create and start Kafka consumer for incoming signals
	consumer := kafka.NewSignalsConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.SignalsTopic,
		cfg.Kafka.ConsumerGroup,
		db,
		maxSignalAge(cfg),
	)
	go func() {
		log.Printf("Starting Kafka consumer for topic: %s (group: %s-signals)",
			cfg.Kafka.SignalsTopic, cfg.Kafka.ConsumerGroup)
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Kafka consumer error: %v", err)
		}
	}()

	// Start the stage schedulers
	go runStage(ctx, "execution", cfg.Engine.ExecutionInterval, eng.RunExecutionCycle)
	go runStage(ctx, "exit", cfg.Engine.ExitInterval, eng.RunExitCycle)

	// Set up HTTP handler and routes
	handler := api.NewHandler(db, redisClient, eng)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down engine...")

	// Cancel context to stop the schedulers and Kafka consumer
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Close Kafka consumer
	if err := consumer.Close(); err != nil {
		log.Printf("Error closing Kafka consumer: %v", err)
	}

	log.Println("Engine stopped")
}

// runStage invokes one engine stage on a fixed interval until ctx is done.
// An overlapping invocation is skipped, not queued.
func runStage(ctx context.Context, name string, interval time.Duration, run func(context.Context) (*models.CycleReport, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Scheduler started for %s stage (every %s)", name, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := run(ctx)
			if errors.Is(err, engine.ErrCycleInProgress) {
				log.Printf("Skipping %s cycle: previous run still in progress", name)
				continue
			}
			if err != nil {
				log.Printf("%s cycle error: %v", name, err)
				continue
			}
			log.Printf("%s cycle finished: processed=%d in %s",
				name, report.Processed(), report.FinishedAt.Sub(report.StartedAt))
		}
	}
}

// maxSignalAge returns the widest stale-signal window across venues. The
// consumer only expires signals no venue could possibly accept.
func maxSignalAge(cfg *config.Config) time.Duration {
	var max time.Duration
	for _, venue := range cfg.Venues {
		if venue.Risk.MaxSignalAge > max {
			max = venue.Risk.MaxSignalAge
		}
	}
	if max == 0 {
		max = 30 * time.Minute
	}
	return max
}

func runMigrations(databaseUrl string) error {
	m, err := migrate.New(
		"file://./db/migrations",
		databaseUrl)
	if err != nil {
		return err
	}

	// Apply all available migrations up to the latest version
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}
