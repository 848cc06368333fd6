/**
 * @description
 * This is the main entry point for the wallet service. It is responsible for
 * initializing all components of the service, including configuration,
 * database connection, the Paystack client, the message broker producer, the
 * repository, the core application service, background jobs, and the HTTP
 * server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/paystackclient: Client for the Paystack API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vaultpay/wallet-service/internal/api"
	"github.com/vaultpay/wallet-service/internal/app"
	"github.com/vaultpay/wallet-service/internal/config"
	"github.com/vaultpay/wallet-service/internal/store"
	"github.com/vaultpay/wallet-service/pkg/paystackclient"
	"github.com/vaultpay/wallet-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.PaystackSecretKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"paystack secret key must be configured\" env=PAYSTACK_SECRET_KEY")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting wallet-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish wallet facts. Fact delivery
	// is best-effort, so a broker outage at boot degrades to the fallback.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the Paystack API client.
	paystackClient := paystackclient.NewClient(cfg.PaystackAPIBaseURL, cfg.PaystackSecretKey)

	// Redis-backed webhook replay suppression is optional.
	var replayCache app.ReplayCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, cacheErr := app.NewRedisReplayCache(cfg.RedisURL, time.Duration(cfg.WebhookReplayTTLMin)*time.Minute)
		if cacheErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; replay suppression disabled\" err=%v", cacheErr)
		} else {
			defer cache.Close()
			replayCache = cache
			log.Println("level=info component=bootstrap msg=\"redis replay cache connected\"")
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	walletService := app.NewService(
		repository,
		paystackClient,
		producer,
		cfg.WalletEventExchange,
		cfg.PaystackSecretKey,
		cfg.WalletActiveOnCreate,
	)

	// Start the background top-up reverification sweep.
	scheduler, err := app.NewScheduler(
		walletService,
		cfg.TopUpReverifySchedule,
		time.Duration(cfg.TopUpReverifyMinAgeMin)*time.Minute,
	)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid reverify schedule\" spec=%s err=%v", cfg.TopUpReverifySchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize the API handlers and router.
	walletHandlers := api.NewWalletHandlers(walletService, replayCache)
	router := api.WalletRoutes(walletHandlers, cfg.JWTSecret, cfg.CORSAllowedOrigins)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
