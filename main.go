package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"lpg-backend/internal/cart"
	"lpg-backend/internal/checkout"
	"lpg-backend/internal/config"
	"lpg-backend/internal/database"
	"lpg-backend/internal/events"
	"lpg-backend/internal/handlers"
	"lpg-backend/internal/idempotency"
	"lpg-backend/internal/inventory"
	"lpg-backend/internal/metrics"
	"lpg-backend/internal/orders"
	"lpg-backend/internal/pricing"
	"lpg-backend/internal/store/mongostore"
	"lpg-backend/internal/telemetry"
)

const serviceVersion = "1.0.0"

func main() {
	config.Load()
	if err := config.AppEnv.Validate(); err != nil {
		log.Fatal(err)
	}

	shutdownTracing, err := telemetry.Setup(config.AppEnv.TracingExporter, serviceVersion)
	if err != nil {
		log.Fatal(err)
	}

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)
	log.Println("MongoDB connected to:", db.Name())
	database.EnsureAll(db)

	st := mongostore.New(db)
	m := metrics.NewDefault()
	publisher := newPublisher()
	rules := pricing.Rules{
		FreeDeliveryThreshold: config.AppEnv.FreeDeliveryThreshold,
		DeliveryFee:           config.AppEnv.DeliveryFee,
	}
	ledger := inventory.NewLedger(config.AppEnv.LowStockThreshold, publisher, m)

	var guard idempotency.Guard
	redisClient := newRedisClient()
	if redisClient != nil {
		guard = idempotency.NewRedisGuard(redisClient, config.AppEnv.IdempotencyTTL,
			idempotency.WithPendingTTL(2*config.AppEnv.RequestTimeout))
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	handlers.Register(r, handlers.Deps{
		Store:  st,
		Ledger: ledger,
		Carts:  cart.NewService(st, ledger, rules),
		Checkout: checkout.NewService(checkout.Config{
			Store:     st,
			Ledger:    ledger,
			Rules:     rules,
			Guard:     guard,
			Publisher: publisher,
			Metrics:   m,
		}),
		Orders: orders.NewService(orders.Config{
			Store:     st,
			Ledger:    ledger,
			Rules:     rules,
			Publisher: publisher,
		}),
		Metrics:        m,
		JWTSecret:      config.AppEnv.JWTSecret,
		AccessTokenTTL: config.AppEnv.AccessTokenTTL,
	})

	srv := &http.Server{
		Addr:              ":" + config.AppEnv.Port,
		Handler:           otelhttp.NewHandler(r, "lpg-backend"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := serve(srv); err != nil {
		log.Println("[SERVER] [ERROR]", err)
	}

	log.Println("[SERVER] [INFO] closing resources...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := publisher.Close(); err != nil {
		log.Println("[SERVER] [WARN] event publisher close failed:", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Println("[SERVER] [WARN] redis close failed:", err)
		}
	}
	if err := client.Disconnect(ctx); err != nil {
		log.Println("[SERVER] [WARN] mongo disconnect failed:", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Println("[SERVER] [WARN] tracer shutdown failed:", err)
	}
	log.Println("[SERVER] [INFO] shutdown complete")
}

// serve runs srv until SIGINT or SIGTERM, then drains in-flight requests.
func serve(srv *http.Server) error {
	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		log.Printf("[SERVER] [INFO] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("[SERVER] [INFO] shutting down, waiting for pending requests...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newPublisher() events.Publisher {
	if len(config.AppEnv.KafkaBrokers) == 0 {
		log.Println("[EVENTS] [INFO] KAFKA_BROKERS not set, events are logged only")
		return events.LogPublisher{}
	}
	log.Printf("[EVENTS] [INFO] publishing to kafka topic %s", config.AppEnv.KafkaTopic)
	return events.NewKafkaPublisher(config.AppEnv.KafkaBrokers, config.AppEnv.KafkaTopic)
}

// newRedisClient returns nil when Redis is not configured or unreachable;
// checkout then relies on the unique order index alone.
func newRedisClient() *redis.Client {
	if config.AppEnv.RedisURL == "" {
		log.Println("[IDEMPOTENCY] [INFO] REDIS_URL not set, idempotency guard disabled")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := idempotency.NewRedisClient(ctx, config.AppEnv.RedisURL)
	if err != nil {
		log.Printf("[IDEMPOTENCY] [WARN] redis unavailable, guard disabled: %v", err)
		return nil
	}
	return client
}
