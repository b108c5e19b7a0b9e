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

	cartcache "github.com/fjod/style_cart/internal/cart/cache"
	"github.com/fjod/style_cart/internal/cart/events"
	"github.com/fjod/style_cart/internal/cart/offers"
	"github.com/fjod/style_cart/internal/cart/poller"
	cartrepo "github.com/fjod/style_cart/internal/cart/repository"
	cartservice "github.com/fjod/style_cart/internal/cart/service"
	catalogcache "github.com/fjod/style_cart/internal/catalog/cache"
	catalogrepo "github.com/fjod/style_cart/internal/catalog/repository"
	catalogservice "github.com/fjod/style_cart/internal/catalog/service"
	h "github.com/fjod/style_cart/internal/gateway/http"
	"github.com/fjod/style_cart/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := loadConfig()

	zl, err := logger.New("api-gateway", cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catalog: sqlite with embedded migrations
	productRepo, err := catalogrepo.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		zl.Fatal("failed to open catalog database", zap.Error(err))
	}
	defer productRepo.Close()
	if err := productRepo.RunMigrations(); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}
	zl.Info("catalog migrations completed", zap.String("db_path", cfg.CatalogDBPath))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zl.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	zl.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	catalog := catalogservice.NewCatalogService(productRepo, catalogcache.NewRedisCache(redisClient), zl, catalogservice.Options{
		LoadMoreDelay: cfg.LoadMoreDelay,
		PageSize:      cfg.PageSize,
	})

	// Cart: mongo storage, redis cache
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		zl.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := cartrepo.DisconnectMongoDB(mongoDB, 5*time.Second); err != nil {
			zl.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()
	cartRepo := cartrepo.NewMongoRepository(mongoDB)
	if err := cartrepo.CreateIndexes(ctx, cartRepo); err != nil {
		zl.Fatal("failed to create cart indexes", zap.Error(err))
	}
	zl.Info("connected to MongoDB", zap.String("database", cfg.MongoDBName))

	var cartOpts []cartservice.Option
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.CheckoutTopic, cfg.KafkaBrokers...)
		defer publisher.Close()
		cartOpts = append(cartOpts, cartservice.WithPublisher(publisher))
	}
	carts := cartservice.NewCartService(cartRepo, cartcache.NewRedisCache(redisClient), catalog, offers.DefaultSource(), zl, cartOpts...)

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(carts, zl, cfg.CheckoutTopic, cfg.KafkaBrokers...)
		defer p.Close()
		go p.Run(ctx)
		zl.Info("checkout poller started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.CheckoutTopic))
	} else {
		zl.Info("KAFKA_BROKERS not set, checkout clears carts in place")
	}

	router := h.NewRouter(h.RouterConfig{
		Catalog:        catalog,
		Cart:           carts,
		RequestTimeout: cfg.RequestTimeout,
		Log:            zl,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "api-gateway"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("API Gateway starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	zl.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}

	zl.Info("server exited")
}
