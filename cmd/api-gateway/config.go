package main

import (
	"time"

	"github.com/fjod/style_cart/pkg/config"
)

type Config struct {
	HTTPPort        string
	LogFormat       string
	LogLevel        string
	CatalogDBPath   string
	RedisAddr       string
	RedisPassword   string
	MongoURI        string
	MongoDBName     string
	KafkaBrokers    []string
	CheckoutTopic   string
	PageSize        int
	LoadMoreDelay   time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	config.LoadDotEnv()

	return &Config{
		HTTPPort:        config.GetEnv("HTTP_PORT", "8080"),
		LogFormat:       config.GetEnv("LOG_FORMAT", "json"),
		LogLevel:        config.GetEnv("LOG_LEVEL", "info"),
		CatalogDBPath:   config.GetEnv("CATALOG_DB_PATH", "./catalog.db"),
		RedisAddr:       config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   config.GetEnv("REDIS_PASSWORD", ""),
		MongoURI:        config.GetEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     config.GetEnv("MONGO_DB_NAME", "cartdb"),
		KafkaBrokers:    config.GetList("KAFKA_BROKERS", nil),
		CheckoutTopic:   config.GetEnv("CHECKOUT_TOPIC", "checkout-completed"),
		PageSize:        config.GetInt("CATALOG_PAGE_SIZE", 10),
		LoadMoreDelay:   config.GetDuration("CATALOG_LOAD_MORE_DELAY", 500*time.Millisecond),
		RequestTimeout:  config.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: config.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}
