package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const ServiceName = "vending-machine"

const (
	SourcePackaged = "packaged"
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceMongo    = "mongo"
)

type Config struct {
	Port string

	InitialBalance decimal.Decimal
	DepositAmount  decimal.Decimal

	InventorySource string
	InventoryPath   string
	DatabaseURL     string
	InventoryTable  string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
	LokiURL      string

	RequestTimeout  time.Duration
	EventMaxRetries int
	EventBaseDelay  time.Duration
}

func NewConfig() (*Config, error) {
	initialBalance, err := getDecimal("INITIAL_BALANCE", "10.0")
	if err != nil {
		return nil, err
	}
	depositAmount, err := getDecimal("DEPOSIT_AMOUNT", "5.00")
	if err != nil {
		return nil, err
	}
	timeoutSec, err := getPositiveInt("REQUEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getPositiveInt("EVENT_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	baseDelayMs, err := getPositiveInt("EVENT_BASE_DELAY_MS", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port: getEnvOrDefault("PORT", "3134"),

		InitialBalance: initialBalance,
		DepositAmount:  depositAmount,

		InventorySource: getEnvOrDefault("INVENTORY_SOURCE", SourcePackaged),
		InventoryPath:   os.Getenv("INVENTORY_PATH"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		InventoryTable:  getEnvOrDefault("INVENTORY_TABLE", "vending_inventory"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   getEnvOrDefault("MONGO_DATABASE", "vending"),
		MongoCollection: getEnvOrDefault("MONGO_COLLECTION", "inventory"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnvOrDefault("KAFKA_TOPIC", "vending.events"),
		LokiURL:      os.Getenv("LOKI_URL"),

		RequestTimeout:  time.Duration(timeoutSec) * time.Second,
		EventMaxRetries: maxRetries,
		EventBaseDelay:  time.Duration(baseDelayMs) * time.Millisecond,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.InventorySource {
	case SourcePackaged:
	case SourceFile:
		if c.InventoryPath == "" {
			return fmt.Errorf("INVENTORY_PATH is required when INVENTORY_SOURCE=%s", SourceFile)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when INVENTORY_SOURCE=%s", SourcePostgres)
		}
	case SourceMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when INVENTORY_SOURCE=%s", SourceMongo)
		}
	default:
		return fmt.Errorf("unknown INVENTORY_SOURCE %q", c.InventorySource)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDecimal(key, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnvOrDefault(key, def))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getPositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
