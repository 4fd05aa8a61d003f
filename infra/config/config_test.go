package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Port != "3134" {
		t.Fatalf("expected port 3134, got %s", cfg.Port)
	}
	if !cfg.InitialBalance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected initial balance 10, got %s", cfg.InitialBalance)
	}
	if !cfg.DepositAmount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected deposit amount 5, got %s", cfg.DepositAmount)
	}
	if cfg.InventorySource != SourcePackaged {
		t.Fatalf("expected packaged inventory, got %s", cfg.InventorySource)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.RequestTimeout)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no kafka brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("INITIAL_BALANCE", "2.50")
	t.Setenv("INVENTORY_SOURCE", SourceFile)
	t.Setenv("INVENTORY_PATH", "/etc/vending/inventory.yaml")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("EVENT_BASE_DELAY_MS", "250")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("expected port 9000, got %s", cfg.Port)
	}
	if !cfg.InitialBalance.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected initial balance 2.5, got %s", cfg.InitialBalance)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("expected two kafka brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.EventBaseDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms delay, got %s", cfg.EventBaseDelay)
	}
}

func TestNewConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"bad balance", map[string]string{"INITIAL_BALANCE": "ten"}},
		{"bad timeout", map[string]string{"REQUEST_TIMEOUT_SECONDS": "-1"}},
		{"unknown source", map[string]string{"INVENTORY_SOURCE": "ftp"}},
		{"file without path", map[string]string{"INVENTORY_SOURCE": SourceFile}},
		{"postgres without url", map[string]string{"INVENTORY_SOURCE": SourcePostgres}},
		{"mongo without uri", map[string]string{"INVENTORY_SOURCE": SourceMongo}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := NewConfig(); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}
