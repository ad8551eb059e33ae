package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Port != "3000" {
		t.Fatalf("Port=%q want 3000", cfg.Port)
	}
	if cfg.AntifraudWorkers != 2 || cfg.SettlementWorkers != 4 {
		t.Fatalf("pool sizes=%d/%d want 2/4", cfg.AntifraudWorkers, cfg.SettlementWorkers)
	}
	if cfg.QueueCapacity != 300 {
		t.Fatalf("QueueCapacity=%d want 300", cfg.QueueCapacity)
	}
	if cfg.AdmissionDelay != 2*time.Second {
		t.Fatalf("AdmissionDelay=%v want 2s", cfg.AdmissionDelay)
	}
	if cfg.TxLogFile != filepath.Join("data", "transactions.log") {
		t.Fatalf("TxLogFile=%q", cfg.TxLogFile)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SETTLEMENT_WORKERS", "8")
	t.Setenv("ADMISSION_DELAY_MS", "50")
	t.Setenv("DATA_DIR", "/var/lib/settlepay")
	t.Setenv("TX_LOG_FILE", "/srv/tx.log")

	cfg := LoadConfig()
	if cfg.SettlementWorkers != 8 {
		t.Fatalf("SettlementWorkers=%d want 8", cfg.SettlementWorkers)
	}
	if cfg.AdmissionDelay != 50*time.Millisecond {
		t.Fatalf("AdmissionDelay=%v want 50ms", cfg.AdmissionDelay)
	}
	// Absolute file paths win over the data dir.
	if cfg.TxLogFile != "/srv/tx.log" {
		t.Fatalf("TxLogFile=%q", cfg.TxLogFile)
	}
	if cfg.CredentialsFile != filepath.Join("/var/lib/settlepay", "credentials.json") {
		t.Fatalf("CredentialsFile=%q", cfg.CredentialsFile)
	}
}

func TestBadIntegerFallsBack(t *testing.T) {
	t.Setenv("QUEUE_CAPACITY", "lots")
	cfg := LoadConfig()
	if cfg.QueueCapacity != 300 {
		t.Fatalf("QueueCapacity=%d want default 300", cfg.QueueCapacity)
	}
}
