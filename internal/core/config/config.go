package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DataDir           string
	TxLogFile         string
	CredentialsFile   string
	ErrorLogFile      string
	AntifraudWorkers  int
	SettlementWorkers int
	QueueCapacity     int
	AdmissionDelay    time.Duration
	WebhookURL        string
	Env               string
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() *Config {
	// Try loading .env file (it might not exist in Production, which is fine)
	err := godotenv.Load()
	if err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		Port:              getEnv("PORT", "3000"),
		DataDir:           dataDir,
		TxLogFile:         inDataDir(dataDir, getEnv("TX_LOG_FILE", "transactions.log")),
		CredentialsFile:   inDataDir(dataDir, getEnv("CREDENTIALS_FILE", "credentials.json")),
		ErrorLogFile:      inDataDir(dataDir, getEnv("ERROR_LOG_FILE", "errors.log")),
		AntifraudWorkers:  getEnvInt("ANTIFRAUD_WORKERS", 2),
		SettlementWorkers: getEnvInt("SETTLEMENT_WORKERS", 4),
		QueueCapacity:     getEnvInt("QUEUE_CAPACITY", 300),
		AdmissionDelay:    time.Duration(getEnvInt("ADMISSION_DELAY_MS", 2000)) * time.Millisecond,
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		Env:               getEnv("ENV", "development"),
	}
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value)
		return fallback
	}
	return n
}

// inDataDir keeps relative file names under the data directory; absolute
// paths pass through untouched.
func inDataDir(dataDir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dataDir, name)
}
