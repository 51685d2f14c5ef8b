package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DispatchLocal = "local" // transfers run in the API process
	DispatchQueue = "queue" // Redis Stream -> Kafka -> executor

	LedgerMemory = "memory"
	LedgerHTTP   = "http"
)

// AppConfig gathers runtime settings, all injectable through the environment.
type AppConfig struct {
	HTTPAddr string
	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox for transfer commands
	TransferStream   string
	TransferGroup    string
	TransferConsumer string

	// identities written by initialize on first boot
	OwnerID            string
	FungibleContractID string
	AdminToken         string

	PayRateLimit  int
	PayRateWindow time.Duration

	DispatchMode    string
	LedgerMode      string
	LedgerURL       string
	LedgerAccount   string
	LedgerSeed      string // dev balance of the service account, memory ledger only
	TransferTimeout time.Duration

	SweepInterval    time.Duration
	SweepAfter       time.Duration
	ReconcileAfter   time.Duration // a submitted transfer older than this is looked up on the ledger
	TransferStateTTL time.Duration
	OrderLockTTL     time.Duration
}

// Load reads .env if present, then the environment, and validates the result.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DBDSN:              getEnv("DB_DSN", "order_payment.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "order-payment-transfers"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "order-payment-executor"),
		TransferStream:     getEnv("TRANSFER_STREAM", "order_payment:transfers"),
		TransferGroup:      getEnv("TRANSFER_GROUP", "order-payment-relay-group"),
		TransferConsumer:   getEnv("TRANSFER_CONSUMER", "order-payment-relay-1"),
		OwnerID:            getEnv("OWNER_ID", ""),
		FungibleContractID: getEnv("FT_CONTRACT_ID", ""),
		AdminToken:         getEnv("ADMIN_TOKEN", "dev-admin-token"),
		DispatchMode:       getEnv("DISPATCH_MODE", DispatchLocal),
		LedgerMode:         getEnv("LEDGER_MODE", LedgerMemory),
		LedgerURL:          getEnv("LEDGER_URL", ""),
		LedgerAccount:      getEnv("LEDGER_ACCOUNT", "payment.service"),
		LedgerSeed:         getEnv("LEDGER_SEED", "1000000000000000000000000000"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.PayRateLimit, err = getEnvPositive("PAY_RATE_LIMIT", 100); err != nil {
		return AppConfig{}, err
	}
	if cfg.PayRateWindow, err = getEnvSeconds("PAY_RATE_WINDOW_SEC", 1); err != nil {
		return AppConfig{}, err
	}
	if cfg.TransferTimeout, err = getEnvSeconds("TRANSFER_TIMEOUT_SEC", 30); err != nil {
		return AppConfig{}, err
	}
	if cfg.SweepInterval, err = getEnvSeconds("SWEEP_INTERVAL_SEC", 30); err != nil {
		return AppConfig{}, err
	}
	if cfg.SweepAfter, err = getEnvSeconds("SWEEP_AFTER_SEC", 60); err != nil {
		return AppConfig{}, err
	}
	if cfg.ReconcileAfter, err = getEnvSeconds("RECONCILE_AFTER_SEC", 120); err != nil {
		return AppConfig{}, err
	}
	if cfg.OrderLockTTL, err = getEnvSeconds("ORDER_LOCK_TTL_SEC", 10); err != nil {
		return AppConfig{}, err
	}
	stateTTLHour, err := getEnvPositive("TRANSFER_STATE_TTL_HOUR", 24)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.TransferStateTTL = time.Duration(stateTTLHour) * time.Hour

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	switch cfg.DispatchMode {
	case DispatchLocal, DispatchQueue:
	default:
		return AppConfig{}, fmt.Errorf("DISPATCH_MODE must be %s or %s, got %q", DispatchLocal, DispatchQueue, cfg.DispatchMode)
	}
	switch cfg.LedgerMode {
	case LedgerMemory:
	case LedgerHTTP:
		if cfg.LedgerURL == "" {
			return AppConfig{}, fmt.Errorf("LEDGER_URL is required when LEDGER_MODE=http")
		}
	default:
		return AppConfig{}, fmt.Errorf("LEDGER_MODE must be %s or %s, got %q", LedgerMemory, LedgerHTTP, cfg.LedgerMode)
	}
	if cfg.DispatchMode == DispatchQueue {
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" || cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC and KAFKA_GROUP_ID must not be empty")
		}
		if cfg.TransferStream == "" || cfg.TransferGroup == "" || cfg.TransferConsumer == "" {
			return AppConfig{}, fmt.Errorf("TRANSFER_STREAM, TRANSFER_GROUP and TRANSFER_CONSUMER must not be empty")
		}
	}
	if cfg.ReconcileAfter <= cfg.TransferTimeout {
		return AppConfig{}, fmt.Errorf("RECONCILE_AFTER_SEC must exceed TRANSFER_TIMEOUT_SEC")
	}
	if cfg.AdminToken == "" {
		return AppConfig{}, fmt.Errorf("ADMIN_TOKEN must not be empty")
	}

	return cfg, nil
}

// getEnv returns the trimmed variable or fallback when unset.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvPositive(key string, fallback int) (int, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return n, nil
}

func getEnvSeconds(key string, fallback int) (time.Duration, error) {
	n, err := getEnvPositive(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// splitCSV parses a comma separated list, dropping blanks.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
