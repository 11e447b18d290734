package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/reportsweep/reportsweep/internal/lock"
	"github.com/reportsweep/reportsweep/internal/store"
	"github.com/reportsweep/reportsweep/internal/sweep"
)

// Config holds daemon configuration from environment variables.
type Config struct {
	Port    string
	NatsURL string

	JobName    string
	CronSpec   string
	ItemSuffix string

	Buckets store.Buckets

	MaxRetries     int
	RetryBaseDelay time.Duration
	BatchSize      int
	BatchPause     time.Duration
	LockStaleAfter time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadConfig reads configuration from environment variables with defaults.
// The NATS URL has no default: without a storage connection the daemon
// cannot do anything, so its absence is a startup error.
func LoadConfig() (Config, error) {
	natsURL := os.Getenv("SWEEP_NATS_URL")
	if natsURL == "" {
		return Config{}, fmt.Errorf("SWEEP_NATS_URL is required")
	}

	return Config{
		Port:    getEnv("SWEEP_PORT", "8080"),
		NatsURL: natsURL,

		JobName:    getEnv("SWEEP_JOB_NAME", "report-sweep"),
		CronSpec:   getEnv("SWEEP_CRON", "@hourly"),
		ItemSuffix: getEnv("SWEEP_ITEM_SUFFIX", ".json"),

		Buckets: store.Buckets{
			Source:     getEnv("SWEEP_SOURCE_BUCKET", store.DefaultSourceBucket),
			Processed:  getEnv("SWEEP_PROCESSED_BUCKET", store.DefaultProcessedBucket),
			Quarantine: getEnv("SWEEP_QUARANTINE_BUCKET", store.DefaultQuarantineBucket),
			Locks:      getEnv("SWEEP_LOCK_BUCKET", store.DefaultLockBucket),
			Runs:       getEnv("SWEEP_RUNS_BUCKET", store.DefaultRunsBucket),
		},

		MaxRetries:     getEnvInt("SWEEP_MAX_RETRIES", sweep.DefaultMaxRetries),
		RetryBaseDelay: getEnvDurationMs("SWEEP_RETRY_BASE_DELAY_MS", sweep.DefaultBaseDelay),
		BatchSize:      getEnvInt("SWEEP_BATCH_SIZE", sweep.DefaultBatchSize),
		BatchPause:     getEnvDurationMs("SWEEP_BATCH_PAUSE_MS", sweep.DefaultBatchPause),
		LockStaleAfter: getEnvDurationMs("SWEEP_LOCK_STALE_MS", lock.DefaultStaleAfter),

		ReadTimeout:     getEnvDurationMs("SWEEP_READ_TIMEOUT_MS", 10*time.Second),
		WriteTimeout:    getEnvDurationMs("SWEEP_WRITE_TIMEOUT_MS", 10*time.Second),
		IdleTimeout:     getEnvDurationMs("SWEEP_IDLE_TIMEOUT_MS", 60*time.Second),
		ShutdownTimeout: getEnvDurationMs("SWEEP_SHUTDOWN_TIMEOUT_MS", 10*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultVal
}
