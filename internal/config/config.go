// Package config provides configuration structures and validation for the
// payment service. It handles environment-based configuration for the HTTP
// server, databases, the payment provider, and the background loops.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field represents
// a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Kafka       KafkaConfig
	Provider    ProviderConfig
	Poller      PollerConfig
	Sweeper     SweeperConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration for the audit trail
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig contains settlement event publishing configuration.
// Publishing is optional: leaving Brokers empty disables it.
type KafkaConfig struct {
	Brokers           string
	SettlementTopic   string
	NumPartitions     int
	ReplicationFactor int
	WriteTimeout      time.Duration
}

// ProviderConfig selects and configures the payment backend
type ProviderConfig struct {
	Backend        string        // "lnbits" or "bitnob"
	WebhookSecret  string        // Shared secret for webhook signature verification
	InvoiceExpiry  time.Duration // TTL handed to the provider on charge creation
	RequestTimeout time.Duration // Per-call timeout toward the provider
	LNbits         LNbitsConfig
	Bitnob         BitnobConfig
}

// LNbitsConfig contains LNbits API settings
type LNbitsConfig struct {
	URL        string
	InvoiceKey string // Read-only key; sufficient for creating and checking invoices
	WebhookURL string // Optional push notification target registered on each invoice
}

// BitnobConfig contains Bitnob API settings
type BitnobConfig struct {
	URL    string
	APIKey string
}

// PollerConfig controls the background status polling loop
type PollerConfig struct {
	Interval       time.Duration
	BatchSize      int
	WorkerPoolSize int
}

// SweeperConfig controls the invoice expiry sweep loop
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Kafka config (only when publishing is enabled)
	if c.Kafka.Brokers != "" {
		if c.Kafka.SettlementTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_SETTLEMENT_TOPIC is required when KAFKA_BROKERS is set")
		}
		if c.Kafka.WriteTimeout <= 0 {
			validationErrors = append(validationErrors, "KAFKA_WRITE_TIMEOUT must be greater than 0")
		}
	}

	// Validate Provider config
	switch c.Provider.Backend {
	case "lnbits":
		if c.Provider.LNbits.URL == "" {
			validationErrors = append(validationErrors, "LNBITS_URL is required for the lnbits backend")
		}
		if c.Provider.LNbits.InvoiceKey == "" {
			validationErrors = append(validationErrors, "LNBITS_INVOICE_KEY is required for the lnbits backend")
		}
	case "bitnob":
		if c.Provider.Bitnob.URL == "" {
			validationErrors = append(validationErrors, "BITNOB_URL is required for the bitnob backend")
		}
		if c.Provider.Bitnob.APIKey == "" {
			validationErrors = append(validationErrors, "BITNOB_API_KEY is required for the bitnob backend")
		}
	default:
		validationErrors = append(validationErrors, "PROVIDER_BACKEND must be one of: lnbits, bitnob")
	}
	if c.Provider.WebhookSecret == "" {
		validationErrors = append(validationErrors, "WEBHOOK_SECRET is required")
	}
	if c.Provider.InvoiceExpiry <= 0 {
		validationErrors = append(validationErrors, "INVOICE_EXPIRY must be greater than 0")
	}
	if c.Provider.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "PROVIDER_REQUEST_TIMEOUT must be greater than 0")
	}

	// Validate Poller config
	if c.Poller.Interval <= 0 {
		validationErrors = append(validationErrors, "POLLER_INTERVAL must be greater than 0")
	}
	if c.Poller.BatchSize <= 0 {
		validationErrors = append(validationErrors, "POLLER_BATCH_SIZE must be greater than 0")
	}
	if c.Poller.WorkerPoolSize <= 0 {
		validationErrors = append(validationErrors, "POLLER_WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Sweeper config
	if c.Sweeper.Interval <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_INTERVAL must be greater than 0")
	}
	if c.Sweeper.BatchSize <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_BATCH_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
