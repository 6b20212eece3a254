package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Per-service ports
	IngestionServicePort  string
	DerivationServicePort string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	StudyLoadedTopic   string
	IngestionDLQTopic  string
	DerivationDLQTopic string

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	// Derivation defaults. Study-level YAML configs override these.
	ComplianceThreshold float64
	BaselineRule        string
	NumericTolerance    float64
	EfficacyParams      []string
	ShiftSeverityOrder  []string
	ParameterCatalog    string

	// Run status cache
	RunStatusTTL time.Duration
}

func Load() *Config {
	return &Config{
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 16*1024*1024)),

		IngestionServicePort:  getEnv("INGESTION_SERVICE_PORT", "8081"),
		DerivationServicePort: getEnv("DERIVATION_SERVICE_PORT", "8082"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "clinforge"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "clinforge123"),
		PostgresDB:       getEnv("POSTGRES_DB", "clinforge"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "clinforge-platform"),
		StudyLoadedTopic:   getEnv("STUDY_LOADED_TOPIC", "study-loaded"),
		IngestionDLQTopic:  getEnv("INGESTION_DLQ_TOPIC", "study-loaded-dlq"),
		DerivationDLQTopic: getEnv("DERIVATION_DLQ_TOPIC", "derivation-dlq"),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),

		ComplianceThreshold: getFloatEnv("COMPLIANCE_THRESHOLD", 0.8),
		BaselineRule:        getEnv("BASELINE_RULE", "last-before-first-dose"),
		NumericTolerance:    getFloatEnv("NUMERIC_TOLERANCE", 1e-8),
		EfficacyParams:      getStringSliceEnv("EFFICACY_PARAMS", nil),
		ShiftSeverityOrder:  getStringSliceEnv("SHIFT_SEVERITY_ORDER", []string{"HIGH", "LOW", "NORMAL"}),
		ParameterCatalog:    getEnv("PARAMETER_CATALOG", ""),

		RunStatusTTL: getDuration("RUN_STATUS_TTL", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
