package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Port    string
	LogMode string

	JWTSecret string

	StoreDriver   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	SslCertPath   string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	AIAPIKey        string
	SpecialistsFile string

	CORSOrigins []string

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	MaxUploadMB        int
	ExtractReadability bool
}

// LoadConfig loads the environment variables and return config
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		LogMode:                getEnv("LOG_MODE", "dev"),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		StoreDriver:            strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvInt("REDIS_DB", 0),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		SslCertPath:            getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey:           getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:           getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:              getEnv("AWS_REGION", "sa-east-1"),
		BucketName:             getEnv("BUCKET_NAME", ""),
		AIAPIKey:               getEnv("GEMINI_API_KEY", ""),
		SpecialistsFile:        getEnv("SPECIALISTS_FILE", ""),
		CORSOrigins:            splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		BootstrapAdminEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", "admin"),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", "123456"),
		MaxUploadMB:            getEnvInt("MAX_UPLOAD_MB", 50),
		ExtractReadability:     getEnvBool("EXTRACT_READABILITY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail later at wiring time.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR not set for store driver %q", c.StoreDriver)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL not set for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// ArchiveEnabled reports whether uploaded PDFs are copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
