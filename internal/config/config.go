package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"catalog-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Messaging. Event publishing is off when empty.
	NATSURL string

	// Server
	Port        string
	Environment string

	// Services
	DocumentServiceURL string
	StaffServiceURL    string

	// Bulk operations
	BulkMaxAffected        int
	BulkPreviewThreshold   int
	StorageRemoveBatchSize int

	// Variant identifiers
	UPIDLength      int
	UPIDRetryFactor int
}

func Load() *Config {
	return &Config{
		// Database - fetch password from GCP Secret Manager if enabled
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),
		NATSURL:  os.Getenv("NATS_URL"),

		Port:        getEnv("PORT", "8087"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DocumentServiceURL: getEnv("DOCUMENT_SERVICE_URL", "http://localhost:8082"),
		StaffServiceURL:    getEnv("STAFF_SERVICE_URL", "http://staff-service:8080"),

		BulkMaxAffected:        getEnvInt("BULK_MAX_AFFECTED", 1000),
		BulkPreviewThreshold:   getEnvInt("BULK_PREVIEW_THRESHOLD", 100),
		StorageRemoveBatchSize: getEnvInt("STORAGE_REMOVE_BATCH_SIZE", 1000),

		UPIDLength:      getEnvInt("UPID_LENGTH", 10),
		UPIDRetryFactor: getEnvInt("UPID_RETRY_FACTOR", 10),
	}
}

// Validate rejects settings the bulk guard and the identifier generator cannot work with
func (c *Config) Validate() error {
	var problems []string
	if c.BulkMaxAffected < 1 {
		problems = append(problems, "BULK_MAX_AFFECTED must be positive")
	}
	if c.BulkPreviewThreshold < 0 || c.BulkPreviewThreshold > c.BulkMaxAffected {
		problems = append(problems, "BULK_PREVIEW_THRESHOLD must be between 0 and BULK_MAX_AFFECTED")
	}
	if c.StorageRemoveBatchSize < 1 {
		problems = append(problems, "STORAGE_REMOVE_BATCH_SIZE must be positive")
	}
	if c.UPIDLength < 6 {
		problems = append(problems, "UPID_LENGTH must be at least 6")
	}
	if c.UPIDRetryFactor < 1 {
		problems = append(problems, "UPID_RETRY_FACTOR must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.AttributeValue{},
		&models.ProductVariant{},
		&models.ProductMedia{},
	); err != nil {
		// constraint renames on existing schemas report missing constraints
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
