package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const exampleSigningKey = "your_event_signing_key_minimum_32_chars_change_this"

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Application
	AppEnv      string
	LogLevel    string
	CatalogPath string

	// Scheduler
	MissionScanInterval  time.Duration
	ResearchScanInterval time.Duration
	ProductionInterval   time.Duration
	RegenInterval        time.Duration

	// Rules
	DestroyRefundPercent int
	ApplyMoralePenalty   bool

	// Notifier
	TelegramBotToken       string
	TelegramChatID         int64
	NotifyRatePerSecond    float64
	NotifyVillagePerMinute int
	EventSigningKey        string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "colony"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "colony_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CatalogPath: getEnv("CATALOG_PATH", ""),

		DestroyRefundPercent: getEnvInt("DESTROY_REFUND_PERCENT", 50),
		ApplyMoralePenalty:   getEnvBool("APPLY_MORALE_PENALTY", true),

		TelegramBotToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		NotifyRatePerSecond:    getEnvFloat("NOTIFY_RATE_PER_SECOND", 1),
		NotifyVillagePerMinute: getEnvInt("NOTIFY_VILLAGE_PER_MINUTE", 30),
		EventSigningKey:        getEnv("EVENT_SIGNING_KEY", ""),
	}

	intervals := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"MISSION_SCAN_INTERVAL", time.Minute, &cfg.MissionScanInterval},
		{"RESEARCH_SCAN_INTERVAL", time.Minute, &cfg.ResearchScanInterval},
		{"PRODUCTION_INTERVAL", time.Hour, &cfg.ProductionInterval},
		{"REGEN_INTERVAL", 10 * time.Minute, &cfg.RegenInterval},
	}
	for _, iv := range intervals {
		d, err := getEnvDuration(iv.key, iv.fallback)
		if err != nil {
			return nil, err
		}
		*iv.dst = d
	}

	// Parse notifier chat ID
	if chatStr := getEnv("TELEGRAM_CHAT_ID", ""); chatStr != "" {
		id, err := strconv.ParseInt(chatStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.DestroyRefundPercent < 0 || c.DestroyRefundPercent > 100 {
		return fmt.Errorf("DESTROY_REFUND_PERCENT must be within 0..100")
	}
	if c.MissionScanInterval <= 0 {
		return fmt.Errorf("MISSION_SCAN_INTERVAL must be positive")
	}
	if c.ResearchScanInterval <= 0 {
		return fmt.Errorf("RESEARCH_SCAN_INTERVAL must be positive")
	}
	if c.ProductionInterval < 0 || c.RegenInterval < 0 {
		return fmt.Errorf("PRODUCTION_INTERVAL and REGEN_INTERVAL must not be negative")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.NotifyRatePerSecond < 0 {
		return fmt.Errorf("NOTIFY_RATE_PER_SECOND must not be negative")
	}
	if c.EventSigningKey != "" && len(c.EventSigningKey) < 32 {
		return fmt.Errorf("EVENT_SIGNING_KEY must be at least 32 characters")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.EventSigningKey == exampleSigningKey {
		return fmt.Errorf("EVENT_SIGNING_KEY must be changed from default in production")
	}
	if c.NotifierEnabled() && c.EventSigningKey == "" {
		return fmt.Errorf("EVENT_SIGNING_KEY must be set when notifications are enabled in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) NotifierEnabled() bool {
	return c.TelegramBotToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
