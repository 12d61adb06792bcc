package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("PRODUCTION_INTERVAL", "30m")
	os.Setenv("APPLY_MORALE_PENALTY", "false")
	os.Setenv("TELEGRAM_BOT_TOKEN", "test_bot_token")
	os.Setenv("TELEGRAM_CHAT_ID", "-100123")
	defer os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DBPassword != "test_password" {
		t.Errorf("DBPassword = %q, want %q", cfg.DBPassword, "test_password")
	}
	if cfg.MissionScanInterval != time.Minute {
		t.Errorf("MissionScanInterval = %v, want 1m", cfg.MissionScanInterval)
	}
	if cfg.ProductionInterval != 30*time.Minute {
		t.Errorf("ProductionInterval = %v, want 30m", cfg.ProductionInterval)
	}
	if cfg.RegenInterval != 10*time.Minute {
		t.Errorf("RegenInterval = %v, want 10m", cfg.RegenInterval)
	}
	if cfg.DestroyRefundPercent != 50 {
		t.Errorf("DestroyRefundPercent = %d, want 50", cfg.DestroyRefundPercent)
	}
	if cfg.ApplyMoralePenalty {
		t.Error("ApplyMoralePenalty = true, want false")
	}
	if cfg.TelegramChatID != -100123 {
		t.Errorf("TelegramChatID = %d, want -100123", cfg.TelegramChatID)
	}
	if !cfg.NotifierEnabled() {
		t.Error("NotifierEnabled() = false, want true")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Missing DB_PASSWORD",
			envVars: map[string]string{},
		},
		{
			name: "Unparsable interval",
			envVars: map[string]string{
				"DB_PASSWORD":           "password",
				"MISSION_SCAN_INTERVAL": "every minute",
			},
		},
		{
			name: "Unparsable chat id",
			envVars: map[string]string{
				"DB_PASSWORD":        "password",
				"TELEGRAM_BOT_TOKEN": "token",
				"TELEGRAM_CHAT_ID":   "general",
			},
		},
		{
			name: "Token without chat",
			envVars: map[string]string{
				"DB_PASSWORD":        "password",
				"TELEGRAM_BOT_TOKEN": "token",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			defer os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil {
				t.Error("LoadConfig() expected error, got nil")
			}
		})
	}
}

func validConfig() Config {
	return Config{
		DBPassword:           "password",
		MissionScanInterval:  time.Minute,
		ResearchScanInterval: time.Minute,
		ProductionInterval:   time.Hour,
		RegenInterval:        10 * time.Minute,
		DestroyRefundPercent: 50,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		shouldErr bool
	}{
		{name: "Valid", mutate: func(c *Config) {}},
		{name: "Disabled production pass", mutate: func(c *Config) { c.ProductionInterval = 0 }},
		{name: "Refund above 100", mutate: func(c *Config) { c.DestroyRefundPercent = 101 }, shouldErr: true},
		{name: "Negative refund", mutate: func(c *Config) { c.DestroyRefundPercent = -1 }, shouldErr: true},
		{name: "Zero mission scan", mutate: func(c *Config) { c.MissionScanInterval = 0 }, shouldErr: true},
		{name: "Zero research scan", mutate: func(c *Config) { c.ResearchScanInterval = 0 }, shouldErr: true},
		{name: "Negative regen", mutate: func(c *Config) { c.RegenInterval = -time.Second }, shouldErr: true},
		{name: "Negative notify rate", mutate: func(c *Config) { c.NotifyRatePerSecond = -1 }, shouldErr: true},
		{name: "Short signing key", mutate: func(c *Config) { c.EventSigningKey = "short" }, shouldErr: true},
		{name: "Long signing key", mutate: func(c *Config) { c.EventSigningKey = "this_is_a_test_signing_key_with_32_chars" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.shouldErr && err == nil {
				t.Error("Validate() expected error, got nil")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestValidateProductionSecurity(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		shouldErr bool
	}{
		{
			name: "Valid production config",
			cfg: &Config{
				AppEnv:          "production",
				DBSSLMode:       "require",
				EventSigningKey: "production_signing_key_different_from_default",
			},
			shouldErr: false,
		},
		{
			name: "Development mode - no validation",
			cfg: &Config{
				AppEnv:    "development",
				DBSSLMode: "disable",
			},
			shouldErr: false,
		},
		{
			name: "Production without SSL",
			cfg: &Config{
				AppEnv:    "production",
				DBSSLMode: "disable",
			},
			shouldErr: true,
		},
		{
			name: "Production with default signing key",
			cfg: &Config{
				AppEnv:          "production",
				DBSSLMode:       "require",
				EventSigningKey: exampleSigningKey,
			},
			shouldErr: true,
		},
		{
			name: "Production notifier without signing key",
			cfg: &Config{
				AppEnv:           "production",
				DBSSLMode:        "require",
				TelegramBotToken: "token",
				TelegramChatID:   1,
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateProductionSecurity()
			if tt.shouldErr && err == nil {
				t.Error("ValidateProductionSecurity() expected error, got nil")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("ValidateProductionSecurity() unexpected error = %v", err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "testuser",
		DBPassword: "testpass",
		DBName:     "testdb",
		DBSSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	dsn := cfg.GetDSN()

	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}
