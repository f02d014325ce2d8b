package config

import (
	"os"
	"strings"
	"testing"
)

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "safety",
		Password: "secret",
		Name:     "safety",
		SSLMode:  "disable",
	}
	dsn := db.GetDSN()

	expected := "host=localhost port=5432 user=safety password=secret dbname=safety sslmode=disable"
	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestGetDSNCustomValues(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5433,
		User:     "admin",
		Password: "p@ss",
		Name:     "mydb",
		SSLMode:  "require",
	}
	dsn := db.GetDSN()

	if !strings.Contains(dsn, "host=db.example.com") {
		t.Errorf("DSN missing host, got: %s", dsn)
	}
	if !strings.Contains(dsn, "port=5433") {
		t.Errorf("DSN missing port, got: %s", dsn)
	}
	if !strings.Contains(dsn, "sslmode=require") {
		t.Errorf("DSN missing sslmode, got: %s", dsn)
	}
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("TEST_CONFIG_VAR")
	if got := getEnv("TEST_CONFIG_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want %q", got, "default")
	}

	os.Setenv("TEST_CONFIG_VAR", "custom")
	defer os.Unsetenv("TEST_CONFIG_VAR")
	if got := getEnv("TEST_CONFIG_VAR", "default"); got != "custom" {
		t.Errorf("getEnv() = %q, want %q", got, "custom")
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Run("fallback when unset", func(t *testing.T) {
		os.Unsetenv("TEST_INT_VAR")
		got, err := getIntEnv("TEST_INT_VAR", 8080)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 8080 {
			t.Errorf("getIntEnv() = %d, want %d", got, 8080)
		}
	})

	t.Run("parses valid int", func(t *testing.T) {
		os.Setenv("TEST_INT_VAR", "9090")
		defer os.Unsetenv("TEST_INT_VAR")
		got, err := getIntEnv("TEST_INT_VAR", 8080)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 9090 {
			t.Errorf("getIntEnv() = %d, want %d", got, 9090)
		}
	})

	t.Run("error on invalid int", func(t *testing.T) {
		os.Setenv("TEST_INT_VAR", "not_int")
		defer os.Unsetenv("TEST_INT_VAR")
		_, err := getIntEnv("TEST_INT_VAR", 8080)
		if err == nil {
			t.Error("expected error for invalid int value")
		}
	})
}

func TestGetFloatEnv(t *testing.T) {
	t.Run("fallback when unset", func(t *testing.T) {
		os.Unsetenv("TEST_FLOAT_VAR")
		got, err := getFloatEnv("TEST_FLOAT_VAR", 0.01)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 0.01 {
			t.Errorf("getFloatEnv() = %v, want %v", got, 0.01)
		}
	})

	t.Run("parses valid float", func(t *testing.T) {
		os.Setenv("TEST_FLOAT_VAR", "0.025")
		defer os.Unsetenv("TEST_FLOAT_VAR")
		got, err := getFloatEnv("TEST_FLOAT_VAR", 0.01)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 0.025 {
			t.Errorf("getFloatEnv() = %v, want %v", got, 0.025)
		}
	})

	t.Run("error on invalid float", func(t *testing.T) {
		os.Setenv("TEST_FLOAT_VAR", "not_float")
		defer os.Unsetenv("TEST_FLOAT_VAR")
		_, err := getFloatEnv("TEST_FLOAT_VAR", 0.01)
		if err == nil {
			t.Error("expected error for invalid float value")
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	// Clear env vars to get defaults
	for _, key := range []string{"SERVER_PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "JWT_SECRET", "JWT_EXPIRY_HOURS", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "CORS_ALLOWED_ORIGINS", "GRID_CELL_SIZE_DEG", "GRID_MEDIUM_COUNT", "GRID_HIGH_COUNT", "RISK_NIGHT_START_HOUR", "RISK_NIGHT_END_HOUR", "RETRAIN_MIN_RECORDS", "FEEDBACK_QUEUE_SIZE"} {
		os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.JWT.ExpiryHours != 24 {
		t.Errorf("JWT.ExpiryHours = %d, want 24", cfg.JWT.ExpiryHours)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want 6379", cfg.Redis.Port)
	}
	if cfg.CORS.AllowedOrigins != "*" {
		t.Errorf("CORS.AllowedOrigins = %q, want %q", cfg.CORS.AllowedOrigins, "*")
	}
	if cfg.Grid.CellSizeDeg != 0.01 {
		t.Errorf("Grid.CellSizeDeg = %v, want 0.01", cfg.Grid.CellSizeDeg)
	}
	if cfg.Grid.HighCount != 15 {
		t.Errorf("Grid.HighCount = %d, want 15", cfg.Grid.HighCount)
	}
	if cfg.Risk.NightStartHour != 22 || cfg.Risk.NightEndHour != 6 {
		t.Errorf("Risk night window = %d-%d, want 22-6", cfg.Risk.NightStartHour, cfg.Risk.NightEndHour)
	}
	if cfg.Retrain.QueueSize != 256 {
		t.Errorf("Retrain.QueueSize = %d, want 256", cfg.Retrain.QueueSize)
	}
	if cfg.Retrain.AccuracyTolerance != 0.02 {
		t.Errorf("Retrain.AccuracyTolerance = %v, want 0.02", cfg.Retrain.AccuracyTolerance)
	}
}

func TestLoadConfigCustom(t *testing.T) {
	os.Setenv("SERVER_PORT", "3000")
	os.Setenv("DB_HOST", "db.prod")
	os.Setenv("DB_PORT", "5433")
	os.Setenv("JWT_EXPIRY_HOURS", "48")
	os.Setenv("GRID_CELL_SIZE_DEG", "0.02")
	os.Setenv("RETRAIN_EPOCHS", "500")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_PORT")
		os.Unsetenv("JWT_EXPIRY_HOURS")
		os.Unsetenv("GRID_CELL_SIZE_DEG")
		os.Unsetenv("RETRAIN_EPOCHS")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.prod" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.prod")
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, want 5433", cfg.Database.Port)
	}
	if cfg.JWT.ExpiryHours != 48 {
		t.Errorf("JWT.ExpiryHours = %d, want 48", cfg.JWT.ExpiryHours)
	}
	if cfg.Grid.CellSizeDeg != 0.02 {
		t.Errorf("Grid.CellSizeDeg = %v, want 0.02", cfg.Grid.CellSizeDeg)
	}
	if cfg.Retrain.Epochs != 500 {
		t.Errorf("Retrain.Epochs = %d, want 500", cfg.Retrain.Epochs)
	}
}

func TestLoadConfigInvalidPort(t *testing.T) {
	os.Setenv("SERVER_PORT", "invalid")
	defer os.Unsetenv("SERVER_PORT")

	_, err := LoadConfig()
	if err == nil {
		t.Error("expected error for invalid SERVER_PORT")
	}
}
