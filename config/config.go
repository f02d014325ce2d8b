package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Grid     GridConfig
	Risk     RiskConfig
	Retrain  RetrainConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type CORSConfig struct {
	AllowedOrigins string
}

// GridConfig holds the spatial aggregation parameters.
type GridConfig struct {
	CellSizeDeg    float64
	MediumCount    int
	HighCount      int
	MediumScore    float64
	HighScore      float64
	NightWeight    float64
	NearbyRadiusKm float64
}

type RiskConfig struct {
	NightStartHour int
	NightEndHour   int
}

// IsNight reports whether the hour falls inside the configured night
// window, which wraps midnight and is inclusive on both ends. The grid
// night weighting and the fusion engine both read this, so overriding the
// window keeps them in step.
func (r RiskConfig) IsNight(hour int) bool {
	return hour >= r.NightStartHour || hour <= r.NightEndHour
}

type RetrainConfig struct {
	MinRecords        int
	AccuracyTolerance float64
	TimeoutSec        int
	QueueSize         int
	TriggerBatch      int
	Epochs            int
	LearnRate         float64
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	cellSize, err := getFloatEnv("GRID_CELL_SIZE_DEG", 0.01)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_CELL_SIZE_DEG: %w", err)
	}
	mediumCount, err := getIntEnv("GRID_MEDIUM_COUNT", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_MEDIUM_COUNT: %w", err)
	}
	highCount, err := getIntEnv("GRID_HIGH_COUNT", 15)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_HIGH_COUNT: %w", err)
	}
	mediumScore, err := getFloatEnv("GRID_MEDIUM_SCORE", 20.0)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_MEDIUM_SCORE: %w", err)
	}
	highScore, err := getFloatEnv("GRID_HIGH_SCORE", 50.0)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_HIGH_SCORE: %w", err)
	}
	nightWeight, err := getFloatEnv("GRID_NIGHT_WEIGHT", 1.5)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_NIGHT_WEIGHT: %w", err)
	}
	nearbyRadius, err := getFloatEnv("GRID_NEARBY_RADIUS_KM", 2.0)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_NEARBY_RADIUS_KM: %w", err)
	}

	nightStart, err := getIntEnv("RISK_NIGHT_START_HOUR", 22)
	if err != nil {
		return nil, fmt.Errorf("invalid RISK_NIGHT_START_HOUR: %w", err)
	}
	nightEnd, err := getIntEnv("RISK_NIGHT_END_HOUR", 6)
	if err != nil {
		return nil, fmt.Errorf("invalid RISK_NIGHT_END_HOUR: %w", err)
	}

	minRecords, err := getIntEnv("RETRAIN_MIN_RECORDS", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRAIN_MIN_RECORDS: %w", err)
	}
	tolerance, err := getFloatEnv("RETRAIN_ACCURACY_TOLERANCE", 0.02)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRAIN_ACCURACY_TOLERANCE: %w", err)
	}
	timeoutSec, err := getIntEnv("RETRAIN_TIMEOUT_SEC", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRAIN_TIMEOUT_SEC: %w", err)
	}
	queueSize, err := getIntEnv("FEEDBACK_QUEUE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("invalid FEEDBACK_QUEUE_SIZE: %w", err)
	}
	triggerBatch, err := getIntEnv("RETRAIN_TRIGGER_BATCH", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRAIN_TRIGGER_BATCH: %w", err)
	}
	epochs, err := getIntEnv("RETRAIN_EPOCHS", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRAIN_EPOCHS: %w", err)
	}
	learnRate, err := getFloatEnv("RETRAIN_LEARN_RATE", 0.1)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRAIN_LEARN_RATE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "safety"),
			Password: getEnv("DB_PASSWORD", "safety_dev_password"),
			Name:     getEnv("DB_NAME", "safety"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
			ExpiryHours: jwtExpiry,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Grid: GridConfig{
			CellSizeDeg:    cellSize,
			MediumCount:    mediumCount,
			HighCount:      highCount,
			MediumScore:    mediumScore,
			HighScore:      highScore,
			NightWeight:    nightWeight,
			NearbyRadiusKm: nearbyRadius,
		},
		Risk: RiskConfig{
			NightStartHour: nightStart,
			NightEndHour:   nightEnd,
		},
		Retrain: RetrainConfig{
			MinRecords:        minRecords,
			AccuracyTolerance: tolerance,
			TimeoutSec:        timeoutSec,
			QueueSize:         queueSize,
			TriggerBatch:      triggerBatch,
			Epochs:            epochs,
			LearnRate:         learnRate,
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func getFloatEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(value, 64)
}
