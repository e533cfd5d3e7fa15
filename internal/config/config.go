package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EngineBridge    = "bridge"
	EngineSimulated = "simulated"
)

type Config struct {
	App    AppConfig
	Vitals VitalsConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	AuditLogFilePath   string
	LogLevel           string
	EnableSDKLogs      bool
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
	TokenTTL           time.Duration
}

type VitalsConfig struct {
	LicenseKey     string
	ProductID      string
	ProcessingTime int // seconds
	Engine         string
	StrictGuidance bool
	Orientation    string
	Host           string
	ResultsTopic   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			AuditLogFilePath:   getEnv("AUDIT_LOG_FILE_PATH", "logs/measurements.log"),
			LogLevel:           getEnv("LOG_LEVEL", ""),
			EnableSDKLogs:      getEnvAsBool("ENABLE_SDK_LOGS", false),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			TokenTTL:           time.Duration(getEnvAsInt("MEASUREMENT_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		},
		Vitals: VitalsConfig{
			LicenseKey:     strings.TrimSpace(getEnv("VITALS_LICENSE_KEY", "")),
			ProductID:      getEnv("VITALS_PRODUCT_ID", ""),
			ProcessingTime: getEnvAsInt("VITALS_PROCESSING_TIME", 45),
			Engine:         strings.ToLower(getEnv("VITALS_ENGINE", EngineBridge)),
			StrictGuidance: getEnvAsBool("VITALS_STRICT_GUIDANCE", true),
			Orientation:    getEnv("VITALS_ORIENTATION", "PORTRAIT"),
			Host:           getEnv("VITALS_HOST", ""),
			ResultsTopic:   getEnv("VITALS_RESULTS_TOPIC", "MEASUREMENT_RESULTS"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate reports settings the server cannot run with. A missing
// license key is not one of them: it surfaces per measurement as a
// configuration error.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port == "" {
		errs = append(errs, errors.New("APP_PORT is empty"))
	}
	if c.App.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.App.TokenTTL <= 0 {
		errs = append(errs, errors.New("MEASUREMENT_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Vitals.ProcessingTime <= 0 {
		errs = append(errs, fmt.Errorf("VITALS_PROCESSING_TIME must be positive, got %d", c.Vitals.ProcessingTime))
	}
	switch c.Vitals.Engine {
	case EngineBridge, EngineSimulated:
	default:
		errs = append(errs, fmt.Errorf("VITALS_ENGINE must be %q or %q, got %q", EngineBridge, EngineSimulated, c.Vitals.Engine))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
