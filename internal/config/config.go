// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
// The server and the reelctl client read the same file; each ignores what it does not use.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	SQLitePath     string `mapstructure:"SQLITE_PATH"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	APIBaseURL              string `mapstructure:"API_BASE_URL"`
	ClientTimeoutSeconds    int    `mapstructure:"CLIENT_TIMEOUT_SECONDS"`
	SessionFile             string `mapstructure:"SESSION_FILE"`
	ProfileFetchConcurrency int    `mapstructure:"PROFILE_FETCH_CONCURRENCY"`

	CloudinaryCloudName string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `mapstructure:"CLOUDINARY_FOLDER"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough to run.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env != "development" && env != "" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) || env == "production" {
				return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8375")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "reelshare")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "reelshare.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:8081,http://localhost:19006")
	v.SetDefault("FEATURE_FLAGS", "server_counters=on")
	v.SetDefault("API_BASE_URL", "http://localhost:8375")
	v.SetDefault("CLIENT_TIMEOUT_SECONDS", 15)
	v.SetDefault("SESSION_FILE", "")
	v.SetDefault("PROFILE_FETCH_CONCURRENCY", 8)
	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")
	v.SetDefault("CLOUDINARY_FOLDER", "reelshare")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

// IsProduction reports whether the config targets production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ClientTimeout returns the HTTP timeout for API calls made by the client.
func (c *Config) ClientTimeout() time.Duration {
	return time.Duration(c.ClientTimeoutSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch strings.ToLower(c.DBDriver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.ClientTimeoutSeconds <= 0 {
		return errors.New("CLIENT_TIMEOUT_SECONDS must be positive")
	}
	if c.ProfileFetchConcurrency <= 0 {
		return errors.New("PROFILE_FETCH_CONCURRENCY must be positive")
	}

	if c.IsProduction() {
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
