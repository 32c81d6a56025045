package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`

	// LLM completion service (Groq-compatible chat completions API).
	GroqAPIKey  string `mapstructure:"GROQ_API_KEY"`
	GroqBaseURL string `mapstructure:"GROQ_BASE_URL"`
	GroqModel   string `mapstructure:"GROQ_MODEL"`

	// WHO ICD-11 terminology API.
	ICDClientID     string `mapstructure:"ICD_CLIENT_ID"`
	ICDClientSecret string `mapstructure:"ICD_CLIENT_SECRET"`
	ICDTokenURL     string `mapstructure:"ICD_TOKEN_URL"`
	ICDSearchURL    string `mapstructure:"ICD_SEARCH_URL"`
	ICDAPIVersion   string `mapstructure:"ICD_API_VERSION"`

	// ABDM health-record exchange.
	ABDMClientID     string `mapstructure:"ABDM_CLIENT_ID"`
	ABDMClientSecret string `mapstructure:"ABDM_CLIENT_SECRET"`
	ABDMTokenURL     string `mapstructure:"ABDM_TOKEN_URL"`
	ABDMFHIRBase     string `mapstructure:"ABDM_FHIR_BASE"`

	SeedMappingsPath string `mapstructure:"SEED_MAPPINGS_PATH"`
	WorkerPoolSize   int    `mapstructure:"WORKER_POOL_SIZE"`
	PipelineTimeout  int    `mapstructure:"PIPELINE_TIMEOUT_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("ICD_API_VERSION", "v2")
	v.SetDefault("SEED_MAPPINGS_PATH", "./data/seed_mappings.csv")
	v.SetDefault("WORKER_POOL_SIZE", 6)
	v.SetDefault("PIPELINE_TIMEOUT_SECONDS", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"CORS_ORIGINS", "JWT_SECRET",
		"GROQ_API_KEY", "GROQ_BASE_URL", "GROQ_MODEL",
		"ICD_CLIENT_ID", "ICD_CLIENT_SECRET", "ICD_TOKEN_URL", "ICD_SEARCH_URL", "ICD_API_VERSION",
		"ABDM_CLIENT_ID", "ABDM_CLIENT_SECRET", "ABDM_TOKEN_URL", "ABDM_FHIR_BASE",
		"SEED_MAPPINGS_PATH", "WORKER_POOL_SIZE", "PIPELINE_TIMEOUT_SECONDS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if !cfg.IsDev() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required outside development")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// RunTimeout returns the overall per-invocation pipeline deadline.
func (c *Config) RunTimeout() time.Duration {
	if c.PipelineTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.PipelineTimeout) * time.Second
}
