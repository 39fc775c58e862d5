package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	ErrMissingAPIKey    = errors.New("llm api key is required (set GEMINI_API_KEY)")
	ErrMissingSecretKey = errors.New("secret key is required outside dev (set SECRET_KEY)")
	ErrInvalidUpload    = errors.New("upload max_bytes must be positive")
)

// devSecretKey signs session cookies when no key is configured in dev.
const devSecretKey = "dev-secret-key"

type Config struct {
	App      AppConfig      `toml:"app"`
	Upload   UploadConfig   `toml:"upload"`
	LLM      LLMConfig      `toml:"llm"`
	Session  SessionConfig  `toml:"session"`
	Redis    RedisConfig    `toml:"redis"`
	History  HistoryConfig  `toml:"history"`
	MySQL    MySQLConfig    `toml:"mysql"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	Archive  ArchiveConfig  `toml:"archive"`
}

type AppConfig struct {
	Name      string `toml:"name"`
	Env       string `toml:"env"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	GinMode   string `toml:"gin_mode"`
	LogLevel  string `toml:"log_level"`
	SecretKey string `toml:"secret_key"`
}

type UploadConfig struct {
	Dir               string   `toml:"dir"`
	MaxBytes          int64    `toml:"max_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

type LLMConfig struct {
	BaseURL        string `toml:"base_url"`
	OpenAIBaseURL  string `toml:"openai_base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type SessionConfig struct {
	CookieName       string `toml:"cookie_name"`
	MaxAgeSeconds    int    `toml:"max_age_seconds"`
	Secure           bool   `toml:"secure"`
	ResultTTLSeconds int    `toml:"result_ttl_seconds"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
}

type MySQLConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
}

type RabbitMQConfig struct {
	URL           string `toml:"url"`
	AnalysisQueue string `toml:"analysis_queue"`
}

type ArchiveConfig struct {
	Enabled         bool   `toml:"enabled"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
	UseSSL          bool   `toml:"use_ssl"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if cfg.App.Env == "dev" && strings.TrimSpace(cfg.App.SecretKey) == "" {
		cfg.App.SecretKey = devSecretKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that prevents the service from running.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.App.SecretKey) == "" && c.App.Env != "dev" {
		return ErrMissingSecretKey
	}
	if c.Upload.MaxBytes <= 0 {
		return ErrInvalidUpload
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// AnalysisTimeout bounds one upload analysis: the primary call plus the fallback.
func (c *Config) AnalysisTimeout() time.Duration {
	return 2 * c.LLMTimeout()
}

// WriteTimeout leaves room after the analysis to store the result and redirect.
func (c *Config) WriteTimeout() time.Duration {
	return c.AnalysisTimeout() + 30*time.Second
}

func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.MaxAgeSeconds) * time.Second
}

func (c *Config) ResultTTL() time.Duration {
	return time.Duration(c.Session.ResultTTLSeconds) * time.Second
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "pantrycam",
			Env:      "dev",
			Host:     "0.0.0.0",
			Port:     8080,
			GinMode:  "debug",
			LogLevel: "info",
		},
		Upload: UploadConfig{
			Dir:               os.TempDir(),
			MaxBytes:          16 << 20,
			AllowedExtensions: []string{"png", "jpg", "jpeg"},
		},
		LLM: LLMConfig{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
			OpenAIBaseURL:  "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:          "gemini-1.5-flash",
			TimeoutSeconds: 90,
		},
		Session: SessionConfig{
			CookieName:       "pantrycam_session",
			MaxAgeSeconds:    24 * 60 * 60,
			ResultTTLSeconds: 60 * 60,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		MySQL: MySQLConfig{
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "root",
			DB:     "pantrycam",
			Params: "parseTime=true&loc=Local&charset=utf8mb4",
		},
		RabbitMQ: RabbitMQConfig{
			URL:           "amqp://127.0.0.1:5672/",
			AnalysisQueue: "recipe.analysis.completed",
		},
		Archive: ArchiveConfig{
			Endpoint: "localhost:9000",
			Bucket:   "pantry-photos",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.SecretKey = getEnv("SECRET_KEY", cfg.App.SecretKey)

	cfg.Upload.Dir = getEnv("UPLOAD_DIR", cfg.Upload.Dir)
	cfg.Upload.MaxBytes = int64(getEnvAsInt("UPLOAD_MAX_BYTES", int(cfg.Upload.MaxBytes)))
	if raw := getEnv("UPLOAD_ALLOWED_EXTENSIONS", ""); raw != "" {
		cfg.Upload.AllowedExtensions = splitList(raw)
	}

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.OpenAIBaseURL = getEnv("LLM_OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.APIKey = getEnv("GEMINI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("GEMINI_MODEL", cfg.LLM.Model)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Session.CookieName = getEnv("SESSION_COOKIE_NAME", cfg.Session.CookieName)
	cfg.Session.MaxAgeSeconds = getEnvAsInt("SESSION_MAX_AGE_SECONDS", cfg.Session.MaxAgeSeconds)
	cfg.Session.Secure = getEnvAsBool("SESSION_SECURE", cfg.Session.Secure)
	cfg.Session.ResultTTLSeconds = getEnvAsInt("SESSION_RESULT_TTL_SECONDS", cfg.Session.ResultTTLSeconds)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.History.Enabled = getEnvAsBool("HISTORY_ENABLED", cfg.History.Enabled)

	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DB = getEnv("MYSQL_DB", cfg.MySQL.DB)
	cfg.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.MySQL.Params)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.AnalysisQueue = getEnv("RABBITMQ_ANALYSIS_QUEUE", cfg.RabbitMQ.AnalysisQueue)

	cfg.Archive.Enabled = getEnvAsBool("ARCHIVE_ENABLED", cfg.Archive.Enabled)
	cfg.Archive.Endpoint = getEnv("ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.AccessKeyID = getEnv("ARCHIVE_ACCESS_KEY_ID", cfg.Archive.AccessKeyID)
	cfg.Archive.SecretAccessKey = getEnv("ARCHIVE_SECRET_ACCESS_KEY", cfg.Archive.SecretAccessKey)
	cfg.Archive.Bucket = getEnv("ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.UseSSL = getEnvAsBool("ARCHIVE_USE_SSL", cfg.Archive.UseSSL)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
