package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Segmenter откуда брать сегментацию.
const (
	SegmenterRemote = "remote"
	SegmenterLocal  = "local"
)

type Config struct {
	HTTPAddr       string        `yaml:"http_addr"`
	TelegramToken  string        `yaml:"telegram_token"`
	InferenceURL   string        `yaml:"inference_url"`
	ServiceToken   string        `yaml:"service_token"`
	Segmenter      string        `yaml:"segmenter"`
	PreviewWidth   int           `yaml:"preview_width"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	LogLevel       string        `yaml:"log_level"`
	MaxUploadMB    int           `yaml:"max_upload_mb"`
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		InferenceURL:   getEnv("INFERENCE_URL", "http://localhost:8000"),
		ServiceToken:   os.Getenv("SERVICE_TOKEN"),
		Segmenter:      getEnv("SEGMENTER", SegmenterRemote),
		PreviewWidth:   getEnvInt("PREVIEW_WIDTH", 1024),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxUploadMB:    getEnvInt("MAX_UPLOAD_MB", 50),
	}

	// Файл конфигурации перекрывает переменные окружения
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения после загрузки.
func (c *Config) Validate() error {
	switch c.Segmenter {
	case SegmenterRemote, SegmenterLocal:
	default:
		return fmt.Errorf("unknown segmenter %q", c.Segmenter)
	}
	if c.InferenceURL == "" {
		return fmt.Errorf("INFERENCE_URL is required")
	}
	if c.PreviewWidth <= 0 {
		return fmt.Errorf("preview width must be positive, got %d", c.PreviewWidth)
	}
	if c.RequestTimeout <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// MaxUploadBytes лимит тела запроса с файлом.
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB << 20
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
