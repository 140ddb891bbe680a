package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	Vision   VisionConfig
	LLM      LLMConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	LogLevel slog.Level
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// OCRConfig holds local extraction configuration
type OCRConfig struct {
	Pdftotext       string
	Pdftoppm        string
	Tesseract       string
	Zbarimg         string
	TessdataDir     string
	Langs           string
	DPI             int
	MaxPages        int
	MinTextLen      int
	StrategyTimeout time.Duration
	Primary         string // "cascade" | "vision"
	WorkDir         string
}

// VisionConfig holds the remote OCR service configuration
type VisionConfig struct {
	APIKey   string
	Endpoint string
	RPS      float64
	Timeout  time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// RedisConfig is optional; an empty Addr disables distributed locking.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// PipelineConfig holds worker and inbox settings
type PipelineConfig struct {
	Workers         int
	QueueSize       int
	ProcessTimeout  time.Duration
	InboxDir        string
	RescanSchedule  string
	DefaultSupplier string
	DefaultDocType  string
}

// LoadConfig loads configuration from environment variables, reading a .env file first when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv.failed", "error", err)
	}
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		OCR: OCRConfig{
			Pdftotext:       getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:        getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:       getEnv("TESSERACT_BIN", "tesseract"),
			Zbarimg:         getEnv("ZBARIMG_BIN", "zbarimg"),
			TessdataDir:     getEnv("TESSDATA_PREFIX", ""),
			Langs:           getEnv("OCR_LANGS", "por+spa+fra"),
			DPI:             getEnvAsInt("OCR_DPI", 300),
			MaxPages:        getEnvAsInt("OCR_MAX_PAGES", 12),
			MinTextLen:      getEnvAsInt("OCR_MIN_TEXT_LEN", 50),
			StrategyTimeout: getEnvAsDuration("OCR_STRATEGY_TIMEOUT", 45*time.Second),
			Primary:         strings.ToLower(getEnv("OCR_PRIMARY", "cascade")),
			WorkDir:         getEnv("OCR_WORK_DIR", ""),
		},
		Vision: VisionConfig{
			APIKey:   getEnv("VISION_API_KEY", ""),
			Endpoint: getEnv("VISION_ENDPOINT", "https://vision.googleapis.com/v1/images:annotate"),
			RPS:      getEnvAsFloat64("VISION_RPS", 1.5),
			Timeout:  getEnvAsDuration("VISION_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: float32(getEnvAsFloat64("OPENAI_TEMPERATURE", 0.0)),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  getEnvAsDuration("REDIS_LOCK_TTL", 5*time.Minute),
		},
		Pipeline: PipelineConfig{
			Workers:         getEnvAsInt("WORKERS", 4),
			QueueSize:       getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout:  getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
			InboxDir:        getEnv("INBOX_DIR", "./inbox"),
			RescanSchedule:  getEnv("INBOX_RESCAN", "@every 10m"),
			DefaultSupplier: getEnv("DEFAULT_SUPPLIER", "AUTO"),
			DefaultDocType:  getEnv("DEFAULT_DOC_TYPE", "GR"),
		},
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Validate checks the settings every entrypoint needs. Missing OCR and LLM
// credentials are not errors: the matching strategies are just not registered.
func (c *Config) Validate(requireDB bool) error {
	if requireDB && c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.OCR.MinTextLen <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_MIN_TEXT_LEN must be positive", ErrInvalidInput)
	}
	if c.OCR.Primary != "cascade" && c.OCR.Primary != "vision" {
		return NewAppError("CONFIG_ERROR", "OCR_PRIMARY must be cascade or vision", ErrInvalidInput)
	}
	if c.Pipeline.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
