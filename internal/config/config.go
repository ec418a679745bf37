package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Summarizer SummarizerConfig
	SMTP       SMTPConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type StorageConfig struct {
	UploadDir        string
	MergedDir        string
	MaxUploadBytes   int64
	MinArtifactBytes int64
}

type SummarizerConfig struct {
	GeminiAPIKey   string
	GeminiModel    string
	RequestTimeout time.Duration
	MaxRetries     int
}

type SMTPConfig struct {
	Host        string
	Port        int
	Email       string
	Password    string
	SenderName  string
	NotifyEmail string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Storage: StorageConfig{
			UploadDir:        getEnv("RECORDING_UPLOAD_DIR", "uploads/recordings"),
			MergedDir:        getEnv("RECORDING_MERGED_DIR", "uploads/recordings/merged"),
			MaxUploadBytes:   getEnvAsInt64("RECORDING_MAX_UPLOAD_BYTES", 50*1024*1024),
			MinArtifactBytes: getEnvAsInt64("RECORDING_MIN_ARTIFACT_BYTES", 1000),
		},
		Summarizer: SummarizerConfig{
			GeminiAPIKey:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			GeminiModel:    getEnv("GEMINI_SUMMARY_MODEL", "gemini-2.5-flash"),
			RequestTimeout: getEnvAsDuration("SUMMARIZER_TIMEOUT", 90*time.Second),
			MaxRetries:     getEnvAsInt("SUMMARIZER_MAX_RETRIES", 3),
		},
		SMTP: SMTPConfig{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        getEnvAsInt("SMTP_PORT", 587),
			Email:       getEnv("SMTP_EMAIL", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			SenderName:  getEnv("SMTP_SENDER_NAME", "TeleMed"),
			NotifyEmail: getEnv("SUMMARY_NOTIFY_EMAIL", ""),
		},
	}
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

func getEnvAsInt64(key string, fallback int64) int64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
