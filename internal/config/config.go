package config

import (
	"os"
	"strconv"
)

// UploadConfig holds settings for the local artifact directory and the
// request validator.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// MinIOConfig holds object storage settings for the optional S3 backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects the artifact storage backend.
// Backend is "local" (default) or "s3".
type StorageConfig struct {
	Backend string
	MinIO   MinIOConfig
}

// VisionConfig holds settings for the scene-description model.
// BaseURL may point at any OpenAI-compatible gateway.
type VisionConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	DetectionThreshold float64
	MaxCaptionTokens   int
}

// SpeechConfig holds settings for the text-to-speech model.
type SpeechConfig struct {
	Model string
	Voice string
}

// CacheConfig holds settings for the optional redis scene cache.
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTLSec   int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost string
	Port    string
	Upload  UploadConfig
	Storage StorageConfig
	Vision  VisionConfig
	Speech  SpeechConfig
	Cache   CacheConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Upload: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "local"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		Vision: VisionConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			Model:              getEnv("VISION_MODEL", "gpt-4o-mini"),
			DetectionThreshold: getEnvFloat("DETECTION_THRESHOLD", 0.6),
			MaxCaptionTokens:   getEnvInt("MAX_CAPTION_TOKENS", 50),
		},
		Speech: SpeechConfig{
			Model: getEnv("TTS_MODEL", "tts-1"),
			Voice: getEnv("TTS_VOICE", "alloy"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("CACHE_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTLSec:   getEnvInt("CACHE_TTL_SEC", 600),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
