package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Cloudinary  CloudinaryConfig
	Recognition RecognitionConfig
	Mail        MailConfig
	Ingestion   IngestionConfig
	Attendance  AttendanceConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CloudinaryConfig holds credentials for the remote asset store.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// RecognitionConfig points at the external face-recognition service.
type RecognitionConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MailConfig configures outgoing credential/notification emails.
type MailConfig struct {
	SendgridAPIKey string
	FromAddress    string
	FromName       string
}

// IngestionConfig bounds the bulk roster/photo import endpoints.
type IngestionConfig struct {
	MaxRosterSizeBytes  int64
	MaxArchiveSizeBytes int64
	UploadConcurrency   int
	UploadTimeout       time.Duration
}

// AttendanceConfig tunes attendance summary caching.
type AttendanceConfig struct {
	SummaryCacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cloudinary = CloudinaryConfig{
		CloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		APIKey:    v.GetString("CLOUDINARY_API_KEY"),
		APISecret: v.GetString("CLOUDINARY_API_SECRET"),
	}

	cfg.Recognition = RecognitionConfig{
		BaseURL: v.GetString("RECOGNITION_BASE_URL"),
		APIKey:  v.GetString("RECOGNITION_API_KEY"),
		Timeout: parseDuration(v.GetString("RECOGNITION_TIMEOUT"), 30*time.Second),
	}

	cfg.Mail = MailConfig{
		SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
	}

	maxRoster := v.GetInt64("INGEST_MAX_ROSTER_SIZE")
	if maxRoster <= 0 {
		maxRoster = 5 * 1024 * 1024
	}
	maxArchive := v.GetInt64("INGEST_MAX_ARCHIVE_SIZE")
	if maxArchive <= 0 {
		maxArchive = 50 * 1024 * 1024
	}
	cfg.Ingestion = IngestionConfig{
		MaxRosterSizeBytes:  maxRoster,
		MaxArchiveSizeBytes: maxArchive,
		UploadConcurrency:   v.GetInt("INGEST_UPLOAD_CONCURRENCY"),
		UploadTimeout:       parseDuration(v.GetString("INGEST_UPLOAD_TIMEOUT"), 30*time.Second),
	}

	cfg.Attendance = AttendanceConfig{
		SummaryCacheTTL: parseDuration(v.GetString("ATTENDANCE_SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendly")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")

	v.SetDefault("RECOGNITION_BASE_URL", "http://localhost:8000")
	v.SetDefault("RECOGNITION_API_KEY", "")
	v.SetDefault("RECOGNITION_TIMEOUT", "30s")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@attendly.app")
	v.SetDefault("MAIL_FROM_NAME", "Attendly")

	v.SetDefault("INGEST_MAX_ROSTER_SIZE", 5*1024*1024)
	v.SetDefault("INGEST_MAX_ARCHIVE_SIZE", 50*1024*1024)
	v.SetDefault("INGEST_UPLOAD_CONCURRENCY", 5)
	v.SetDefault("INGEST_UPLOAD_TIMEOUT", "30s")

	v.SetDefault("ATTENDANCE_SUMMARY_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
