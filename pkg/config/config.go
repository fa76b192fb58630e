package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Notification drivers understood by NOTIFY_DRIVER.
const (
	NotifyDriverLog      = "log"
	NotifyDriverSendGrid = "sendgrid"
	NotifyDriverTwilio   = "twilio"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Compliance ComplianceConfig
	Notify     NotifyConfig
	Sweep      SweepConfig
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

// JWTConfig validates access tokens minted by the identity service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ComplianceConfig tunes snapshot freshness, gap windows and override policy.
type ComplianceConfig struct {
	SnapshotFreshness    time.Duration
	ExpiringWindow       time.Duration
	OverrideMinReasonLen int
	SnapshotCacheEnabled bool
	SnapshotCacheTTL     time.Duration
	PublicVerifyBaseURL  string
	CertificateLinkBase  string
	CertificateSecret    string
	CertificateLinkTTL   time.Duration
}

// NotifyConfig selects and configures the outbound notification driver.
type NotifyConfig struct {
	Driver     string
	Workers    int
	Retries    int
	RetryDelay time.Duration

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SendGridSandbox   bool

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromPhone  string
}

// SweepConfig drives the scheduled status refresh.
type SweepConfig struct {
	Schedule       string
	DigestSchedule string
	Timeout        time.Duration
	RunOnStart     bool
	// MetricsPort serves /metrics from the sweeper; 0 disables the listener.
	MetricsPort int
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	minReason := v.GetInt("COMPLIANCE_OVERRIDE_MIN_REASON")
	if minReason <= 0 {
		minReason = 10
	}
	cfg.Compliance = ComplianceConfig{
		SnapshotFreshness:    parseDuration(v.GetString("COMPLIANCE_SNAPSHOT_FRESHNESS"), 30*24*time.Hour),
		ExpiringWindow:       parseDuration(v.GetString("COMPLIANCE_EXPIRING_WINDOW"), 30*24*time.Hour),
		OverrideMinReasonLen: minReason,
		SnapshotCacheEnabled: v.GetBool("ENABLE_SNAPSHOT_CACHE"),
		SnapshotCacheTTL:     parseDuration(v.GetString("COMPLIANCE_SNAPSHOT_CACHE_TTL"), time.Hour),
		PublicVerifyBaseURL:  strings.TrimRight(v.GetString("PUBLIC_VERIFY_BASE_URL"), "/"),
		CertificateLinkBase:  strings.TrimRight(v.GetString("CERTIFICATE_LINK_BASE_URL"), "/"),
		CertificateSecret:    v.GetString("CERTIFICATE_LINK_SECRET"),
		CertificateLinkTTL:   parseDuration(v.GetString("CERTIFICATE_LINK_TTL"), 7*24*time.Hour),
	}

	cfg.Notify = NotifyConfig{
		Driver:            strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		Workers:           v.GetInt("NOTIFY_WORKERS"),
		Retries:           v.GetInt("NOTIFY_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
		SendGridAPIKey:    v.GetString("SENDGRID_API_KEY"),
		SendGridFromEmail: v.GetString("SENDGRID_FROM_EMAIL"),
		SendGridFromName:  v.GetString("SENDGRID_FROM_NAME"),
		SendGridSandbox:   v.GetBool("SENDGRID_SANDBOX"),
		TwilioAccountSID:  v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFromPhone:   v.GetString("TWILIO_FROM_PHONE"),
	}

	cfg.Sweep = SweepConfig{
		Schedule:       v.GetString("SWEEP_CRON"),
		DigestSchedule: v.GetString("SWEEP_DIGEST_CRON"),
		Timeout:        parseDuration(v.GetString("SWEEP_TIMEOUT"), 30*time.Minute),
		RunOnStart:     v.GetBool("SWEEP_RUN_ON_START"),
		MetricsPort:    v.GetInt("SWEEP_METRICS_PORT"),
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
	v.SetDefault("DB_NAME", "field_compliance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("COMPLIANCE_SNAPSHOT_FRESHNESS", "720h")
	v.SetDefault("COMPLIANCE_EXPIRING_WINDOW", "720h")
	v.SetDefault("COMPLIANCE_OVERRIDE_MIN_REASON", 10)
	v.SetDefault("ENABLE_SNAPSHOT_CACHE", false)
	v.SetDefault("COMPLIANCE_SNAPSHOT_CACHE_TTL", "1h")
	v.SetDefault("PUBLIC_VERIFY_BASE_URL", "http://localhost:8080/verify")
	v.SetDefault("CERTIFICATE_LINK_BASE_URL", "http://localhost:8080/certificates")
	v.SetDefault("CERTIFICATE_LINK_SECRET", "")
	v.SetDefault("CERTIFICATE_LINK_TTL", "168h")

	v.SetDefault("NOTIFY_DRIVER", NotifyDriverLog)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_FROM_EMAIL", "dispatch@example.com")
	v.SetDefault("SENDGRID_FROM_NAME", "Dispatch")
	v.SetDefault("SENDGRID_SANDBOX", false)
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_FROM_PHONE", "")

	v.SetDefault("SWEEP_CRON", "0 3 * * *")
	v.SetDefault("SWEEP_DIGEST_CRON", "30 6 * * *")
	v.SetDefault("SWEEP_TIMEOUT", "30m")
	v.SetDefault("SWEEP_RUN_ON_START", false)
	v.SetDefault("SWEEP_METRICS_PORT", 9091)
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
