package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// Mail and storage drivers.
const (
	MailDriverLog  = "log"
	MailDriverSES  = "ses"
	MailDriverAMQP = "amqp"

	StorageDriverMemory = "memory"
	StorageDriverS3     = "s3"
)

type Config struct {
	Env                  string        // Environment (development, staging, production) (default: development)
	Port                 int           // HTTP server port (default: 4000)
	APIPrefix            string        // Route prefix (default: /api)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	EnableRequestLogging bool          // One log line per request (default: false)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)

	DatabaseURL string // Required: postgres://... or a sqlite file DSN (default: file:auth.db)

	JWTSecret  string        // Required: HS256 secret, at least 32 bytes
	JWTIssuer  string        // Optional: "iss" claim (default: gatekeeper)
	AccessTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTTL time.Duration // Refresh token lifetime (default: 7d)

	Redis cache.Options // Optional: identity cache is disabled when unset

	CORSWhitelist   []string // Allowed browser origins (default: any)
	SwaggerUsername string   // API docs are served only when both are set
	SwaggerPassword string

	EmailVerificationURL string // Link target for verification emails
	PasswordResetURL     string // Link target for reset emails
	MailDriver           string // log, ses or amqp (default: log)
	MailFrom             string // Sender address, required for ses
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AMQPURL              string // Broker URL, required for amqp
	MailQueue            string // Queue name (default: mail.outbound)
	MailDelivery         string // How cmd/mailer delivers queued jobs: log or ses (default: log)

	StorageDriver      string // memory or s3 (default: memory)
	UseLocalStack      bool   // Point the s3 driver at LocalStack instead of R2
	LocalStackEndpoint string
	R2AccountID        string
	R2AccessKeyID      string
	R2SecretAccessKey  string
	R2BucketName       string
	R2PublicURL        string
	MaxFileSize        int64    // Upload limit in bytes (default: 10 MiB)
	AllowedMimeTypes   []string // Upload allow-list

	Superadmin domain.SuperadminSeed // Seeded at start-up when email and password are set
}

// LoadConfig reads the environment, after loading a .env file if present.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:                  getEnvOrDefault("ENV", "development"),
		Port:                 getEnvIntOrDefault("PORT", 4000),
		APIPrefix:            getEnvOrDefault("API_PREFIX", "/api"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		EnableRequestLogging: getEnvBoolOrDefault("ENABLE_REQUEST_LOGGING", false),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		DatabaseURL: getEnvOrDefault("DATABASE_URL", "file:auth.db"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTIssuer:  getEnvOrDefault("JWT_ISSUER", "gatekeeper"),
		AccessTTL:  getEnvDurationOrDefault("JWT_ACCESS_EXPIRES_IN", jwtx.DefaultAccessTokenTTL),
		RefreshTTL: getEnvDurationOrDefault("JWT_REFRESH_EXPIRES_IN", jwtx.DefaultRefreshTokenTTL),

		Redis: cache.Options{
			URL:      os.Getenv("REDIS_URL"),
			Host:     os.Getenv("REDIS_HOST"),
			Port:     os.Getenv("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},

		CORSWhitelist:   httpx.ParseCommaList(os.Getenv("CORS_WHITELIST")),
		SwaggerUsername: os.Getenv("SWAGGER_USERNAME"),
		SwaggerPassword: os.Getenv("SWAGGER_PASSWORD"),

		EmailVerificationURL: getEnvOrDefault("EMAIL_VERIFICATION_URL", "http://localhost:3000/verify-email"),
		PasswordResetURL:     getEnvOrDefault("PASSWORD_RESET_URL", "http://localhost:3000/reset-password"),
		MailDriver:           getEnvOrDefault("MAIL_DRIVER", MailDriverLog),
		MailFrom:             os.Getenv("MAIL_FROM"),
		AWSRegion:            getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AMQPURL:              os.Getenv("AMQP_URL"),
		MailQueue:            os.Getenv("MAIL_QUEUE"),
		MailDelivery:         getEnvOrDefault("MAIL_DELIVERY", MailDriverLog),

		StorageDriver:      getEnvOrDefault("STORAGE_DRIVER", StorageDriverMemory),
		UseLocalStack:      getEnvBoolOrDefault("USE_LOCALSTACK", false),
		LocalStackEndpoint: os.Getenv("LOCALSTACK_ENDPOINT"),
		R2AccountID:        os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:        os.Getenv("R2_PUBLIC_URL"),
		MaxFileSize:        int64(getEnvIntOrDefault("MAX_FILE_SIZE", service.DefaultMaxFileSize)),
		AllowedMimeTypes:   httpx.ParseCommaList(os.Getenv("ALLOWED_MIME_TYPES")),

		Superadmin: domain.SuperadminSeed{
			Email:    domain.NormalizeEmail(os.Getenv("SUPERADMIN_EMAIL")),
			Password: os.Getenv("SUPERADMIN_PASSWORD"),
			FullName: os.Getenv("SUPERADMIN_FULL_NAME"),
		},
	}

	if len(cfg.AllowedMimeTypes) == 0 {
		cfg.AllowedMimeTypes = service.DefaultAllowedMimeTypes
	}

	return cfg
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(jwtx.MinSecretLength, 0)),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogFormat, validation.In("json", "text")),
		validation.Field(&c.MailDriver, validation.In(MailDriverLog, MailDriverSES, MailDriverAMQP)),
		validation.Field(&c.MailDelivery, validation.In(MailDriverLog, MailDriverSES)),
		validation.Field(&c.StorageDriver, validation.In(StorageDriverMemory, StorageDriverS3)),
		validation.Field(&c.AccessTTL, validation.Required),
		validation.Field(&c.RefreshTTL, validation.Required),
	)
	if err != nil {
		return err
	}

	switch {
	case (c.MailDriver == MailDriverSES || c.MailDelivery == MailDriverSES) && c.MailFrom == "":
		return errors.New("MAIL_FROM is required for the ses mail driver")
	case c.MailDriver == MailDriverAMQP && c.AMQPURL == "":
		return errors.New("AMQP_URL is required for the amqp mail driver")
	case c.StorageDriver == StorageDriverS3 && !c.UseLocalStack && (c.R2AccountID == "" || c.R2BucketName == ""):
		return errors.New("R2_ACCOUNT_ID and R2_BUCKET_NAME are required for the s3 storage driver")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if d, ok := parseDuration(os.Getenv(key)); ok {
		return d
	}
	return defaultValue
}

// parseDuration accepts Go durations ("15m", "1h30m"), a day count ("7d")
// or a bare number of seconds ("900").
func parseDuration(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration, true
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour, true
		}
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, true
	}

	return 0, false
}
