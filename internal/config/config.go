package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dirigovotes/dirigo/internal/logger"
	"github.com/joho/godotenv"
)

// Password policies. Two sign-up forms historically disagreed on the
// minimum, so the active rule is chosen per deployment.
const (
	PasswordPolicyBasic  = "basic"  // at least 6 characters
	PasswordPolicyStrict = "strict" // at least 8 characters, one uppercase, one digit
)

// Existence check strategies used by the signup controller.
const (
	ExistenceCheckLookup = "lookup"
	ExistenceCheckProbe  = "probe"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret              string
	JWTExpiry              time.Duration
	TokenEmailVerifyExpiry time.Duration
	AdminRoles             []string

	// Email
	EmailFrom        string
	ResendAPIKey     string
	ReportRecipients []string

	// Signup
	PasswordPolicy         string
	ExistenceCheck         string
	SignupAttemptTimeout   time.Duration
	SignupExistenceTimeout time.Duration
	SignupResendTimeout    time.Duration
	SignupSettleDelay      time.Duration
	SignupRetryDelay       time.Duration
	SignupMaxRetries       int

	// Voting
	VoteWithdrawal bool

	// Redis (optional: cross-process event broadcast and analytics cache)
	RedisURL          string
	AnalyticsCacheTTL time.Duration

	// Observability (optional)
	LogLevel       string
	SentryDSN      string
	MetricsEnabled bool

	// Storage (S3-compatible, optional: avatars are disabled without a bucket)
	S3Region              string
	S3Bucket              string
	S3AccessKey           string
	S3SecretKey           string
	S3Endpoint            string
	S3PresignExpiryPublic time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "Dirigo Votes"),
		AppEnv:       envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:       envRequired("APP_URL"), // Required: base URL for email links
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "support@dirigovotes.com"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/dirigo.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_time_format=sqlite"),

		// Security
		JWTSecret:              envRequired("JWT_SECRET"),
		JWTExpiry:              envDuration("JWT_EXPIRY", 168*time.Hour),               // 7 days
		TokenEmailVerifyExpiry: envDuration("TOKEN_EMAIL_VERIFY_EXPIRY", 24*time.Hour), // 24 hours
		AdminRoles:             envList("ADMIN_ROLES", []string{"dirigo_admin"}),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:        envString("EMAIL_FROM", "noreply@dirigovotes.com"),
		ResendAPIKey:     envString("RESEND_API_KEY", ""),
		ReportRecipients: envList("REPORT_RECIPIENTS", nil),

		// Signup
		PasswordPolicy:         envOneOf("PASSWORD_POLICY", PasswordPolicyStrict, PasswordPolicyBasic, PasswordPolicyStrict),
		ExistenceCheck:         envOneOf("EXISTENCE_CHECK", ExistenceCheckLookup, ExistenceCheckLookup, ExistenceCheckProbe),
		SignupAttemptTimeout:   envDuration("SIGNUP_ATTEMPT_TIMEOUT", 60*time.Second),
		SignupExistenceTimeout: envDuration("SIGNUP_EXISTENCE_TIMEOUT", 5*time.Second),
		SignupResendTimeout:    envDuration("SIGNUP_RESEND_TIMEOUT", 8*time.Second),
		SignupSettleDelay:      envDuration("SIGNUP_SETTLE_DELAY", 2*time.Second),
		SignupRetryDelay:       envDuration("SIGNUP_RETRY_DELAY", 2*time.Second),
		SignupMaxRetries:       envInt("SIGNUP_MAX_RETRIES", 2),

		// Voting
		VoteWithdrawal: envOneOf("VOTE_WITHDRAWAL", "allow", "allow", "deny") == "allow",

		// Redis
		RedisURL:          envString("REDIS_URL", ""),
		AnalyticsCacheTTL: envDuration("ANALYTICS_CACHE_TTL", 5*time.Minute),

		// Observability
		LogLevel:       envOneOf("LOG_LEVEL", "", "", "debug", "info", "warn", "error"),
		SentryDSN:      envString("SENTRY_DSN", ""),
		MetricsEnabled: envBool("METRICS_ENABLED", true),

		// Storage
		S3Region:              envString("S3_REGION", "us-east-1"),
		S3Bucket:              envString("S3_BUCKET", ""),
		S3AccessKey:           envString("S3_ACCESS_KEY", ""),
		S3SecretKey:           envString("S3_SECRET_KEY", ""),
		S3Endpoint:            envString("S3_ENDPOINT", ""),                           // Optional: for non-AWS providers
		S3PresignExpiryPublic: envDuration("S3_PRESIGN_EXPIRY_PUBLIC", 168*time.Hour), // Default: 7 days
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to run in log mode for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList reads a comma separated list, dropping empty items.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envOneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(envString(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	slog.Warn("config invalid value, using default", "key", key, "value", v, "allowed", allowed, "default", def)
	return def
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != ""
}

func (c *Config) Logging() logger.Options {
	return logger.Options{
		Dev:         c.IsDevelopment(),
		Level:       c.LogLevel,
		SentryDSN:   c.SentryDSN,
		Environment: c.AppEnv,
	}
}
