package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string

	NSDLBaseURL         string
	BSEBaseURL          string
	KiteBaseURL         string
	KiteInstrumentsURL  string
	KiteAPIKey          string
	KiteAccessToken     string
	KiteAccessTokenPath string

	ClassifierBaseURL           string
	ClassifierModel             string
	ClassifierAPIKey            string
	ClassifierMaxAttempts       int
	ClassifierFallbackFrequency int

	// Implied annual return above which a disclosed zero-coupon payoff is
	// taken to include principal.
	ZeroCouponPrincipalThreshold float64
	RecordDateOffsetDays         int
	DayCount                     string // ACT/365 or ACT/ACT-DAILY

	HTTPTimeout         time.Duration
	SourceRatePerSecond float64
	SourceRateBurst     int
	SourceCacheTTL      time.Duration
	QuoteBatchSize      int
	BatchWorkers        int
	SettlementLagDays   int

	MarketOpen     string // HH:MM, market local time
	MarketClose    string
	MarketTimezone string
	PollInterval   time.Duration

	EmailServiceProvider string
	MailgunDomain        string
	MailgunPrivateAPIKey string
	SenderEmail          string
	SenderName           string
	ReportRecipient      string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *AppConfig {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	cfg := &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./bondflow.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		NSDLBaseURL:         getEnv("NSDL_BASE_URL", "https://www.indiabondinfo.nsdl.com"),
		BSEBaseURL:          getEnv("BSE_BASE_URL", "https://api.bseindia.com"),
		KiteBaseURL:         getEnv("KITE_BASE_URL", "https://api.kite.trade"),
		KiteInstrumentsURL:  getEnv("KITE_INSTRUMENTS_URL", "https://api.kite.trade/instruments"),
		KiteAPIKey:          getEnv("KITE_API_KEY", ""),
		KiteAccessToken:     getEnv("KITE_ACCESS_TOKEN", ""),
		KiteAccessTokenPath: getEnv("KITE_ACCESS_TOKEN_PATH", "access_token.txt"),

		ClassifierBaseURL:           getEnv("CLASSIFIER_BASE_URL", "https://api.openai.com/v1"),
		ClassifierModel:             getEnv("CLASSIFIER_MODEL", "gpt-4o"),
		ClassifierAPIKey:            getEnv("CLASSIFIER_API_KEY", ""),
		ClassifierMaxAttempts:       getEnvAsInt("CLASSIFIER_MAX_ATTEMPTS", 5),
		ClassifierFallbackFrequency: getEnvAsInt("CLASSIFIER_FALLBACK_FREQUENCY", 1),

		ZeroCouponPrincipalThreshold: getEnvAsFloat("ZERO_COUPON_PRINCIPAL_THRESHOLD", 0.20),
		RecordDateOffsetDays:         getEnvAsInt("RECORD_DATE_OFFSET_DAYS", 15),
		DayCount:                     getEnv("DAY_COUNT", "ACT/365"),

		HTTPTimeout:         getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),
		SourceRatePerSecond: getEnvAsFloat("SOURCE_RATE_PER_SECOND", 2),
		SourceRateBurst:     getEnvAsInt("SOURCE_RATE_BURST", 4),
		SourceCacheTTL:      getEnvAsDuration("SOURCE_CACHE_TTL", 6*time.Hour),
		QuoteBatchSize:      getEnvAsInt("QUOTE_BATCH_SIZE", 200),
		BatchWorkers:        getEnvAsInt("BATCH_WORKERS", 4),
		SettlementLagDays:   getEnvAsInt("SETTLEMENT_LAG_DAYS", 2),

		MarketOpen:     getEnv("MARKET_OPEN", "09:15"),
		MarketClose:    getEnv("MARKET_CLOSE", "15:30"),
		MarketTimezone: getEnv("MARKET_TIMEZONE", "Asia/Kolkata"),
		PollInterval:   getEnvAsDuration("POLL_INTERVAL", 15*time.Minute),

		EmailServiceProvider: getEnv("EMAIL_SERVICE_PROVIDER", "log"),
		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),
		SenderEmail:          getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:           getEnv("SENDER_NAME", "Bondflow"),
		ReportRecipient:      getEnv("REPORT_RECIPIENT", ""),
	}

	if cfg.ClassifierMaxAttempts < 1 {
		log.Printf("WARNING: CLASSIFIER_MAX_ATTEMPTS must be positive, got %d. Using 1.", cfg.ClassifierMaxAttempts)
		cfg.ClassifierMaxAttempts = 1
	}
	if cfg.BatchWorkers < 1 {
		cfg.BatchWorkers = 1
	}
	if cfg.QuoteBatchSize < 1 {
		cfg.QuoteBatchSize = 200
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, EmailProvider=%s, Workers=%d",
		cfg.Port, cfg.LogLevel, cfg.DatabasePath, cfg.EmailServiceProvider, cfg.BatchWorkers)
	return cfg
}

// ValidateKite checks the broker credentials needed by the quote and
// instrument commands. The access token may come from a file written by the
// daily login flow.
func (c *AppConfig) ValidateKite() error {
	if c.KiteAPIKey == "" {
		return errors.New("KITE_API_KEY is required")
	}
	if c.KiteAccessToken == "" && c.KiteAccessTokenPath != "" {
		raw, err := os.ReadFile(c.KiteAccessTokenPath)
		if err == nil {
			c.KiteAccessToken = strings.TrimSpace(string(raw))
		}
	}
	if c.KiteAccessToken == "" {
		return errors.New("KITE_ACCESS_TOKEN is required (or a readable KITE_ACCESS_TOKEN_PATH)")
	}
	return nil
}

// ValidateNotifier checks the mail settings when mailgun is selected.
func (c *AppConfig) ValidateNotifier() error {
	if strings.ToLower(c.EmailServiceProvider) != "mailgun" {
		return nil
	}
	if c.MailgunDomain == "" {
		return errors.New("MAILGUN_DOMAIN is required when EMAIL_SERVICE_PROVIDER is 'mailgun'")
	}
	if c.MailgunPrivateAPIKey == "" {
		return errors.New("MAILGUN_PRIVATE_API_KEY is required when EMAIL_SERVICE_PROVIDER is 'mailgun'")
	}
	if c.SenderEmail == "noreply@example.com" || c.SenderEmail == "" {
		return errors.New("SENDER_EMAIL must be configured properly when EMAIL_SERVICE_PROVIDER is 'mailgun'")
	}
	if c.ReportRecipient == "" {
		return errors.New("REPORT_RECIPIENT is required when EMAIL_SERVICE_PROVIDER is 'mailgun'")
	}
	return nil
}

// MarketLocation resolves MarketTimezone, falling back to UTC.
func (c *AppConfig) MarketLocation() *time.Location {
	loc, err := time.LoadLocation(c.MarketTimezone)
	if err != nil {
		log.Printf("WARNING: Invalid MARKET_TIMEZONE '%s', using UTC. Error: %v", c.MarketTimezone, err)
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Float value for %s not set or empty, using default: %g", key, fallback)
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
