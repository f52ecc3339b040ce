package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver string // postgres or sqlite
	DatabaseURL    string
	HTTPAddr       string
	APIJWTSecret   string // Empty disables bearer auth on the management API
	LogLevel       string
	Environment    string

	CronSpecSweep   string
	SweepWorkers    int
	SweepBatchSize  int
	SweepClaimTTL   time.Duration // A claim older than this is considered abandoned
	MailSendTimeout time.Duration
	CatalogCacheTTL time.Duration

	MailDriver   string // smtp or log
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	SupportedLanguages []string
	DefaultLanguage    string
	RenewalURLTemplate string // "{order_id}" is replaced with the order id, e.g. https://shop.example/orders/{order_id}/renew

	TelegramToken   string // Optional admin bot
	AdminTelegramID int64
}

// Environment keys. Viper keys are the lower-cased variants.
const (
	KeyDatabaseDriver     = "DATABASE_DRIVER"
	KeyDatabaseURL        = "DATABASE_URL"
	KeyHTTPAddr           = "HTTP_ADDR"
	KeyAPIJWTSecret       = "API_JWT_SECRET"
	KeyLogLevel           = "LOG_LEVEL"
	KeyEnvironment        = "ENVIRONMENT"
	KeyCronSpecSweep      = "CRON_SPEC_SWEEP"
	KeySweepWorkers       = "SWEEP_WORKERS"
	KeySweepBatchSize     = "SWEEP_BATCH_SIZE"
	KeySweepClaimTTL      = "SWEEP_CLAIM_TTL"
	KeyMailSendTimeout    = "MAIL_SEND_TIMEOUT"
	KeyCatalogCacheTTL    = "CATALOG_CACHE_TTL"
	KeyMailDriver         = "MAIL_DRIVER"
	KeySMTPHost           = "SMTP_HOST"
	KeySMTPPort           = "SMTP_PORT"
	KeySMTPUsername       = "SMTP_USERNAME"
	KeySMTPPassword       = "SMTP_PASSWORD"
	KeyMailFrom           = "MAIL_FROM"
	KeySupportedLanguages = "SUPPORTED_LANGUAGES"
	KeyDefaultLanguage    = "DEFAULT_LANGUAGE"
	KeyRenewalURLTemplate = "RENEWAL_URL_TEMPLATE"
	KeyTelegramToken      = "TELEGRAM_TOKEN"
	KeyAdminTelegramID    = "ADMIN_TELEGRAM_ID"
)

var defaults = map[string]any{
	KeyDatabaseDriver:     "sqlite",
	KeyHTTPAddr:           ":8080",
	KeyLogLevel:           "info",
	KeyEnvironment:        "development",
	KeyCronSpecSweep:      "*/5 * * * *", // every 5 minutes
	KeySweepWorkers:       4,
	KeySweepBatchSize:     500,
	KeySweepClaimTTL:      "10m",
	KeyMailSendTimeout:    "30s",
	KeyCatalogCacheTTL:    "1h",
	KeyMailDriver:         "log",
	KeySMTPPort:           587,
	KeySupportedLanguages: "en,es,fr,de",
	KeyDefaultLanguage:    "en",
	KeyRenewalURLTemplate: "https://example.com/orders/{order_id}/renew",
}

// Load reads configuration from environment variables and .env file (if present).
// Values already bound on the global viper instance (CLI flags) take precedence over the environment.
func Load() (*AppConfig, error) {
	// godotenv.Load does not override variables that are already set.
	_ = godotenv.Load()
	return FromViper(viper.GetViper())
}

// FromViper builds and validates the configuration from v, applying defaults.
func FromViper(v *viper.Viper) (*AppConfig, error) {
	for key, value := range defaults {
		v.SetDefault(viperKey(key), value)
	}
	for _, key := range allKeys() {
		if err := v.BindEnv(viperKey(key), key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &AppConfig{
		DatabaseDriver:     strings.ToLower(v.GetString(viperKey(KeyDatabaseDriver))),
		DatabaseURL:        v.GetString(viperKey(KeyDatabaseURL)),
		HTTPAddr:           v.GetString(viperKey(KeyHTTPAddr)),
		APIJWTSecret:       v.GetString(viperKey(KeyAPIJWTSecret)),
		LogLevel:           strings.ToLower(v.GetString(viperKey(KeyLogLevel))),
		Environment:        strings.ToLower(v.GetString(viperKey(KeyEnvironment))),
		CronSpecSweep:      v.GetString(viperKey(KeyCronSpecSweep)),
		SweepWorkers:       v.GetInt(viperKey(KeySweepWorkers)),
		SweepBatchSize:     v.GetInt(viperKey(KeySweepBatchSize)),
		SweepClaimTTL:      v.GetDuration(viperKey(KeySweepClaimTTL)),
		MailSendTimeout:    v.GetDuration(viperKey(KeyMailSendTimeout)),
		CatalogCacheTTL:    v.GetDuration(viperKey(KeyCatalogCacheTTL)),
		MailDriver:         strings.ToLower(v.GetString(viperKey(KeyMailDriver))),
		SMTPHost:           v.GetString(viperKey(KeySMTPHost)),
		SMTPPort:           v.GetInt(viperKey(KeySMTPPort)),
		SMTPUsername:       v.GetString(viperKey(KeySMTPUsername)),
		SMTPPassword:       v.GetString(viperKey(KeySMTPPassword)),
		MailFrom:           v.GetString(viperKey(KeyMailFrom)),
		SupportedLanguages: splitList(v.GetString(viperKey(KeySupportedLanguages))),
		DefaultLanguage:    strings.ToLower(v.GetString(viperKey(KeyDefaultLanguage))),
		RenewalURLTemplate: v.GetString(viperKey(KeyRenewalURLTemplate)),
		TelegramToken:      v.GetString(viperKey(KeyTelegramToken)),
		AdminTelegramID:    v.GetInt64(viperKey(KeyAdminTelegramID)),
	}

	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == "sqlite" {
		cfg.DatabaseURL = "file:reminders.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid %s %q: expected postgres or sqlite", KeyDatabaseDriver, c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s is not set", KeyDatabaseURL)
	}
	if c.SweepWorkers < 1 {
		return fmt.Errorf("%s must be at least 1", KeySweepWorkers)
	}
	if c.SweepBatchSize < 1 {
		return fmt.Errorf("%s must be at least 1", KeySweepBatchSize)
	}
	if c.MailSendTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyMailSendTimeout)
	}
	if c.SweepClaimTTL <= 0 {
		return fmt.Errorf("%s must be positive", KeySweepClaimTTL)
	}
	if c.MailSendTimeout >= c.SweepClaimTTL {
		return fmt.Errorf("%s (%s) must be shorter than %s (%s)",
			KeyMailSendTimeout, c.MailSendTimeout, KeySweepClaimTTL, c.SweepClaimTTL)
	}
	switch c.MailDriver {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("%s is not set", KeySMTPHost)
		}
		if c.MailFrom == "" {
			return fmt.Errorf("%s is not set", KeyMailFrom)
		}
	default:
		return fmt.Errorf("invalid %s %q: expected smtp or log", KeyMailDriver, c.MailDriver)
	}
	if len(c.SupportedLanguages) == 0 {
		return fmt.Errorf("%s is empty", KeySupportedLanguages)
	}
	found := false
	for _, l := range c.SupportedLanguages {
		if l == c.DefaultLanguage {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%s %q is not in %s", KeyDefaultLanguage, c.DefaultLanguage, KeySupportedLanguages)
	}
	if c.TelegramToken != "" && c.AdminTelegramID == 0 {
		return fmt.Errorf("%s is required when %s is set", KeyAdminTelegramID, KeyTelegramToken)
	}
	return nil
}

// TelegramEnabled reports whether the admin bot should be started.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// ViperKey returns the viper key CLI flags bind to for an environment key.
func ViperKey(envKey string) string { return viperKey(envKey) }

func viperKey(envKey string) string { return strings.ToLower(envKey) }

func allKeys() []string {
	return []string{
		KeyDatabaseDriver, KeyDatabaseURL, KeyHTTPAddr, KeyAPIJWTSecret, KeyLogLevel, KeyEnvironment,
		KeyCronSpecSweep, KeySweepWorkers, KeySweepBatchSize, KeySweepClaimTTL, KeyMailSendTimeout,
		KeyCatalogCacheTTL, KeyMailDriver, KeySMTPHost, KeySMTPPort, KeySMTPUsername, KeySMTPPassword,
		KeyMailFrom, KeySupportedLanguages, KeyDefaultLanguage, KeyRenewalURLTemplate, KeyTelegramToken,
		KeyAdminTelegramID,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
