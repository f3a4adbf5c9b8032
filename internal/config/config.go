package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port            string
	DBConn          string
	LogLevel        string
	JWTSecret       string
	APIUser         string
	APIPasswordHash string
	ECBURL          string
	ECBTimeout      time.Duration
	RunSchedule     string
	RiskConfigPath  string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
	AlertRecipients []string
	Risk            RiskConfig
}

// NewConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("ECB_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ECB_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=creditrisk sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		APIUser:         getEnv("API_USER", "analyst"),
		APIPasswordHash: getEnv("API_PASSWORD_HASH", ""),
		ECBURL:          getEnv("ECB_URL", "https://data-api.ecb.europa.eu/service/data"),
		ECBTimeout:      timeout,
		RunSchedule:     getEnv("RUN_SCHEDULE", "0 6 * * *"),
		RiskConfigPath:  getEnv("RISK_CONFIG", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "risk-monitor@localhost"),
		AlertRecipients: splitList(getEnv("ALERT_RECIPIENTS", "")),
	}

	cfg.Risk = DefaultRiskConfig()
	if cfg.RiskConfigPath != "" {
		risk, err := LoadRiskConfig(cfg.RiskConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Risk = risk
	}
	if v := os.Getenv("CAPITAL_BASE"); v != "" {
		base, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CAPITAL_BASE: %w", err)
		}
		cfg.Risk.Regulatory.CapitalBase = base
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return c.Risk.Validate()
}

// MailEnabled reports whether alert digests can be sent
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && len(c.AlertRecipients) > 0
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
