package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultPlatformFeePercent = 10
	defaultMinDepositAmount   = 500
	defaultCurrencies         = "usd,eur"
)

type Config struct {
	Env    string
	Stripe stripeConfig
	Stream streamConfig
}

type stripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	PlatformFeePercent float64
	Currencies         []string
	MinDepositAmount   int64
}

type streamConfig struct {
	APIKey    string
	APISecret string
}

// ConfigError lists every missing or malformed variable found at startup.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

func loadConfig() (Config, error) {
	cfg := Config{
		Env: appEnv(),
		Stripe: stripeConfig{
			SecretKey:     strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
			WebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		},
		Stream: streamConfig{
			APIKey:    strings.TrimSpace(os.Getenv("STREAM_API_KEY")),
			APISecret: strings.TrimSpace(os.Getenv("STREAM_API_SECRET")),
		},
	}

	cfgErr := &ConfigError{}

	required := []struct {
		key   string
		value string
	}{
		{"STRIPE_SECRET_KEY", cfg.Stripe.SecretKey},
		{"STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret},
		{"STREAM_API_KEY", cfg.Stream.APIKey},
		{"STREAM_API_SECRET", cfg.Stream.APISecret},
	}
	for _, r := range required {
		if r.value == "" {
			cfgErr.Missing = append(cfgErr.Missing, r.key)
		}
	}

	fee, err := getEnvFloat("PLATFORM_FEE_PERCENT", defaultPlatformFeePercent)
	if err != nil || fee < 0 || fee > 100 {
		cfgErr.Invalid = append(cfgErr.Invalid, "PLATFORM_FEE_PERCENT")
	}
	cfg.Stripe.PlatformFeePercent = fee

	minDeposit, err := getEnvInt64("STRIPE_MIN_DEPOSIT", defaultMinDepositAmount)
	if err != nil || minDeposit <= 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "STRIPE_MIN_DEPOSIT")
	}
	cfg.Stripe.MinDepositAmount = minDeposit

	cfg.Stripe.Currencies = parseCurrencies(getEnvString("STRIPE_CURRENCIES", defaultCurrencies))
	if len(cfg.Stripe.Currencies) == 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "STRIPE_CURRENCIES")
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return Config{}, cfgErr
	}

	return cfg, nil
}

func (c stripeConfig) SupportsCurrency(currency string) bool {
	for _, supported := range c.Currencies {
		if supported == currency {
			return true
		}
	}
	return false
}

func appEnv() string {
	return getEnvString("APP_ENV", "production")
}

func parseCurrencies(value string) []string {
	currencies := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		currency := strings.ToLower(strings.TrimSpace(part))
		if currency != "" {
			currencies = append(currencies, currency)
		}
	}
	return currencies
}

func getEnvString(key string, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
