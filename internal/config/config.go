package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Database pool
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"2"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Server
	Port int `env:"PORT" envDefault:"3000"`

	// Commission bus. Empty means the in-process worker is used.
	NatsURL     string `env:"NATS_URL"`
	NatsSubject string `env:"NATS_COMMISSION_SUBJECT" envDefault:"rewards.commission"`

	// Referral commission share of every reward, e.g. 0.05.
	CommissionRate decimal.Decimal `env:"REFERRAL_COMMISSION_RATE" envDefault:"0.05"`

	// Telegram logging
	LogTelegramChatID    int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError        int   `env:"LOG_TOPIC_ERROR"`
	LogTopicWithdrawal   int   `env:"LOG_TOPIC_WITHDRAWAL"`
	LogTopicSettlement   int   `env:"LOG_TOPIC_SETTLEMENT"`
	LogTopicRegistration int   `env:"LOG_TOPIC_REGISTRATION"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.CommissionRate.IsNegative() || cfg.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("parse config: REFERRAL_COMMISSION_RATE must be within [0, 1]")
	}
	if cfg.DBMaxConns < 1 || cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("parse config: DB_MIN_CONNS must be within [0, DB_MAX_CONNS] and DB_MAX_CONNS positive")
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	return slices.Contains(c.AdminIDs, telegramID)
}

func (c *Config) AdminIDsString() string {
	parts := make([]string, len(c.AdminIDs))
	for i, id := range c.AdminIDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
